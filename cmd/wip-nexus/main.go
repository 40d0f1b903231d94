package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/wipnet/wip-nexus/pkg/config"
	"github.com/wipnet/wip-nexus/pkg/database"
	"github.com/wipnet/wip-nexus/pkg/logger"
	"github.com/wipnet/wip-nexus/pkg/metrics"
	"github.com/wipnet/wip-nexus/pkg/network"
	"github.com/wipnet/wip-nexus/pkg/service"
	"github.com/wipnet/wip-nexus/pkg/web"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	configFile := flag.String("config", "", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	validate := flag.Bool("validate", false, "Validate configuration and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("WIP-Nexus %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	// Bootstrap logger until the configured one is available
	log := logger.New(logger.Config{
		Level:  "info",
		Format: "text",
	})

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Error("Failed to load configuration", logger.Error(err))
		os.Exit(1)
	}

	if *validate {
		log.Info("Configuration is valid")
		os.Exit(0)
	}

	log = logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	log.Info("Starting WIP-Nexus",
		logger.String("version", version),
		logger.String("build_time", buildTime),
		logger.String("server_name", cfg.Server.Name))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	db, err := database.NewDB(cfg.Database, log)
	if err != nil {
		log.Error("Failed to open database", logger.Error(err))
		os.Exit(1)
	}
	defer db.Close()

	svc := service.New(db, log)
	m := metrics.New()

	var wg sync.WaitGroup

	if cfg.Metrics.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			metricsServer := metrics.NewServer(cfg.Metrics, m, log)
			if err := metricsServer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("Metrics server error", logger.Error(err))
			}
		}()
	}

	var webServer *web.Server
	if cfg.Web.Enabled {
		webServer = web.NewServer(cfg.Web, svc, log)
		webServer.GetHub().OnClientCount(func(n int) {
			m.WebClients.Set(float64(n))
		})

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := webServer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("Web server error", logger.Error(err))
			}
		}()
	}

	udpServer := network.NewServer(cfg.Server, svc, log).WithMetrics(m)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := udpServer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("UDP server error", logger.Error(err))
		}
	}()

	waitCtx, waitCancel := context.WithTimeout(ctx, 5*time.Second)
	if err := udpServer.WaitStarted(waitCtx); err == nil {
		if addr, err := udpServer.Addr(); err == nil {
			log.Info("WIP-Nexus ready", logger.String("udp_addr", addr.String()))
		}
	}
	waitCancel()

	sig := <-sigChan
	log.Info("Received shutdown signal",
		logger.String("signal", sig.String()))

	cancel()
	wg.Wait()

	log.Info("WIP-Nexus stopped")
}
