package metrics

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wipnet/wip-nexus/pkg/config"
	"github.com/wipnet/wip-nexus/pkg/logger"
)

// Server exposes the metrics registry over HTTP for Prometheus scraping.
type Server struct {
	config  config.MetricsConfig
	metrics *Metrics
	log     *logger.Logger
	server  *http.Server

	addr chan net.Addr
}

// NewServer creates a new metrics server
func NewServer(cfg config.MetricsConfig, m *Metrics, log *logger.Logger) *Server {
	if log == nil {
		log = logger.New(logger.Config{Level: "info", Format: "text"})
	}

	return &Server{
		config:  cfg,
		metrics: m,
		log:     log.WithComponent("metrics"),
		addr:    make(chan net.Addr, 1),
	}
}

// Start runs the metrics server until the context is cancelled
func (s *Server) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.log.Info("Metrics server disabled")
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(s.config.Path, promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))

	// Use a listener to get the actual port (useful for testing with port 0)
	addr := fmt.Sprintf(":%d", s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.addr <- listener.Addr()

	s.server = &http.Server{
		Handler: mux,
	}

	s.log.Info("Starting metrics server",
		logger.Int("port", listener.Addr().(*net.TCPAddr).Port),
		logger.String("path", s.config.Path))

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.log.Info("Shutting down metrics server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics server shutdown error: %w", err)
		}
		return ctx.Err()
	case err := <-errChan:
		return err
	}
}

// Addr returns the bound listen address once the server has started.
func (s *Server) Addr() net.Addr {
	return <-s.addr
}

// Stop stops the metrics server
func (s *Server) Stop() {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.server.Shutdown(ctx)
	}
}
