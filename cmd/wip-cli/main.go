package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/wipnet/wip-nexus/pkg/config"
	"github.com/wipnet/wip-nexus/pkg/logger"
	"github.com/wipnet/wip-nexus/pkg/network"
)

// wip-cli exercises a WIP server from the command line:
//
//	wip-cli -server 127.0.0.1:4050 locate -lat 35.6762 -lon 139.6503
//	wip-cli -server 127.0.0.1:4050 query -area 130010 -day 1
//	wip-cli -server 127.0.0.1:4050 report -area 130010 -alerts flood,wind
func main() {
	server := flag.String("server", "127.0.0.1:4050", "Server address (host:port)")
	timeoutMS := flag.Int("timeout", 1000, "Per-try receive timeout in milliseconds")
	retries := flag.Int("retries", 2, "Additional attempts after the first")
	passphrase := flag.String("passphrase", "", "Shared passphrase for authenticated reports")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		usage()
		os.Exit(2)
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	log := logger.New(logger.Config{Level: level, Format: "text", Output: os.Stderr})

	client := network.NewClient(config.ClientConfig{
		ServerAddr: *server,
		TimeoutMS:  *timeoutMS,
		Retries:    *retries,
		Passphrase: *passphrase,
	}, log)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var err error
	switch args[0] {
	case "locate":
		err = runLocate(ctx, client, args[1:])
	case "query":
		err = runQuery(ctx, client, args[1:])
	case "report":
		err = runReport(ctx, client, args[1:])
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: wip-cli [flags] locate|query|report [subcommand flags]")
	flag.PrintDefaults()
}

func runLocate(ctx context.Context, client *network.Client, args []string) error {
	fs := flag.NewFlagSet("locate", flag.ExitOnError)
	lat := fs.Float64("lat", 0, "Latitude in degrees")
	lon := fs.Float64("lon", 0, "Longitude in degrees")
	if err := fs.Parse(args); err != nil {
		return err
	}

	areaCode, err := client.ResolveLocation(ctx, *lat, *lon)
	if err != nil {
		return err
	}
	fmt.Printf("area_code: %d\n", areaCode)
	return nil
}

func runQuery(ctx context.Context, client *network.Client, args []string) error {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	area := fs.Uint("area", 0, "Area code")
	day := fs.Uint("day", 0, "Forecast day offset (0-7)")
	noWeather := fs.Bool("no-weather", false, "Skip weather code")
	noTemp := fs.Bool("no-temp", false, "Skip temperature")
	noPop := fs.Bool("no-pop", false, "Skip precipitation probability")
	alerts := fs.Bool("alerts", true, "Request active alerts")
	disasters := fs.Bool("disasters", true, "Request active disasters")
	if err := fs.Parse(args); err != nil {
		return err
	}

	fc, err := client.Query(ctx, uint32(*area), network.QueryOptions{
		Weather:     !*noWeather,
		Temperature: !*noTemp,
		Pop:         !*noPop,
		Alerts:      *alerts,
		Disasters:   *disasters,
		Day:         uint8(*day),
	})
	if err != nil {
		return err
	}

	printForecast(fc)
	return nil
}

func runReport(ctx context.Context, client *network.Client, args []string) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	area := fs.Uint("area", 0, "Area code")
	alerts := fs.String("alerts", "", "Comma-separated alert list")
	disasters := fs.String("disasters", "", "Comma-separated disaster list")
	if err := fs.Parse(args); err != nil {
		return err
	}

	fc, err := client.Report(ctx, uint32(*area), splitList(*alerts), splitList(*disasters))
	if err != nil {
		return err
	}

	fmt.Println("report accepted")
	printForecast(fc)
	return nil
}

func printForecast(fc *network.Forecast) {
	fmt.Printf("weather_code: %d\n", fc.WeatherCode)
	fmt.Printf("temperature: %d\n", fc.Temperature)
	fmt.Printf("precipitation: %d%%\n", fc.Precipitation)
	if len(fc.Alerts) > 0 {
		fmt.Printf("alerts: %s\n", strings.Join(fc.Alerts, ", "))
	}
	if len(fc.Disasters) > 0 {
		fmt.Printf("disasters: %s\n", strings.Join(fc.Disasters, ", "))
	}
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
