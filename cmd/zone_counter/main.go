package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dj-oyu/zone-traffic-monitor/internal/app"
	"github.com/dj-oyu/zone-traffic-monitor/internal/config"
	"github.com/dj-oyu/zone-traffic-monitor/internal/logger"
	"github.com/dj-oyu/zone-traffic-monitor/internal/zones"
)

var (
	configPath = flag.String("config", "", "YAML config file (defaults are used when empty)")
	video      = flag.String("video", "", "Video filename from the catalog")
	once       = flag.Bool("once", false, "Stop at the end of the video instead of looping")
	logLevel   = flag.String("log-level", "", "Log level (debug, info, warn, error, silent)")
)

func main() {
	flag.Parse()

	if *video == "" {
		fmt.Fprintln(os.Stderr, "usage: zone_counter -video <filename> [-config file.yaml] [-once]")
		os.Exit(2)
	}

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Config: %v", err)
		}
		cfg = *loaded
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *once {
		cfg.Pipeline.Loop = false
	}
	if len(cfg.Videos) == 0 {
		cfg.Videos = map[string]string{*video: *video}
	}

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	logger.Init(level, os.Stderr, cfg.Log.Color)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, &cfg, app.Options{Headless: true})
	if err != nil {
		log.Fatalf("Failed to assemble pipeline: %v", err)
	}

	set, err := zones.LoadForSource(cfg.AssetsDir, *video)
	if err != nil {
		log.Fatalf("Zones: %v", err)
	}

	if _, err := a.Pipeline.Start(ctx, *video); err != nil {
		log.Fatalf("Start %s: %v", *video, err)
	}
	logger.Info("Main", "Counting %s (%d zones), Ctrl+C to finish", *video, set.Len())

	select {
	case <-ctx.Done():
	case <-a.Pipeline.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Close(shutdownCtx); err != nil {
		logger.Warn("Main", "Shutdown: %v", err)
	}

	counts := map[string]int{}
	if latest, ok := a.Store.ReadLatest(); ok {
		counts = latest.Counts
	}
	printCounts(os.Stdout, set.Labels(), counts)
}

// printCounts writes one "<label>: <n> vehicles" line per zone, in zone order.
func printCounts(w io.Writer, labels []string, counts map[string]int) {
	for _, label := range labels {
		fmt.Fprintf(w, "%s: %d vehicles\n", label, counts[label])
	}
}
