package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dj-oyu/zone-traffic-monitor/internal/app"
	"github.com/dj-oyu/zone-traffic-monitor/internal/config"
	"github.com/dj-oyu/zone-traffic-monitor/internal/logger"
	"github.com/dj-oyu/zone-traffic-monitor/internal/webmonitor"
)

func main() {
	var (
		configPath string
		httpAddr   string
		logLevel   string
		autostart  string
	)
	flag.StringVar(&configPath, "config", "", "YAML config file (defaults are used when empty)")
	flag.StringVar(&httpAddr, "http", "", "HTTP server address (overrides config)")
	flag.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error, silent)")
	flag.StringVar(&autostart, "start", "", "Video filename to start counting immediately")
	flag.Parse()

	cfg := config.DefaultConfig()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			log.Fatalf("Config: %v", err)
		}
		cfg = *loaded
	}
	if httpAddr != "" {
		cfg.HTTPAddr = httpAddr
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	logger.Init(level, os.Stderr, cfg.Log.Color)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, &cfg, app.Options{})
	if err != nil {
		log.Fatalf("Failed to assemble pipeline: %v", err)
	}

	monCfg := webmonitor.Config{
		Addr:           cfg.HTTPAddr,
		FrontendDir:    cfg.FrontendDir,
		StatusInterval: cfg.Stream.StatusInterval,
		MJPEGInterval:  cfg.Stream.MJPEGInterval,
		FrameWidth:     cfg.Resize.Width,
		FrameHeight:    cfg.Resize.Height,
	}
	var recording webmonitor.RecordingStatusProvider
	if a.Recorder != nil {
		recording = a.Recorder
	}
	server := webmonitor.NewServer(monCfg, a.Pipeline, a.Store, a.Metrics, recording)
	if a.Emitter != nil {
		server.SetBrokerStats(a.Emitter)
	}

	httpServer := &http.Server{
		Addr:    monCfg.Addr,
		Handler: server.Handler(),
	}

	logger.Info("Main", "Zone monitor listening on %s", monCfg.Addr)
	logger.Info("Main", "Assets: %s (%d videos), tracker: %s", cfg.AssetsDir, len(cfg.Videos), cfg.Tracker.Mode)
	logger.Info("Main", "Log level: %s", level)

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Main", "HTTP server error: %v", err)
			stop()
		}
	}()

	if autostart != "" {
		if _, err := a.Pipeline.Start(ctx, autostart); err != nil {
			logger.Error("Main", "Autostart %s: %v", autostart, err)
		}
	}

	<-ctx.Done()
	logger.Info("Main", "Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	server.Close()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Main", "HTTP shutdown: %v", err)
	}
	if err := a.Close(shutdownCtx); err != nil {
		logger.Warn("Main", "Pipeline shutdown: %v", err)
	}
	logger.Info("Main", "Server stopped")
}
