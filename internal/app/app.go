// Package app assembles the counting pipeline from a loaded configuration.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dj-oyu/zone-traffic-monitor/internal/config"
	"github.com/dj-oyu/zone-traffic-monitor/internal/density"
	"github.com/dj-oyu/zone-traffic-monitor/internal/emitter"
	"github.com/dj-oyu/zone-traffic-monitor/internal/logger"
	"github.com/dj-oyu/zone-traffic-monitor/internal/metrics"
	"github.com/dj-oyu/zone-traffic-monitor/internal/pipeline"
	"github.com/dj-oyu/zone-traffic-monitor/internal/recorder"
	"github.com/dj-oyu/zone-traffic-monitor/internal/render"
	"github.com/dj-oyu/zone-traffic-monitor/internal/snapshot"
	"github.com/dj-oyu/zone-traffic-monitor/internal/source"
	"github.com/dj-oyu/zone-traffic-monitor/internal/tracker"
	"github.com/dj-oyu/zone-traffic-monitor/internal/zones"
)

// App holds the long-lived components shared by every session.
type App struct {
	Config   *config.Config
	Metrics  *metrics.Metrics
	Store    *snapshot.Store
	Catalog  *pipeline.Catalog
	Pipeline *pipeline.Orchestrator
	Recorder *recorder.Recorder   // nil unless recording is enabled
	Emitter  *emitter.MQTTEmitter // nil unless a broker is configured
}

// Options tweak assembly for callers that do not need every component.
type Options struct {
	// Headless skips frame encoding; snapshots carry stats only.
	Headless bool
}

// New wires the pipeline. Sinks that fail to come up are logged and left out;
// the pipeline itself never depends on them.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	classifier, err := density.NewClassifier(cfg.Density.LowMax, cfg.Density.HighMax)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:  cfg,
		Metrics: metrics.New(),
		Store:   snapshot.NewStore(cfg.Pipeline.HistorySize),
		Catalog: pipeline.NewCatalog(cfg.AssetsDir, cfg.Videos),
	}

	sourceOpts := source.Options{
		Width:  cfg.Resize.Width,
		Height: cfg.Resize.Height,
		MaxFPS: cfg.Pipeline.MaxFPS,
	}
	deps := pipeline.Deps{
		Catalog: a.Catalog,
		Store:   a.Store,
		Open: func(path string) (pipeline.FrameSource, error) {
			return source.Open(path, sourceOpts)
		},
		NewTracker: tracker.NewFactory(tracker.Settings{
			Mode:      cfg.Tracker.Mode,
			URL:       cfg.Tracker.URL,
			Timeout:   cfg.Tracker.Timeout,
			AssetsDir: cfg.AssetsDir,
		}),
		Metrics: a.Metrics,
	}
	if !opts.Headless {
		quality := cfg.Pipeline.JPEGQuality
		deps.NewEncoder = func(set *zones.ZoneSet) pipeline.Encoder {
			return render.NewAnnotator(set, quality)
		}
	}

	if cfg.Recording.Enabled {
		if err := os.MkdirAll(cfg.Recording.OutputPath, 0o755); err != nil {
			return nil, fmt.Errorf("create recordings directory: %w", err)
		}
		a.Recorder = recorder.NewRecorder(cfg.Recording.OutputPath)
		deps.Sinks = append(deps.Sinks, a.Recorder.SinkFactory())
	}

	if cfg.MQTT.Broker != "" {
		em := emitter.NewMQTTEmitter(emitter.Settings{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			QoS:         cfg.MQTT.QoS,
		})
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := em.Connect(connectCtx)
		cancel()
		if err != nil {
			logger.Warn("App", "MQTT disabled: %v", err)
		} else {
			a.Emitter = em
			deps.Sinks = append(deps.Sinks, em.SinkFactory())
		}
	}

	a.Pipeline = pipeline.New(pipeline.Config{
		Loop:               cfg.Pipeline.Loop,
		FPSWindow:          cfg.Pipeline.FPSWindow,
		GapBackoff:         cfg.Pipeline.GapBackoff,
		MaxConsecutiveGaps: pipeline.DefaultMaxConsecutiveGaps,
		Density:            classifier,
		EvictAfter:         cfg.Pipeline.EvictAfter,
	}, deps)

	return a, nil
}

// Close stops any running session and releases the sinks.
func (a *App) Close(ctx context.Context) error {
	if _, err := a.Pipeline.Stop(ctx); err != nil {
		return fmt.Errorf("stop pipeline: %w", err)
	}
	if a.Recorder != nil {
		if err := a.Recorder.Close(); err != nil {
			logger.Warn("App", "Recorder close: %v", err)
		}
	}
	if a.Emitter != nil {
		if err := a.Emitter.Disconnect(); err != nil {
			logger.Warn("App", "MQTT disconnect: %v", err)
		}
	}
	return nil
}
