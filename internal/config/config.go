package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete service configuration
type Config struct {
	HTTPAddr    string            `yaml:"http_addr"`
	AssetsDir   string            `yaml:"assets_dir"`   // videos, zones_<stem>.json, tracks_<stem>.jsonl
	FrontendDir string            `yaml:"frontend_dir"` // served under /ui/
	Videos      map[string]string `yaml:"videos"`       // label -> filename under assets_dir
	Resize      ResizeConfig      `yaml:"resize"`
	Density     DensityConfig     `yaml:"density"`
	Pipeline    PipelineConfig    `yaml:"pipeline"`
	Tracker     TrackerConfig     `yaml:"tracker"`
	Stream      StreamConfig      `yaml:"stream"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	Recording   RecordingConfig   `yaml:"recording"`
	Log         LogConfig         `yaml:"log"`
}

// ResizeConfig is the working resolution zones are drawn in
type ResizeConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// DensityConfig holds the density tier thresholds
type DensityConfig struct {
	LowMax  int `yaml:"low_max"`
	HighMax int `yaml:"high_max"`
}

// PipelineConfig controls the processing loop
type PipelineConfig struct {
	Loop        bool          `yaml:"loop"`         // rewind at end of input
	FPSWindow   int           `yaml:"fps_window"`   // frames in the FPS moving average
	HistorySize int           `yaml:"history_size"` // condensed snapshots kept for /stats
	JPEGQuality int           `yaml:"jpeg_quality"`
	GapBackoff  time.Duration `yaml:"gap_backoff"`
	MaxFPS      float64       `yaml:"max_fps"`     // 0 = unpaced
	EvictAfter  uint64        `yaml:"evict_after"` // frames; 0 keeps all track state
}

// TrackerConfig selects the external tracker
type TrackerConfig struct {
	Mode    string        `yaml:"mode"` // replay, http
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// StreamConfig controls viewer polling cadence
type StreamConfig struct {
	MJPEGInterval  time.Duration `yaml:"mjpeg_interval"`
	StatusInterval time.Duration `yaml:"status_interval"`
}

// MQTTConfig contains MQTT broker settings; an empty broker disables MQTT
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
}

// RecordingConfig controls the per-session count log
type RecordingConfig struct {
	Enabled    bool   `yaml:"enabled"`
	OutputPath string `yaml:"output_path"`
}

// LogConfig controls logger output
type LogConfig struct {
	Level string `yaml:"level"`
	Color bool   `yaml:"color"`
}

// DefaultConfig returns the configuration used when no file is given
func DefaultConfig() Config {
	return Config{
		HTTPAddr:    ":8000",
		AssetsDir:   "assets",
		FrontendDir: "frontend",
		Videos:      map[string]string{},
		Resize:      ResizeConfig{Width: 1280, Height: 720},
		Density:     DensityConfig{LowMax: 5, HighMax: 15},
		Pipeline: PipelineConfig{
			Loop:        true,
			FPSWindow:   30,
			HistorySize: 60,
			JPEGQuality: 85,
			GapBackoff:  100 * time.Millisecond,
		},
		Tracker: TrackerConfig{
			Mode:    "replay",
			Timeout: 5 * time.Second,
		},
		Stream: StreamConfig{
			MJPEGInterval:  time.Second / 30,
			StatusInterval: time.Second,
		},
		MQTT: MQTTConfig{
			ClientID:    "zone-traffic-monitor",
			TopicPrefix: "traffic",
		},
		Recording: RecordingConfig{
			OutputPath: "./recordings",
		},
		Log: LogConfig{
			Level: "INFO",
			Color: true,
		},
	}
}

// Load reads a YAML file over the defaults and validates the result
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks value ranges and cross-field rules
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Resize.Width <= 0 || cfg.Resize.Height <= 0 {
		errs = append(errs, fmt.Errorf("resize must be positive, got %dx%d", cfg.Resize.Width, cfg.Resize.Height))
	}
	if cfg.Density.LowMax < 0 {
		errs = append(errs, fmt.Errorf("density.low_max must be >= 0"))
	}
	if cfg.Density.LowMax > cfg.Density.HighMax {
		errs = append(errs, fmt.Errorf("density.low_max (%d) exceeds density.high_max (%d)",
			cfg.Density.LowMax, cfg.Density.HighMax))
	}
	if cfg.Pipeline.FPSWindow <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.fps_window must be positive"))
	}
	if cfg.Pipeline.HistorySize <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.history_size must be positive"))
	}
	if cfg.Pipeline.JPEGQuality < 1 || cfg.Pipeline.JPEGQuality > 100 {
		errs = append(errs, fmt.Errorf("pipeline.jpeg_quality must be in 1..100"))
	}
	if cfg.Pipeline.MaxFPS < 0 {
		errs = append(errs, fmt.Errorf("pipeline.max_fps must be >= 0"))
	}
	switch cfg.Tracker.Mode {
	case "replay":
	case "http":
		if cfg.Tracker.URL == "" {
			errs = append(errs, fmt.Errorf("tracker.url is required in http mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown tracker.mode %q", cfg.Tracker.Mode))
	}
	if cfg.Stream.MJPEGInterval <= 0 || cfg.Stream.StatusInterval <= 0 {
		errs = append(errs, fmt.Errorf("stream intervals must be positive"))
	}
	if cfg.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("mqtt.qos must be 0, 1 or 2"))
	}
	for label, filename := range cfg.Videos {
		if filename == "" {
			errs = append(errs, fmt.Errorf("video %q has no filename", label))
		}
	}

	return errors.Join(errs...)
}
