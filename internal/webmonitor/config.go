package webmonitor

import (
	"path/filepath"
	"time"
)

// Config defines the runtime configuration for the web monitor server.
type Config struct {
	Addr           string
	FrontendDir    string
	StatusInterval time.Duration
	MJPEGInterval  time.Duration
	FrameWidth     int // placeholder frame size
	FrameHeight    int
}

// DefaultConfig returns the settings used by cmd/zone_monitor without a config file.
func DefaultConfig() Config {
	return Config{
		Addr:           ":8000",
		FrontendDir:    filepath.Clean("frontend"),
		StatusInterval: time.Second,
		MJPEGInterval:  time.Second / 30,
		FrameWidth:     1280,
		FrameHeight:    720,
	}
}
