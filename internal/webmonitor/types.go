package webmonitor

import (
	"github.com/dj-oyu/zone-traffic-monitor/internal/density"
	"github.com/dj-oyu/zone-traffic-monitor/internal/emitter"
	"github.com/dj-oyu/zone-traffic-monitor/internal/snapshot"
)

// StatsResponse is the payload of /stats and /stats/stream.
type StatsResponse struct {
	FPS          float64                 `json:"fps"`
	ActiveTracks int                     `json:"active_tracks"`
	Density      density.Tier            `json:"density"`
	ZoneCounts   map[string]int          `json:"zone_counts"`
	Total        int                     `json:"total"`
	History      []snapshot.HistoryEntry `json:"history"`
	Running      bool                    `json:"running"`
	Session      string                  `json:"session"`
	Source       string                  `json:"source"`
	Seq          uint64                  `json:"seq"`
}

// StatusResponse is the payload of the control endpoints.
type StatusResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is returned when a control request fails.
type ErrorResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
	Detail string `json:"detail"`
}

// HealthResponse is the payload of /health.
type HealthResponse struct {
	Status  string         `json:"status"`
	State   string         `json:"state"`
	Running bool           `json:"running"`
	MQTT    *emitter.Stats `json:"mqtt,omitempty"`
}
