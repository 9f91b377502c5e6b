package webmonitor

import (
	"github.com/dj-oyu/zone-traffic-monitor/internal/density"
	"github.com/dj-oyu/zone-traffic-monitor/internal/snapshot"
)

// Monitor turns store reads into API payloads. It never writes to the store.
type Monitor struct {
	store *snapshot.Store
}

// NewMonitor creates a Monitor over store.
func NewMonitor(store *snapshot.Store) *Monitor {
	return &Monitor{store: store}
}

// Snapshot returns the stats payload from one atomic store read.
func (m *Monitor) Snapshot() StatsResponse {
	stats := m.store.ReadStats()

	resp := StatsResponse{
		Density:    density.Low,
		ZoneCounts: map[string]int{},
		History:    stats.History,
		Running:    stats.Running,
	}
	if resp.History == nil {
		resp.History = []snapshot.HistoryEntry{}
	}

	if latest := stats.Latest; latest != nil {
		resp.FPS = latest.FPS
		resp.ActiveTracks = latest.ActiveTracks
		resp.Density = latest.Density
		resp.Total = latest.Total
		resp.Session = latest.Session
		resp.Source = latest.Source
		resp.Seq = latest.Seq
		if latest.Counts != nil {
			resp.ZoneCounts = latest.Counts
		}
	}
	return resp
}

// Frame returns the latest encoded frame, if any was published.
func (m *Monitor) Frame() ([]byte, bool) {
	frame, _, ok := m.store.LatestFrame()
	return frame, ok
}
