package metrics

import (
	"math"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Metrics holds all application metrics
type Metrics struct {
	// Pipeline counters
	FramesProcessed    atomic.Uint64
	FrameGaps          atomic.Uint64
	Rewinds            atomic.Uint64
	SnapshotsPublished atomic.Uint64

	// Error counters
	TrackerErrors atomic.Uint64
	EncodeErrors  atomic.Uint64

	// Count sinks
	SinkDrops atomic.Uint64

	// Current pipeline state
	ActiveTracks     atomic.Uint64
	ProcessLatencyMs atomic.Uint64
	SessionRunning   atomic.Uint64 // 0 = stopped, 1 = running
	fpsBits          atomic.Uint64

	// Viewer tracking
	MJPEGClients atomic.Int64
	SSEClients   atomic.Int64

	zoneCount *prometheus.GaugeVec

	// Prometheus collectors
	registry *prometheus.Registry
}

// New creates a new Metrics instance with Prometheus collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.registerPrometheusMetrics()
	m.registerHostMetrics()

	return m
}

func (m *Metrics) counter(name, help string, v *atomic.Uint64) {
	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{Name: name, Help: help},
		func() float64 { return float64(v.Load()) },
	))
}

func (m *Metrics) gauge(name, help string, fn func() float64) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Name: name, Help: help},
		fn,
	))
}

// registerPrometheusMetrics registers all pipeline metrics with Prometheus
func (m *Metrics) registerPrometheusMetrics() {
	m.counter("zonecount_frames_processed_total", "Total frames processed", &m.FramesProcessed)
	m.counter("zonecount_frame_gaps_total", "Total unreadable frames skipped", &m.FrameGaps)
	m.counter("zonecount_rewinds_total", "Total input rewinds at end of feed", &m.Rewinds)
	m.counter("zonecount_snapshots_published_total", "Total snapshots published", &m.SnapshotsPublished)
	m.counter("zonecount_tracker_errors_total", "Total tracker failures treated as empty frames", &m.TrackerErrors)
	m.counter("zonecount_encode_errors_total", "Total frame encoding failures", &m.EncodeErrors)
	m.counter("zonecount_sink_drops_total", "Total count entries dropped by full sinks", &m.SinkDrops)

	m.gauge("zonecount_active_tracks", "Tracks in the latest frame",
		func() float64 { return float64(m.ActiveTracks.Load()) })
	m.gauge("zonecount_fps", "Smoothed processing rate",
		func() float64 { return m.FPS() })
	m.gauge("zonecount_process_latency_ms", "Last frame processing time in milliseconds",
		func() float64 { return float64(m.ProcessLatencyMs.Load()) })
	m.gauge("zonecount_session_running", "Counting session active (0=stopped, 1=running)",
		func() float64 { return float64(m.SessionRunning.Load()) })
	m.gauge("zonecount_mjpeg_clients", "Connected MJPEG viewers",
		func() float64 { return float64(m.MJPEGClients.Load()) })
	m.gauge("zonecount_sse_clients", "Connected stats stream clients",
		func() float64 { return float64(m.SSEClients.Load()) })

	m.zoneCount = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "zonecount_zone_count",
			Help: "Vehicles counted entering each zone in the current session",
		},
		[]string{"zone"},
	)
	m.registry.MustRegister(m.zoneCount)
}

// registerHostMetrics exposes host load next to pipeline throughput.
func (m *Metrics) registerHostMetrics() {
	m.gauge("zonecount_host_cpu_percent", "Host CPU utilisation since the previous scrape",
		func() float64 {
			pct, err := cpu.Percent(0, false)
			if err != nil || len(pct) == 0 {
				return 0
			}
			return pct[0]
		})
	m.gauge("zonecount_host_memory_used_percent", "Host memory in use",
		func() float64 {
			vm, err := mem.VirtualMemory()
			if err != nil {
				return 0
			}
			return vm.UsedPercent
		})
}

// SetFPS stores the smoothed processing rate
func (m *Metrics) SetFPS(fps float64) {
	m.fpsBits.Store(math.Float64bits(fps))
}

// FPS returns the last stored processing rate
func (m *Metrics) FPS() float64 {
	return math.Float64frombits(m.fpsBits.Load())
}

// UpdateProcessLatency updates the processing latency
func (m *Metrics) UpdateProcessLatency(duration time.Duration) {
	m.ProcessLatencyMs.Store(uint64(duration.Milliseconds()))
}

// ResetZoneCounts clears per-zone gauges and seeds the new session's labels
func (m *Metrics) ResetZoneCounts(labels []string) {
	m.zoneCount.Reset()
	for _, label := range labels {
		m.zoneCount.WithLabelValues(label).Set(0)
	}
}

// SetZoneCounts updates per-zone gauges
func (m *Metrics) SetZoneCounts(counts map[string]int) {
	for label, n := range counts {
		m.zoneCount.WithLabelValues(label).Set(float64(n))
	}
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
