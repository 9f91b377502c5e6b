package webmonitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dj-oyu/zone-traffic-monitor/internal/emitter"
	"github.com/dj-oyu/zone-traffic-monitor/internal/logger"
	"github.com/dj-oyu/zone-traffic-monitor/internal/metrics"
	"github.com/dj-oyu/zone-traffic-monitor/internal/pipeline"
	"github.com/dj-oyu/zone-traffic-monitor/internal/render"
	"github.com/dj-oyu/zone-traffic-monitor/internal/snapshot"
)

// Controller is the control surface of the counting pipeline.
type Controller interface {
	Start(ctx context.Context, filename string) (bool, error)
	Stop(ctx context.Context) (bool, error)
	ListSources() []pipeline.SourceInfo
	State() pipeline.State
}

// Server serves the dashboard, the control endpoints and the live streams.
type Server struct {
	cfg         Config
	ctrl        Controller
	monitor     *Monitor
	metrics     *metrics.Metrics
	broadcaster *StatusBroadcaster
	recording   RecordingStatusProvider
	broker      BrokerStatsProvider
	placeholder []byte
}

// BrokerStatsProvider reports the MQTT publisher's connection and counters.
type BrokerStatsProvider interface {
	Stats() emitter.Stats
}

// NewServer returns a configured monitor server. recording may be nil when
// count logging is disabled.
func NewServer(cfg Config, ctrl Controller, store *snapshot.Store, m *metrics.Metrics, recording RecordingStatusProvider) *Server {
	def := DefaultConfig()
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = def.StatusInterval
	}
	if cfg.MJPEGInterval <= 0 {
		cfg.MJPEGInterval = def.MJPEGInterval
	}
	if cfg.FrameWidth <= 0 || cfg.FrameHeight <= 0 {
		cfg.FrameWidth, cfg.FrameHeight = def.FrameWidth, def.FrameHeight
	}
	if m == nil {
		m = metrics.New()
	}

	placeholder, err := render.Placeholder(cfg.FrameWidth, cfg.FrameHeight, "Waiting for pipeline...")
	if err != nil {
		logger.Warn("WebMonitor", "Placeholder frame unavailable: %v", err)
	}

	monitor := NewMonitor(store)
	broadcaster := NewStatusBroadcaster(monitor, cfg.StatusInterval)
	broadcaster.Start()

	return &Server{
		cfg:         cfg,
		ctrl:        ctrl,
		monitor:     monitor,
		metrics:     m,
		broadcaster: broadcaster,
		recording:   recording,
		placeholder: placeholder,
	}
}

// SetBrokerStats adds publisher statistics to /health. Call before serving.
func (s *Server) SetBrokerStats(p BrokerStatsProvider) {
	s.broker = p
}

// Close stops the stats broadcaster.
func (s *Server) Close() {
	s.broadcaster.Stop()
}

// Handler exposes the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.Handle("GET /ui/", http.StripPrefix("/ui", newAssetHandler(s.cfg.FrontendDir)))
	mux.HandleFunc("GET /videos", s.handleVideos)
	mux.HandleFunc("GET /start/{filename...}", s.handleStart)
	mux.HandleFunc("POST /start/{filename...}", s.handleStart)
	mux.HandleFunc("GET /stop", s.handleStop)
	mux.HandleFunc("POST /stop", s.handleStop)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /stats/stream", s.handleStatsStream)
	mux.HandleFunc("GET /video", s.handleVideo)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /recording/status", s.handleRecordingStatus)
	mux.Handle("GET /metrics", s.metrics.Handler())

	return withCORS(mux)
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if s.cfg.FrontendDir != "" {
		if index := filepath.Join(s.cfg.FrontendDir, "index.html"); fileExists(index) {
			http.ServeFile(w, r, index)
			return
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexHTML))
}

func (s *Server) handleVideos(w http.ResponseWriter, r *http.Request) {
	sources := s.ctrl.ListSources()
	if sources == nil {
		sources = []pipeline.SourceInfo{}
	}
	writeJSON(w, sources)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	filename := r.PathValue("filename")
	started, err := s.ctrl.Start(r.Context(), filename)
	if err != nil {
		logger.Warn("WebMonitor", "Start %q rejected: %v", filename, err)
		writeError(w, err)
		return
	}
	if !started {
		writeJSON(w, StatusResponse{Status: "already running"})
		return
	}
	writeJSON(w, StatusResponse{Status: "started"})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	stopped, err := s.ctrl.Stop(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if !stopped {
		writeJSON(w, StatusResponse{Status: "not running"})
		return
	}
	writeJSON(w, StatusResponse{Status: "stopped"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.monitor.Snapshot())
}

func (s *Server) handleStatsStream(w http.ResponseWriter, r *http.Request) {
	id, eventCh := s.broadcaster.Subscribe()
	defer s.broadcaster.Unsubscribe(id)

	s.metrics.SSEClients.Add(1)
	defer s.metrics.SSEClients.Add(-1)

	accept := r.Header.Get("Accept")
	useProtobuf := strings.Contains(accept, "application/protobuf") ||
		strings.Contains(accept, "application/x-protobuf")

	streamStatusEventsFromChannel(w, r, eventCh, useProtobuf)
}

func (s *Server) handleVideo(w http.ResponseWriter, r *http.Request) {
	s.metrics.MJPEGClients.Add(1)
	defer s.metrics.MJPEGClients.Add(-1)

	streamMJPEG(w, r, s.cfg.MJPEGInterval, s.monitor.Frame, s.placeholder)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	state := s.ctrl.State()
	resp := HealthResponse{
		Status:  "ok",
		State:   state.String(),
		Running: state == pipeline.Running,
	}
	if s.broker != nil {
		stats := s.broker.Stats()
		resp.MQTT = &stats
	}
	writeJSON(w, resp)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSONWithStatus(w, ErrorResponse{
		Status: "error",
		Reason: pipeline.Reason(err),
		Detail: err.Error(),
	}, pipeline.HTTPStatus(err))
}

func writeJSON(w http.ResponseWriter, payload any) {
	writeJSONWithStatus(w, payload, http.StatusOK)
}

func writeJSONWithStatus(w http.ResponseWriter, payload any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		_, _ = fmt.Fprintf(w, `{"error":"%s"}`, err.Error())
	}
}
