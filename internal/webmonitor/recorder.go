package webmonitor

import (
	"net/http"

	"github.com/dj-oyu/zone-traffic-monitor/internal/recorder"
)

// RecordingStatusProvider reports the count log of the current session.
type RecordingStatusProvider interface {
	GetStatus() recorder.RecordingStatus
}

func (s *Server) handleRecordingStatus(w http.ResponseWriter, r *http.Request) {
	if s.recording == nil {
		writeJSON(w, map[string]any{
			"recording": false,
			"enabled":   false,
		})
		return
	}

	status := s.recording.GetStatus()
	var filename any
	if status.Filename != "" {
		filename = status.Filename
	}
	writeJSON(w, map[string]any{
		"recording":     status.Recording,
		"enabled":       true,
		"filename":      filename,
		"session":       status.Session,
		"entry_count":   status.EntryCount,
		"bytes_written": status.BytesWritten,
		"duration_ms":   status.DurationMs,
	})
}
