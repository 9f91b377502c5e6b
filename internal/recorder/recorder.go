package recorder

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dj-oyu/zone-traffic-monitor/internal/logger"
	"github.com/dj-oyu/zone-traffic-monitor/internal/pipeline"
	"github.com/dj-oyu/zone-traffic-monitor/internal/snapshot"
	"github.com/dj-oyu/zone-traffic-monitor/pkg/types"
)

// Line is one record of the count log.
type Line struct {
	Session string         `json:"session"`
	Source  string         `json:"source"`
	Time    time.Time      `json:"time"`
	Total   int            `json:"total"`
	Counts  map[string]int `json:"counts"`
}

// Recorder writes count changes of one session at a time to a JSON-lines file
type Recorder struct {
	mu           sync.RWMutex
	file         *os.File
	enc          *json.Encoder
	filename     string
	basePath     string
	recording    bool
	session      types.Session
	entryCount   uint64
	bytesWritten uint64
	startTime    time.Time
	entryChan    chan snapshot.HistoryEntry
	stopChan     chan struct{}
	wg           sync.WaitGroup
}

// NewRecorder creates a new recorder
func NewRecorder(basePath string) *Recorder {
	return &Recorder{
		basePath: basePath,
	}
}

// Start starts recording a session to a new file
func (r *Recorder) Start(session types.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.recording {
		return fmt.Errorf("already recording")
	}

	if err := os.MkdirAll(r.basePath, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Generate filename with timestamp
	timestamp := session.Started.Format("20060102_150405")
	filename := fmt.Sprintf("counts_%s_%s.jsonl", session.Stem, timestamp)
	path := filepath.Join(r.basePath, filename)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	r.file = file
	r.enc = json.NewEncoder(&countingWriter{r: r})
	r.filename = filename
	r.session = session
	r.recording = true
	r.entryCount = 0
	r.bytesWritten = 0
	r.startTime = time.Now()
	r.entryChan = make(chan snapshot.HistoryEntry, 60)
	r.stopChan = make(chan struct{})

	r.wg.Add(1)
	go r.writeEntries(r.entryChan, r.stopChan)

	logger.Info("Recorder", "Recording counts to %s", path)
	return nil
}

// Stop stops recording
func (r *Recorder) Stop() error {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return fmt.Errorf("not recording")
	}
	r.recording = false
	close(r.stopChan)
	r.mu.Unlock()

	// Wait for write goroutine to drain
	r.wg.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file != nil {
		if err := r.file.Sync(); err != nil {
			return fmt.Errorf("failed to sync file: %w", err)
		}
		if err := r.file.Close(); err != nil {
			return fmt.Errorf("failed to close file: %w", err)
		}
		r.file = nil
	}

	logger.Info("Recorder", "Stopped %s (%d entries)", r.filename, r.entryCount)
	return nil
}

// Offer queues an entry for writing (non-blocking)
func (r *Recorder) Offer(entry snapshot.HistoryEntry) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.recording {
		return false
	}

	select {
	case r.entryChan <- entry:
		return true
	default:
		// Channel full, drop entry
		return false
	}
}

// writeEntries writes entries until stop, then drains what is queued
func (r *Recorder) writeEntries(entries <-chan snapshot.HistoryEntry, stop <-chan struct{}) {
	defer r.wg.Done()

	for {
		select {
		case entry := <-entries:
			r.writeEntry(entry)
		case <-stop:
			for {
				select {
				case entry := <-entries:
					r.writeEntry(entry)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) writeEntry(entry snapshot.HistoryEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return
	}

	line := Line{
		Session: r.session.ID,
		Source:  r.session.Source,
		Time:    entry.Time,
		Total:   entry.Total,
		Counts:  entry.Counts,
	}
	if err := r.enc.Encode(line); err != nil {
		logger.Warn("Recorder", "Write failed: %v", err)
		return
	}
	r.entryCount++
}

// countingWriter tracks bytes written; called with r.mu held.
type countingWriter struct {
	r *Recorder
}

func (w *countingWriter) Write(p []byte) (int, error) {
	n, err := w.r.file.Write(p)
	w.r.bytesWritten += uint64(n)
	return n, err
}

// IsRecording returns true if currently recording
func (r *Recorder) IsRecording() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.recording
}

// GetStatus returns the current recording status
func (r *Recorder) GetStatus() RecordingStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var duration time.Duration
	if r.recording {
		duration = time.Since(r.startTime)
	}

	return RecordingStatus{
		Recording:    r.recording,
		Filename:     r.filename,
		Session:      r.session.ID,
		EntryCount:   r.entryCount,
		BytesWritten: r.bytesWritten,
		DurationMs:   duration.Milliseconds(),
		StartTime:    r.startTime,
	}
}

// Close stops any active recording
func (r *Recorder) Close() error {
	if r.IsRecording() {
		return r.Stop()
	}
	return nil
}

// SinkFactory starts a recording for every pipeline session; closing the
// returned sink stops it.
func (r *Recorder) SinkFactory() pipeline.SinkFactory {
	return func(session types.Session) (pipeline.CountSink, error) {
		if err := r.Start(session); err != nil {
			return nil, err
		}
		return r, nil
	}
}

// RecordingStatus holds the current recording status
type RecordingStatus struct {
	Recording    bool      `json:"recording"`
	Filename     string    `json:"filename"`
	Session      string    `json:"session"`
	EntryCount   uint64    `json:"entry_count"`
	BytesWritten uint64    `json:"bytes_written"`
	DurationMs   int64     `json:"duration_ms"`
	StartTime    time.Time `json:"start_time"`
}
