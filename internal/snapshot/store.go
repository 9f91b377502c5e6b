package snapshot

import (
	"bytes"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/dj-oyu/zone-traffic-monitor/internal/density"
)

// DefaultHistoryCapacity is the number of condensed snapshots kept.
const DefaultHistoryCapacity = 60

// Snapshot is one published aggregate. Published snapshots are never mutated;
// callers must not modify Counts or Frame of a snapshot they read.
type Snapshot struct {
	Seq          uint64
	Time         time.Time
	Session      string
	Source       string
	FPS          float64
	ActiveTracks int
	Density      density.Tier
	Counts       map[string]int
	Total        int
	Frame        []byte // encoded JPEG, nil until the first frame
}

// HistoryEntry is the condensed form kept in the history ring.
type HistoryEntry struct {
	Time   time.Time
	Total  int
	Counts map[string]int
}

// MarshalJSON flattens the entry to {"time","total",<label>:n...}.
func (h HistoryEntry) MarshalJSON() ([]byte, error) {
	labels := make([]string, 0, len(h.Counts))
	for label := range h.Counts {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	var buf bytes.Buffer
	buf.WriteString(`{"time":`)
	t, _ := json.Marshal(h.Time.Format("15:04:05"))
	buf.Write(t)
	buf.WriteString(`,"total":`)
	total, _ := json.Marshal(h.Total)
	buf.Write(total)
	for _, label := range labels {
		if label == "time" || label == "total" {
			continue
		}
		key, err := json.Marshal(label)
		if err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		buf.Write(key)
		buf.WriteByte(':')
		n, _ := json.Marshal(h.Counts[label])
		buf.Write(n)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Condense returns the history form of a snapshot.
func (s *Snapshot) Condense() HistoryEntry {
	return HistoryEntry{Time: s.Time, Total: s.Total, Counts: s.Counts}
}

// Stats is a consistent view of the whole store taken under one lock.
type Stats struct {
	Latest  *Snapshot
	History []HistoryEntry
	Running bool
}

// Store is the only state shared between the pipeline producer and readers.
type Store struct {
	mu      sync.RWMutex
	latest  *Snapshot
	history *ring
	running bool
	seq     uint64
}

// NewStore creates a store keeping capacity history entries.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &Store{history: newRing(capacity)}
}

// BeginSession clears history, seeds zeroed counts and sets Running in one
// step, so no reader sees Running with stale state.
func (s *Store) BeginSession(session, source string, labels []string) {
	counts := make(map[string]int, len(labels))
	for _, label := range labels {
		counts[label] = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	s.latest = &Snapshot{
		Seq:     s.seq,
		Time:    time.Now(),
		Session: session,
		Source:  source,
		Density: density.Low,
		Counts:  counts,
	}
	s.history.reset()
	s.running = true
}

// EndSession clears the running flag. Latest and history stay readable.
func (s *Store) EndSession() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// Publish replaces latest and appends to history. The snapshot is assigned
// the next sequence number; the caller must not modify it afterwards.
func (s *Store) Publish(snap *Snapshot) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	snap.Seq = s.seq
	s.latest = snap
	s.history.push(snap.Condense())
	return snap.Seq
}

// ReadLatest returns the latest snapshot, or false before any publish.
func (s *Store) ReadLatest() (*Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.latest != nil
}

// LatestFrame returns the latest encoded frame and its sequence number.
func (s *Store) LatestFrame() ([]byte, uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil || s.latest.Frame == nil {
		return nil, 0, false
	}
	return s.latest.Frame, s.latest.Seq, true
}

// ReadHistory returns history entries oldest first.
func (s *Store) ReadHistory() []HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.items()
}

// IsRunning reports whether a session is active.
func (s *Store) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// ReadStats returns latest, history and running from the same instant.
func (s *Store) ReadStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		Latest:  s.latest,
		History: s.history.items(),
		Running: s.running,
	}
}
