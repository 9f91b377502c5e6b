// Package occupancy keeps per-track, per-zone membership state and counts
// zone entries.
//
// An Engine is owned by a single producer goroutine and is not safe for
// concurrent use. Readers on other goroutines must go through a published
// snapshot instead.
//
// Track identities come from an external tracker and are trusted as-is. If a
// tracker reuses an id for a different vehicle, the engine sees a plain
// exit/entry sequence and counts the new vehicle only if the reused id was
// Outside the zone at that moment. No identity reconciliation is attempted.
package occupancy

import (
	"github.com/dj-oyu/zone-traffic-monitor/internal/zones"
	"github.com/dj-oyu/zone-traffic-monitor/pkg/types"
)

// State is a track's membership in one zone.
type State uint8

const (
	Outside State = iota
	Inside
)

func (s State) String() string {
	if s == Inside {
		return "inside"
	}
	return "outside"
}

type stateKey struct {
	trackID int
	zoneID  int
}

// Engine counts outside→inside transitions of track centroids.
type Engine struct {
	zones  []zones.Zone
	counts map[int]int
	state  map[stateKey]State

	// Optional garbage collection of tracks that vanished.
	evictAfter uint64
	frame      uint64
	lastSeen   map[int]uint64
}

// Option configures an Engine.
type Option func(*Engine)

// WithEviction drops state for tracks not observed for n updates. A dropped
// track that reappears starts Outside again. Zero disables eviction.
func WithEviction(n uint64) Option {
	return func(e *Engine) { e.evictAfter = n }
}

// New creates an engine over a validated zone set.
func New(set *zones.ZoneSet, opts ...Option) *Engine {
	e := &Engine{
		zones:    set.Zones(),
		counts:   make(map[int]int, set.Len()),
		state:    make(map[stateKey]State),
		lastSeen: make(map[int]uint64),
	}
	for _, z := range e.zones {
		e.counts[z.ID] = 0
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Update applies one frame of tracks. An empty slice is valid.
func (e *Engine) Update(tracks []types.Track) {
	e.frame++

	for _, tr := range tracks {
		cx, cy := tr.Box.Center()

		for _, z := range e.zones {
			key := stateKey{trackID: tr.ID, zoneID: z.ID}
			inZone := z.Contains(cx, cy)
			prev := e.state[key]

			switch {
			case inZone && prev == Outside:
				e.counts[z.ID]++
				e.state[key] = Inside
			case !inZone && prev == Inside:
				e.state[key] = Outside
			}
		}

		if e.evictAfter > 0 {
			e.lastSeen[tr.ID] = e.frame
		}
	}

	if e.evictAfter > 0 {
		e.evict()
	}
}

func (e *Engine) evict() {
	for id, seen := range e.lastSeen {
		if e.frame-seen < e.evictAfter {
			continue
		}
		delete(e.lastSeen, id)
		for _, z := range e.zones {
			delete(e.state, stateKey{trackID: id, zoneID: z.ID})
		}
	}
}

// StateOf returns the membership of a track in a zone; Outside if never seen.
func (e *Engine) StateOf(trackID, zoneID int) State {
	return e.state[stateKey{trackID: trackID, zoneID: zoneID}]
}

// CountFor returns the entry count of a zone; 0 for unknown ids.
func (e *Engine) CountFor(zoneID int) int {
	return e.counts[zoneID]
}

// AllCounts returns a fresh label→count map covering every zone.
func (e *Engine) AllCounts() map[string]int {
	out := make(map[string]int, len(e.zones))
	for _, z := range e.zones {
		out[z.Label] = e.counts[z.ID]
	}
	return out
}

// Total sums all zone counts. A vehicle seen in two zones counts in both.
func (e *Engine) Total() int {
	total := 0
	for _, n := range e.counts {
		total += n
	}
	return total
}

// TrackedStates returns the number of (track, zone) entries held.
func (e *Engine) TrackedStates() int {
	return len(e.state)
}
