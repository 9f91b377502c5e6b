package occupancy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dj-oyu/zone-traffic-monitor/internal/zones"
	"github.com/dj-oyu/zone-traffic-monitor/pkg/types"
)

const (
	zoneA = 1
	zoneB = 2
)

// Zone A spans x 0..100, zone B spans x 80..200; they overlap on 80..100.
func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	set, err := zones.NewZoneSet("test", []zones.Zone{
		{ID: zoneA, Label: "A", Polygon: []zones.Point{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 100}, {X: 0, Y: 100}}},
		{ID: zoneB, Label: "B", Polygon: []zones.Point{{X: 80, Y: 0}, {X: 200, Y: 0}, {X: 200, Y: 100}, {X: 80, Y: 100}}},
	})
	require.NoError(t, err)
	return New(set, opts...)
}

// trackAt builds a 10x10 box centred on (cx, cy).
func trackAt(id int, cx, cy float64) types.Track {
	return types.Track{ID: id, Box: types.BoundingBox{X1: cx - 5, Y1: cy - 5, X2: cx + 5, Y2: cy + 5}}
}

func TestEntryCountsOnce(t *testing.T) {
	e := newTestEngine(t)

	e.Update([]types.Track{trackAt(7, 50, 150)})
	assert.Equal(t, 0, e.CountFor(zoneA))
	assert.Equal(t, Outside, e.StateOf(7, zoneA))

	e.Update([]types.Track{trackAt(7, 50, 50)})
	assert.Equal(t, 1, e.CountFor(zoneA))
	assert.Equal(t, Inside, e.StateOf(7, zoneA))

	for i := 0; i < 5; i++ {
		e.Update([]types.Track{trackAt(7, 40+float64(i), 50)})
	}
	assert.Equal(t, 1, e.CountFor(zoneA))
}

func TestFirstObservationInsideCounts(t *testing.T) {
	e := newTestEngine(t)

	e.Update([]types.Track{trackAt(1, 50, 50)})
	assert.Equal(t, 1, e.CountFor(zoneA))
}

func TestUpdateIsIdempotentForSameTracks(t *testing.T) {
	e := newTestEngine(t)
	tracks := []types.Track{trackAt(1, 50, 50), trackAt(2, 150, 50), trackAt(3, 90, 50)}

	e.Update(tracks)
	before := e.AllCounts()
	e.Update(tracks)

	assert.Equal(t, before, e.AllCounts())
}

func TestReEntryCountsAgain(t *testing.T) {
	e := newTestEngine(t)

	e.Update([]types.Track{trackAt(4, 50, 50)})
	e.Update([]types.Track{trackAt(4, 50, 300)})
	assert.Equal(t, Outside, e.StateOf(4, zoneA))
	e.Update([]types.Track{trackAt(4, 50, 50)})

	assert.Equal(t, 2, e.CountFor(zoneA))
}

func TestOverlappingZonesBothCount(t *testing.T) {
	e := newTestEngine(t)

	e.Update([]types.Track{trackAt(9, 90, 50)})

	assert.Equal(t, 1, e.CountFor(zoneA))
	assert.Equal(t, 1, e.CountFor(zoneB))
	assert.Equal(t, 2, e.Total())
}

func TestBoundaryIsInside(t *testing.T) {
	e := newTestEngine(t)

	// centroid exactly on zone A's left edge
	e.Update([]types.Track{{ID: 1, Box: types.BoundingBox{X1: -5, Y1: 45, X2: 5, Y2: 55}}})
	assert.Equal(t, 1, e.CountFor(zoneA))
}

func TestEmptyUpdateKeepsState(t *testing.T) {
	e := newTestEngine(t)

	e.Update([]types.Track{trackAt(1, 50, 50)})
	e.Update(nil)
	e.Update([]types.Track{})
	e.Update([]types.Track{trackAt(1, 50, 50)})

	assert.Equal(t, 1, e.CountFor(zoneA))
	assert.Equal(t, Inside, e.StateOf(1, zoneA))
}

func TestAllCountsIncludesZeroZones(t *testing.T) {
	e := newTestEngine(t)

	assert.Equal(t, map[string]int{"A": 0, "B": 0}, e.AllCounts())
	assert.Equal(t, 0, e.CountFor(999))
}

func TestAllCountsReturnsCopy(t *testing.T) {
	e := newTestEngine(t)
	counts := e.AllCounts()
	counts["A"] = 100

	assert.Equal(t, 0, e.CountFor(zoneA))
}

func TestCountsMonotonicAndTotalConsistent(t *testing.T) {
	e := newTestEngine(t)
	prev := e.AllCounts()

	// a few vehicles wandering across both zones
	for step := 0; step < 60; step++ {
		var tracks []types.Track
		for id := 1; id <= 4; id++ {
			x := float64((step*7 + id*37) % 250)
			y := float64((step*3 + id*11) % 140)
			tracks = append(tracks, trackAt(id, x, y))
		}
		e.Update(tracks)

		cur := e.AllCounts()
		sum := 0
		for label, n := range cur {
			assert.GreaterOrEqual(t, n, prev[label], "zone %s decreased", label)
			sum += n
		}
		assert.Equal(t, sum, e.Total())
		prev = cur
	}
}

func TestEvictionForgetsVanishedTracks(t *testing.T) {
	e := newTestEngine(t, WithEviction(3))

	e.Update([]types.Track{trackAt(1, 50, 50)})
	assert.Equal(t, 1, e.CountFor(zoneA))

	for i := 0; i < 3; i++ {
		e.Update(nil)
	}
	assert.Equal(t, 0, e.TrackedStates())
	assert.Equal(t, Outside, e.StateOf(1, zoneA))

	// the id reappears inside: treated as a fresh entry
	e.Update([]types.Track{trackAt(1, 50, 50)})
	assert.Equal(t, 2, e.CountFor(zoneA))
}

func TestNoEvictionByDefault(t *testing.T) {
	e := newTestEngine(t)

	e.Update([]types.Track{trackAt(1, 50, 50)})
	for i := 0; i < 100; i++ {
		e.Update(nil)
	}
	e.Update([]types.Track{trackAt(1, 50, 50)})

	assert.Equal(t, 1, e.CountFor(zoneA))
}
