package snapshot

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dj-oyu/zone-traffic-monitor/internal/density"
)

func publishN(s *Store, n int) {
	base := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	for i := 1; i <= n; i++ {
		s.Publish(&Snapshot{
			Time:   base.Add(time.Duration(i) * time.Second),
			Total:  i,
			Counts: map[string]int{"A": i},
		})
	}
}

func TestReadLatestEmpty(t *testing.T) {
	s := NewStore(0)

	snap, ok := s.ReadLatest()
	assert.False(t, ok)
	assert.Nil(t, snap)
	assert.Empty(t, s.ReadHistory())
	assert.False(t, s.IsRunning())

	_, _, ok = s.LatestFrame()
	assert.False(t, ok)
}

func TestHistoryBound(t *testing.T) {
	s := NewStore(DefaultHistoryCapacity)
	publishN(s, 61)

	history := s.ReadHistory()
	require.Len(t, history, 60)
	assert.Equal(t, 2, history[0].Total, "oldest entry should be publish #2")
	assert.Equal(t, 61, history[59].Total)

	for i := 1; i < len(history); i++ {
		assert.True(t, history[i].Time.After(history[i-1].Time))
	}
}

func TestHistoryBelowCapacity(t *testing.T) {
	s := NewStore(5)
	publishN(s, 3)

	history := s.ReadHistory()
	require.Len(t, history, 3)
	assert.Equal(t, 1, history[0].Total)
	assert.Equal(t, 3, history[2].Total)
}

func TestReadHistoryReturnsCopy(t *testing.T) {
	s := NewStore(5)
	publishN(s, 2)

	history := s.ReadHistory()
	history[0].Total = 99

	assert.Equal(t, 1, s.ReadHistory()[0].Total)
}

func TestSeqMonotonicAcrossSessions(t *testing.T) {
	s := NewStore(5)

	s.BeginSession("s1", "a.mp4", []string{"A"})
	first, _ := s.ReadLatest()
	publishN(s, 3)
	mid, _ := s.ReadLatest()
	s.EndSession()
	s.BeginSession("s2", "a.mp4", []string{"A"})
	second, _ := s.ReadLatest()

	assert.Less(t, first.Seq, mid.Seq)
	assert.Less(t, mid.Seq, second.Seq)
}

func TestBeginSessionResets(t *testing.T) {
	s := NewStore(5)
	s.BeginSession("s1", "a.mp4", []string{"North", "South"})
	publishN(s, 4)
	s.EndSession()
	assert.False(t, s.IsRunning())
	assert.Len(t, s.ReadHistory(), 4, "history stays readable after stop")

	s.BeginSession("s2", "a.mp4", []string{"North", "South"})

	stats := s.ReadStats()
	assert.True(t, stats.Running)
	assert.Empty(t, stats.History)
	require.NotNil(t, stats.Latest)
	assert.Equal(t, map[string]int{"North": 0, "South": 0}, stats.Latest.Counts)
	assert.Equal(t, 0, stats.Latest.Total)
	assert.Equal(t, density.Low, stats.Latest.Density)
	assert.Equal(t, "s2", stats.Latest.Session)
	assert.Nil(t, stats.Latest.Frame)
}

// Each publish carries a frame, counts and FPS derived from the same integer.
// Readers must never see fields from different publishes.
func TestSnapshotAtomicity(t *testing.T) {
	s := NewStore(DefaultHistoryCapacity)
	s.BeginSession("s", "a.mp4", []string{"A"})

	const publishes = 2000
	const readers = 8

	var wg sync.WaitGroup
	done := make(chan struct{})

	for r := 0; r < readers; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var lastSeq uint64
			for {
				select {
				case <-done:
					return
				default:
				}
				snap, ok := s.ReadLatest()
				if !ok || snap.Frame == nil {
					continue
				}
				n, err := strconv.Atoi(string(snap.Frame))
				if !assert.NoError(t, err) {
					return
				}
				assert.Equal(t, n, snap.Counts["A"])
				assert.Equal(t, float64(n), snap.FPS)
				assert.Equal(t, n, snap.Total)
				assert.GreaterOrEqual(t, snap.Seq, lastSeq)
				lastSeq = snap.Seq

				stats := s.ReadStats()
				if stats.Latest != nil && len(stats.History) > 0 {
					assert.Equal(t, stats.Latest.Total, stats.History[len(stats.History)-1].Total)
				}
			}
		}()
	}

	for i := 1; i <= publishes; i++ {
		s.Publish(&Snapshot{
			Time:   time.Now(),
			FPS:    float64(i),
			Counts: map[string]int{"A": i},
			Total:  i,
			Frame:  []byte(fmt.Sprint(i)),
		})
	}
	close(done)
	wg.Wait()
}

func TestHistoryEntryJSON(t *testing.T) {
	e := HistoryEntry{
		Time:   time.Date(2026, 3, 4, 7, 8, 9, 0, time.Local),
		Total:  7,
		Counts: map[string]int{"North": 3, "South": 4},
	}

	data, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{"time":"07:08:09","total":7,"North":3,"South":4}`, string(data))
}

func TestHistoryEntryJSONReservedLabels(t *testing.T) {
	e := HistoryEntry{
		Time:   time.Date(2026, 3, 4, 7, 8, 9, 0, time.Local),
		Total:  1,
		Counts: map[string]int{"total": 1},
	}

	data, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{"time":"07:08:09","total":1}`, string(data))
}
