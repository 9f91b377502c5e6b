package recorder

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dj-oyu/zone-traffic-monitor/internal/snapshot"
	"github.com/dj-oyu/zone-traffic-monitor/pkg/types"
)

func testSession() types.Session {
	return types.Session{
		ID:      "3f1c",
		Source:  "junction.mp4",
		Stem:    "junction",
		Started: time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC),
	}
}

func readLines(t *testing.T, path string) []Line {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []Line
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var l Line
		require.NoError(t, json.Unmarshal(sc.Bytes(), &l))
		out = append(out, l)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestRecorderWritesSessionLog(t *testing.T) {
	dir := t.TempDir()
	r := NewRecorder(dir)

	sink, err := r.SinkFactory()(testSession())
	require.NoError(t, err)
	assert.True(t, r.IsRecording())

	now := time.Now()
	assert.True(t, sink.Offer(snapshot.HistoryEntry{Time: now, Total: 1, Counts: map[string]int{"North": 1}}))
	assert.True(t, sink.Offer(snapshot.HistoryEntry{Time: now, Total: 2, Counts: map[string]int{"North": 2}}))
	require.NoError(t, sink.Close())
	assert.False(t, r.IsRecording())

	status := r.GetStatus()
	assert.Equal(t, "counts_junction_20260506_070809.jsonl", status.Filename)
	assert.Equal(t, uint64(2), status.EntryCount)
	assert.Positive(t, status.BytesWritten)

	lines := readLines(t, filepath.Join(dir, status.Filename))
	require.Len(t, lines, 2)
	assert.Equal(t, "3f1c", lines[0].Session)
	assert.Equal(t, "junction.mp4", lines[0].Source)
	assert.Equal(t, 2, lines[1].Total)
	assert.Equal(t, map[string]int{"North": 2}, lines[1].Counts)
}

func TestRecorderRejectsDoubleStart(t *testing.T) {
	r := NewRecorder(t.TempDir())
	require.NoError(t, r.Start(testSession()))
	defer r.Close()

	assert.Error(t, r.Start(testSession()))
}

func TestRecorderOfferWhenStopped(t *testing.T) {
	r := NewRecorder(t.TempDir())
	assert.False(t, r.Offer(snapshot.HistoryEntry{}))
	assert.Error(t, r.Stop())
	assert.NoError(t, r.Close())
}

func TestRecorderOfferNeverBlocks(t *testing.T) {
	r := NewRecorder(t.TempDir())
	require.NoError(t, r.Start(testSession()))
	defer r.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10000; i++ {
			r.Offer(snapshot.HistoryEntry{Time: time.Now(), Total: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Offer blocked")
	}
}
