package tracker

import (
	"context"
	"encoding/json"
	"image"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dj-oyu/zone-traffic-monitor/pkg/types"
)

func testFrame(num uint64) types.Frame {
	return types.Frame{
		Image:    image.NewRGBA(image.Rect(0, 0, 16, 16)),
		FrameNum: num,
		Width:    16,
		Height:   16,
	}
}

func TestHTTPTrackerPostsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		assert.Equal(t, "sess-1", r.FormValue("session"))
		assert.Equal(t, "7", r.FormValue("frame"))

		file, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "frame.jpg", hdr.Filename)
		data, _ := io.ReadAll(file)
		assert.Equal(t, []byte{0xFF, 0xD8}, data[:2], "payload should be a JPEG")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tracks":[{"id":3,"x1":1,"y1":2,"x2":11,"y2":12}]}`))
	}))
	defer srv.Close()

	tr := NewHTTPTracker(srv.URL, "sess-1", time.Second)
	tracks, err := tr.Track(context.Background(), testFrame(7))
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	assert.Equal(t, 3, tracks[0].ID)
	assert.Equal(t, types.BoundingBox{X1: 1, Y1: 2, X2: 11, Y2: 12}, tracks[0].Box)
}

func TestHTTPTrackerStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewHTTPTracker(srv.URL, "s", time.Second).Track(context.Background(), testFrame(0))
	assert.Error(t, err)
}

func TestHTTPTrackerHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	assert.NoError(t, NewHTTPTracker(srv.URL, "s", time.Second).CheckHealth(context.Background()))
}

func writeReplay(t *testing.T, dir, stem string, lines []replayLine) string {
	t.Helper()
	path := ReplayPathFor(dir, stem)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	enc := json.NewEncoder(f)
	for _, l := range lines {
		require.NoError(t, enc.Encode(l))
	}
	_, err = f.WriteString("\n")
	require.NoError(t, err)
	return path
}

func TestReplayTracker(t *testing.T) {
	dir := t.TempDir()
	box := types.BoundingBox{X1: 0, Y1: 0, X2: 10, Y2: 10}
	path := writeReplay(t, dir, "clip", []replayLine{
		{Frame: 0, Tracks: []types.Track{{ID: 1, Box: box}}},
		{Frame: 2, Tracks: []types.Track{{ID: 1, Box: box}, {ID: 2, Box: box}}},
	})
	assert.Equal(t, filepath.Join(dir, "tracks_clip.jsonl"), path)

	r, err := LoadReplay(path)
	require.NoError(t, err)
	ctx := context.Background()

	got, _ := r.Track(ctx, testFrame(0))
	assert.Len(t, got, 1)
	got, _ = r.Track(ctx, testFrame(1))
	assert.Empty(t, got)
	got, _ = r.Track(ctx, testFrame(2))
	assert.Len(t, got, 2)
	got, _ = r.Track(ctx, testFrame(3))
	assert.Len(t, got, 1, "frame numbers wrap at the recording length")
}

func TestReplayTrackerBadLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracks_bad.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{\"frame\":0}\nnot json\n"), 0o644))

	_, err := LoadReplay(path)
	assert.ErrorContains(t, err, ":2:")
}

func TestFactory(t *testing.T) {
	dir := t.TempDir()
	writeReplay(t, dir, "clip", []replayLine{{Frame: 0}})
	session := types.Session{ID: "s", Source: "clip.mp4", Stem: "clip"}

	tr, err := NewFactory(Settings{Mode: ModeReplay, AssetsDir: dir})(session)
	require.NoError(t, err)
	assert.IsType(t, &ReplayTracker{}, tr)

	tr, err = NewFactory(Settings{Mode: ModeHTTP, URL: "http://localhost:9"})(session)
	require.NoError(t, err)
	assert.IsType(t, &HTTPTracker{}, tr)

	_, err = NewFactory(Settings{Mode: ModeHTTP})(session)
	assert.Error(t, err)

	_, err = NewFactory(Settings{Mode: "sort"})(session)
	assert.Error(t, err)

	_, err = NewFactory(Settings{Mode: ModeReplay, AssetsDir: t.TempDir()})(session)
	assert.Error(t, err, "missing recording")
}
