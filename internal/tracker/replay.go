package tracker

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dj-oyu/zone-traffic-monitor/internal/logger"
	"github.com/dj-oyu/zone-traffic-monitor/pkg/types"
)

// ReplayPathFor returns <assetsDir>/tracks_<stem>.jsonl.
func ReplayPathFor(assetsDir, stem string) string {
	return filepath.Join(assetsDir, "tracks_"+stem+".jsonl")
}

type replayLine struct {
	Frame  uint64        `json:"frame"`
	Tracks []types.Track `json:"tracks"`
}

// ReplayTracker returns tracks recorded earlier, one JSON line per frame.
// Frame numbers wrap at the recording length so a looping feed replays the
// same identities on every pass.
type ReplayTracker struct {
	byFrame map[uint64][]types.Track
	period  uint64
}

// LoadReplay reads a recording. Blank lines are skipped.
func LoadReplay(path string) (*ReplayTracker, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open track recording: %w", err)
	}
	defer f.Close()

	r := &ReplayTracker{byFrame: make(map[uint64][]types.Track)}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		raw := sc.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		var line replayLine
		if err := json.Unmarshal(raw, &line); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		r.byFrame[line.Frame] = line.Tracks
		if line.Frame+1 > r.period {
			r.period = line.Frame + 1
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read track recording: %w", err)
	}

	logger.Info("Tracker", "Replay %s: %d frames recorded", path, len(r.byFrame))
	return r, nil
}

// Track returns the recorded tracks for the frame, or none.
func (r *ReplayTracker) Track(_ context.Context, frame types.Frame) ([]types.Track, error) {
	if r.period == 0 {
		return nil, nil
	}
	return r.byFrame[frame.FrameNum%r.period], nil
}
