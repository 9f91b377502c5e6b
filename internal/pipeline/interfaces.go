package pipeline

import (
	"context"

	"github.com/dj-oyu/zone-traffic-monitor/internal/render"
	"github.com/dj-oyu/zone-traffic-monitor/internal/snapshot"
	"github.com/dj-oyu/zone-traffic-monitor/internal/zones"
	"github.com/dj-oyu/zone-traffic-monitor/pkg/types"
)

// FrameSource yields decoded frames. Next returns io.EOF when the input is
// exhausted; any other error is treated as a transient gap.
type FrameSource interface {
	Next(ctx context.Context) (types.Frame, error)
	Rewind() error
	Close() error
}

// Tracker turns a frame into identified boxes. An error is treated as an
// empty track list for that frame.
type Tracker interface {
	Track(ctx context.Context, frame types.Frame) ([]types.Track, error)
}

// Encoder produces the published frame bytes.
type Encoder interface {
	Encode(frame types.Frame, ov render.Overlay) ([]byte, error)
}

// CountSink receives condensed snapshots whenever a count changes.
// Offer must not block.
type CountSink interface {
	Offer(entry snapshot.HistoryEntry) bool
	Close() error
}

// SourceOpener opens the input for a resolved source path.
type SourceOpener func(path string) (FrameSource, error)

// TrackerFactory builds a tracker for one session.
type TrackerFactory func(session types.Session) (Tracker, error)

// EncoderFactory builds a frame encoder for one session's zones.
type EncoderFactory func(set *zones.ZoneSet) Encoder

// SinkFactory builds a count sink for one session.
type SinkFactory func(session types.Session) (CountSink, error)
