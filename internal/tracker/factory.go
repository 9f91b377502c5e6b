package tracker

import (
	"fmt"
	"time"

	"github.com/dj-oyu/zone-traffic-monitor/internal/pipeline"
	"github.com/dj-oyu/zone-traffic-monitor/pkg/types"
)

// Tracker modes.
const (
	ModeReplay = "replay"
	ModeHTTP   = "http"
)

// Settings select and configure the tracker built for each session.
type Settings struct {
	Mode      string
	URL       string
	Timeout   time.Duration
	AssetsDir string
}

// NewFactory returns a per-session tracker constructor.
func NewFactory(s Settings) pipeline.TrackerFactory {
	return func(session types.Session) (pipeline.Tracker, error) {
		switch s.Mode {
		case ModeHTTP:
			if s.URL == "" {
				return nil, fmt.Errorf("http tracker needs a url")
			}
			return NewHTTPTracker(s.URL, session.ID, s.Timeout), nil
		case ModeReplay, "":
			return LoadReplay(ReplayPathFor(s.AssetsDir, session.Stem))
		default:
			return nil, fmt.Errorf("unknown tracker mode %q", s.Mode)
		}
	}
}
