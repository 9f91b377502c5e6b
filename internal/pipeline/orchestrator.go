// Package pipeline runs the single producer loop: read a frame, track it,
// update zone occupancy, classify density, encode, publish.
//
// At most one session runs at a time. A new session is accepted only after
// the previous one has released its input and cleared the running flag.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dj-oyu/zone-traffic-monitor/internal/density"
	"github.com/dj-oyu/zone-traffic-monitor/internal/logger"
	"github.com/dj-oyu/zone-traffic-monitor/internal/metrics"
	"github.com/dj-oyu/zone-traffic-monitor/internal/occupancy"
	"github.com/dj-oyu/zone-traffic-monitor/internal/render"
	"github.com/dj-oyu/zone-traffic-monitor/internal/snapshot"
	"github.com/dj-oyu/zone-traffic-monitor/internal/zones"
	"github.com/dj-oyu/zone-traffic-monitor/pkg/types"
)

// State is the orchestrator lifecycle state.
type State int

const (
	Stopped State = iota
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return "stopped"
	}
}

// DefaultMaxConsecutiveGaps is how many unreadable frames in a row are
// tolerated before the loop backs off.
const DefaultMaxConsecutiveGaps = 10

// Config holds per-session processing settings.
type Config struct {
	Loop               bool          // rewind at end of input
	FPSWindow          int           // frames in the FPS moving average
	GapBackoff         time.Duration // pause after MaxConsecutiveGaps unreadable frames
	MaxConsecutiveGaps int
	Density            density.Classifier
	EvictAfter         uint64 // drop state of tracks unseen for this many frames; 0 keeps all
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Loop:               true,
		FPSWindow:          DefaultFPSWindow,
		GapBackoff:         100 * time.Millisecond,
		MaxConsecutiveGaps: DefaultMaxConsecutiveGaps,
		Density:            density.Classifier{LowMax: 5, HighMax: 15},
	}
}

// Deps are the collaborators the orchestrator drives.
type Deps struct {
	Catalog    *Catalog
	Store      *snapshot.Store
	Open       SourceOpener
	NewTracker TrackerFactory
	NewEncoder EncoderFactory // optional; nil publishes stats without frames
	Sinks      []SinkFactory
	Metrics    *metrics.Metrics
}

// Orchestrator owns the session lifecycle.
type Orchestrator struct {
	cfg  Config
	deps Deps

	mu      sync.Mutex
	cancel  context.CancelFunc // nil once stop was requested
	done    chan struct{}      // closed when the current run has fully stopped
	session types.Session
}

// New creates a stopped orchestrator.
func New(cfg Config, deps Deps) *Orchestrator {
	if cfg.FPSWindow <= 0 {
		cfg.FPSWindow = DefaultFPSWindow
	}
	if cfg.MaxConsecutiveGaps <= 0 {
		cfg.MaxConsecutiveGaps = DefaultMaxConsecutiveGaps
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	return &Orchestrator{cfg: cfg, deps: deps}
}

// ListSources reports every catalog entry and whether it has zones.
func (o *Orchestrator) ListSources() []SourceInfo {
	return o.deps.Catalog.List()
}

// State returns the lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stateLocked()
}

func (o *Orchestrator) stateLocked() State {
	if o.done == nil {
		return Stopped
	}
	select {
	case <-o.done:
		return Stopped
	default:
	}
	if o.cancel == nil {
		return Stopping
	}
	return Running
}

// Session returns the current or most recent session.
func (o *Orchestrator) Session() types.Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session
}

// Start begins counting filename. It returns false with a nil error when a
// session is already running. If a previous session is still stopping, Start
// waits for it to finish or for ctx to end.
//
// Zones and the input are opened without holding the lock, so State stays
// responsive while a slow source opens.
func (o *Orchestrator) Start(ctx context.Context, filename string) (bool, error) {
	path, err := o.deps.Catalog.Resolve(filename)
	if err != nil {
		return false, err
	}
	assets := o.deps.Catalog.AssetsDir()
	if !zones.Exists(assets, filename) {
		return false, fmt.Errorf("%w: %s", ErrConfigurationMissing, zones.PathFor(assets, filename))
	}

	if running, err := o.awaitStopped(ctx); running || err != nil {
		return false, err
	}

	set, err := zones.LoadForSource(assets, filename)
	if err != nil {
		switch {
		case errors.Is(err, zones.ErrNotFound):
			return false, fmt.Errorf("%w: %v", ErrConfigurationMissing, err)
		case errors.Is(err, zones.ErrInvalidFormat):
			return false, fmt.Errorf("%w: %v", ErrInvalidZoneDefinition, err)
		}
		return false, err
	}

	base := filepath.Base(filename)
	session := types.Session{
		ID:      uuid.NewString(),
		Source:  filename,
		Stem:    strings.TrimSuffix(base, filepath.Ext(base)),
		Started: time.Now(),
	}

	r, err := o.prepare(session, path, set)
	if err != nil {
		return false, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.stateLocked() != Stopped {
		// Another Start won while this one was opening its input.
		logger.Debug("Pipeline", "Session %s discarded, another session is active", session.ID)
		r.release()
		return false, nil
	}

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	o.cancel = cancel
	o.done = done
	o.session = session

	o.deps.Store.BeginSession(session.ID, session.Source, set.Labels())
	o.deps.Metrics.SessionRunning.Store(1)
	o.deps.Metrics.ResetZoneCounts(set.Labels())

	logger.Info("Pipeline", "Session %s started: %s (%d zones, loop=%v)",
		session.ID, path, set.Len(), o.cfg.Loop)

	go o.run(runCtx, r, done)
	return true, nil
}

// awaitStopped reports whether a session is running. A stopping session is
// waited for without holding the lock.
func (o *Orchestrator) awaitStopped(ctx context.Context) (bool, error) {
	o.mu.Lock()
	state, done := o.stateLocked(), o.done
	o.mu.Unlock()

	switch state {
	case Running:
		return true, nil
	case Stopping:
		logger.Debug("Pipeline", "Waiting for previous session to stop")
		select {
		case <-done:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	return false, nil
}

// Stop requests the running session to end and waits until its input has
// been released. It returns false when nothing was running.
func (o *Orchestrator) Stop(ctx context.Context) (bool, error) {
	o.mu.Lock()
	state := o.stateLocked()
	if state == Stopped {
		o.mu.Unlock()
		return false, nil
	}
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	done := o.done
	o.mu.Unlock()

	select {
	case <-done:
		return state == Running, nil
	case <-ctx.Done():
		return state == Running, ctx.Err()
	}
}

// Done returns a channel closed when the current session ends, or nil when
// no session was ever started.
func (o *Orchestrator) Done() <-chan struct{} {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.done
}

// runner holds everything private to one session's producer goroutine.
type runner struct {
	session types.Session
	src     FrameSource
	tracker Tracker
	engine  *occupancy.Engine
	encoder Encoder
	sinks   []CountSink
	meter   *fpsMeter

	gaps      int
	lastTotal int
	lastFrame []byte
}

func (o *Orchestrator) prepare(session types.Session, path string, set *zones.ZoneSet) (*runner, error) {
	tr, err := o.deps.NewTracker(session)
	if err != nil {
		return nil, fmt.Errorf("create tracker: %w", err)
	}

	src, err := o.deps.Open(path)
	if err != nil {
		logger.Error("Pipeline", "Cannot open %s: %v", path, err)
		return nil, fmt.Errorf("%w: %v", ErrInputUnavailable, err)
	}

	var opts []occupancy.Option
	if o.cfg.EvictAfter > 0 {
		opts = append(opts, occupancy.WithEviction(o.cfg.EvictAfter))
	}

	r := &runner{
		session: session,
		src:     src,
		tracker: tr,
		engine:  occupancy.New(set, opts...),
		meter:   newFPSMeter(o.cfg.FPSWindow),
	}
	if o.deps.NewEncoder != nil {
		r.encoder = o.deps.NewEncoder(set)
	}

	for _, newSink := range o.deps.Sinks {
		sink, err := newSink(session)
		if err != nil {
			// A failed sink never blocks counting.
			logger.Warn("Pipeline", "Count sink disabled for session %s: %v", session.ID, err)
			continue
		}
		if sink != nil {
			r.sinks = append(r.sinks, sink)
		}
	}
	return r, nil
}

// release closes the session's input and count sinks.
func (r *runner) release() {
	if err := r.src.Close(); err != nil {
		logger.Warn("Pipeline", "Close input: %v", err)
	}
	for _, sink := range r.sinks {
		if err := sink.Close(); err != nil {
			logger.Warn("Pipeline", "Close count sink: %v", err)
		}
	}
}

func (o *Orchestrator) run(ctx context.Context, r *runner, done chan struct{}) {
	m := o.deps.Metrics
	defer func() {
		r.release()
		o.deps.Store.EndSession()
		m.SessionRunning.Store(0)
		logger.Info("Pipeline", "Session %s stopped", r.session.ID)
		close(done)
	}()

	for {
		if ctx.Err() != nil {
			return
		}

		frame, err := r.src.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, io.EOF) {
				if !o.cfg.Loop {
					logger.Info("Pipeline", "End of input, looping disabled")
					return
				}
				if err := r.src.Rewind(); err != nil {
					logger.Error("Pipeline", "Rewind failed: %v", err)
					return
				}
				m.Rewinds.Add(1)
				logger.Debug("Pipeline", "End of input, rewound")
				continue
			}
			o.frameGap(ctx, r, err)
			continue
		}
		r.gaps = 0

		start := time.Now()
		o.process(ctx, r, frame)
		elapsed := time.Since(start)
		r.meter.observe(elapsed)
		m.UpdateProcessLatency(elapsed)
		m.SetFPS(r.meter.fps())
	}
}

func (o *Orchestrator) frameGap(ctx context.Context, r *runner, err error) {
	r.gaps++
	o.deps.Metrics.FrameGaps.Add(1)
	logger.Debug("Pipeline", "Frame gap: %v", err)

	if r.gaps < o.cfg.MaxConsecutiveGaps {
		return
	}
	logger.Warn("Pipeline", "%d consecutive unreadable frames, backing off %v", r.gaps, o.cfg.GapBackoff)
	r.gaps = 0
	if o.cfg.GapBackoff <= 0 {
		return
	}
	t := time.NewTimer(o.cfg.GapBackoff)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func (o *Orchestrator) process(ctx context.Context, r *runner, frame types.Frame) {
	m := o.deps.Metrics

	tracks, err := r.tracker.Track(ctx, frame)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		m.TrackerErrors.Add(1)
		logger.Debug("Pipeline", "Tracker error on frame %d: %v", frame.FrameNum, err)
		tracks = nil
	}

	r.engine.Update(tracks)

	active := len(tracks)
	tier := o.cfg.Density.Classify(active)
	counts := r.engine.AllCounts()
	total := r.engine.Total()
	fps := round1(r.meter.fps())

	jpeg := r.lastFrame
	if r.encoder != nil {
		encoded, err := r.encoder.Encode(frame, render.Overlay{
			Tracks:       tracks,
			Counts:       counts,
			Total:        total,
			ActiveTracks: active,
			FPS:          fps,
			Density:      tier,
		})
		if err != nil {
			m.EncodeErrors.Add(1)
			logger.Debug("Pipeline", "Encode frame %d: %v", frame.FrameNum, err)
		} else {
			jpeg = encoded
			r.lastFrame = encoded
		}
	}

	snap := &snapshot.Snapshot{
		Time:         time.Now(),
		Session:      r.session.ID,
		Source:       r.session.Source,
		FPS:          fps,
		ActiveTracks: active,
		Density:      tier,
		Counts:       counts,
		Total:        total,
		Frame:        jpeg,
	}
	seq := o.deps.Store.Publish(snap)

	m.FramesProcessed.Add(1)
	m.SnapshotsPublished.Add(1)
	m.ActiveTracks.Store(uint64(active))
	m.SetZoneCounts(counts)

	if total == r.lastTotal {
		return
	}
	r.lastTotal = total
	logger.Debug("Pipeline", "seq=%d total=%d counts=%v", seq, total, counts)

	entry := snap.Condense()
	for _, sink := range r.sinks {
		if !sink.Offer(entry) {
			m.SinkDrops.Add(1)
		}
	}
}
