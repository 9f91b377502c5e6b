package pipeline

import (
	"math"
	"time"
)

// DefaultFPSWindow is the number of frame durations averaged.
const DefaultFPSWindow = 30

// fpsMeter is a moving average over the last n frame durations.
type fpsMeter struct {
	durations []time.Duration
	next      int
	filled    int
	sum       time.Duration
}

func newFPSMeter(window int) *fpsMeter {
	if window <= 0 {
		window = DefaultFPSWindow
	}
	return &fpsMeter{durations: make([]time.Duration, window)}
}

func (m *fpsMeter) observe(d time.Duration) {
	if m.filled == len(m.durations) {
		m.sum -= m.durations[m.next]
	} else {
		m.filled++
	}
	m.durations[m.next] = d
	m.sum += d
	m.next = (m.next + 1) % len(m.durations)
}

// fps returns frames per second, 0 before the first observation.
func (m *fpsMeter) fps() float64 {
	if m.filled == 0 || m.sum <= 0 {
		return 0
	}
	mean := m.sum.Seconds() / float64(m.filled)
	return 1 / mean
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
