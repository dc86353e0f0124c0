package engine

import (
	"sync"
	"time"
)

// Timeline reports normalized session time: 0 at the start, 1 at the deadline.
type Timeline interface {
	Time() float64
}

// DiscreteTimeline measures time in rounds. Time() is CurrentRound/TotalRounds.
type DiscreteTimeline struct {
	TotalRounds int
	round       int
}

// NewDiscreteTimeline returns a timeline with the given number of rounds.
// A non-positive round count is treated as a single round.
func NewDiscreteTimeline(rounds int) *DiscreteTimeline {
	if rounds <= 0 {
		rounds = 1
	}
	return &DiscreteTimeline{TotalRounds: rounds}
}

// Time returns the elapsed fraction of rounds, clamped to [0, 1].
func (t *DiscreteTimeline) Time() float64 {
	return clamp01(float64(t.round) / float64(t.TotalRounds))
}

// Round returns the number of completed rounds.
func (t *DiscreteTimeline) Round() int { return t.round }

// Advance completes the current round.
func (t *DiscreteTimeline) Advance() {
	if t.round < t.TotalRounds {
		t.round++
	}
}

// IsDeadline reports whether every round has been played.
func (t *DiscreteTimeline) IsDeadline() bool { return t.round >= t.TotalRounds }

// ContinuousTimeline measures wall-clock time against a fixed duration.
type ContinuousTimeline struct {
	start    time.Time
	duration time.Duration
	now      func() time.Time
}

// NewContinuousTimeline starts a timeline now. A nil clock uses time.Now.
func NewContinuousTimeline(duration time.Duration, clock func() time.Time) *ContinuousTimeline {
	if clock == nil {
		clock = time.Now
	}
	return &ContinuousTimeline{start: clock(), duration: duration, now: clock}
}

// Time returns elapsed/duration clamped to [0, 1]. A zero duration is already at the deadline.
func (t *ContinuousTimeline) Time() float64 {
	if t.duration <= 0 {
		return 1
	}
	return clamp01(float64(t.now().Sub(t.start)) / float64(t.duration))
}

// ExternalTimeline holds a time value pushed by a remote platform.
// Safe for concurrent use: the transport writes while the party reads.
type ExternalTimeline struct {
	mu sync.RWMutex
	t  float64
}

// Set stores the platform's normalized time, clamped to [0, 1].
func (t *ExternalTimeline) Set(v float64) {
	t.mu.Lock()
	t.t = clamp01(v)
	t.mu.Unlock()
}

// Time returns the last value set.
func (t *ExternalTimeline) Time() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.t
}

func clamp01(v float64) float64 {
	switch {
	case v != v: // NaN
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
