// internal/strategy/sampler.go
package strategy

import (
	"errors"
	"fmt"

	engine "github.com/jason-s-yu/negotiator/engine"
)

var (
	// ErrAttemptsExhausted is returned when a capped sample run finds no acceptable bid
	// and has no fallback.
	ErrAttemptsExhausted = errors.New("sampling attempts exhausted")
	// ErrEvaluation wraps a utility-space failure while scoring a sample.
	ErrEvaluation = errors.New("utility evaluation failed")
)

// Candidate is a sampled bid with its own utility.
type Candidate struct {
	Bid     engine.Bid
	Utility float64
}

// SampleSpec parameterizes one sampling run.
type SampleSpec struct {
	// Accept decides whether a candidate ends the run.
	Accept func(Candidate) bool
	// MaxAttempts caps the number of draws. 0 means no cap.
	MaxAttempts int
	// FallbackOnExhaustion returns the last draw instead of ErrAttemptsExhausted.
	FallbackOnExhaustion bool
}

// AtLeast accepts candidates whose utility reaches target.
func AtLeast(target float64) func(Candidate) bool {
	return func(c Candidate) bool { return c.Utility >= target }
}

// Sampler draws bids from the platform's uniform generator and scores them
// with the party's own utility space.
type Sampler struct {
	Generator engine.BidGenerator
	Space     engine.UtilitySpace
}

// Sample draws until spec.Accept holds or the attempt cap is reached.
// With MaxAttempts == 0 the loop only ends on an accepted candidate or an
// evaluation error.
func (s *Sampler) Sample(spec SampleSpec) (Candidate, error) {
	var last Candidate
	for attempt := 1; spec.MaxAttempts == 0 || attempt <= spec.MaxAttempts; attempt++ {
		c, err := s.Draw()
		if err != nil {
			return Candidate{}, err
		}
		if spec.Accept == nil || spec.Accept(c) {
			return c, nil
		}
		last = c
	}
	if spec.FallbackOnExhaustion {
		return last, nil
	}
	return Candidate{}, fmt.Errorf("%w after %d draws", ErrAttemptsExhausted, spec.MaxAttempts)
}

// Draw returns one uniformly random bid and its utility.
func (s *Sampler) Draw() (Candidate, error) {
	bid := s.Generator.RandomBid()
	u, err := s.Space.Utility(bid)
	if err != nil {
		return Candidate{}, fmt.Errorf("%w for %s: %w", ErrEvaluation, bid, err)
	}
	return Candidate{Bid: bid, Utility: u}, nil
}

// SampleAboveTarget is the bounded best-effort variant: it tries attempts times
// to reach target and otherwise returns the last bid drawn.
func (s *Sampler) SampleAboveTarget(target float64, attempts int) (Candidate, error) {
	return s.Sample(SampleSpec{
		Accept:               AtLeast(target),
		MaxAttempts:          attempts,
		FallbackOnExhaustion: true,
	})
}
