// internal/strategy/offer.go
package strategy

import (
	"errors"
	"fmt"
	"math"

	"github.com/jason-s-yu/negotiator/engine/agent"
)

// ErrNoCandidate is returned when a search was asked for zero samples.
var ErrNoCandidate = errors.New("no candidate sampled")

// Selection is the outcome of a Pareto-leaning search.
type Selection struct {
	Candidate
	OpponentUtility float64 // estimated opponent utility of the chosen bid
	// Qualified is false when no sample's own utility exceeded its estimated
	// opponent utility; the candidate is then the best own-utility sample.
	Qualified bool
	// Qualifying counts the samples that passed the own > opponent test.
	Qualifying int
}

// ParetoSearch samples n candidates at or above target and keeps one whose own
// utility exceeds the opponent model's estimate. Each candidate is drawn with
// the proposal sampler (unbounded unless proposalAttempts > 0).
//
// mode picks between the highest own-utility qualifier (SelectBest) and the
// most recently seen one (SelectLast). When nothing qualifies the result falls
// back to the sample with the highest own utility and Qualified is false.
func ParetoSearch(s *Sampler, model agent.OpponentModel, target float64, n, proposalAttempts int, mode SelectionMode) (Selection, error) {
	if n <= 0 {
		return Selection{}, ErrNoCandidate
	}
	spec := SampleSpec{Accept: AtLeast(target), MaxAttempts: proposalAttempts}

	var winner, fallback Selection
	haveWinner, haveFallback := false, false
	qualifying := 0
	for i := 0; i < n; i++ {
		c, err := s.Sample(spec)
		if errors.Is(err, ErrAttemptsExhausted) {
			continue
		}
		if err != nil {
			return Selection{}, err
		}
		opp, err := model.EstimatedUtility(c.Bid)
		if err != nil {
			return Selection{}, fmt.Errorf("estimate opponent utility: %w", err)
		}
		sel := Selection{Candidate: c, OpponentUtility: opp}

		if !haveFallback || c.Utility > fallback.Utility {
			fallback, haveFallback = sel, true
		}
		if c.Utility <= opp {
			continue
		}
		qualifying++
		if !haveWinner || mode == SelectLast || c.Utility > winner.Utility {
			winner, haveWinner = sel, true
		}
	}

	if haveWinner {
		winner.Qualified = true
		winner.Qualifying = qualifying
		return winner, nil
	}
	if haveFallback {
		return fallback, nil
	}
	return Selection{}, fmt.Errorf("%w: every proposal draw hit the attempt cap", ErrAttemptsExhausted)
}

// NashEstimate samples n unconstrained bids and returns the own utility of the
// one maximizing own × estimated opponent utility. Comparison is strict, so the
// first maximum wins ties; fallback is returned when no product is positive.
func NashEstimate(s *Sampler, model agent.OpponentModel, n int, fallback float64) (float64, error) {
	best := math.SmallestNonzeroFloat64
	nash := fallback
	for i := 0; i < n; i++ {
		c, err := s.Draw()
		if err != nil {
			return fallback, err
		}
		opp, err := model.EstimatedUtility(c.Bid)
		if err != nil {
			return fallback, fmt.Errorf("estimate opponent utility: %w", err)
		}
		if product := c.Utility * opp; product > best {
			best = product
			nash = c.Utility
		}
	}
	return nash, nil
}
