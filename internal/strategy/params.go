// internal/strategy/params.go
package strategy

import (
	"fmt"
	"strings"
)

// SelectionMode chooses which qualifying candidate the Pareto search keeps.
type SelectionMode string

const (
	// SelectBest keeps the qualifying candidate with the highest own utility.
	SelectBest SelectionMode = "best"
	// SelectLast keeps the most recently seen qualifying candidate.
	SelectLast SelectionMode = "last"
)

// ParseSelectionMode maps a config string to a SelectionMode. Empty means SelectBest.
func ParseSelectionMode(s string) (SelectionMode, error) {
	switch SelectionMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", SelectBest:
		return SelectBest, nil
	case SelectLast:
		return SelectLast, nil
	}
	return "", fmt.Errorf("unknown selection mode %q (want %q or %q)", s, SelectBest, SelectLast)
}

// Params holds the tunable constants of the negotiation policy.
type Params struct {
	ParetoSamples    int           // Candidates drawn per Pareto search.
	NashSamples      int           // Unconstrained bids drawn per Nash estimate.
	DeadlineTime     float64       // Normalized time from which accept/withdraw logic applies.
	SampleAttempts   int           // Attempt cap of the bounded above-target sampler.
	ProposalAttempts int           // Attempt cap per Pareto candidate; 0 = retry until the target is met.
	Selection        SelectionMode // Which qualifying Pareto candidate to propose.
}

// DefaultParams returns the standard policy constants.
func DefaultParams() Params {
	return Params{
		ParetoSamples:    15,
		NashSamples:      15,
		DeadlineTime:     0.9,
		SampleAttempts:   100,
		ProposalAttempts: 0,
		Selection:        SelectBest,
	}
}

// Validate rejects values the policy cannot run with.
func (p Params) Validate() error {
	if p.ParetoSamples <= 0 {
		return fmt.Errorf("pareto samples must be positive, got %d", p.ParetoSamples)
	}
	if p.NashSamples < 0 {
		return fmt.Errorf("nash samples must be non-negative, got %d", p.NashSamples)
	}
	if p.DeadlineTime < 0 || p.DeadlineTime > 1 {
		return fmt.Errorf("deadline time must be in [0,1], got %v", p.DeadlineTime)
	}
	if p.SampleAttempts <= 0 {
		return fmt.Errorf("sample attempts must be positive, got %d", p.SampleAttempts)
	}
	if p.ProposalAttempts < 0 {
		return fmt.Errorf("proposal attempts must be non-negative, got %d", p.ProposalAttempts)
	}
	if _, err := ParseSelectionMode(string(p.Selection)); err != nil {
		return err
	}
	return nil
}
