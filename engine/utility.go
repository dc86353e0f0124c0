package engine

import (
	"errors"
	"fmt"
)

var (
	ErrNoEvaluator = errors.New("no evaluator for issue")
	ErrBadWeight   = errors.New("issue weights must be non-negative and not all zero")
)

// UtilitySpace maps complete bids to one party's private utility in [0, 1].
type UtilitySpace interface {
	Domain() *Domain
	Utility(b Bid) (float64, error)
	MaxUtilityBid() (Bid, error)
	MinUtilityBid() (Bid, error)
}

// AdditiveUtilitySpace scores a bid as the weighted sum of per-issue evaluations.
//
//	U(b) = Σ_i w_i · e_i(b_i) / max_v e_i(v)
//
// Weights are normalized to sum to 1 at construction; each evaluation is divided by
// the issue's largest evaluation so the best value of an issue contributes its full weight.
type AdditiveUtilitySpace struct {
	domain      *Domain
	weights     map[int]float64
	evaluations map[int]map[Value]float64
	maxEval     map[int]float64
}

// NewAdditiveUtilitySpace validates weights and evaluations against the domain.
// Every issue needs a weight and an evaluation for each of its values; evaluations
// must be non-negative with at least one positive value per issue.
func NewAdditiveUtilitySpace(d *Domain, weights map[int]float64, evaluations map[int]map[Value]float64) (*AdditiveUtilitySpace, error) {
	s := &AdditiveUtilitySpace{
		domain:      d,
		weights:     make(map[int]float64, d.NumIssues()),
		evaluations: make(map[int]map[Value]float64, d.NumIssues()),
		maxEval:     make(map[int]float64, d.NumIssues()),
	}

	total := 0.0
	for _, iss := range d.issues {
		w, ok := weights[iss.Number]
		if !ok || w < 0 {
			return nil, fmt.Errorf("%w: issue %d", ErrBadWeight, iss.Number)
		}
		total += w
	}
	if total <= 0 {
		return nil, ErrBadWeight
	}

	for _, iss := range d.issues {
		s.weights[iss.Number] = weights[iss.Number] / total

		evals, ok := evaluations[iss.Number]
		if !ok {
			return nil, fmt.Errorf("%w %d", ErrNoEvaluator, iss.Number)
		}
		issueEvals := make(map[Value]float64, len(iss.Values))
		best := 0.0
		for _, v := range iss.Values {
			e, ok := evals[v]
			if !ok {
				return nil, fmt.Errorf("%w %d: missing value %q", ErrNoEvaluator, iss.Number, v)
			}
			if e < 0 {
				return nil, fmt.Errorf("issue %d value %q: negative evaluation %v", iss.Number, v, e)
			}
			issueEvals[v] = e
			if e > best {
				best = e
			}
		}
		if best == 0 {
			return nil, fmt.Errorf("issue %d: all evaluations are zero", iss.Number)
		}
		s.evaluations[iss.Number] = issueEvals
		s.maxEval[iss.Number] = best
	}
	return s, nil
}

// Domain returns the domain the space is defined over.
func (s *AdditiveUtilitySpace) Domain() *Domain { return s.domain }

// Weight returns the normalized weight of an issue (0 if unknown).
func (s *AdditiveUtilitySpace) Weight(issue int) float64 { return s.weights[issue] }

// Evaluation returns the normalized evaluation e_i(v)/max e_i in [0, 1].
func (s *AdditiveUtilitySpace) Evaluation(issue int, v Value) (float64, error) {
	evals, ok := s.evaluations[issue]
	if !ok {
		return 0, fmt.Errorf("%w %d", ErrNoEvaluator, issue)
	}
	e, ok := evals[v]
	if !ok {
		return 0, fmt.Errorf("%w: issue %d value %q", ErrIllegalValue, issue, v)
	}
	return e / s.maxEval[issue], nil
}

// Utility returns U(b). Bids that do not assign every issue are rejected.
func (s *AdditiveUtilitySpace) Utility(b Bid) (float64, error) {
	u := 0.0
	for _, iss := range s.domain.issues {
		v, ok := b.Value(iss.Number)
		if !ok {
			return 0, fmt.Errorf("%w: missing issue %d", ErrIncompleteBid, iss.Number)
		}
		e, err := s.Evaluation(iss.Number, v)
		if err != nil {
			return 0, err
		}
		u += s.weights[iss.Number] * e
	}
	return u, nil
}

// MaxUtilityBid picks the best value of every issue. First-listed value wins ties.
func (s *AdditiveUtilitySpace) MaxUtilityBid() (Bid, error) {
	return s.extremeBid(func(candidate, current float64) bool { return candidate > current })
}

// MinUtilityBid picks the worst value of every issue. First-listed value wins ties.
func (s *AdditiveUtilitySpace) MinUtilityBid() (Bid, error) {
	return s.extremeBid(func(candidate, current float64) bool { return candidate < current })
}

func (s *AdditiveUtilitySpace) extremeBid(better func(candidate, current float64) bool) (Bid, error) {
	values := make(map[int]Value, s.domain.NumIssues())
	for _, iss := range s.domain.issues {
		chosen := iss.Values[0]
		chosenEval := s.evaluations[iss.Number][chosen]
		for _, v := range iss.Values[1:] {
			if e := s.evaluations[iss.Number][v]; better(e, chosenEval) {
				chosen, chosenEval = v, e
			}
		}
		values[iss.Number] = chosen
	}
	return NewBid(s.domain, values)
}
