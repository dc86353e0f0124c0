package agent

import (
	"errors"
	"fmt"

	engine "github.com/jason-s-yu/negotiator/engine"
)

// ErrNoOffers is returned when the model is queried before any opponent action was received.
var ErrNoOffers = errors.New("opponent model undefined: no offers received")

// OpponentModel estimates the opponent's utility from a FrequencyTable.
// It holds no state of its own: build one whenever an estimate is needed and
// it reflects the table as it is at that moment.
type OpponentModel struct {
	table      *FrequencyTable
	offerCount int
}

// NewOpponentModel derives a model from the table and the number of actions received so far.
func NewOpponentModel(table *FrequencyTable, offerCount int) OpponentModel {
	return OpponentModel{table: table, offerCount: offerCount}
}

// Ready reports whether the model is defined (at least one action received).
func (m OpponentModel) Ready() bool { return m.offerCount > 0 }

// Weights returns the inferred issue weights in domain order, summing to 1.
//
// An issue's raw weight is Σ_o (count(o)/offerCount)²: the more the opponent's
// offers concentrate on few values, the more it appears to care about the issue.
// If no issue has a positive raw weight (only non-offer actions were received)
// the weights are uniform.
func (m OpponentModel) Weights() ([]float64, error) {
	if !m.Ready() {
		return nil, ErrNoOffers
	}
	issues := m.table.issues
	weights := make([]float64, len(issues))
	total := 0.0
	n := float64(m.offerCount)
	for i, iss := range issues {
		w := 0.0
		for _, c := range m.table.counts[iss.Number] {
			f := float64(c) / n
			w += f * f
		}
		weights[i] = w
		total += w
	}
	if total == 0 {
		for i := range weights {
			weights[i] = 1 / float64(len(weights))
		}
		return weights, nil
	}
	for i := range weights {
		weights[i] /= total
	}
	return weights, nil
}

// Rank returns the position of value among the issue's options ordered by
// descending count, counting ties conservatively: the number of options whose
// count is at least count(value). A value tied for first ranks 1.
func (m OpponentModel) Rank(issue int, value engine.Value) (int, error) {
	options, ok := m.table.counts[issue]
	if !ok {
		return 0, fmt.Errorf("%w %d", engine.ErrUnknownIssue, issue)
	}
	own, ok := options[value]
	if !ok {
		return 0, fmt.Errorf("%w: issue %d value %q", engine.ErrIllegalValue, issue, value)
	}
	rank := 0
	for _, c := range options {
		if c >= own {
			rank++
		}
	}
	return rank, nil
}

// RankScore normalizes Rank to (n − rank + 1)/n in (0, 1]; higher means the
// opponent appears to favor the value more.
func (m OpponentModel) RankScore(issue int, value engine.Value) (float64, error) {
	rank, err := m.Rank(issue, value)
	if err != nil {
		return 0, err
	}
	n := float64(len(m.table.counts[issue]))
	return (n - float64(rank) + 1) / n, nil
}

// RankScores returns the rank score of the bid's value for each issue, in domain order.
func (m OpponentModel) RankScores(bid engine.Bid) ([]float64, error) {
	issues := m.table.issues
	scores := make([]float64, len(issues))
	for i, iss := range issues {
		v, ok := bid.Value(iss.Number)
		if !ok {
			return nil, fmt.Errorf("%w: missing issue %d", engine.ErrIncompleteBid, iss.Number)
		}
		s, err := m.RankScore(iss.Number, v)
		if err != nil {
			return nil, err
		}
		scores[i] = s
	}
	return scores, nil
}

// EstimatedUtility returns Σ_i weight(i) · rankScore(i, bid_i).
func (m OpponentModel) EstimatedUtility(bid engine.Bid) (float64, error) {
	weights, err := m.Weights()
	if err != nil {
		return 0, err
	}
	scores, err := m.RankScores(bid)
	if err != nil {
		return 0, err
	}
	u := 0.0
	for i := range weights {
		u += weights[i] * scores[i]
	}
	return u, nil
}
