// Package agent implements opponent preference modeling for a negotiating party.
//
// The model is frequency based: every bid the opponent offers increments, per
// issue, the count of the value it chose. Issue importance and value preference
// are then inferred from how concentrated those counts are.
package agent

import (
	"fmt"

	engine "github.com/jason-s-yu/negotiator/engine"
)

// FrequencyTable counts, per issue, how often the opponent offered each value.
// Every legal value has an entry from construction on; counts only ever grow.
type FrequencyTable struct {
	issues  []engine.Issue
	counts  map[int]map[engine.Value]int
	records int
}

// NewFrequencyTable seeds a zero count for every value of every issue in d.
func NewFrequencyTable(d *engine.Domain) *FrequencyTable {
	issues := d.Issues()
	ft := &FrequencyTable{
		issues: issues,
		counts: make(map[int]map[engine.Value]int, len(issues)),
	}
	for _, iss := range issues {
		options := make(map[engine.Value]int, len(iss.Values))
		for _, v := range iss.Values {
			options[v] = 0
		}
		ft.counts[iss.Number] = options
	}
	return ft
}

// Record increments, for every issue, the count of the value the bid assigns.
// The whole bid is checked before any count changes, so a malformed bid leaves
// the table untouched.
func (ft *FrequencyTable) Record(bid engine.Bid) error {
	values := make([]engine.Value, len(ft.issues))
	for i, iss := range ft.issues {
		v, ok := bid.Value(iss.Number)
		if !ok {
			return fmt.Errorf("record %s: %w: missing issue %d", bid, engine.ErrIncompleteBid, iss.Number)
		}
		if _, known := ft.counts[iss.Number][v]; !known {
			return fmt.Errorf("record %s: %w: issue %d value %q", bid, engine.ErrIllegalValue, iss.Number, v)
		}
		values[i] = v
	}
	if extra := len(bid.Issues()); extra != len(ft.issues) {
		return fmt.Errorf("record %s: %w: bid has %d issues, table has %d", bid, engine.ErrUnknownIssue, extra, len(ft.issues))
	}

	for i, iss := range ft.issues {
		ft.counts[iss.Number][values[i]]++
	}
	ft.records++
	return nil
}

// Count returns how often value was offered for issue (0 if either is unknown).
func (ft *FrequencyTable) Count(issue int, value engine.Value) int {
	return ft.counts[issue][value]
}

// Counts returns a copy of the per-value counts of one issue, or nil if unknown.
func (ft *FrequencyTable) Counts(issue int) map[engine.Value]int {
	options, ok := ft.counts[issue]
	if !ok {
		return nil
	}
	out := make(map[engine.Value]int, len(options))
	for v, c := range options {
		out[v] = c
	}
	return out
}

// Issues returns the tracked issues in domain order.
func (ft *FrequencyTable) Issues() []engine.Issue {
	out := make([]engine.Issue, len(ft.issues))
	copy(out, ft.issues)
	return out
}

// Records returns the number of successful Record calls.
func (ft *FrequencyTable) Records() int { return ft.records }
