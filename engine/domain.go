// Package engine implements the negotiation domain rules shared by both parties.
//
// It models a multi-issue domain with discrete option values, complete bids over
// that domain, an additive utility space, a uniform random bid generator and the
// timelines that drive a session toward its deadline. The package has no
// third-party dependencies so it can back the in-process simulator, the
// websocket transport and the tests alike.
package engine

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyDomain    = errors.New("domain has no issues")
	ErrDuplicateIssue = errors.New("duplicate issue number")
	ErrEmptyIssue     = errors.New("issue has no values")
	ErrDuplicateValue = errors.New("duplicate value")
	ErrUnknownIssue   = errors.New("unknown issue")
	ErrIllegalValue   = errors.New("illegal value for issue")
	ErrIncompleteBid  = errors.New("bid does not assign every issue")
)

// Value is one discrete option of an issue.
type Value string

// Issue is a negotiable dimension of the domain with a finite set of legal values.
type Issue struct {
	Number int     `json:"number" yaml:"number"`
	Name   string  `json:"name" yaml:"name"`
	Values []Value `json:"values" yaml:"values"`
}

// HasValue reports whether v is legal for the issue.
func (i Issue) HasValue(v Value) bool {
	for _, legal := range i.Values {
		if legal == v {
			return true
		}
	}
	return false
}

// Domain is the ordered set of issues both parties negotiate over.
// It is immutable once built by NewDomain.
type Domain struct {
	Name   string
	issues []Issue
	index  map[int]int // issue number -> position in issues
}

// NewDomain validates the issues and builds a Domain. Issue order is preserved.
func NewDomain(name string, issues []Issue) (*Domain, error) {
	if len(issues) == 0 {
		return nil, ErrEmptyDomain
	}
	d := &Domain{
		Name:   name,
		issues: make([]Issue, len(issues)),
		index:  make(map[int]int, len(issues)),
	}
	for pos, iss := range issues {
		if _, dup := d.index[iss.Number]; dup {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateIssue, iss.Number)
		}
		if len(iss.Values) == 0 {
			return nil, fmt.Errorf("%w: issue %d (%s)", ErrEmptyIssue, iss.Number, iss.Name)
		}
		seen := make(map[Value]bool, len(iss.Values))
		for _, v := range iss.Values {
			if seen[v] {
				return nil, fmt.Errorf("%w %q in issue %d", ErrDuplicateValue, v, iss.Number)
			}
			seen[v] = true
		}
		values := make([]Value, len(iss.Values))
		copy(values, iss.Values)
		d.issues[pos] = Issue{Number: iss.Number, Name: iss.Name, Values: values}
		d.index[iss.Number] = pos
	}
	return d, nil
}

// Issues returns the domain's issues in their defined order.
// The returned slice is a copy; the Values slices are shared and must not be mutated.
func (d *Domain) Issues() []Issue {
	out := make([]Issue, len(d.issues))
	copy(out, d.issues)
	return out
}

// NumIssues returns the number of issues.
func (d *Domain) NumIssues() int { return len(d.issues) }

// Issue looks up an issue by number.
func (d *Domain) Issue(number int) (Issue, bool) {
	pos, ok := d.index[number]
	if !ok {
		return Issue{}, false
	}
	return d.issues[pos], true
}

// Size returns the number of distinct complete bids in the domain.
func (d *Domain) Size() uint64 {
	size := uint64(1)
	for _, iss := range d.issues {
		size *= uint64(len(iss.Values))
	}
	return size
}

// SameIssues reports whether other has the same issue numbers and value sets.
// Two parties can only negotiate when their domains agree.
func (d *Domain) SameIssues(other *Domain) bool {
	if other == nil || len(d.issues) != len(other.issues) {
		return false
	}
	for _, iss := range d.issues {
		o, ok := other.Issue(iss.Number)
		if !ok || len(o.Values) != len(iss.Values) {
			return false
		}
		for _, v := range iss.Values {
			if !o.HasValue(v) {
				return false
			}
		}
	}
	return true
}
