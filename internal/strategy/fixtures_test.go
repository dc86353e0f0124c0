// internal/strategy/fixtures_test.go
package strategy

import (
	"errors"
	"testing"

	engine "github.com/jason-s-yu/negotiator/engine"
	"github.com/stretchr/testify/require"
)

var errBrokenEvaluator = errors.New("evaluator offline")

// fakeSpace is a single-issue utility space with hand-picked utilities per value.
type fakeSpace struct {
	domain *engine.Domain
	utils  map[engine.Value]float64
	maxBid engine.Bid
	minBid engine.Bid
	maxErr error
	minErr error
	failOn map[engine.Value]bool
}

func (s *fakeSpace) Domain() *engine.Domain { return s.domain }

func (s *fakeSpace) Utility(b engine.Bid) (float64, error) {
	v, ok := b.Value(1)
	if !ok {
		return 0, engine.ErrIncompleteBid
	}
	if s.failOn[v] {
		return 0, errBrokenEvaluator
	}
	return s.utils[v], nil
}

func (s *fakeSpace) MaxUtilityBid() (engine.Bid, error) { return s.maxBid, s.maxErr }
func (s *fakeSpace) MinUtilityBid() (engine.Bid, error) { return s.minBid, s.minErr }

// newFakeSpace builds a one-issue domain whose values are the keys of utils, in
// the given order. max/min name the extreme values.
func newFakeSpace(t *testing.T, order []engine.Value, utils map[engine.Value]float64, max, min engine.Value) *fakeSpace {
	t.Helper()
	d, err := engine.NewDomain("fake", []engine.Issue{{Number: 1, Name: "Deal", Values: order}})
	require.NoError(t, err)
	return &fakeSpace{
		domain: d,
		utils:  utils,
		maxBid: bidOf(t, d, max),
		minBid: bidOf(t, d, min),
	}
}

// fourValueSpace: a=1.0, b=0.8, c=0.4, d=0.2 → threshold (1.0+0.2)/2 = 0.6.
func fourValueSpace(t *testing.T) *fakeSpace {
	return newFakeSpace(t,
		[]engine.Value{"a", "b", "c", "d"},
		map[engine.Value]float64{"a": 1.0, "b": 0.8, "c": 0.4, "d": 0.2},
		"a", "d")
}

func bidOf(t *testing.T, d *engine.Domain, v engine.Value) engine.Bid {
	t.Helper()
	b, err := engine.NewBid(d, map[int]engine.Value{1: v})
	require.NoError(t, err)
	return b
}

// cycleGen returns the given bids in order, forever, and counts draws.
type cycleGen struct {
	bids  []engine.Bid
	next  int
	draws int
}

func newCycleGen(t *testing.T, d *engine.Domain, values ...engine.Value) *cycleGen {
	g := &cycleGen{}
	for _, v := range values {
		g.bids = append(g.bids, bidOf(t, d, v))
	}
	return g
}

func (g *cycleGen) RandomBid() engine.Bid {
	b := g.bids[g.next%len(g.bids)]
	g.next++
	g.draws++
	return b
}
