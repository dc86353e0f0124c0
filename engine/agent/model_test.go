package agent

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	engine "github.com/jason-s-yu/negotiator/engine"
)

// helper: build a domain or fail the test.
func mustDomain(t *testing.T, issues ...engine.Issue) *engine.Domain {
	t.Helper()
	d, err := engine.NewDomain("test", issues)
	if err != nil {
		t.Fatalf("NewDomain: %v", err)
	}
	return d
}

// helper: build a bid or fail the test.
func mustBid(t *testing.T, d *engine.Domain, values map[int]engine.Value) engine.Bid {
	t.Helper()
	b, err := engine.NewBid(d, values)
	if err != nil {
		t.Fatalf("NewBid: %v", err)
	}
	return b
}

func threeIssueDomain(t *testing.T) *engine.Domain {
	return mustDomain(t,
		engine.Issue{Number: 1, Name: "Price", Values: []engine.Value{"low", "mid", "high"}},
		engine.Issue{Number: 2, Name: "Delivery", Values: []engine.Value{"fast", "slow"}},
		engine.Issue{Number: 5, Name: "Warranty", Values: []engine.Value{"none", "1y", "2y", "3y"}},
	)
}

// TestFrequencyTableSeededAtZero verifies every legal value has an entry before counting.
func TestFrequencyTableSeededAtZero(t *testing.T) {
	d := threeIssueDomain(t)
	ft := NewFrequencyTable(d)

	want := map[engine.Value]int{"none": 0, "1y": 0, "2y": 0, "3y": 0}
	if diff := cmp.Diff(want, ft.Counts(5)); diff != "" {
		t.Errorf("Counts(5) mismatch (-want +got):\n%s", diff)
	}
	if ft.Counts(42) != nil {
		t.Error("expected nil counts for unknown issue")
	}
	if ft.Records() != 0 {
		t.Errorf("expected 0 records, got %d", ft.Records())
	}
}

// TestFrequencyTableCountingInvariant verifies each count equals the number of
// recorded bids that chose that value.
func TestFrequencyTableCountingInvariant(t *testing.T) {
	d := threeIssueDomain(t)
	ft := NewFrequencyTable(d)
	gen := engine.NewUniformBidGenerator(d, 99)

	expected := make(map[int]map[engine.Value]int)
	for _, iss := range d.Issues() {
		expected[iss.Number] = make(map[engine.Value]int)
		for _, v := range iss.Values {
			expected[iss.Number][v] = 0
		}
	}
	for i := 0; i < 200; i++ {
		b := gen.RandomBid()
		if err := ft.Record(b); err != nil {
			t.Fatalf("Record: %v", err)
		}
		for _, num := range b.Issues() {
			v, _ := b.Value(num)
			expected[num][v]++
		}
	}
	for _, iss := range d.Issues() {
		if diff := cmp.Diff(expected[iss.Number], ft.Counts(iss.Number)); diff != "" {
			t.Errorf("issue %d counts mismatch (-want +got):\n%s", iss.Number, diff)
		}
	}
	if ft.Records() != 200 {
		t.Errorf("expected 200 records, got %d", ft.Records())
	}
}

// TestFrequencyTableRejectsMalformedBid verifies a bad bid fails loudly and
// leaves every count unchanged.
func TestFrequencyTableRejectsMalformedBid(t *testing.T) {
	d := threeIssueDomain(t)
	other := mustDomain(t,
		engine.Issue{Number: 1, Values: []engine.Value{"low", "mid", "high"}},
		engine.Issue{Number: 2, Values: []engine.Value{"fast", "slow"}},
		engine.Issue{Number: 5, Values: []engine.Value{"none", "1y", "2y", "3y", "lifetime"}},
	)
	ft := NewFrequencyTable(d)

	bad := mustBid(t, other, map[int]engine.Value{1: "low", 2: "fast", 5: "lifetime"})
	err := ft.Record(bad)
	if !errors.Is(err, engine.ErrIllegalValue) {
		t.Fatalf("expected ErrIllegalValue, got %v", err)
	}
	if ft.Count(1, "low") != 0 || ft.Count(2, "fast") != 0 {
		t.Error("malformed bid partially mutated the table")
	}

	if err := ft.Record(engine.Bid{}); !errors.Is(err, engine.ErrIncompleteBid) {
		t.Errorf("expected ErrIncompleteBid, got %v", err)
	}
	if ft.Records() != 0 {
		t.Errorf("expected 0 records after failures, got %d", ft.Records())
	}
}

// TestOpponentModelSingleIssueRanks verifies weights, ranks and scores for one
// issue {X, Y} after offers X, X, X, Y.
func TestOpponentModelSingleIssueRanks(t *testing.T) {
	d := mustDomain(t, engine.Issue{Number: 1, Values: []engine.Value{"X", "Y"}})
	ft := NewFrequencyTable(d)
	for _, v := range []engine.Value{"X", "X", "X", "Y"} {
		if err := ft.Record(mustBid(t, d, map[int]engine.Value{1: v})); err != nil {
			t.Fatal(err)
		}
	}
	m := NewOpponentModel(ft, 4)

	weights, err := m.Weights()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]float64{1}, weights); diff != "" {
		t.Errorf("weights mismatch (-want +got):\n%s", diff)
	}

	if r, _ := m.Rank(1, "X"); r != 1 {
		t.Errorf("expected rank(X)=1, got %d", r)
	}
	if r, _ := m.Rank(1, "Y"); r != 2 {
		t.Errorf("expected rank(Y)=2, got %d", r)
	}
	if s, _ := m.RankScore(1, "X"); s != 1.0 {
		t.Errorf("expected score(X)=1.0, got %v", s)
	}
	if s, _ := m.RankScore(1, "Y"); s != 0.5 {
		t.Errorf("expected score(Y)=0.5, got %v", s)
	}
}

// TestOpponentModelWeightsFavorConcentratedIssue verifies concentrated offers
// yield a larger inferred weight than spread-out offers.
func TestOpponentModelWeightsFavorConcentratedIssue(t *testing.T) {
	d := mustDomain(t,
		engine.Issue{Number: 1, Values: []engine.Value{"a", "b"}},
		engine.Issue{Number: 2, Values: []engine.Value{"c", "d"}},
	)
	ft := NewFrequencyTable(d)
	// Issue 1 always "a"; issue 2 alternates.
	for i := 0; i < 4; i++ {
		v2 := engine.Value("c")
		if i%2 == 1 {
			v2 = "d"
		}
		if err := ft.Record(mustBid(t, d, map[int]engine.Value{1: "a", 2: v2})); err != nil {
			t.Fatal(err)
		}
	}
	weights, err := NewOpponentModel(ft, 4).Weights()
	if err != nil {
		t.Fatal(err)
	}
	// raw: issue1 = 1, issue2 = 0.25+0.25 = 0.5 → normalized 2/3, 1/3
	if math.Abs(weights[0]-2.0/3) > 1e-12 || math.Abs(weights[1]-1.0/3) > 1e-12 {
		t.Errorf("expected [2/3 1/3], got %v", weights)
	}
}

// TestOpponentModelInvariants verifies weights sum to 1, scores lie in (0, 1],
// and repeated queries are identical.
func TestOpponentModelInvariants(t *testing.T) {
	d := threeIssueDomain(t)
	ft := NewFrequencyTable(d)
	gen := engine.NewUniformBidGenerator(d, 3)

	for received := 1; received <= 30; received++ {
		if err := ft.Record(gen.RandomBid()); err != nil {
			t.Fatal(err)
		}
		m := NewOpponentModel(ft, received)

		weights, err := m.Weights()
		if err != nil {
			t.Fatal(err)
		}
		sum := 0.0
		for _, w := range weights {
			sum += w
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Fatalf("after %d offers weights sum to %v", received, sum)
		}

		probe := gen.RandomBid()
		scores, err := m.RankScores(probe)
		if err != nil {
			t.Fatal(err)
		}
		for i, s := range scores {
			if s <= 0 || s > 1 {
				t.Fatalf("rank score %d out of (0,1]: %v", i, s)
			}
		}

		again, _ := m.Weights()
		if diff := cmp.Diff(weights, again); diff != "" {
			t.Fatalf("weights not idempotent (-first +second):\n%s", diff)
		}
		u1, _ := m.EstimatedUtility(probe)
		u2, _ := m.EstimatedUtility(probe)
		if u1 != u2 {
			t.Fatalf("estimated utility not idempotent: %v vs %v", u1, u2)
		}
	}
}

// TestOpponentModelUndefinedBeforeOffers verifies the explicit precondition guard.
func TestOpponentModelUndefinedBeforeOffers(t *testing.T) {
	d := threeIssueDomain(t)
	m := NewOpponentModel(NewFrequencyTable(d), 0)
	if m.Ready() {
		t.Error("model should not be ready")
	}
	if _, err := m.Weights(); !errors.Is(err, ErrNoOffers) {
		t.Errorf("expected ErrNoOffers, got %v", err)
	}
	b := mustBid(t, d, map[int]engine.Value{1: "low", 2: "fast", 5: "none"})
	if _, err := m.EstimatedUtility(b); !errors.Is(err, ErrNoOffers) {
		t.Errorf("expected ErrNoOffers, got %v", err)
	}
}

// TestOpponentModelUniformWithoutOffers verifies uniform weights when only
// non-offer actions were counted.
func TestOpponentModelUniformWithoutOffers(t *testing.T) {
	d := threeIssueDomain(t)
	weights, err := NewOpponentModel(NewFrequencyTable(d), 2).Weights()
	if err != nil {
		t.Fatal(err)
	}
	for _, w := range weights {
		if math.Abs(w-1.0/3) > 1e-12 {
			t.Errorf("expected uniform 1/3, got %v", weights)
			break
		}
	}
}

// TestEstimatedUtility verifies the weighted rank-score sum on a two-issue table.
func TestEstimatedUtility(t *testing.T) {
	d := mustDomain(t,
		engine.Issue{Number: 1, Values: []engine.Value{"a", "b"}},
		engine.Issue{Number: 2, Values: []engine.Value{"c", "d"}},
	)
	ft := NewFrequencyTable(d)
	for i := 0; i < 2; i++ {
		if err := ft.Record(mustBid(t, d, map[int]engine.Value{1: "a", 2: "c"})); err != nil {
			t.Fatal(err)
		}
	}
	m := NewOpponentModel(ft, 2)

	// Both issues fully concentrated → weights 0.5/0.5.
	best := mustBid(t, d, map[int]engine.Value{1: "a", 2: "c"})
	if u, _ := m.EstimatedUtility(best); math.Abs(u-1) > 1e-12 {
		t.Errorf("expected 1 for the opponent's favorite bid, got %v", u)
	}
	worst := mustBid(t, d, map[int]engine.Value{1: "b", 2: "d"})
	if u, _ := m.EstimatedUtility(worst); math.Abs(u-0.5) > 1e-12 {
		t.Errorf("expected 0.5 for the least favored bid, got %v", u)
	}
}
