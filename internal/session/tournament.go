// internal/session/tournament.go
package session

import (
	"context"
	"fmt"
	"math/rand/v2"

	engine "github.com/jason-s-yu/negotiator/engine"
	"github.com/jason-s-yu/negotiator/internal/strategy"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Spec describes a session between two strategy parties.
type Spec struct {
	IDs    [2]string
	Spaces [2]engine.UtilitySpace
	Rounds int
	Seed   uint64 // 0 draws a random seed
	Params strategy.Params
	Logger log.FieldLogger // nil uses the standard logger

	BroadcastFn  func(ev SessionEvent)
	OnSessionEnd OnSessionEndFunc
}

// NewFromSpec builds a session whose seats are strategy parties sharing the
// session's timeline. Each party draws from its own generator, seeded from spec.Seed.
func NewFromSpec(spec Spec) (*Session, error) {
	ids := spec.IDs
	if ids[0] == "" {
		ids[0] = "party-a"
	}
	if ids[1] == "" {
		ids[1] = "party-b"
	}
	if spec.Spaces[0] == nil || spec.Spaces[1] == nil {
		return nil, fmt.Errorf("session spec needs two utility spaces")
	}
	domain := spec.Spaces[0].Domain()
	seed := spec.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	seats := [2]Seat{{ID: ids[0], Space: spec.Spaces[0]}, {ID: ids[1], Space: spec.Spaces[1]}}
	timeline := engine.NewDiscreteTimeline(spec.Rounds)
	for i := range seats {
		p, err := strategy.NewParty(ids[i], spec.Spaces[i],
			engine.NewUniformBidGenerator(domain, seed+uint64(i)),
			timeline, spec.Params, spec.Logger)
		if err != nil {
			return nil, fmt.Errorf("seat %d: %w", i, err)
		}
		seats[i].Agent = p
	}

	s, err := New(domain, seats, spec.Rounds)
	if err != nil {
		return nil, err
	}
	s.Timeline = timeline
	s.BroadcastFn = spec.BroadcastFn
	s.OnSessionEnd = spec.OnSessionEnd
	return s, nil
}

// RunTournament plays every spec as an independent session, at most workers at
// a time. Outcomes are returned in spec order. The first construction error or
// cancellation stops the remaining sessions.
func RunTournament(ctx context.Context, specs []Spec, workers int) ([]Outcome, error) {
	if workers <= 0 {
		workers = 1
	}
	outcomes := make([]Outcome, len(specs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range specs {
		g.Go(func() error {
			s, err := NewFromSpec(specs[i])
			if err != nil {
				return fmt.Errorf("session %d: %w", i, err)
			}
			out, err := s.Run(ctx)
			outcomes[i] = out
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return outcomes, err
	}
	return outcomes, nil
}

// Summary aggregates tournament outcomes.
type Summary struct {
	Sessions      int
	Agreements    int
	Deadlines     int
	Violations    int
	MeanRounds    float64
	MeanUtilities [2]float64 // Over agreements only.
	MeanWelfare   float64    // Mean of the utility sum over agreements.
}

// Summarize computes aggregate statistics over outcomes.
func Summarize(outcomes []Outcome) Summary {
	var sum Summary
	sum.Sessions = len(outcomes)
	if sum.Sessions == 0 {
		return sum
	}
	rounds := 0
	for _, o := range outcomes {
		rounds += o.Rounds
		switch {
		case o.Agreement:
			sum.Agreements++
			sum.MeanUtilities[0] += o.Utilities[0]
			sum.MeanUtilities[1] += o.Utilities[1]
			sum.MeanWelfare += o.Utilities[0] + o.Utilities[1]
		case o.Violation != "":
			sum.Violations++
		case o.EndedBy == EndedByDeadline:
			sum.Deadlines++
		}
	}
	sum.MeanRounds = float64(rounds) / float64(sum.Sessions)
	if sum.Agreements > 0 {
		n := float64(sum.Agreements)
		sum.MeanUtilities[0] /= n
		sum.MeanUtilities[1] /= n
		sum.MeanWelfare /= n
	}
	return sum
}
