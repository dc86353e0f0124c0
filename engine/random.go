package engine

import "math/rand/v2"

// BidGenerator draws bids uniformly from the legal space of a domain.
type BidGenerator interface {
	RandomBid() Bid
}

// UniformBidGenerator picks every issue's value independently and uniformly.
// Not safe for concurrent use; each party owns its own generator.
type UniformBidGenerator struct {
	domain *Domain
	rng    *rand.Rand
}

// NewUniformBidGenerator returns a generator seeded for reproducible sessions.
func NewUniformBidGenerator(d *Domain, seed uint64) *UniformBidGenerator {
	return &UniformBidGenerator{
		domain: d,
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// RandomBid returns a uniformly drawn complete bid.
func (g *UniformBidGenerator) RandomBid() Bid {
	values := make(map[int]Value, g.domain.NumIssues())
	for _, iss := range g.domain.issues {
		values[iss.Number] = iss.Values[g.rng.IntN(len(iss.Values))]
	}
	// Values come straight from the domain, so the bid is legal by construction.
	return Bid{values: values}
}
