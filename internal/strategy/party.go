// internal/strategy/party.go
package strategy

import (
	"errors"
	"fmt"
	"math"

	engine "github.com/jason-s-yu/negotiator/engine"
	"github.com/jason-s-yu/negotiator/engine/agent"
	log "github.com/sirupsen/logrus"
)

// State is the negotiation policy's position in its round loop.
type State uint8

const (
	StateIdle       State = iota // 0: session started, nothing received
	StateModeling                // 1: own offer sent, waiting for the opponent
	StateDeciding                // 2: opponent offer received, our move
	StateAccepted                // 3: terminal: we accepted
	StateTerminated              // 4: terminal: we withdrew
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateModeling:
		return "modeling"
	case StateDeciding:
		return "deciding"
	case StateAccepted:
		return "accepted"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool { return s == StateAccepted || s == StateTerminated }

// Description is the human-readable summary of the policy.
const Description = "Places bids based on the Johnny Black opponent model"

// ComputeTarget returns the minimum own utility the party proposes or accepts at
// normalized time t: the larger of the fixed midpoint threshold and a linear
// concession from the maximum utility.
func ComputeTarget(threshold, maxUtility, t float64) float64 {
	return math.Max(threshold, (1-t)*maxUtility)
}

// DecideAtDeadline is the deadline acceptance rule: accept the opponent's last
// offer when it is worth at least threshold, otherwise end the negotiation.
func DecideAtDeadline(lastOfferUtility, threshold float64) engine.ActionType {
	if lastOfferUtility >= threshold {
		return engine.ActionAccept
	}
	return engine.ActionEndNegotiation
}

// Party is one negotiating participant: it models the opponent from received
// offers and decides, each turn, whether to propose, accept or withdraw.
//
// A Party is private to one session and is not safe for concurrent use; the
// platform delivers one event at a time.
type Party struct {
	ID string

	params   Params
	space    engine.UtilitySpace
	sampler  *Sampler
	timeline engine.Timeline
	log      log.FieldLogger

	table      *agent.FrequencyTable
	offerCount int
	lastOffer  engine.Bid
	hasOffer   bool
	target     float64
	nash       float64
	state      State
	final      engine.Action
}

// NewParty builds a party in StateIdle. A nil logger uses the logrus standard logger.
func NewParty(id string, space engine.UtilitySpace, gen engine.BidGenerator, timeline engine.Timeline, params Params, logger log.FieldLogger) (*Party, error) {
	if space == nil || gen == nil || timeline == nil {
		return nil, errors.New("party requires a utility space, a bid generator and a timeline")
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	p := &Party{
		ID:       id,
		params:   params,
		space:    space,
		sampler:  &Sampler{Generator: gen, Space: space},
		timeline: timeline,
		log:      logger.WithField("party", id),
		table:    agent.NewFrequencyTable(space.Domain()),
		state:    StateIdle,
	}
	_, p.target, _ = p.bounds()
	p.nash = p.target
	p.logProfile()
	return p, nil
}

// ReceiveAction processes one opponent action. Every action counts toward the
// model's normalizing offer count; offers are additionally recorded in the
// frequency table and become the last offer. A bid the table rejects is
// returned as an error and leaves the party unchanged.
func (p *Party) ReceiveAction(a engine.Action) error {
	if p.state.Terminal() {
		p.log.Debugf("Ignoring %s received in terminal state %s.", a.Type, p.state)
		return nil
	}
	if a.Type != engine.ActionOffer {
		p.offerCount++
		return nil
	}
	if err := p.table.Record(a.Bid); err != nil {
		return fmt.Errorf("party %s: %w", p.ID, err)
	}
	p.offerCount++

	nash, err := NashEstimate(p.sampler, p.model(), p.params.NashSamples, p.target)
	if err != nil {
		p.log.WithError(err).Warn("Nash estimate failed; keeping previous value.")
	} else {
		p.nash = nash
	}

	p.lastOffer, p.hasOffer = a.Bid, true
	p.state = StateDeciding
	return nil
}

// ChooseAction returns the party's move for the current turn. It never fails:
// an unrecoverable problem is logged and turned into EndNegotiation. Once the
// party is terminal it repeats its terminal action.
func (p *Party) ChooseAction() engine.Action {
	if p.state.Terminal() {
		return p.final
	}

	threshold, maxUtil, exact := p.bounds()
	t := p.timeline.Time()
	p.target = ComputeTarget(threshold, maxUtil, t)
	entry := p.log.WithFields(log.Fields{"time": t, "target": p.target, "threshold": threshold})

	if p.hasOffer && t >= p.params.DeadlineTime {
		u, err := p.space.Utility(p.lastOffer)
		if err != nil {
			entry.WithError(err).Error("Cannot evaluate the last offer; withdrawing.")
			return p.terminate()
		}
		if DecideAtDeadline(u, threshold) == engine.ActionAccept {
			entry.Infof("Accepting %s (utility %.4f).", p.lastOffer, u)
			p.state = StateAccepted
			p.final = engine.NewAccept(p.ID, p.lastOffer)
			return p.final
		}
		entry.Infof("Last offer utility %.4f below threshold; ending negotiation.", u)
		return p.terminate()
	}

	bid, err := p.propose(entry, exact)
	if err != nil {
		entry.WithError(err).Error("No proposal available; withdrawing.")
		return p.terminate()
	}
	p.state = StateModeling
	return engine.NewOffer(p.ID, bid)
}

// propose picks the bid to offer. Before any opponent action the model is
// undefined, so the opening offer is the maximum-utility bid.
//
// When the bounds are not exact the target may lie above every reachable
// utility, so proposal sampling is capped at SampleAttempts.
func (p *Party) propose(entry log.FieldLogger, exact bool) (engine.Bid, error) {
	model := p.model()
	if !model.Ready() {
		bid, err := p.space.MaxUtilityBid()
		if err == nil {
			return bid, nil
		}
		entry.WithError(err).Warn("Max-utility bid unavailable for the opening offer; sampling instead.")
		c, err := p.sampler.SampleAboveTarget(p.target, p.params.SampleAttempts)
		return c.Bid, err
	}

	attempts := p.params.ProposalAttempts
	if !exact && (attempts == 0 || attempts > p.params.SampleAttempts) {
		attempts = p.params.SampleAttempts
	}
	sel, err := ParetoSearch(p.sampler, model, p.target, p.params.ParetoSamples, attempts, p.params.Selection)
	if err != nil {
		entry.WithError(err).Warn("Pareto search failed; falling back to a bounded sample.")
		c, serr := p.sampler.SampleAboveTarget(p.target, p.params.SampleAttempts)
		if serr != nil {
			return engine.Bid{}, errors.Join(err, serr)
		}
		return c.Bid, nil
	}
	if !sel.Qualified {
		entry.Debugf("No sample beat the opponent estimate; proposing best own-utility sample %s.", sel.Bid)
	}
	return sel.Bid, nil
}

func (p *Party) terminate() engine.Action {
	p.state = StateTerminated
	p.final = engine.NewEndNegotiation(p.ID)
	return p.final
}

// bounds returns the fixed threshold (midpoint of max and min achievable
// utility) and the max utility. Evaluation failures fall back to 1 and 0,
// in which case exact is false.
func (p *Party) bounds() (threshold, maxUtil float64, exact bool) {
	maxUtil, maxOK := p.boundUtility("max", p.space.MaxUtilityBid, 1)
	minUtil, minOK := p.boundUtility("min", p.space.MinUtilityBid, 0)
	return (maxUtil + minUtil) / 2, maxUtil, maxOK && minOK
}

func (p *Party) boundUtility(which string, extreme func() (engine.Bid, error), neutral float64) (float64, bool) {
	bid, err := extreme()
	if err != nil {
		p.log.WithError(err).Warnf("Cannot compute %s-utility bid; using %v.", which, neutral)
		return neutral, false
	}
	u, err := p.space.Utility(bid)
	if err != nil {
		p.log.WithError(err).Warnf("Cannot evaluate %s-utility bid %s; using %v.", which, bid, neutral)
		return neutral, false
	}
	return u, true
}

func (p *Party) model() agent.OpponentModel {
	return agent.NewOpponentModel(p.table, p.offerCount)
}

// logProfile dumps the party's own preferences at debug level.
func (p *Party) logProfile() {
	additive, ok := p.space.(*engine.AdditiveUtilitySpace)
	if !ok {
		return
	}
	for _, iss := range additive.Domain().Issues() {
		entry := p.log.WithFields(log.Fields{"issue": iss.Name, "weight": additive.Weight(iss.Number)})
		for _, v := range iss.Values {
			e, err := additive.Evaluation(iss.Number, v)
			if err != nil {
				entry.WithError(err).Debugf("%s has no evaluation.", v)
				continue
			}
			entry.Debugf("%s evaluation %.4f", v, e)
		}
	}
}

// State returns the current policy state.
func (p *Party) State() State { return p.state }

// Target returns the utility target computed at the last decision point.
func (p *Party) Target() float64 { return p.target }

// NashValue returns the latest Nash-bargaining estimate of a fair own utility.
func (p *Party) NashValue() float64 { return p.nash }

// OfferCount returns the number of opponent actions received.
func (p *Party) OfferCount() int { return p.offerCount }

// LastOffer returns the opponent's most recent offer.
func (p *Party) LastOffer() (engine.Bid, bool) { return p.lastOffer, p.hasOffer }

// OpponentModel returns the model derived from everything received so far.
func (p *Party) OpponentModel() agent.OpponentModel { return p.model() }

// Description returns the policy description.
func (p *Party) Description() string { return Description }
