// internal/session/session.go
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	engine "github.com/jason-s-yu/negotiator/engine"
	"github.com/jason-s-yu/negotiator/internal/cache"
	"github.com/jason-s-yu/negotiator/internal/database"
	log "github.com/sirupsen/logrus"
)

// ErrAlreadyRun is returned when Run is called on a session that has already been played.
var ErrAlreadyRun = errors.New("session already run")

// pending tracks in-flight action log and persistence writes.
var pending sync.WaitGroup

// WaitPending blocks until every asynchronous action log and outcome write
// started so far has finished. Call it before closing the Redis client or the
// database pool.
func WaitPending() { pending.Wait() }

// EndedByDeadline and EndedByCancel mark outcomes not ended by a party.
const (
	EndedByDeadline = "deadline"
	EndedByCancel   = "cancelled"
)

// OnSessionEndFunc is called once a session has finished and its outcome is final.
type OnSessionEndFunc func(outcome Outcome)

// EventType represents the type of a session event.
type EventType string

// Constants defining the session events broadcast to observers.
const (
	EventSessionStart      EventType = "session_start"      // Both parties seated, round 0.
	EventPartyOffer        EventType = "party_offer"        // A party proposed a bid.
	EventPartyAccept       EventType = "party_accept"       // A party accepted the opponent's last offer.
	EventPartyEnd          EventType = "party_end"          // A party withdrew.
	EventProtocolViolation EventType = "protocol_violation" // A party sent an action the protocol forbids.
	EventSessionEnd        EventType = "session_end"        // Final outcome.
)

// SessionEvent is the structure broadcast for every state change of a session.
type SessionEvent struct {
	Type    EventType              `json:"type"`
	Session uuid.UUID              `json:"session"`
	Party   string                 `json:"party,omitempty"` // Acting party, if any.
	Round   int                    `json:"round"`
	Time    float64                `json:"time"`
	Bid     *engine.Bid            `json:"bid,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// Participant is a negotiating agent. strategy.Party implements it.
type Participant interface {
	ReceiveAction(a engine.Action) error
	ChooseAction() engine.Action
}

// Seat binds a participant to its identity and its private utility space, which
// the session uses only to score the final agreement.
type Seat struct {
	ID    string
	Agent Participant
	Space engine.UtilitySpace
}

// Outcome summarizes a finished session.
type Outcome struct {
	SessionID uuid.UUID  `json:"sessionId"`
	Agreement bool       `json:"agreement"`
	Bid       engine.Bid `json:"bid"`       // The accepted bid; zero without agreement.
	Utilities [2]float64 `json:"utilities"` // Each seat's own utility of Bid.
	Rounds    int        `json:"rounds"`
	Actions   int        `json:"actions"`
	EndedBy   string     `json:"endedBy"`             // Seat ID, EndedByDeadline or EndedByCancel.
	Violation string     `json:"violation,omitempty"` // Set when EndedBy broke the protocol.
	StartedAt time.Time  `json:"startedAt"`
	EndedAt   time.Time  `json:"endedAt"`
}

// Session runs one bilateral negotiation with alternating offers. Seat 0 moves
// first; a round completes once both seats have acted, and the session ends
// without agreement when the timeline runs out.
//
// A Session is single-threaded: Run drives both participants from one goroutine.
type Session struct {
	ID       uuid.UUID
	Domain   *engine.Domain
	Seats    [2]Seat
	Timeline *engine.DiscreteTimeline

	// Communication Callbacks
	BroadcastFn  func(ev SessionEvent) // Sends an event to observers.
	OnSessionEnd OnSessionEndFunc      // Called with the final outcome.

	actionIndex int // Sequential index for logging actions via historian.
	moves       int // Legal party actions played.
	started     bool
	startedAt   time.Time
	lastOffer   engine.Bid
	lastOfferBy int // Seat index of lastOffer's author, -1 before any offer.
}

// New creates a session over domain between two seats with the given number of rounds.
func New(domain *engine.Domain, seats [2]Seat, rounds int) (*Session, error) {
	if domain == nil {
		return nil, errors.New("session requires a domain")
	}
	for i, s := range seats {
		if s.Agent == nil || s.Space == nil {
			return nil, fmt.Errorf("seat %d: missing agent or utility space", i)
		}
		if !s.Space.Domain().SameIssues(domain) {
			return nil, fmt.Errorf("seat %d (%s): utility space is over a different domain", i, s.ID)
		}
	}
	if seats[0].ID == seats[1].ID {
		return nil, fmt.Errorf("seats share the ID %q", seats[0].ID)
	}
	id, _ := uuid.NewRandom()
	return &Session{
		ID:          id,
		Domain:      domain,
		Seats:       seats,
		Timeline:    engine.NewDiscreteTimeline(rounds),
		lastOfferBy: -1,
	}, nil
}

// Run plays the session to completion. Protocol violations end the session and
// are reported in the outcome, not as errors; the returned error is non-nil only
// when ctx is cancelled (the partial outcome is still returned) or when the
// session was already run.
func (s *Session) Run(ctx context.Context) (Outcome, error) {
	if s.started {
		return Outcome{}, ErrAlreadyRun
	}
	s.started = true
	s.startedAt = time.Now()

	log.Debugf("Session %s: starting %s vs %s over %d rounds.", s.ID, s.Seats[0].ID, s.Seats[1].ID, s.Timeline.TotalRounds)
	s.logAction("", string(EventSessionStart), map[string]interface{}{
		"domain": s.Domain.Name,
		"seats":  []string{s.Seats[0].ID, s.Seats[1].ID},
		"rounds": s.Timeline.TotalRounds,
	})
	s.fireEvent(SessionEvent{Type: EventSessionStart, Payload: map[string]interface{}{
		"domain": s.Domain.Name,
		"seats":  []string{s.Seats[0].ID, s.Seats[1].ID},
	}})

	for turn := 0; !s.Timeline.IsDeadline(); turn++ {
		if err := ctx.Err(); err != nil {
			log.Printf("Session %s: cancelled at round %d: %v", s.ID, s.Timeline.Round(), err)
			return s.finish(Outcome{EndedBy: EndedByCancel}), err
		}
		actor := turn % 2
		if out, done := s.playTurn(actor); done {
			return s.finish(out), nil
		}
		if actor == 1 {
			s.Timeline.Advance()
		}
	}
	log.Debugf("Session %s: deadline reached without agreement.", s.ID)
	return s.finish(Outcome{EndedBy: EndedByDeadline}), nil
}

// playTurn asks seat actor for its action, validates it and delivers it to the
// opponent. done reports whether the session is over.
func (s *Session) playTurn(actor int) (out Outcome, done bool) {
	seat, other := s.Seats[actor], s.Seats[1-actor]
	act := seat.Agent.ChooseAction()
	if act.Actor == "" {
		act.Actor = seat.ID
	}

	if reason := s.validate(actor, act); reason != "" {
		log.Printf("Session %s: protocol violation by %s: %s", s.ID, seat.ID, reason)
		s.logAction(seat.ID, string(EventProtocolViolation), map[string]interface{}{"reason": reason, "action": act.Type.String()})
		s.fireEvent(SessionEvent{Type: EventProtocolViolation, Party: seat.ID, Payload: map[string]interface{}{"reason": reason}})
		return Outcome{EndedBy: seat.ID, Violation: reason}, true
	}

	s.recordAction(seat.ID, act)
	if err := other.Agent.ReceiveAction(act); err != nil {
		log.Warnf("Session %s: %s failed to process %s from %s: %v", s.ID, other.ID, act.Type, seat.ID, err)
	}

	switch act.Type {
	case engine.ActionOffer:
		s.lastOffer, s.lastOfferBy = act.Bid, actor
		return Outcome{}, false
	case engine.ActionAccept:
		return Outcome{Agreement: true, Bid: act.Bid, EndedBy: seat.ID}, true
	default:
		return Outcome{EndedBy: seat.ID}, true
	}
}

// validate returns a non-empty reason when act breaks the protocol.
func (s *Session) validate(actor int, act engine.Action) string {
	switch act.Type {
	case engine.ActionOffer:
		if err := act.Bid.Validate(s.Domain); err != nil {
			return fmt.Sprintf("illegal offer: %v", err)
		}
	case engine.ActionAccept:
		if s.lastOfferBy < 0 || s.lastOfferBy == actor {
			return "accept without an opponent offer"
		}
		if !act.Bid.IsZero() && !act.Bid.Equal(s.lastOffer) {
			return fmt.Sprintf("accepted %s but the opponent's last offer is %s", act.Bid, s.lastOffer)
		}
	case engine.ActionEndNegotiation:
	default:
		return fmt.Sprintf("unknown action type %d", act.Type)
	}
	return ""
}

// recordAction broadcasts and logs a legal party action.
func (s *Session) recordAction(actorID string, act engine.Action) {
	s.moves++
	ev := SessionEvent{Party: actorID}
	payload := map[string]interface{}{}
	switch act.Type {
	case engine.ActionOffer:
		ev.Type = EventPartyOffer
		bid := act.Bid
		ev.Bid = &bid
		payload["bid"] = bid
	case engine.ActionAccept:
		ev.Type = EventPartyAccept
		bid := s.lastOffer
		ev.Bid = &bid
		payload["bid"] = bid
	default:
		ev.Type = EventPartyEnd
	}
	s.fireEvent(ev)
	s.logAction(actorID, act.Type.String(), payload)
}

// finish completes out with scores and bookkeeping, persists it and notifies observers.
func (s *Session) finish(out Outcome) Outcome {
	out.SessionID = s.ID
	out.Rounds = s.Timeline.Round()
	out.Actions = s.moves
	out.StartedAt = s.startedAt
	out.EndedAt = time.Now()
	if out.Agreement {
		if out.Bid.IsZero() {
			out.Bid = s.lastOffer
		}
		for i, seat := range s.Seats {
			u, err := seat.Space.Utility(out.Bid)
			if err != nil {
				log.Warnf("Session %s: cannot score agreement for %s: %v", s.ID, seat.ID, err)
				continue
			}
			out.Utilities[i] = u
		}
	}

	payload := map[string]interface{}{
		"agreement": out.Agreement,
		"endedBy":   out.EndedBy,
		"utilities": out.Utilities,
		"rounds":    out.Rounds,
	}
	if out.Agreement {
		payload["bid"] = out.Bid
	}
	if out.Violation != "" {
		payload["violation"] = out.Violation
	}
	s.logAction("", string(EventSessionEnd), payload)
	s.persistOutcome(out)
	s.fireEvent(SessionEvent{Type: EventSessionEnd, Payload: payload})

	if s.OnSessionEnd != nil {
		s.OnSessionEnd(out)
	}
	if out.Agreement {
		log.Debugf("Session %s: agreement on %s after %d rounds (utilities %.3f / %.3f).", s.ID, out.Bid, out.Rounds, out.Utilities[0], out.Utilities[1])
	} else {
		log.Debugf("Session %s: ended by %s after %d rounds without agreement.", s.ID, out.EndedBy, out.Rounds)
	}
	return out
}

// persistOutcome saves the outcome to the database when a pool is configured.
func (s *Session) persistOutcome(out Outcome) {
	if database.DB == nil {
		return
	}
	rec := database.SessionOutcome{
		SessionID: out.SessionID,
		Domain:    s.Domain.Name,
		Parties:   [2]string{s.Seats[0].ID, s.Seats[1].ID},
		Agreement: out.Agreement,
		AgreedBid: out.Bid,
		Utilities: out.Utilities,
		Rounds:    out.Rounds,
		EndedBy:   out.EndedBy,
		Violation: out.Violation,
		StartedAt: out.StartedAt,
		EndedAt:   out.EndedAt,
	}
	pending.Add(1)
	go func() {
		defer pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := database.StoreSessionOutcome(ctx, rec); err != nil {
			log.Printf("Error: Session %s: failed persisting outcome: %v", rec.SessionID, err)
		}
	}()
}

// fireEvent sends an event to observers via the BroadcastFn callback.
func (s *Session) fireEvent(ev SessionEvent) {
	ev.Session = s.ID
	ev.Round = s.Timeline.Round()
	ev.Time = s.Timeline.Time()
	if s.BroadcastFn != nil {
		s.BroadcastFn(ev)
	}
}

// logAction sends action details to the historian via the Redis queue.
// Increments the internal action index for ordering.
func (s *Session) logAction(actor string, actionType string, payload map[string]interface{}) {
	s.actionIndex++
	if cache.Rdb == nil {
		return
	}
	if payload == nil {
		payload = make(map[string]interface{})
	}
	record := cache.SessionActionRecord{
		SessionID:     s.ID,
		ActionIndex:   s.actionIndex,
		Actor:         actor,
		ActionType:    actionType,
		Round:         s.Timeline.Round(),
		Time:          s.Timeline.Time(),
		ActionPayload: payload,
		Timestamp:     time.Now().UnixMilli(),
	}

	pending.Add(1)
	go func(rec cache.SessionActionRecord) {
		defer pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := cache.PublishSessionAction(ctx, rec); err != nil {
			log.Printf("Error: Session %s: failed publishing action %d ('%s') to Redis: %v", rec.SessionID, rec.ActionIndex, rec.ActionType, err)
		}
	}(record)
}
