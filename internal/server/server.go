// internal/server/server.go
package server

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	engine "github.com/jason-s-yu/negotiator/engine"
	"github.com/jason-s-yu/negotiator/internal/auth"
	"github.com/jason-s-yu/negotiator/internal/strategy"
	log "github.com/sirupsen/logrus"
)

// Control message types exchanged with the platform. Actions travel under
// their engine.ActionType wire names (offer, accept, end) in both directions.
const (
	MsgChoose = "choose" // Inbound: our turn; Time carries the platform clock.
	MsgReady  = "ready"  // Outbound: party created, carries its ID.
	MsgAck    = "ack"    // Outbound: inbound action processed.
	MsgError  = "error"  // Outbound: inbound message rejected.
)

// InboundMessage is a message from the platform driving the party.
type InboundMessage struct {
	Type  string      `json:"type"`
	Actor string      `json:"actor,omitempty"`
	Bid   *engine.Bid `json:"bid,omitempty"`
	Time  *float64    `json:"time,omitempty"` // Normalized time; updates a platform-driven timeline when set.
}

// OutboundMessage is a message from the party to the platform.
type OutboundMessage struct {
	Type        string      `json:"type"`
	Party       string      `json:"party,omitempty"`
	Bid         *engine.Bid `json:"bid,omitempty"`
	State       string      `json:"state,omitempty"`
	Description string      `json:"description,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// Server exposes a strategy party over websocket. Every connection gets its own
// party, timeline and opponent model.
type Server struct {
	Space       engine.UtilitySpace
	Params      strategy.Params
	Secret      []byte        // HS256 secret; empty disables authentication.
	ReadTimeout time.Duration // Idle limit between platform messages; 0 disables it.
	Seed        uint64        // Generator seed; 0 draws one per connection.
	// Deadline, when positive, runs every party on a wall-clock timeline of
	// that length started at connect; the platform's Time is then ignored.
	Deadline time.Duration

	active atomic.Int64
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/negotiate", s.handleNegotiate)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %d\n", s.active.Load())
	})
	return mux
}

// Active returns the number of open negotiation connections.
func (s *Server) Active() int64 { return s.active.Load() }

func (s *Server) handleNegotiate(w http.ResponseWriter, r *http.Request) {
	subject := "anonymous"
	if len(s.Secret) > 0 {
		sub, err := auth.FromRequest(s.Secret, r)
		if err != nil {
			log.Printf("Rejected negotiation request from %s: %v", r.RemoteAddr, err)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		subject = sub
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Printf("Websocket accept failed for %s: %v", r.RemoteAddr, err)
		return
	}
	s.active.Add(1)
	defer s.active.Add(-1)

	c := &connection{server: s, conn: conn, id: uuid.New(), subject: subject}
	if err := c.serve(r.Context()); err != nil {
		log.Printf("Connection %s: closed with error: %v", c.id, err)
		conn.Close(websocket.StatusInternalError, "negotiation error")
		return
	}
	conn.Close(websocket.StatusNormalClosure, "negotiation finished")
}

// connection is one platform session driving one party.
type connection struct {
	server   *Server
	conn     *websocket.Conn
	id       uuid.UUID
	subject  string
	party    *strategy.Party
	clock    *engine.ExternalTimeline // nil when the server owns the clock
}

// serve runs the message loop until the negotiation finishes or the peer leaves.
func (c *connection) serve(ctx context.Context) error {
	seed := c.server.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	var timeline engine.Timeline
	if c.server.Deadline > 0 {
		timeline = engine.NewContinuousTimeline(c.server.Deadline, nil)
	} else {
		c.clock = &engine.ExternalTimeline{}
		timeline = c.clock
	}
	domain := c.server.Space.Domain()
	partyID := "negotiator-" + c.id.String()[:8]
	logger := log.WithFields(log.Fields{"connection": c.id, "platform": c.subject})
	party, err := strategy.NewParty(partyID, c.server.Space,
		engine.NewUniformBidGenerator(domain, seed), timeline, c.server.Params, logger)
	if err != nil {
		return fmt.Errorf("create party: %w", err)
	}
	c.party = party
	log.Printf("Connection %s: party %s ready for %s.", c.id, partyID, c.subject)

	if err := c.write(ctx, OutboundMessage{Type: MsgReady, Party: partyID, Description: party.Description()}); err != nil {
		return err
	}

	for {
		var msg InboundMessage
		if err := c.read(ctx, &msg); err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure || errors.Is(err, context.Canceled) {
				log.Printf("Connection %s: platform closed the session.", c.id)
				return nil
			}
			return err
		}
		done, err := c.handle(ctx, msg)
		if err != nil {
			return err
		}
		if done {
			log.Printf("Connection %s: negotiation over (party state %s).", c.id, c.party.State())
			return nil
		}
	}
}

// handle processes one inbound message and reports whether the negotiation is over.
func (c *connection) handle(ctx context.Context, msg InboundMessage) (bool, error) {
	if msg.Time != nil && c.clock != nil {
		c.clock.Set(*msg.Time)
	}
	actor := msg.Actor
	if actor == "" {
		actor = "opponent"
	}

	if msg.Type == MsgChoose {
		act := c.party.ChooseAction()
		out := OutboundMessage{Type: act.Type.String(), Party: act.Actor, State: c.party.State().String()}
		if act.Type != engine.ActionEndNegotiation {
			bid := act.Bid
			out.Bid = &bid
		}
		if err := c.write(ctx, out); err != nil {
			return false, err
		}
		return c.party.State().Terminal(), nil
	}

	actionType, err := engine.ParseActionType(msg.Type)
	if err != nil {
		return false, c.reject(ctx, fmt.Sprintf("unknown message type %q", msg.Type))
	}
	switch actionType {
	case engine.ActionOffer:
		if msg.Bid == nil {
			return false, c.reject(ctx, "offer without a bid")
		}
		if err := msg.Bid.Validate(c.server.Space.Domain()); err != nil {
			return false, c.reject(ctx, err.Error())
		}
		if err := c.party.ReceiveAction(engine.NewOffer(actor, *msg.Bid)); err != nil {
			return false, c.reject(ctx, err.Error())
		}
		return false, c.ack(ctx)

	default:
		var act engine.Action
		if actionType == engine.ActionAccept {
			var bid engine.Bid
			if msg.Bid != nil {
				bid = *msg.Bid
			}
			act = engine.NewAccept(actor, bid)
		} else {
			act = engine.NewEndNegotiation(actor)
		}
		if err := c.party.ReceiveAction(act); err != nil {
			return false, c.reject(ctx, err.Error())
		}
		return true, c.ack(ctx)
	}
}

func (c *connection) ack(ctx context.Context) error {
	return c.write(ctx, OutboundMessage{Type: MsgAck, State: c.party.State().String()})
}

func (c *connection) reject(ctx context.Context, reason string) error {
	log.Warnf("Connection %s: rejected message: %s", c.id, reason)
	return c.write(ctx, OutboundMessage{Type: MsgError, Error: reason})
}

func (c *connection) read(ctx context.Context, v interface{}) error {
	if c.server.ReadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.server.ReadTimeout)
		defer cancel()
	}
	return wsjson.Read(ctx, c.conn, v)
}

func (c *connection) write(ctx context.Context, v interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return wsjson.Write(ctx, c.conn, v)
}
