package engine

import "fmt"

// ActionType is the kind of move a party makes on its turn.
type ActionType uint8

const (
	ActionOffer          ActionType = iota // 0: propose a bid
	ActionAccept                           // 1: accept the opponent's last bid
	ActionEndNegotiation                   // 2: withdraw without agreement
)

// String returns the wire name of the action type.
func (t ActionType) String() string {
	switch t {
	case ActionOffer:
		return "offer"
	case ActionAccept:
		return "accept"
	case ActionEndNegotiation:
		return "end"
	default:
		return fmt.Sprintf("ActionType(%d)", uint8(t))
	}
}

// ParseActionType maps a wire name back to its ActionType.
func ParseActionType(s string) (ActionType, error) {
	switch s {
	case "offer":
		return ActionOffer, nil
	case "accept":
		return ActionAccept, nil
	case "end":
		return ActionEndNegotiation, nil
	}
	return 0, fmt.Errorf("unknown action type %q", s)
}

// Action is one move by one party.
//   - ActionOffer: Bid is the proposal.
//   - ActionAccept: Bid is the accepted bid (the opponent's last offer).
//   - ActionEndNegotiation: Bid is empty.
type Action struct {
	Type  ActionType
	Actor string
	Bid   Bid
}

// NewOffer proposes bid.
func NewOffer(actor string, bid Bid) Action {
	return Action{Type: ActionOffer, Actor: actor, Bid: bid}
}

// NewAccept accepts bid.
func NewAccept(actor string, bid Bid) Action {
	return Action{Type: ActionAccept, Actor: actor, Bid: bid}
}

// NewEndNegotiation withdraws from the session.
func NewEndNegotiation(actor string) Action {
	return Action{Type: ActionEndNegotiation, Actor: actor}
}

// String renders the action for logs.
func (a Action) String() string {
	if a.Type == ActionEndNegotiation {
		return fmt.Sprintf("%s(%s)", a.Type, a.Actor)
	}
	return fmt.Sprintf("%s(%s, %s)", a.Type, a.Actor, a.Bid)
}
