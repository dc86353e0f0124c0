// internal/server/server_test.go
package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	engine "github.com/jason-s-yu/negotiator/engine"
	"github.com/jason-s-yu/negotiator/internal/auth"
	"github.com/jason-s-yu/negotiator/internal/profile"
	"github.com/jason-s-yu/negotiator/internal/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	msgOffer  = engine.ActionOffer.String()
	msgAccept = engine.ActionAccept.String()
	msgEnd    = engine.ActionEndNegotiation.String()
)

func newTestServer(t *testing.T, secret []byte, opts ...func(*Server)) (*Server, *httptest.Server) {
	t.Helper()
	space, err := profile.LoadSpace(filepath.Join("..", "..", "profiles", "party_a.yaml"))
	require.NoError(t, err)
	s := &Server{Space: space, Params: strategy.DefaultParams(), Secret: secret, Seed: 42, ReadTimeout: 5 * time.Second}
	for _, opt := range opts {
		opt(s)
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func dial(t *testing.T, ts *httptest.Server, header http.Header) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/negotiate"
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: header})
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, msg InboundMessage) OutboundMessage {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, wsjson.Write(ctx, conn, msg))
	var out OutboundMessage
	require.NoError(t, wsjson.Read(ctx, conn, &out))
	return out
}

func readReady(t *testing.T, conn *websocket.Conn) OutboundMessage {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var ready OutboundMessage
	require.NoError(t, wsjson.Read(ctx, conn, &ready))
	require.Equal(t, MsgReady, ready.Type)
	return ready
}

func timeAt(v float64) *float64 { return &v }

func TestNegotiateOverWebsocket(t *testing.T) {
	s, ts := newTestServer(t, nil)
	conn := dial(t, ts, nil)

	ready := readReady(t, conn)
	assert.True(t, strings.HasPrefix(ready.Party, "negotiator-"))
	assert.Equal(t, strategy.Description, ready.Description)
	assert.Equal(t, int64(1), s.Active())

	// Opening move is the max-utility bid.
	out := roundTrip(t, conn, InboundMessage{Type: MsgChoose, Time: timeAt(0)})
	require.Equal(t, msgOffer, out.Type)
	require.NotNil(t, out.Bid)
	maxBid, err := s.Space.MaxUtilityBid()
	require.NoError(t, err)
	assert.True(t, out.Bid.Equal(maxBid))

	// The opponent offers our best bid; at the deadline we accept it.
	out = roundTrip(t, conn, InboundMessage{Type: msgOffer, Bid: &maxBid})
	assert.Equal(t, MsgAck, out.Type)
	assert.Equal(t, "deciding", out.State)

	out = roundTrip(t, conn, InboundMessage{Type: MsgChoose, Time: timeAt(0.95)})
	assert.Equal(t, msgAccept, out.Type)
	assert.True(t, out.Bid.Equal(maxBid))
	assert.Equal(t, "accepted", out.State)
}

func TestNegotiateOnServerDeadline(t *testing.T) {
	s, ts := newTestServer(t, nil, func(s *Server) { s.Deadline = time.Nanosecond })
	conn := dial(t, ts, nil)
	readReady(t, conn)

	maxBid, err := s.Space.MaxUtilityBid()
	require.NoError(t, err)
	out := roundTrip(t, conn, InboundMessage{Type: msgOffer, Bid: &maxBid})
	require.Equal(t, MsgAck, out.Type)

	// The wall-clock deadline has passed, so the platform time is ignored.
	out = roundTrip(t, conn, InboundMessage{Type: MsgChoose, Time: timeAt(0)})
	assert.Equal(t, msgAccept, out.Type)
	assert.Equal(t, "accepted", out.State)
}

func TestNegotiateRejectsBadMessages(t *testing.T) {
	_, ts := newTestServer(t, nil)
	conn := dial(t, ts, nil)
	readReady(t, conn)

	out := roundTrip(t, conn, InboundMessage{Type: "haggle"})
	assert.Equal(t, MsgError, out.Type)

	out = roundTrip(t, conn, InboundMessage{Type: msgOffer})
	assert.Equal(t, MsgError, out.Type)

	partial := engine.Bid{}
	out = roundTrip(t, conn, InboundMessage{Type: msgOffer, Bid: &partial})
	assert.Equal(t, MsgError, out.Type)
	assert.NotEmpty(t, out.Error)

	// The party is still usable afterwards.
	out = roundTrip(t, conn, InboundMessage{Type: MsgChoose, Time: timeAt(0.2)})
	assert.Equal(t, msgOffer, out.Type)
}

func TestNegotiateEndsWhenOpponentWithdraws(t *testing.T) {
	_, ts := newTestServer(t, nil)
	conn := dial(t, ts, nil)
	readReady(t, conn)

	out := roundTrip(t, conn, InboundMessage{Type: msgEnd})
	assert.Equal(t, MsgAck, out.Type)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var next OutboundMessage
	err := wsjson.Read(ctx, conn, &next)
	assert.Equal(t, websocket.StatusNormalClosure, websocket.CloseStatus(err))
}

func TestNegotiateRequiresToken(t *testing.T) {
	secret := []byte("server-secret")
	_, ts := newTestServer(t, secret)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/negotiate"
	_, resp, err := websocket.Dial(ctx, url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	tok, err := auth.IssueToken(secret, "platform-1", time.Minute)
	require.NoError(t, err)
	conn := dial(t, ts, http.Header{"Authorization": []string{"Bearer " + tok}})
	readReady(t, conn)
}

func TestHealthz(t *testing.T) {
	_, ts := newTestServer(t, nil)
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
