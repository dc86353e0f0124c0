// internal/database/db_test.go
package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	engine "github.com/jason-s-yu/negotiator/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithoutPool(t *testing.T) {
	DB = nil
	ctx := context.Background()
	assert.ErrorIs(t, EnsureSchema(ctx), ErrNotConnected)
	assert.ErrorIs(t, StoreSessionOutcome(ctx, SessionOutcome{}), ErrNotConnected)
	_, err := GetSessionOutcome(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotConnected)

	require.NoError(t, Connect(ctx, ""))
	assert.Nil(t, DB)
}

// TestOutcomeRoundTrip needs a live Postgres; set DATABASE_URL to run it.
func TestOutcomeRoundTrip(t *testing.T) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, Connect(ctx, url))
	t.Cleanup(Close)
	require.NoError(t, EnsureSchema(ctx))

	d, err := engine.NewDomain("party", []engine.Issue{{Number: 1, Name: "Music", Values: []engine.Value{"Band", "DJ"}}})
	require.NoError(t, err)
	bid, err := engine.NewBid(d, map[int]engine.Value{1: "DJ"})
	require.NoError(t, err)

	start := time.Now().UTC().Truncate(time.Millisecond)
	out := SessionOutcome{
		SessionID: uuid.New(),
		Domain:    "party",
		Parties:   [2]string{"host", "guest"},
		Agreement: true,
		AgreedBid: bid,
		Utilities: [2]float64{0.7, 0.6},
		Rounds:    12,
		EndedBy:   "guest",
		StartedAt: start,
		EndedAt:   start.Add(time.Second),
	}
	require.NoError(t, StoreSessionOutcome(ctx, out))
	t.Cleanup(func() {
		DB.Exec(context.Background(), "DELETE FROM negotiation_sessions WHERE id = $1", out.SessionID)
	})

	got, err := GetSessionOutcome(ctx, out.SessionID)
	require.NoError(t, err)
	assert.True(t, got.AgreedBid.Equal(bid))
	assert.Equal(t, out.Parties, got.Parties)
	assert.Equal(t, 12, got.Rounds)
	assert.True(t, got.StartedAt.Equal(start))

	_, err = GetSessionOutcome(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrOutcomeNotFound)
}
