// internal/database/db.go
package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	engine "github.com/jason-s-yu/negotiator/engine"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

// DB is the shared connection pool. It stays nil when no database URL is
// configured, and callers skip persistence in that case.
var DB *pgxpool.Pool

// ErrNotConnected is returned when querying without a pool.
var ErrNotConnected = errors.New("database pool not connected")

// ErrOutcomeNotFound is returned when no outcome is stored for a session.
var ErrOutcomeNotFound = errors.New("session outcome not found")

const schema = `
CREATE TABLE IF NOT EXISTS negotiation_sessions (
	id           UUID PRIMARY KEY,
	domain       TEXT NOT NULL,
	party_a      TEXT NOT NULL,
	party_b      TEXT NOT NULL,
	agreement    BOOLEAN NOT NULL,
	agreed_bid   JSONB,
	utility_a    DOUBLE PRECISION NOT NULL,
	utility_b    DOUBLE PRECISION NOT NULL,
	rounds       INTEGER NOT NULL,
	ended_by     TEXT NOT NULL,
	violation    TEXT NOT NULL DEFAULT '',
	started_at   TIMESTAMPTZ NOT NULL,
	ended_at     TIMESTAMPTZ NOT NULL
)`

// SessionOutcome is the persisted summary of one finished session.
type SessionOutcome struct {
	SessionID uuid.UUID
	Domain    string
	Parties   [2]string
	Agreement bool
	AgreedBid engine.Bid // zero when there was no agreement
	Utilities [2]float64 // each party's own utility of the agreement, 0 without one
	Rounds    int
	EndedBy   string // party ID, or "deadline"
	Violation string // protocol violation description, if any
	StartedAt time.Time
	EndedAt   time.Time
}

// Connect creates the pool from url and pings it. An empty url leaves DB nil.
func Connect(ctx context.Context, url string) error {
	if url == "" {
		log.Info("Database URL not configured; outcome persistence disabled.")
		return nil
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("ping database: %w", err)
	}
	DB = pool
	log.Info("Connected to Postgres.")
	return nil
}

// Close releases the shared pool.
func Close() {
	if DB != nil {
		DB.Close()
		DB = nil
	}
}

// EnsureSchema creates the outcome table if it does not exist.
func EnsureSchema(ctx context.Context) error {
	if DB == nil {
		return ErrNotConnected
	}
	if _, err := DB.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// StoreSessionOutcome upserts the outcome of a session.
func StoreSessionOutcome(ctx context.Context, o SessionOutcome) error {
	if DB == nil {
		return ErrNotConnected
	}
	var bid []byte
	if o.Agreement {
		var err error
		if bid, err = json.Marshal(o.AgreedBid); err != nil {
			return fmt.Errorf("marshal agreed bid: %w", err)
		}
	}
	_, err := DB.Exec(ctx, `
		INSERT INTO negotiation_sessions
			(id, domain, party_a, party_b, agreement, agreed_bid, utility_a, utility_b,
			 rounds, ended_by, violation, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			agreement = EXCLUDED.agreement,
			agreed_bid = EXCLUDED.agreed_bid,
			utility_a = EXCLUDED.utility_a,
			utility_b = EXCLUDED.utility_b,
			rounds = EXCLUDED.rounds,
			ended_by = EXCLUDED.ended_by,
			violation = EXCLUDED.violation,
			ended_at = EXCLUDED.ended_at`,
		o.SessionID, o.Domain, o.Parties[0], o.Parties[1], o.Agreement, bid,
		o.Utilities[0], o.Utilities[1], o.Rounds, o.EndedBy, o.Violation, o.StartedAt, o.EndedAt)
	if err != nil {
		return fmt.Errorf("store outcome for session %s: %w", o.SessionID, err)
	}
	return nil
}

// GetSessionOutcome loads a stored outcome. The agreed bid is decoded without
// domain validation.
func GetSessionOutcome(ctx context.Context, id uuid.UUID) (SessionOutcome, error) {
	if DB == nil {
		return SessionOutcome{}, ErrNotConnected
	}
	o := SessionOutcome{SessionID: id}
	var bid []byte
	err := DB.QueryRow(ctx, `
		SELECT domain, party_a, party_b, agreement, agreed_bid, utility_a, utility_b,
		       rounds, ended_by, violation, started_at, ended_at
		FROM negotiation_sessions WHERE id = $1`, id).Scan(
		&o.Domain, &o.Parties[0], &o.Parties[1], &o.Agreement, &bid,
		&o.Utilities[0], &o.Utilities[1], &o.Rounds, &o.EndedBy, &o.Violation, &o.StartedAt, &o.EndedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return SessionOutcome{}, fmt.Errorf("%w: %s", ErrOutcomeNotFound, id)
	}
	if err != nil {
		return SessionOutcome{}, fmt.Errorf("load outcome for session %s: %w", id, err)
	}
	if len(bid) > 0 {
		if err := json.Unmarshal(bid, &o.AgreedBid); err != nil {
			return SessionOutcome{}, fmt.Errorf("decode agreed bid: %w", err)
		}
	}
	return o, nil
}
