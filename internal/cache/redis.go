// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jason-s-yu/negotiator/internal/config"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Rdb is the shared Redis client. It stays nil when no Redis address is configured,
// and callers skip action logging in that case.
var Rdb *redis.Client

// QueueKey is the Redis list the historian consumes session actions from.
var QueueKey = "negotiation_actions"

// ErrNotConnected is returned when publishing without a client.
var ErrNotConnected = errors.New("redis client not connected")

// SessionActionRecord is one entry of a session's action log.
type SessionActionRecord struct {
	SessionID     uuid.UUID              `json:"sessionId"`
	ActionIndex   int                    `json:"actionIndex"`   // 1-based, in the order actions happened.
	Actor         string                 `json:"actor"`         // Party ID; empty for session events.
	ActionType    string                 `json:"actionType"`    // offer, accept, end, or a session event type.
	Round         int                    `json:"round"`         // Completed rounds when the action was taken.
	Time          float64                `json:"time"`          // Normalized session time.
	ActionPayload map[string]interface{} `json:"actionPayload"` // Bid, utilities and similar details.
	Timestamp     int64                  `json:"timestamp"`     // Unix milliseconds.
}

// Connect creates Rdb from cfg and pings it. An empty address leaves Rdb nil.
func Connect(ctx context.Context, cfg config.RedisConfig) error {
	if cfg.Addr == "" {
		log.Info("Redis address not configured; session action logging disabled.")
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	if cfg.Queue != "" {
		QueueKey = cfg.Queue
	}
	Rdb = client
	log.Infof("Connected to Redis at %s (queue %s).", cfg.Addr, QueueKey)
	return nil
}

// Close releases the shared client.
func Close() {
	if Rdb == nil {
		return
	}
	if err := Rdb.Close(); err != nil {
		log.Warnf("Error closing Redis client: %v", err)
	}
	Rdb = nil
}

// PublishSessionAction appends rec to the historian queue.
func PublishSessionAction(ctx context.Context, rec SessionActionRecord) error {
	if Rdb == nil {
		return ErrNotConnected
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal action %d: %w", rec.ActionIndex, err)
	}
	return Rdb.RPush(ctx, QueueKey, data).Err()
}

// SessionActions reads back the queued records of one session, oldest first.
// The historian drains the queue, so this only sees entries not yet consumed.
func SessionActions(ctx context.Context, sessionID uuid.UUID) ([]SessionActionRecord, error) {
	if Rdb == nil {
		return nil, ErrNotConnected
	}
	raw, err := Rdb.LRange(ctx, QueueKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	var out []SessionActionRecord
	for _, item := range raw {
		var rec SessionActionRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("decode queued action: %w", err)
		}
		if rec.SessionID == sessionID {
			out = append(out, rec)
		}
	}
	return out, nil
}
