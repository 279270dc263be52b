// Package cache ships the match action trail to Redis. Actions are
// pushed onto a single queue that the history consumer drains, so a
// slow consumer never blocks live matches.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/tessera-gg/server/internal/models"
)

// ActionQueueKey is the Redis list the history consumer reads from.
const ActionQueueKey = "tessera:match_actions"

// actionQueueCap bounds the queue so an absent consumer cannot grow it
// without limit. Oldest entries are dropped first.
const actionQueueCap = 100_000

// AuditQueue records match actions into Redis.
type AuditQueue struct {
	rdb *redis.Client
	log logrus.FieldLogger
}

// New connects to Redis at the given URL and verifies the connection.
func New(ctx context.Context, url string, log logrus.FieldLogger) (*AuditQueue, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("cache: parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("cache: redis ping: %w", err)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &AuditQueue{rdb: rdb, log: log}, nil
}

// RecordAction appends one action to the trail.
func (q *AuditQueue) RecordAction(ctx context.Context, action models.GameAction) error {
	if action.Timestamp.IsZero() {
		action.Timestamp = time.Now()
	}
	data, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("cache: marshal action: %w", err)
	}
	pipe := q.rdb.TxPipeline()
	pipe.RPush(ctx, ActionQueueKey, data)
	pipe.LTrim(ctx, ActionQueueKey, -actionQueueCap, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache: push action: %w", err)
	}
	return nil
}

// QueueLen reports the number of unconsumed actions.
func (q *AuditQueue) QueueLen(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, ActionQueueKey).Result()
}

// Close releases the underlying Redis connection.
func (q *AuditQueue) Close() error {
	return q.rdb.Close()
}
