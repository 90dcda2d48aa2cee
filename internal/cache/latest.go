package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smukkama/water-quality-server/internal/database"
)

const (
	latestReadingKey    = "water:latest_reading"
	latestPredictionKey = "water:latest_prediction"

	// optimistic transaction attempts before giving up on a contended key
	maxSetAttempts = 5
)

// ErrContended is returned when a key kept changing under a conditional set
var ErrContended = errors.New("cache key changed during update")

// LatestState caches the most recent reading and prediction in Redis.
// A set never replaces an entry with an older timestamp, so a slow reader
// cannot put back a value a writer has already superseded. Entries expire
// after ttl.
type LatestState struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewLatestState creates a cache over an existing client
func NewLatestState(redisClient *redis.Client, ttl time.Duration) *LatestState {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &LatestState{redis: redisClient, ttl: ttl}
}

// Connect dials Redis and verifies the connection
func Connect(ctx context.Context, addr, password string, db int, ttl time.Duration) (*LatestState, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewLatestState(client, ttl), nil
}

// Close releases the underlying client
func (c *LatestState) Close() error {
	return c.redis.Close()
}

// GetLatestReading returns the cached reading, or nil on a miss
func (c *LatestState) GetLatestReading(ctx context.Context) (*database.Reading, error) {
	var r database.Reading
	found, err := c.get(ctx, latestReadingKey, &r)
	if err != nil || !found {
		return nil, err
	}
	return &r, nil
}

// SetLatestReading stores r unless the cached reading is newer
func (c *LatestState) SetLatestReading(ctx context.Context, r *database.Reading) error {
	return c.setIfNewer(ctx, latestReadingKey, r, r.Timestamp)
}

// GetLatestPrediction returns the cached prediction, or nil on a miss
func (c *LatestState) GetLatestPrediction(ctx context.Context) (*database.DiseaseRiskPrediction, error) {
	var p database.DiseaseRiskPrediction
	found, err := c.get(ctx, latestPredictionKey, &p)
	if err != nil || !found {
		return nil, err
	}
	return &p, nil
}

// SetLatestPrediction stores p unless the cached prediction is newer
func (c *LatestState) SetLatestPrediction(ctx context.Context, p *database.DiseaseRiskPrediction) error {
	return c.setIfNewer(ctx, latestPredictionKey, p, p.Timestamp)
}

func (c *LatestState) get(ctx context.Context, key string, dest any) (bool, error) {
	data, err := c.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get %s from Redis: %w", key, err)
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return true, nil
}

// stamped reads only the timestamp of a cached entry
type stamped struct {
	Timestamp time.Time `json:"timestamp"`
}

func (c *LatestState) setIfNewer(ctx context.Context, key string, value any, ts time.Time) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}

	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		if err != nil && err != redis.Nil {
			return err
		}
		if err == nil {
			var cached stamped
			if json.Unmarshal(current, &cached) == nil && cached.Timestamp.After(ts) {
				return nil
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, c.ttl)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxSetAttempts; attempt++ {
		err := c.redis.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return fmt.Errorf("failed to set %s in Redis: %w", key, err)
		}
	}
	return fmt.Errorf("failed to set %s in Redis: %w", key, ErrContended)
}
