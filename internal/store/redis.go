package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const liveKeyPrefix = "qrclass:live:"

// Redis wraps the redis client.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects to redis with short timeouts.
func NewRedis(addr string) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
	return &Redis{Client: client}
}

// Healthy verifies redis connectivity.
func (r *Redis) Healthy(ctx context.Context) bool {
	if r == nil || r.Client == nil {
		return false
	}
	return r.Client.Ping(ctx).Err() == nil
}

// IncrLive bumps the live scan counter for a session. The counter is an
// operational convenience maintained by the worker; the ledger remains the
// source of truth.
func (r *Redis) IncrLive(ctx context.Context, sessionID string) error {
	return r.Client.Incr(ctx, liveKeyPrefix+sessionID).Err()
}

// LiveCount reads the live scan counter for a session. A missing key reads
// as zero.
func (r *Redis) LiveCount(ctx context.Context, sessionID string) (int64, error) {
	n, err := r.Client.Get(ctx, liveKeyPrefix+sessionID).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}

// ResetLive clears the live scan counter, used when a session is deleted.
func (r *Redis) ResetLive(ctx context.Context, sessionID string) error {
	return r.Client.Del(ctx, liveKeyPrefix+sessionID).Err()
}
