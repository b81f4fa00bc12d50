// Package presence contains the Redis-backed presence directory used when
// the relay runs as multiple processes behind one broker.
package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/biohack5079/cnc/pkg/signal"
)

// redisClient defines the interface we need from go-redis.
type redisClient interface {
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	HDel(ctx context.Context, key string, fields ...string) *redis.IntCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// RedisDirectory implements signal.PresenceDirectory on a Redis hash per
// identity: one field per connection ID, holding ConnectionInfo JSON.
// Removing the last field deletes the hash, so presence is simply key
// existence.
//
// The directory is approximate: a crashed instance never removes its fields,
// so a key TTL (refreshed on every join) bounds how long stale presence can
// survive. A stale positive only costs one silently-dropped live delivery.
type RedisDirectory struct {
	client     redisClient
	ttl        time.Duration
	instanceID string
	logger     zerolog.Logger
}

// NewRedisDirectory is the constructor for the RedisDirectory.
func NewRedisDirectory(client redisClient, ttl time.Duration, instanceID string, logger zerolog.Logger) (*RedisDirectory, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("presence ttl must be positive")
	}
	return &RedisDirectory{
		client:     client,
		ttl:        ttl,
		instanceID: instanceID,
		logger:     logger.With().Str("component", "RedisDirectory").Logger(),
	}, nil
}

// Join records the connection under the identity and refreshes the key TTL.
func (d *RedisDirectory) Join(ctx context.Context, identity string, member signal.Member) error {
	info := signal.ConnectionInfo{
		ServerInstanceID: d.instanceID,
		ConnectedAt:      time.Now().Unix(),
	}
	payload, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal connection info: %w", err)
	}

	key := presenceKey(identity)
	if err := d.client.HSet(ctx, key, member.ID(), payload).Err(); err != nil {
		return fmt.Errorf("failed to record presence: %w", err)
	}
	if err := d.client.Expire(ctx, key, d.ttl).Err(); err != nil {
		d.logger.Warn().Err(err).Str("identity", identity).Msg("Failed to refresh presence TTL")
	}
	return nil
}

// Leave removes the connection's field. Redis drops the hash when its last
// field goes, so no separate cleanup is needed.
func (d *RedisDirectory) Leave(ctx context.Context, identity string, member signal.Member) error {
	if err := d.client.HDel(ctx, presenceKey(identity), member.ID()).Err(); err != nil {
		return fmt.Errorf("failed to remove presence: %w", err)
	}
	return nil
}

// IsPresent reports whether any connection currently claims the identity.
func (d *RedisDirectory) IsPresent(ctx context.Context, identity string) (bool, error) {
	n, err := d.client.Exists(ctx, presenceKey(identity)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check presence: %w", err)
	}
	return n > 0, nil
}

func presenceKey(identity string) string { return "presence:" + identity }
