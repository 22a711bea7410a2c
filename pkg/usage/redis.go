package usage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/gallerybilling/pkg/subscription"
)

// RedisConfig configures the snapshot cache connection.
type RedisConfig struct {
	ConnectionURL  string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"` // Format: "redis://:password@localhost:6379/0"
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"5s"`
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`
	SnapshotTTL    time.Duration `env:"USAGE_SNAPSHOT_TTL" envDefault:"2m"`
}

// ConnectRedis dials Redis, retrying until the server answers a ping.
func ConnectRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	opts, err := redis.ParseURL(cfg.ConnectionURL)
	if err != nil {
		return nil, errors.Join(ErrFailedToParseRedisURL, err)
	}

	for range max(cfg.RetryAttempts, 1) {
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err == nil {
			return client, nil
		}
		_ = client.Close()

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrRedisNotReady, ctx.Err())
		case <-time.After(cfg.RetryInterval):
		}
	}
	return nil, ErrRedisNotReady
}

// RedisHealthcheck returns a closure that pings the server.
func RedisHealthcheck(client redis.UniversalClient) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := client.Ping(ctx).Err(); err != nil {
			return errors.Join(ErrRedisHealthcheck, err)
		}
		return nil
	}
}

// SnapshotCache memoizes usage snapshots in Redis.
type SnapshotCache struct {
	client redis.Cmdable
	ttl    time.Duration
	prefix string
}

// NewSnapshotCache creates a cache with the given entry lifetime.
func NewSnapshotCache(client redis.Cmdable, ttl time.Duration) *SnapshotCache {
	if client == nil {
		panic("usage: redis client cannot be nil")
	}
	return &SnapshotCache{client: client, ttl: ttl, prefix: "billing:usage:"}
}

func (c *SnapshotCache) key(userID uuid.UUID, since time.Time) string {
	return fmt.Sprintf("%s%s:%d", c.prefix, userID, since.Unix())
}

// Get returns the cached snapshot. A miss is (zero, false, nil).
func (c *SnapshotCache) Get(ctx context.Context, userID uuid.UUID, since time.Time) (subscription.UsageSnapshot, bool, error) {
	raw, err := c.client.Get(ctx, c.key(userID, since)).Bytes()
	if errors.Is(err, redis.Nil) {
		return subscription.UsageSnapshot{}, false, nil
	}
	if err != nil {
		return subscription.UsageSnapshot{}, false, err
	}
	var snap subscription.UsageSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return subscription.UsageSnapshot{}, false, errors.Join(ErrCacheEntryUnreadable, err)
	}
	return snap, true, nil
}

// Set stores snap for the user with the cache TTL.
func (c *SnapshotCache) Set(ctx context.Context, userID uuid.UUID, snap subscription.UsageSnapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(userID, snap.Since), raw, c.ttl).Err()
}
