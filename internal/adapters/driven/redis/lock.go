package redis

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/credgate/internal/core/domain"
	"github.com/custodia-labs/credgate/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DistributedLock = (*Lock)(nil)

// Lock is a DistributedLock held as a Redis key with a TTL.
// The value is this instance's token, so only the holder can extend or drop it.
type Lock struct {
	client *redis.Client
	token  string
}

// NewLock creates a lock handle with a token unique to this process
func NewLock(client *redis.Client) *Lock {
	host, _ := os.Hostname()
	suffix := make([]byte, 8)
	_, _ = rand.Read(suffix)
	return &Lock{
		client: client,
		token:  fmt.Sprintf("%s:%d:%s", host, os.Getpid(), hex.EncodeToString(suffix)),
	}
}

func lockKey(name string) string {
	return "credgate:lock:" + name
}

// Both scripts act only while KEYS[1] still holds ARGV[1]
var (
	extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) ~= ARGV[1] then
	return 0
end
return redis.call("PEXPIRE", KEYS[1], ARGV[2])
`)

	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) ~= ARGV[1] then
	return 0
end
return redis.call("DEL", KEYS[1])
`)
)

// Acquire sets the key if it is absent
func (l *Lock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, lockKey(name), l.token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	return ok, nil
}

// Extend resets the TTL of a lock this instance still holds
func (l *Lock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	n, err := extendScript.Run(ctx, l.client, []string{lockKey(name)}, l.token, ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("extend lock %s: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("extend lock %s: %w", name, domain.ErrLockNotHeld)
	}
	return nil
}

// Release deletes the key if this instance holds it.
// A lock that expired or belongs to someone else is left alone.
func (l *Lock) Release(ctx context.Context, name string) error {
	if err := releaseScript.Run(ctx, l.client, []string{lockKey(name)}, l.token).Err(); err != nil {
		return fmt.Errorf("release lock %s: %w", name, err)
	}
	return nil
}

// Ping checks if the Redis backend is healthy.
func (l *Lock) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}
