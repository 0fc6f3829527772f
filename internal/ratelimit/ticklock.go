package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/orderbridge/internal/config"
)

const (
	TickLockKey = "orderbridge:scheduler:tick"

	defaultTickLockTTL = 2 * time.Minute
)

// Compare-and-delete so a worker whose lease expired cannot free the
// lease another worker now holds.
var releaseTickScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// TickLock is the cross-worker lease a scheduler tick runs under. At most one
// worker sharing the redis instance polls partners per tick.
type TickLock struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

// NewTickLock returns nil when redis is disabled; the scheduler then relies on
// its in-process guard alone.
func NewTickLock(client redis.UniversalClient, cfg config.Config) *TickLock {
	if client == nil {
		return nil
	}
	return &TickLock{
		client: client,
		key:    TickLockKey,
		ttl:    tickLockTTL(cfg.Scheduler),
	}
}

// tickLockTTL never lets the lease run out before a tick can time out,
// otherwise a slow tick would overlap the next worker's.
func tickLockTTL(cfg config.SchedulerConfig) time.Duration {
	ttl := cfg.LockTTL
	if ttl <= 0 {
		ttl = defaultTickLockTTL
	}
	if ttl < cfg.TickTimeout {
		ttl = cfg.TickTimeout
	}
	return ttl
}

func (l *TickLock) TTL() time.Duration {
	if l == nil {
		return 0
	}
	return l.ttl
}

// Acquire returns the lease token and whether this worker now owns the tick.
func (l *TickLock) Acquire(ctx context.Context) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", false, errors.New("tick lock not configured")
	}
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

// Release frees the lease only if token still owns it.
func (l *TickLock) Release(ctx context.Context, token string) error {
	if l == nil || l.client == nil || token == "" {
		return nil
	}
	return releaseTickScript.Run(ctx, l.client, []string{l.key}, token).Err()
}
