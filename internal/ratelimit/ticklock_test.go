package ratelimit

import (
	"context"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/orderbridge/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickLock_DisabledWithoutRedis(t *testing.T) {
	lock := NewTickLock(nil, config.Config{})
	assert.Nil(t, lock)

	assert.NoError(t, lock.Release(context.Background(), "owner"))
	_, ok, err := lock.Acquire(context.Background())
	assert.False(t, ok)
	assert.Error(t, err)
	assert.Zero(t, lock.TTL())
}

func TestTickLock_LeaseCoversTickTimeout(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })

	lock := NewTickLock(client, config.Config{Scheduler: config.SchedulerConfig{
		TickTimeout: 5 * time.Minute,
		LockTTL:     2 * time.Minute,
	}})
	require.NotNil(t, lock)
	assert.Equal(t, TickLockKey, lock.key)
	assert.Equal(t, 5*time.Minute, lock.TTL())
}

func TestTickLockTTL(t *testing.T) {
	cases := []struct {
		name string
		cfg  config.SchedulerConfig
		want time.Duration
	}{
		{name: "default", cfg: config.SchedulerConfig{}, want: 2 * time.Minute},
		{name: "configured", cfg: config.SchedulerConfig{LockTTL: 10 * time.Minute, TickTimeout: time.Minute}, want: 10 * time.Minute},
		{name: "raised to tick timeout", cfg: config.SchedulerConfig{LockTTL: time.Minute, TickTimeout: 10 * time.Minute}, want: 10 * time.Minute},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tickLockTTL(tc.cfg))
		})
	}
}

func TestTickLock_ReleaseWithoutTokenIsNoop(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })

	lock := NewTickLock(client, config.Config{})
	assert.NoError(t, lock.Release(context.Background(), ""))
}
