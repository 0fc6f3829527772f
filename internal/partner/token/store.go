package token

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Entry is a cached token and the instant it stops being usable.
type Entry struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store caches tokens keyed by credential id. Implementations must be safe
// for concurrent use.
type Store interface {
	Get(ctx context.Context, credentialID string) (Entry, bool, error)
	Set(ctx context.Context, credentialID string, entry Entry) error
	Delete(ctx context.Context, credentialID string) error
}

type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (s *MemoryStore) Get(_ context.Context, credentialID string) (Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[credentialID]
	return entry, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, credentialID string, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[credentialID] = entry
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, credentialID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, credentialID)
	return nil
}

const redisKeyPrefix = "orderbridge:partner:token:"

// RedisStore shares tokens between worker replicas. Keys expire with the
// token so stale entries never outlive their validity.
type RedisStore struct {
	client redis.UniversalClient
	now    func() time.Time
}

func NewRedisStore(client redis.UniversalClient, now func() time.Time) *RedisStore {
	if now == nil {
		now = time.Now
	}
	return &RedisStore{client: client, now: now}
}

func (s *RedisStore) Get(ctx context.Context, credentialID string) (Entry, bool, error) {
	raw, err := s.client.Get(ctx, redisKeyPrefix+credentialID).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return Entry{}, false, nil
	}
	return entry, true, nil
}

func (s *RedisStore) Set(ctx context.Context, credentialID string, entry Entry) error {
	ttl := entry.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return s.Delete(ctx, credentialID)
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, redisKeyPrefix+credentialID, raw, ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, credentialID string) error {
	return s.client.Del(ctx, redisKeyPrefix+credentialID).Err()
}
