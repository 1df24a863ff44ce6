// Package idempotency records idempotency keys so a repeated enrollment request is not applied twice.
package idempotency

import (
	"context"
	"sync"
	"time"
)

// Store claims keys. Claim reports true only for the first caller of a key within ttl.
// Release gives a claimed key back so a request whose write failed can be retried.
type Store interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
	Close() error
}

type MemoryStore struct {
	mu   sync.Mutex
	keys map[string]time.Time
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		keys: make(map[string]time.Time),
		now:  time.Now,
	}
}

func (s *MemoryStore) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	if expires, ok := s.keys[key]; ok && now.Before(expires) {
		return false, nil
	}

	s.keys[key] = now.Add(ttl)

	for k, expires := range s.keys {
		if !now.Before(expires) {
			delete(s.keys, k)
		}
	}

	return true, nil
}

func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.keys, key)

	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
