package revocation

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for tests and single-node development.
// Expired entries read as absent; they are dropped lazily on access.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]time.Time), now: time.Now}
}

// WithClock replaces the store's time source.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
	return s
}

func (s *MemoryStore) SetWhitelisted(ctx context.Context, jti string, ttl time.Duration) error {
	return s.set(ctx, WhitelistPrefix, jti, ttl)
}

func (s *MemoryStore) SetBlacklisted(ctx context.Context, jti string, ttl time.Duration) error {
	return s.set(ctx, BlacklistPrefix, jti, ttl)
}

func (s *MemoryStore) IsWhitelisted(ctx context.Context, jti string) (bool, error) {
	return s.exists(ctx, WhitelistPrefix, jti)
}

func (s *MemoryStore) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	return s.exists(ctx, BlacklistPrefix, jti)
}

func (s *MemoryStore) RemoveWhitelisted(ctx context.Context, jti string) error {
	jti, err := normalize(jti)
	if err != nil {
		return err
	}
	if err := ctxErr(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.entries, WhitelistPrefix+jti)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

// Len reports the number of unexpired records.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for k, exp := range s.entries {
		if now.Before(exp) {
			n++
		} else {
			delete(s.entries, k)
		}
	}
	return n
}

func (s *MemoryStore) set(ctx context.Context, prefix, jti string, ttl time.Duration) error {
	jti, err := normalize(jti)
	if err != nil {
		return err
	}
	if err := checkTTL(ttl); err != nil {
		return err
	}
	if err := ctxErr(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.entries[prefix+jti] = s.now().Add(ttl)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) exists(ctx context.Context, prefix, jti string) (bool, error) {
	jti, err := normalize(jti)
	if err != nil {
		return false, err
	}
	if err := ctxErr(ctx); err != nil {
		return false, err
	}

	key := prefix + jti

	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.entries[key]
	if !ok {
		return false, nil
	}
	if !s.now().Before(exp) {
		delete(s.entries, key)
		return false, nil
	}
	return true, nil
}

func ctxErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

var (
	_ Store  = (*MemoryStore)(nil)
	_ Pinger = (*MemoryStore)(nil)
)
