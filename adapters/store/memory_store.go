package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/onewallet/ports"
)

// MemoryStore is an in-memory implementation of the Store interface
type MemoryStore struct {
	claims        map[string]time.Time
	revokedTokens map[string]time.Time
	mu            sync.RWMutex
	now           func() time.Time
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() ports.Store {
	return newMemoryStore(time.Now)
}

func newMemoryStore(now func() time.Time) *MemoryStore {
	return &MemoryStore{
		claims:        make(map[string]time.Time),
		revokedTokens: make(map[string]time.Time),
		now:           now,
	}
}

// Claim records key until ttl elapses. A zero ttl never expires.
func (s *MemoryStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if expiry, exists := s.claims[key]; exists && (expiry.IsZero() || now.Before(expiry)) {
		return false, nil
	}

	var expiry time.Time
	if ttl > 0 {
		expiry = now.Add(ttl)
	}
	s.claims[key] = expiry
	s.sweep(now)

	return true, nil
}

// RevokeToken marks a token as revoked
func (s *MemoryStore) RevokeToken(ctx context.Context, tokenID string, expiry time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.revokedTokens[tokenID] = now.Add(expiry)
	s.sweep(now)

	return nil
}

// IsTokenRevoked checks if a token is revoked
func (s *MemoryStore) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expiryTime, exists := s.revokedTokens[tokenID]
	if !exists {
		return false, nil
	}

	// Check if the revocation has expired
	if s.now().After(expiryTime) {
		return false, nil
	}

	return true, nil
}

// sweep drops expired entries. Callers hold the write lock.
func (s *MemoryStore) sweep(now time.Time) {
	for k, exp := range s.claims {
		if !exp.IsZero() && !now.Before(exp) {
			delete(s.claims, k)
		}
	}
	for k, exp := range s.revokedTokens {
		if now.After(exp) {
			delete(s.revokedTokens, k)
		}
	}
}
