package ports

import (
	"context"
	"time"
)

// Store records single-use values and revoked tokens.
type Store interface {
	// Claim records key for ttl. It returns false if key was already claimed.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	RevokeToken(ctx context.Context, tokenID string, expiry time.Duration) error
	IsTokenRevoked(ctx context.Context, tokenID string) (bool, error)
}
