package ports

import "context"

// EventPublisher notifies other components of session lifecycle changes.
type EventPublisher interface {
	PublishAuthenticated(ctx context.Context, did string, tokenID string) error
	PublishTxSubmitted(ctx context.Context, sender string, digest string, sponsored bool) error
	PublishLogout(ctx context.Context, did string, tokenID string) error
}
