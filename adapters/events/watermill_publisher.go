package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/layer-3/onewallet/ports"
)

const (
	TopicAuthenticated = "onewallet.session.authenticated"
	TopicTxSubmitted   = "onewallet.tx.submitted"
	TopicLogout        = "onewallet.session.logout"
)

// SessionEvent is published when a session gains or drops its credential
type SessionEvent struct {
	DID     string    `json:"did"`
	TokenID string    `json:"token_id"`
	At      time.Time `json:"at"`
}

// TxSubmittedEvent is published after the network accepted a transaction
type TxSubmittedEvent struct {
	Sender    string    `json:"sender"`
	Digest    string    `json:"digest"`
	Sponsored bool      `json:"sponsored"`
	At        time.Time `json:"at"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{
		publisher: publisher,
	}
}

// PublishAuthenticated publishes a session authenticated event
func (p *WatermillPublisher) PublishAuthenticated(ctx context.Context, did string, tokenID string) error {
	return p.publish(ctx, TopicAuthenticated, SessionEvent{DID: did, TokenID: tokenID, At: time.Now()})
}

// PublishTxSubmitted publishes a transaction submitted event
func (p *WatermillPublisher) PublishTxSubmitted(ctx context.Context, sender string, digest string, sponsored bool) error {
	return p.publish(ctx, TopicTxSubmitted, TxSubmittedEvent{Sender: sender, Digest: digest, Sponsored: sponsored, At: time.Now()})
}

// PublishLogout publishes a logout event
func (p *WatermillPublisher) PublishLogout(ctx context.Context, did string, tokenID string) error {
	return p.publish(ctx, TopicLogout, SessionEvent{DID: did, TokenID: tokenID, At: time.Now()})
}

func (p *WatermillPublisher) publish(ctx context.Context, topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
