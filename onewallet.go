// Package onewallet is a client for the OneChain wallet service: SMS login, zkLogin proofs and
// signing of transfer and sponsored transactions.
package onewallet

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/layer-3/onewallet/adapters/chain"
	"github.com/layer-3/onewallet/adapters/events"
	"github.com/layer-3/onewallet/adapters/rest"
	"github.com/layer-3/onewallet/adapters/store"
	"github.com/layer-3/onewallet/adapters/tokenizer"
	"github.com/layer-3/onewallet/config"
	"github.com/layer-3/onewallet/internal/retrier"
	"github.com/layer-3/onewallet/ports"
	"github.com/layer-3/onewallet/service"
)

// Client wires the wallet service, the network and the shared registries. Sessions created from
// one Client share nothing but these immutable collaborators.
type Client struct {
	cfg       *config.Config
	api       *rest.Client
	chain     *chain.Client
	store     ports.Store
	events    ports.EventPublisher
	publisher message.Publisher
	redis     *redis.Client
	log       logrus.FieldLogger
}

// New connects a Client as described by cfg.
func New(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = cfg.Logger()
	}

	policy := retrier.DefaultPolicy
	policy.Attempts = cfg.Retry.Attempts
	if cfg.Retry.BaseDelay > 0 {
		policy.Base = cfg.Retry.BaseDelay
	}

	var merchant *rest.MerchantSigner
	if cfg.MerchantID != "" {
		var err error
		if merchant, err = rest.NewMerchantSigner(cfg.MerchantID, cfg.MerchantKey); err != nil {
			return nil, err
		}
	}

	api, err := rest.New(rest.Options{
		BaseURL:   cfg.WalletURL,
		Merchant:  merchant,
		Timeout:   cfg.RequestTimeout,
		Retry:     policy,
		RateLimit: cfg.RateLimit,
		RateBurst: cfg.RateBurst,
		Logger:    log.WithField("component", "rest"),
	})
	if err != nil {
		return nil, err
	}

	node, err := chain.DialContext(ctx, cfg.RPCURL, log.WithField("component", "chain"))
	if err != nil {
		return nil, err
	}
	node.WithRetry(policy).WithTimeout(cfg.RequestTimeout)

	c := &Client{cfg: cfg, api: api, chain: node, log: log}
	if err := c.connectRegistries(ctx); err != nil {
		node.Close()
		return nil, err
	}
	return c, nil
}

// connectRegistries picks Redis for the nonce registry and events when configured, memory otherwise.
func (c *Client) connectRegistries(ctx context.Context) error {
	wmLogger := events.NewLogrusAdapter(c.log.WithField("component", "events"))

	if c.cfg.RedisURL == "" {
		c.store = store.NewMemoryStore()
		c.publisher = gochannel.NewGoChannel(gochannel.Config{}, wmLogger)
		c.events = events.NewWatermillPublisher(c.publisher)
		return nil
	}

	opts, err := redis.ParseURL(c.cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to parse redis url: %w", err)
	}
	c.redis = redis.NewClient(opts)
	if err := c.redis.Ping(ctx).Err(); err != nil {
		c.redis.Close()
		return fmt.Errorf("failed to reach redis: %w", err)
	}

	publisher, err := redisstream.NewPublisher(redisstream.PublisherConfig{Client: c.redis}, wmLogger)
	if err != nil {
		c.redis.Close()
		return fmt.Errorf("failed to create redis publisher: %w", err)
	}
	c.store = store.NewRedisStore(c.redis)
	c.publisher = publisher
	c.events = events.NewWatermillPublisher(publisher)
	return nil
}

// NewSession starts a session in the Unauthenticated state.
func (c *Client) NewSession() *service.Session {
	return service.NewSession(c.api, c.chain, c.store, c.events, tokenizer.NewParser(), service.Options{
		EpochWindow:    c.cfg.EpochWindow,
		RefreshTimeout: c.cfg.RequestTimeout,
		Logger:         c.log.WithField("component", "session"),
	})
}

// Sponsor returns a builder for client-side sponsored transactions.
func (c *Client) Sponsor() *service.SponsorBuilder {
	return service.NewSponsorBuilder(c.chain)
}

// Chain exposes the network reads.
func (c *Client) Chain() ports.Chain {
	return c.chain
}

// Close releases connections.
func (c *Client) Close() error {
	c.chain.Close()
	err := c.publisher.Close()
	if c.redis != nil {
		if rerr := c.redis.Close(); err == nil {
			err = rerr
		}
	}
	return err
}
