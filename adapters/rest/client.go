// Package rest talks to the wallet service's JSON API.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/layer-3/onewallet/core"
	"github.com/layer-3/onewallet/internal/retrier"
)

// HeaderAccessToken carries the session credential.
const HeaderAccessToken = "ACCESS_TOKEN"

const maxResponseBytes = 4 << 20

// Options configures a Client.
type Options struct {
	BaseURL    string
	Merchant   *MerchantSigner
	HTTPClient *http.Client
	Timeout    time.Duration
	Retry      retrier.Policy
	// RateLimit is the sustained requests per second; zero disables limiting.
	RateLimit float64
	RateBurst int
	Logger    logrus.FieldLogger
	Now       func() time.Time
}

// Client is safe for concurrent use by any number of sessions. It holds no credentials.
type Client struct {
	base     *url.URL
	http     *http.Client
	merchant *MerchantSigner
	limiter  *rate.Limiter
	timeout  time.Duration
	policy   retrier.Policy
	log      logrus.FieldLogger
	now      func() time.Time
}

// New creates a wallet service client.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/") + "/")
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid wallet service url %q", opts.BaseURL)
	}

	c := &Client{
		base:     base,
		http:     opts.HTTPClient,
		merchant: opts.Merchant,
		timeout:  opts.Timeout,
		policy:   opts.Retry,
		log:      opts.Logger,
		now:      opts.Now,
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.timeout <= 0 {
		c.timeout = 15 * time.Second
	}
	if c.policy.Attempts == 0 {
		c.policy = retrier.DefaultPolicy
	}
	if c.log == nil {
		c.log = logrus.StandardLogger()
	}
	if c.now == nil {
		c.now = time.Now
	}
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return c, nil
}

// endpoint describes one remote operation.
type endpoint struct {
	path       string
	kind       error
	idempotent bool
	signed     bool
}

// envelope is the common response wrapper of the wallet service.
type envelope struct {
	Code       string          `json:"code"`
	Msg        string          `json:"msg"`
	Data       json.RawMessage `json:"data"`
	Success    bool            `json:"success"`
	TraceID    string          `json:"traceId"`
	SystemTime int64           `json:"systemTime"`
}

// post sends req to ep and decodes the envelope's data into out.
func (c *Client) post(ctx context.Context, ep endpoint, cred *core.Credential, req, out interface{}) error {
	policy := retrier.None
	if ep.idempotent {
		policy = c.policy
	}

	log := c.log.WithField("path", ep.path)
	attempt := 0

	return retrier.Do(ctx, policy, func(ctx context.Context) error {
		attempt++
		body := req
		if ep.signed {
			if c.merchant == nil {
				return retrier.Permanent(fmt.Errorf("%w: %s requires a merchant key", core.ErrTransport, ep.path))
			}
			// signed per attempt: the timestamp is part of the signature
			signed, err := c.merchant.Envelope(req, c.now().UnixMilli())
			if err != nil {
				return retrier.Permanent(fmt.Errorf("%w: %v", ep.kind, err))
			}
			body = signed
		}

		env, err := c.roundTrip(ctx, ep.path, cred, body)
		if err != nil {
			log.WithField("attempt", attempt).WithError(err).Warn("wallet service request failed")
			if ctx.Err() != nil {
				return retrier.Permanent(err)
			}
			return err
		}

		if !env.Success || env.Code != core.SuccessCode {
			log.WithFields(logrus.Fields{"code": env.Code, "trace_id": env.TraceID}).Info("wallet service rejected request")
			return retrier.Permanent(fmt.Errorf("%w: %w", ep.kind, &core.RemoteError{
				Op:      ep.path,
				Code:    env.Code,
				Msg:     env.Msg,
				TraceID: env.TraceID,
			}))
		}

		if out == nil {
			return nil
		}
		if len(env.Data) == 0 || string(env.Data) == "null" {
			return retrier.Permanent(fmt.Errorf("%w: %s: empty response data", core.ErrTransport, ep.path))
		}
		if err := json.Unmarshal(env.Data, out); err != nil {
			return retrier.Permanent(fmt.Errorf("%w: %s: decode data: %v", core.ErrTransport, ep.path, err))
		}
		return nil
	})
}

func (c *Client) roundTrip(ctx context.Context, path string, cred *core.Credential, body interface{}) (*envelope, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limit: %v", core.ErrTransport, err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload := []byte("{}")
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("%w: encode request: %v", core.ErrTransport, err)
		}
	}

	u := c.base.ResolveReference(&url.URL{Path: strings.TrimPrefix(path, "/")})
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrTransport, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if cred != nil && !cred.Empty() {
		httpReq.Header.Set(HeaderAccessToken, cred.AccessToken)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrTransport, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", core.ErrTransport, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("%w: %s: http status %d", core.ErrTransport, path, resp.StatusCode)
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, retrier.Permanent(err)
		}
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %s: decode envelope: %v", core.ErrTransport, path, err)
	}
	return &env, nil
}

// IsRemote reports whether err is a business rejection from the wallet service.
func IsRemote(err error) bool {
	var remote *core.RemoteError
	return errors.As(err, &remote)
}
