// Package chain reads network state over the node's JSON-RPC interface.
package chain

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"

	"github.com/layer-3/onewallet/core"
	"github.com/layer-3/onewallet/internal/retrier"
	"github.com/layer-3/onewallet/internal/sui"
	"github.com/layer-3/onewallet/ports"
)

const coinsPageLimit = 50

// Client is a typed wrapper around the node RPC methods the wallet needs.
type Client struct {
	c       *rpc.Client
	policy  retrier.Policy
	timeout time.Duration
	log     logrus.FieldLogger
}

// Dial connects a client to the given URL.
func Dial(rawurl string, log logrus.FieldLogger) (*Client, error) {
	return DialContext(context.Background(), rawurl, log)
}

func DialContext(ctx context.Context, rawurl string, log logrus.FieldLogger) (*Client, error) {
	c, err := rpc.DialContext(ctx, rawurl)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", core.ErrTransport, rawurl, err)
	}
	return NewClient(c, log), nil
}

// NewClient creates a client that uses the given RPC client.
func NewClient(c *rpc.Client, log logrus.FieldLogger) *Client {
	return &Client{c: c, policy: retrier.DefaultPolicy, timeout: 10 * time.Second, log: log}
}

var _ ports.Chain = (*Client)(nil)

// WithRetry overrides the retry policy of read calls.
func (ec *Client) WithRetry(p retrier.Policy) *Client {
	ec.policy = p
	return ec
}

// WithTimeout overrides the per call timeout.
func (ec *Client) WithTimeout(d time.Duration) *Client {
	ec.timeout = d
	return ec
}

func (ec *Client) Close() {
	ec.c.Close()
}

// call runs an idempotent read with retries.
func (ec *Client) call(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	err := retrier.Do(ctx, ec.policy, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, ec.timeout)
		defer cancel()

		err := ec.c.CallContext(callCtx, result, method, args...)
		if _, ok := err.(rpc.Error); ok {
			// the node answered; asking again will not change the answer
			return retrier.Permanent(err)
		}
		if err != nil {
			ec.log.WithFields(logrus.Fields{"method": method}).WithError(err).Debug("rpc call failed")
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %v", core.ErrTransport, method, err)
	}
	return nil
}

type systemState struct {
	Epoch string `json:"epoch"`
}

// CurrentEpoch returns the epoch of the latest system state.
func (ec *Client) CurrentEpoch(ctx context.Context) (uint64, error) {
	var state systemState
	if err := ec.call(ctx, &state, "suix_getLatestSuiSystemState"); err != nil {
		return 0, err
	}
	epoch, err := strconv.ParseUint(state.Epoch, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid epoch %q", core.ErrTransport, state.Epoch)
	}
	return epoch, nil
}

// ReferenceGasPrice returns the gas price of the current epoch.
func (ec *Client) ReferenceGasPrice(ctx context.Context) (uint64, error) {
	var price string
	if err := ec.call(ctx, &price, "suix_getReferenceGasPrice"); err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(price, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid gas price %q", core.ErrTransport, price)
	}
	return v, nil
}

type objectResponse struct {
	Data *struct {
		ObjectID string `json:"objectId"`
		Version  string `json:"version"`
		Digest   string `json:"digest"`
	} `json:"data"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
}

// ObjectRef returns the latest reference of an object.
func (ec *Client) ObjectRef(ctx context.Context, id core.Address) (sui.ObjectRef, error) {
	var resp objectResponse
	if err := ec.call(ctx, &resp, "sui_getObject", id.String(), map[string]bool{}); err != nil {
		return sui.ObjectRef{}, err
	}
	if resp.Data == nil {
		code := "notExists"
		if resp.Error != nil {
			code = resp.Error.Code
		}
		return sui.ObjectRef{}, fmt.Errorf("object %s: %s", id, code)
	}

	objectID, err := core.ParseAddress(resp.Data.ObjectID)
	if err != nil {
		return sui.ObjectRef{}, err
	}
	version, err := strconv.ParseUint(resp.Data.Version, 10, 64)
	if err != nil {
		return sui.ObjectRef{}, fmt.Errorf("object %s: invalid version %q", id, resp.Data.Version)
	}
	digest, err := sui.ParseDigest(resp.Data.Digest)
	if err != nil {
		return sui.ObjectRef{}, err
	}
	return sui.ObjectRef{ObjectID: objectID, Version: version, Digest: digest}, nil
}

type coinPage struct {
	Data []struct {
		CoinType     string `json:"coinType"`
		CoinObjectID string `json:"coinObjectId"`
		Version      string `json:"version"`
		Digest       string `json:"digest"`
		Balance      string `json:"balance"`
	} `json:"data"`
	NextCursor  *string `json:"nextCursor"`
	HasNextPage bool    `json:"hasNextPage"`
}

// Coins lists every coin of coinType owned by owner. An empty coinType means the native coin.
func (ec *Client) Coins(ctx context.Context, owner core.Address, coinType string) ([]core.Coin, error) {
	var (
		coins  []core.Coin
		cursor *string
	)
	var ct interface{}
	if coinType != "" {
		ct = coinType
	}
	for {
		var page coinPage
		if err := ec.call(ctx, &page, "suix_getCoins", owner.String(), ct, cursor, coinsPageLimit); err != nil {
			return nil, err
		}
		for _, c := range page.Data {
			coin, err := parseCoin(c.CoinType, c.CoinObjectID, c.Version, c.Digest, c.Balance)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", core.ErrTransport, err)
			}
			coins = append(coins, coin)
		}
		if !page.HasNextPage || page.NextCursor == nil {
			return coins, nil
		}
		cursor = page.NextCursor
	}
}

func parseCoin(coinType, id, version, digest, balance string) (core.Coin, error) {
	objectID, err := core.ParseAddress(id)
	if err != nil {
		return core.Coin{}, err
	}
	v, err := strconv.ParseUint(version, 10, 64)
	if err != nil {
		return core.Coin{}, fmt.Errorf("coin %s: invalid version %q", id, version)
	}
	b, err := strconv.ParseUint(balance, 10, 64)
	if err != nil {
		return core.Coin{}, fmt.Errorf("coin %s: invalid balance %q", id, balance)
	}
	return core.Coin{CoinType: coinType, ObjectID: objectID, Version: v, Digest: digest, Balance: b}, nil
}
