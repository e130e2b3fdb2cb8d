package ports

import (
	"context"

	"github.com/layer-3/onewallet/core"
	"github.com/layer-3/onewallet/internal/sui"
)

// EpochSource reports the network's current epoch.
type EpochSource interface {
	CurrentEpoch(ctx context.Context) (uint64, error)
}

// Chain is the read side of the network's JSON-RPC interface.
type Chain interface {
	EpochSource
	ReferenceGasPrice(ctx context.Context) (uint64, error)
	ObjectRef(ctx context.Context, id core.Address) (sui.ObjectRef, error)
	Coins(ctx context.Context, owner core.Address, coinType string) ([]core.Coin, error)
}
