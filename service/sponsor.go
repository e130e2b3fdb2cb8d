package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/layer-3/onewallet/core"
	"github.com/layer-3/onewallet/internal/sui"
	"github.com/layer-3/onewallet/ports"
)

// SponsorBuilder builds transactions on the client for the sponsored path. Gas payment is left
// empty; the sponsor fills it in.
type SponsorBuilder struct {
	chain ports.Chain
}

func NewSponsorBuilder(chain ports.Chain) *SponsorBuilder {
	return &SponsorBuilder{chain: chain}
}

// TransferObject builds a transaction moving one object owned by sender to recipient.
func (b *SponsorBuilder) TransferObject(ctx context.Context, sender, recipient, objectID core.Address, gasBudget, gasPrice uint64) ([]byte, error) {
	ref, err := b.chain.ObjectRef(ctx, objectID)
	if err != nil {
		return nil, err
	}
	gasPrice, err = b.gasPrice(ctx, gasPrice)
	if err != nil {
		return nil, err
	}

	pt := sui.NewBuilder()
	pt.TransferObject(recipient, ref)
	return sui.NewProgrammable(sender, nil, pt.Finish(), gasBudget, gasPrice).Bytes(), nil
}

// PayCoin builds a transaction sending amount base units of coinType from sender to recipient.
// The largest coins are merged until they cover amount.
func (b *SponsorBuilder) PayCoin(ctx context.Context, sender, recipient core.Address, coinType string, amount, gasBudget, gasPrice uint64) ([]byte, error) {
	if amount == 0 {
		return nil, fmt.Errorf("%w: amount must be positive", core.ErrInvalidTx)
	}
	coins, err := b.chain.Coins(ctx, sender, coinType)
	if err != nil {
		return nil, err
	}
	selected, err := selectCoins(coins, amount)
	if err != nil {
		return nil, err
	}
	gasPrice, err = b.gasPrice(ctx, gasPrice)
	if err != nil {
		return nil, err
	}

	pt := sui.NewBuilder()
	args := make([]sui.Argument, 0, len(selected))
	for _, c := range selected {
		ref, err := sui.CoinRef(c)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", core.ErrInvalidTx, err)
		}
		args = append(args, pt.Object(ref))
	}
	if len(args) > 1 {
		pt.Command(sui.MergeCoins{Destination: args[0], Sources: args[1:]})
	}
	amt := pt.PureU64(amount)
	to := pt.PureAddress(recipient)
	split := pt.Command(sui.SplitCoins{Coin: args[0], Amounts: []sui.Argument{amt}})
	pt.Command(sui.TransferObjects{Objects: []sui.Argument{sui.NestedResult(split.Index, 0)}, Recipient: to})

	return sui.NewProgrammable(sender, nil, pt.Finish(), gasBudget, gasPrice).Bytes(), nil
}

func (b *SponsorBuilder) gasPrice(ctx context.Context, price uint64) (uint64, error) {
	if price != 0 {
		return price, nil
	}
	return b.chain.ReferenceGasPrice(ctx)
}

func selectCoins(coins []core.Coin, amount uint64) ([]core.Coin, error) {
	sorted := append([]core.Coin(nil), coins...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Balance > sorted[j].Balance })

	var total uint64
	for i, c := range sorted {
		if c.Balance >= amount-total {
			return sorted[:i+1], nil
		}
		total += c.Balance
	}
	return nil, fmt.Errorf("%w: have %d, need %d", core.ErrInsufficientBalance, total, amount)
}
