package main

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"github.com/layer-3/onewallet"
	"github.com/layer-3/onewallet/core"
	"github.com/layer-3/onewallet/service"
)

var commandTransfer = &cli.Command{
	Name:  "transfer",
	Usage: "Log in, then transfer coins or sponsor an object transfer",
	Flags: append(loginFlags,
		&cli.StringFlag{Name: "to", Usage: "recipient address", Required: true},
		&cli.StringFlag{Name: "amount", Usage: "amount in whole coins"},
		&cli.StringFlag{Name: "coin-type", Value: "0x2::sui::SUI"},
		&cli.StringFlag{Name: "remark"},
		&cli.StringFlag{Name: "object", Usage: "object id to transfer with sponsored gas instead of coins"},
		&cli.Uint64Flag{Name: "gas-budget", Value: 10_000_000},
	),
	Action: func(c *cli.Context) error {
		to, err := core.ParseAddress(c.String("to"))
		if err != nil {
			return err
		}
		return withSession(c, func(ctx context.Context, client *onewallet.Client, l *login) error {
			var res *core.TxResult
			if obj := c.String("object"); obj != "" {
				res, err = sponsoredTransfer(ctx, client, l, to, obj, c.Uint64("gas-budget"))
			} else {
				res, err = transfer(ctx, l, to, c.String("amount"), c.String("coin-type"), c.String("remark"))
			}
			if err != nil {
				return err
			}
			fmt.Printf("%s %s\n", res.Hash, res.Status)
			return nil
		})
	},
}

func transfer(ctx context.Context, l *login, to core.Address, amount, coinType, remark string) (*core.TxResult, error) {
	value, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	order, err := l.session.CreateTransferOrder(ctx, core.TransferRequest{
		ToAddress: to,
		CoinType:  coinType,
		Amount:    value,
		Remark:    remark,
	})
	if err != nil {
		return nil, err
	}
	signed, err := l.session.SignTransaction(ctx, order, l.ephemeral.KeyPair, l.ephemeral.MaxEpoch, l.proof)
	if err != nil {
		return nil, err
	}
	return l.session.SubmitTransaction(ctx, signed)
}

func sponsoredTransfer(ctx context.Context, client *onewallet.Client, l *login, to core.Address, object string, gasBudget uint64) (*core.TxResult, error) {
	objectID, err := core.ParseAddress(object)
	if err != nil {
		return nil, err
	}
	raw, err := client.Sponsor().TransferObject(ctx, l.proof.Address, to, objectID, gasBudget, 0)
	if err != nil {
		return nil, err
	}
	budget := decimal.NewFromInt(int64(gasBudget))
	sponsored, err := l.session.BuildSponsoredTransaction(ctx, core.SponsorRequest{
		Address:        l.proof.Address,
		RawTransaction: raw,
		GasBudget:      &budget,
	})
	if err != nil {
		return nil, err
	}
	signed, err := l.session.SignTransaction(ctx, service.SponsoredOrder(sponsored), l.ephemeral.KeyPair, l.ephemeral.MaxEpoch, l.proof)
	if err != nil {
		return nil, err
	}
	return l.session.SubmitSponsoredTransaction(ctx, sponsored.ReservationID, signed)
}
