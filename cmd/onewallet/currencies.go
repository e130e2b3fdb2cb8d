package main

import (
	"context"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/layer-3/onewallet"
	"github.com/layer-3/onewallet/core"
)

var commandCurrencies = &cli.Command{
	Name:  "currencies",
	Usage: "Log in and list supported currencies, wallets and recent orders",
	Flags: loginFlags,
	Action: func(c *cli.Context) error {
		return withSession(c, func(ctx context.Context, client *onewallet.Client, l *login) error {
			var (
				chains  []core.CurrencyChain
				wallets []core.UserWallet
				orders  *core.Page[core.OrderDetail]
			)
			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() (err error) {
				chains, err = l.session.Currencies(ctx)
				return err
			})
			g.Go(func() (err error) {
				wallets, err = l.session.UserWallets(ctx, core.WalletQuery{Address: l.proof.Address.String()})
				return err
			})
			g.Go(func() (err error) {
				orders, err = l.session.PageOrders(ctx, core.OrderPageQuery{Address: l.proof.Address.String()})
				return err
			})
			if err := g.Wait(); err != nil {
				return err
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Chain", "Currency", "Coin type", "Decimals"})
			for _, ch := range chains {
				for _, cur := range ch.CurrencyList {
					table.Append([]string{ch.Chain, cur.Currency, cur.CoinType, fmt.Sprint(cur.CalculateDecimals)})
				}
			}
			table.Render()

			table = tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Address", "Chain", "Type"})
			for _, w := range wallets {
				table.Append([]string{w.Address, w.Chain, w.WalletType})
			}
			table.Render()

			table = tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Hash", "To", "Amount", "Status"})
			for _, o := range orders.Rows {
				table.Append([]string{o.Hash, o.ToAddress, o.Amount + " " + o.Currency, o.Status})
			}
			table.Render()
			return nil
		})
	},
}
