package service

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/onewallet/core"
	"github.com/layer-3/onewallet/internal/bcs"
	"github.com/layer-3/onewallet/internal/sui"
	"github.com/layer-3/onewallet/sandbox"
)

const ticketType = "0x2::devnet_nft::DevNetNFT"

func TestSponsoredTransferObject(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.session
	l := h.login(t, s)
	addr := l.proof.Address

	ticket := h.backend.Ledger().Mint(addr, ticketType, 1)

	raw, err := NewSponsorBuilder(h.chain).TransferObject(ctx, addr, recipient, ticket.ObjectID, 5_000_000, 0)
	require.NoError(t, err)

	sponsored, err := s.BuildSponsoredTransaction(ctx, core.SponsorRequest{RawTransaction: raw})
	require.NoError(t, err)
	require.NotEmpty(t, sponsored.ReservationID)
	assert.Equal(t, sui.TransactionDigest(sponsored.RawTransaction), sponsored.Hash)

	tx, err := sui.DecodeTransactionData(sponsored.RawTransaction)
	require.NoError(t, err)
	assert.Equal(t, addr, tx.Sender)
	assert.Equal(t, core.MustParseAddress(sponsored.Sponsor), tx.GasData.Owner)
	assert.NotEqual(t, addr, tx.GasData.Owner)
	require.Len(t, tx.GasData.Payment, 1)

	signed, err := s.SignTransaction(ctx, SponsoredOrder(sponsored), l.eph.KeyPair, l.eph.MaxEpoch, l.proof)
	require.NoError(t, err)
	// the sponsor's bytes are signed and sent unchanged
	assert.Equal(t, sponsored.RawTransaction, signed.TxBytes)
	assert.Equal(t, sponsored.Hash, signed.Digest)

	res, err := s.SubmitSponsoredTransaction(ctx, sponsored.ReservationID, signed)
	require.NoError(t, err)
	assert.Equal(t, sponsored.Hash, res.Hash)
	assert.Equal(t, core.OrderStatusSuccess, res.Status)
	assert.Equal(t, core.StateProofReady, s.State())

	ref, owner, ok := h.backend.Ledger().Object(ticket.ObjectID)
	require.True(t, ok)
	assert.Equal(t, recipient, owner)
	assert.Greater(t, ref.Version, ticket.Version)
	assert.Equal(t, uint64(10*mist), h.backend.Ledger().Balance(addr, sandbox.SuiCoinType))
}

func TestSponsoredPayCoin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.session
	l := h.login(t, s)
	addr := l.proof.Address

	h.backend.Ledger().Mint(addr, sandbox.SuiCoinType, 3*mist)
	builder := NewSponsorBuilder(h.chain)

	raw, err := builder.PayCoin(ctx, addr, recipient, sandbox.SuiCoinType, 11*mist, 5_000_000, 0)
	require.NoError(t, err)

	tx, err := sui.DecodeTransactionData(raw)
	require.NoError(t, err)
	assert.Empty(t, tx.GasData.Payment)
	require.Len(t, tx.Kind.Programmable.Commands, 3)
	assert.IsType(t, sui.MergeCoins{}, tx.Kind.Programmable.Commands[0])

	budget := decimal.NewFromInt(2_000_000)
	sponsored, err := s.BuildSponsoredTransaction(ctx, core.SponsorRequest{
		RawTransaction:      bcs.Marshal(tx.Kind),
		OnlyTransactionKind: true,
		GasBudget:           &budget,
	})
	require.NoError(t, err)

	full, err := sui.DecodeTransactionData(sponsored.RawTransaction)
	require.NoError(t, err)
	assert.Equal(t, uint64(2_000_000), full.GasData.Budget)
	assert.Equal(t, addr, full.Sender)

	signed, err := s.SignTransaction(ctx, SponsoredOrder(sponsored), l.eph.KeyPair, l.eph.MaxEpoch, l.proof)
	require.NoError(t, err)
	res, err := s.SubmitSponsoredTransaction(ctx, sponsored.ReservationID, signed)
	require.NoError(t, err)
	assert.Equal(t, core.OrderStatusSuccess, res.Status)

	assert.Equal(t, uint64(11*mist), h.backend.Ledger().Balance(recipient, sandbox.SuiCoinType))
	assert.Equal(t, uint64(2*mist), h.backend.Ledger().Balance(addr, sandbox.SuiCoinType))

	_, err = builder.PayCoin(ctx, addr, recipient, sandbox.SuiCoinType, 100*mist, 5_000_000, 0)
	assert.ErrorIs(t, err, core.ErrInsufficientBalance)

	_, err = builder.PayCoin(ctx, addr, recipient, sandbox.SuiCoinType, 0, 5_000_000, 0)
	assert.ErrorIs(t, err, core.ErrInvalidTx)
}

func TestSponsoredReservationExpired(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.session
	l := h.login(t, s)
	addr := l.proof.Address

	ticket := h.backend.Ledger().Mint(addr, ticketType, 1)
	raw, err := NewSponsorBuilder(h.chain).TransferObject(ctx, addr, recipient, ticket.ObjectID, 5_000_000, 0)
	require.NoError(t, err)
	sponsored, err := s.BuildSponsoredTransaction(ctx, core.SponsorRequest{RawTransaction: raw})
	require.NoError(t, err)
	signed, err := s.SignTransaction(ctx, SponsoredOrder(sponsored), l.eph.KeyPair, l.eph.MaxEpoch, l.proof)
	require.NoError(t, err)

	h.advance(sandbox.ReservationTTL + time.Second)

	_, err = s.SubmitSponsoredTransaction(ctx, sponsored.ReservationID, signed)
	require.ErrorIs(t, err, core.ErrSubmission)
	var remote *core.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, sandbox.CodeReservation, remote.Code)

	_, owner, ok := h.backend.Ledger().Object(ticket.ObjectID)
	require.True(t, ok)
	assert.Equal(t, addr, owner)
}

func TestSponsoredRejectsForeignObject(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.session
	l := h.login(t, s)

	ticket := h.backend.Ledger().Mint(recipient, ticketType, 1)
	raw, err := NewSponsorBuilder(h.chain).TransferObject(ctx, l.proof.Address, recipient, ticket.ObjectID, 5_000_000, 1000)
	require.NoError(t, err)

	_, err = s.BuildSponsoredTransaction(ctx, core.SponsorRequest{RawTransaction: raw})
	require.ErrorIs(t, err, core.ErrSubmission)
	var remote *core.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, sandbox.CodeBadRequest, remote.Code)

	_, err = s.BuildSponsoredTransaction(ctx, core.SponsorRequest{})
	assert.ErrorIs(t, err, core.ErrInvalidTx)
}

func TestSelectCoins(t *testing.T) {
	coins := []core.Coin{{Balance: 5}, {Balance: 20}, {Balance: 7}}

	picked, err := selectCoins(coins, 20)
	require.NoError(t, err)
	require.Len(t, picked, 1)
	assert.Equal(t, uint64(20), picked[0].Balance)

	picked, err = selectCoins(coins, 26)
	require.NoError(t, err)
	require.Len(t, picked, 2)
	assert.Equal(t, uint64(7), picked[1].Balance)

	_, err = selectCoins(coins, 33)
	assert.ErrorIs(t, err, core.ErrInsufficientBalance)
	assert.Equal(t, uint64(5), coins[0].Balance)
}

func TestSelectCoinsLargeBalances(t *testing.T) {
	big := uint64(math.MaxUint64 - 10)
	coins := []core.Coin{{Balance: big}, {Balance: big}}

	picked, err := selectCoins(coins, math.MaxUint64)
	require.NoError(t, err)
	assert.Len(t, picked, 2)

	_, err = selectCoins([]core.Coin{{Balance: 3}, {Balance: 4}}, 8)
	require.ErrorIs(t, err, core.ErrInsufficientBalance)
	assert.Contains(t, err.Error(), "have 7, need 8")
}
