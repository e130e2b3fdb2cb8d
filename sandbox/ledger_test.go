package sandbox

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/onewallet/adapters/chain"
	"github.com/layer-3/onewallet/core"
	"github.com/layer-3/onewallet/internal/sui"
)

var (
	alice = core.MustParseAddress("0x00000000000000000000000000000000000000000000000000000000000a11ce")
	bob   = core.MustParseAddress("0x0000000000000000000000000000000000000000000000000000000000000b0b")
)

func TestLedgerPaySui(t *testing.T) {
	l := newLedger(5, 750)
	gas := l.Mint(alice, SuiCoinType, 1_000)

	pt := sui.NewBuilder()
	pt.PaySui(bob, 400)
	tx := sui.NewProgrammable(alice, []sui.ObjectRef{gas}, pt.Finish(), 10, l.GasPrice())

	require.NoError(t, l.Execute(&tx))
	assert.Equal(t, uint64(600), l.Balance(alice, SuiCoinType))
	assert.Equal(t, uint64(400), l.Balance(bob, SuiCoinType))

	ref, owner, ok := l.Object(gas.ObjectID)
	require.True(t, ok)
	assert.Equal(t, alice, owner)
	assert.Equal(t, gas.Version+1, ref.Version)
	assert.NotEqual(t, gas.Digest, ref.Digest)

	// the old reference is stale now
	assert.Error(t, l.Execute(&tx))
	assert.Equal(t, uint64(600), l.Balance(alice, SuiCoinType))
}

func TestLedgerRollback(t *testing.T) {
	l := newLedger(1, 1)
	a := l.Mint(alice, SuiCoinType, 100)
	b := l.Mint(alice, SuiCoinType, 50)

	pt := sui.NewBuilder()
	dst := pt.Object(a)
	src := pt.Object(b)
	pt.Command(sui.MergeCoins{Destination: dst, Sources: []sui.Argument{src}})
	amt := pt.PureU64(500)
	to := pt.PureAddress(bob)
	split := pt.Command(sui.SplitCoins{Coin: dst, Amounts: []sui.Argument{amt}})
	pt.Command(sui.TransferObjects{Objects: []sui.Argument{sui.NestedResult(split.Index, 0)}, Recipient: to})
	tx := sui.NewProgrammable(alice, nil, pt.Finish(), 10, 1)

	err := l.Execute(&tx)
	require.ErrorIs(t, err, core.ErrInsufficientBalance)

	assert.Equal(t, uint64(150), l.Balance(alice, SuiCoinType))
	assert.Len(t, l.Coins(alice, SuiCoinType), 2)
	assert.Zero(t, l.Balance(bob, SuiCoinType))
	assert.NoError(t, l.CheckRefs([]sui.ObjectRef{a, b}, alice))
}

func TestLedgerTransferObject(t *testing.T) {
	l := newLedger(1, 1)
	item := l.Mint(alice, "", 0)

	pt := sui.NewBuilder()
	pt.TransferObject(bob, item)
	tx := sui.NewProgrammable(bob, nil, pt.Finish(), 10, 1)

	// bob cannot move alice's object
	require.Error(t, l.Execute(&tx))

	tx.Sender = alice
	require.NoError(t, l.Execute(&tx))
	_, owner, ok := l.Object(item.ObjectID)
	require.True(t, ok)
	assert.Equal(t, bob, owner)
	assert.Empty(t, l.Coins(bob, ""))
}

func TestLedgerRejectsUnsupportedCommands(t *testing.T) {
	l := newLedger(1, 1)
	pt := sui.NewBuilder()
	pt.Command(sui.MoveCall{Module: "pay", Function: "split"})
	tx := sui.NewProgrammable(alice, nil, pt.Finish(), 10, 1)

	assert.Error(t, l.Execute(&tx))
}

func TestLedgerRPC(t *testing.T) {
	l := newLedger(42, 1234)
	for i := 0; i < 55; i++ {
		l.Mint(alice, SuiCoinType, uint64(i+1))
	}
	item := l.Mint(alice, "", 0)

	srv, err := l.RPCServer()
	require.NoError(t, err)
	defer srv.Stop()

	logger, _ := test.NewNullLogger()
	client := chain.NewClient(rpc.DialInProc(srv), logger)
	defer client.Close()
	ctx := context.Background()

	epoch, err := client.CurrentEpoch(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), epoch)

	price, err := client.ReferenceGasPrice(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1234), price)

	coins, err := client.Coins(ctx, alice, SuiCoinType)
	require.NoError(t, err)
	assert.Len(t, coins, 55)
	var total uint64
	for _, c := range coins {
		total += c.Balance
	}
	assert.Equal(t, uint64(55*56/2), total)

	ref, err := client.ObjectRef(ctx, item.ObjectID)
	require.NoError(t, err)
	assert.Equal(t, item, ref)

	_, err = client.ObjectRef(ctx, bob)
	assert.Error(t, err)
}
