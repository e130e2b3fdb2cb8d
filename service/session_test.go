package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/onewallet/adapters/events"
	"github.com/layer-3/onewallet/core"
	"github.com/layer-3/onewallet/internal/sui"
	"github.com/layer-3/onewallet/sandbox"
)

var recipient = core.MustParseAddress("0x00000000000000000000000000000000000000000000000000000000000b0b01")

const mist = 1_000_000_000

func TestSessionFullFlow(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	authenticated, err := h.pubSub.Subscribe(ctx, events.TopicAuthenticated)
	require.NoError(t, err)
	submitted, err := h.pubSub.Subscribe(ctx, events.TopicTxSubmitted)
	require.NoError(t, err)

	s := h.session
	assert.Equal(t, core.StateUnauthenticated, s.State())

	l := h.login(t, s)
	assert.Equal(t, core.StateProofReady, s.State())
	assert.True(t, s.HasToken())
	assert.Equal(t, uint64(100+DefaultEpochWindow), l.eph.MaxEpoch)
	assert.Len(t, l.eph.Nonce.Value, 27)
	assert.NotEmpty(t, l.auth.Salt)

	addr, ok := s.Address()
	require.True(t, ok)
	assert.Equal(t, l.proof.Address, addr)
	assert.Equal(t, uint64(10*mist), h.backend.Ledger().Balance(addr, sandbox.SuiCoinType))
	assert.True(t, l.proof.Matches(l.eph.KeyPair.PublicKey(), l.eph.MaxEpoch))

	order, err := s.CreateTransferOrder(ctx, core.TransferRequest{
		ToAddress: recipient,
		CoinType:  sandbox.SuiCoinType,
		Amount:    decimal.RequireFromString("1.5"),
	})
	require.NoError(t, err)
	assert.Equal(t, addr, order.FromAddress)
	require.NotEmpty(t, order.Hash)

	signed, err := s.SignTransaction(ctx, order, l.eph.KeyPair, l.eph.MaxEpoch, l.proof)
	require.NoError(t, err)
	assert.Equal(t, core.StateTxSigned, s.State())
	assert.Equal(t, order.Hash, signed.Digest)
	assert.Equal(t, order.RawTransaction, signed.TxBytes)

	res, err := s.SubmitTransaction(ctx, signed)
	require.NoError(t, err)
	assert.Equal(t, order.Hash, res.Hash)
	assert.Equal(t, core.OrderStatusSuccess, res.Status)
	assert.Equal(t, core.StateProofReady, s.State())

	assert.Equal(t, uint64(1_500_000_000), h.backend.Ledger().Balance(recipient, sandbox.SuiCoinType))
	assert.Equal(t, uint64(8_500_000_000), h.backend.Ledger().Balance(addr, sandbox.SuiCoinType))

	detail, err := s.QueryOrder(ctx, core.OrderQuery{Hash: order.Hash})
	require.NoError(t, err)
	assert.Equal(t, core.OrderStatusSuccess, detail.Status)
	assert.Equal(t, "1.5", detail.Amount)

	page, err := s.PageOrders(ctx, core.OrderPageQuery{Address: addr.String()})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.TotalNum)
	assert.Equal(t, int64(1), page.PageIndex)

	select {
	case msg := <-authenticated:
		var ev events.SessionEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &ev))
		assert.Equal(t, l.auth.DID, ev.DID)
		msg.Ack()
	case <-ctx.Done():
		t.Fatal("no authenticated event")
	}
	select {
	case msg := <-submitted:
		var ev events.TxSubmittedEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &ev))
		assert.Equal(t, res.Hash, ev.Digest)
		assert.Equal(t, addr.String(), ev.Sender)
		assert.False(t, ev.Sponsored)
		msg.Ack()
	case <-ctx.Done():
		t.Fatal("no submitted event")
	}
}

func TestSessionStateGuards(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.session

	_, err := s.VerifyCode(ctx, testMobile, core.ProviderHuione, testSMSCode, "code")
	assert.ErrorIs(t, err, core.ErrAuth)
	assert.ErrorIs(t, err, core.ErrInvalidState)

	_, err = s.ExchangeToken(ctx, core.ProviderHuione, "auth", core.LoginTypeSMS, "nonce")
	assert.ErrorIs(t, err, core.ErrAuth)
	assert.ErrorIs(t, err, core.ErrInvalidState)

	_, err = s.FetchProof(ctx, ProofRequest{})
	assert.ErrorIs(t, err, core.ErrProof)
	assert.ErrorIs(t, err, core.ErrInvalidState)

	_, err = s.SignTransaction(ctx, &core.TransferOrder{RawTransaction: []byte{1}}, nil, 0, nil)
	assert.ErrorIs(t, err, core.ErrSigning)
	assert.ErrorIs(t, err, core.ErrInvalidState)

	_, err = s.SubmitTransaction(ctx, &core.SignedTransaction{TxBytes: []byte{1}, UserSignature: "sig"})
	assert.ErrorIs(t, err, core.ErrSubmission)
	assert.ErrorIs(t, err, core.ErrInvalidState)

	_, err = s.SubmitSponsoredTransaction(ctx, "", &core.SignedTransaction{})
	assert.ErrorIs(t, err, core.ErrSubmission)

	_, err = s.RefreshToken(ctx, "nonce")
	assert.ErrorIs(t, err, core.ErrAuth)
	assert.ErrorIs(t, err, core.ErrNotAuthenticated)

	_, err = s.CreateTransferOrder(ctx, core.TransferRequest{ToAddress: recipient, Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, core.ErrNotAuthenticated)

	assert.Equal(t, core.StateUnauthenticated, s.State())

	h.authenticate(t, s)
	assert.Equal(t, core.StateAuthenticated, s.State())

	_, err = s.RequestCode(ctx, testMobile, core.ProviderHuione)
	assert.ErrorIs(t, err, core.ErrDelivery)
	assert.ErrorIs(t, err, core.ErrInvalidState)
}

func TestSessionRequestCodeTwice(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.session

	first, err := s.RequestCode(ctx, testMobile, core.ProviderHuione)
	require.NoError(t, err)
	second, err := s.RequestCode(ctx, testMobile, core.ProviderHuione)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Equal(t, core.StateCodeSent, s.State())

	_, err = s.VerifyCode(ctx, testMobile, core.ProviderHuione, testSMSCode, second)
	require.NoError(t, err)
}

func TestSessionWrongSMSCode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.session

	codeID, err := s.RequestCode(ctx, testMobile, core.ProviderHuione)
	require.NoError(t, err)

	_, err = s.VerifyCode(ctx, testMobile, core.ProviderHuione, "000000", codeID)
	require.ErrorIs(t, err, core.ErrAuth)
	var remote *core.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, sandbox.CodeInvalidSMSCode, remote.Code)
	assert.NotEmpty(t, remote.TraceID)
	assert.Equal(t, core.StateCodeSent, s.State())
}

func TestSessionDeliveryRejected(t *testing.T) {
	h := newHarness(t)

	_, err := h.session.RequestCode(context.Background(), core.Mobile{Prefix: "855", Number: "12"}, core.ProviderHuione)
	require.ErrorIs(t, err, core.ErrDelivery)
	var remote *core.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, sandbox.CodeBadRequest, remote.Code)
	assert.Equal(t, core.StateUnauthenticated, h.session.State())
}

func TestSessionExchangeTokenReusedAuthCode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.session

	codeID, err := s.RequestCode(ctx, testMobile, core.ProviderHuione)
	require.NoError(t, err)
	authCode, err := s.VerifyCode(ctx, testMobile, core.ProviderHuione, testSMSCode, codeID)
	require.NoError(t, err)
	eph, err := s.GenerateEphemeralForNetwork(ctx)
	require.NoError(t, err)

	_, err = s.ExchangeToken(ctx, core.ProviderHuione, authCode, core.LoginTypeSMS, eph.Nonce.Value)
	require.NoError(t, err)

	_, err = s.ExchangeToken(ctx, core.ProviderHuione, authCode, core.LoginTypeSMS, eph.Nonce.Value)
	require.ErrorIs(t, err, core.ErrAuth)
	var remote *core.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, sandbox.CodeInvalidAuthCode, remote.Code)
}

func TestSessionSignBindingMismatch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.session
	l := h.login(t, s)

	order, err := s.CreateTransferOrder(ctx, core.TransferRequest{ToAddress: recipient, Amount: decimal.NewFromInt(1)})
	require.NoError(t, err)

	other, err := core.GenerateEphemeralKeyPair(nil)
	require.NoError(t, err)

	_, err = s.SignTransaction(ctx, order, other, l.eph.MaxEpoch, l.proof)
	assert.ErrorIs(t, err, core.ErrSigning)
	assert.ErrorIs(t, err, core.ErrBindingMismatch)

	_, err = s.SignTransaction(ctx, order, l.eph.KeyPair, l.eph.MaxEpoch+1, l.proof)
	assert.ErrorIs(t, err, core.ErrSigning)
	assert.ErrorIs(t, err, core.ErrBindingMismatch)

	_, err = s.SignTransaction(ctx, order, l.eph.KeyPair, l.eph.MaxEpoch, nil)
	assert.ErrorIs(t, err, core.ErrBindingMismatch)

	// the order survives failed attempts
	_, err = s.SignTransaction(ctx, order, l.eph.KeyPair, l.eph.MaxEpoch, l.proof)
	require.NoError(t, err)
}

func TestSessionSignEpochExpired(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.session
	l := h.login(t, s)

	order, err := s.CreateTransferOrder(ctx, core.TransferRequest{ToAddress: recipient, Amount: decimal.NewFromInt(1)})
	require.NoError(t, err)

	h.backend.Ledger().SetEpoch(l.eph.MaxEpoch + 1)
	_, err = s.SignTransaction(ctx, order, l.eph.KeyPair, l.eph.MaxEpoch, l.proof)
	assert.ErrorIs(t, err, core.ErrSigning)
	assert.ErrorIs(t, err, core.ErrEpochExpired)
	assert.Equal(t, core.StateProofReady, s.State())

	h.backend.Ledger().SetEpoch(l.eph.MaxEpoch)
	_, err = s.SignTransaction(ctx, order, l.eph.KeyPair, l.eph.MaxEpoch, l.proof)
	require.NoError(t, err)
}

func TestSessionOrderSignedOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.session
	l := h.login(t, s)

	order, err := s.CreateTransferOrder(ctx, core.TransferRequest{ToAddress: recipient, Amount: decimal.NewFromInt(2)})
	require.NoError(t, err)

	_, err = s.SignTransaction(ctx, order, l.eph.KeyPair, l.eph.MaxEpoch, l.proof)
	require.NoError(t, err)

	_, err = s.SignTransaction(ctx, order, l.eph.KeyPair, l.eph.MaxEpoch, l.proof)
	assert.ErrorIs(t, err, core.ErrSigning)
	assert.ErrorIs(t, err, core.ErrOrderConsumed)
}

func TestSessionSignRejectsForeignSender(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.session
	l := h.login(t, s)

	pt := sui.NewBuilder()
	pt.PaySui(recipient, 1)
	raw := sui.NewProgrammable(recipient, nil, pt.Finish(), 1000, 1000).Bytes()

	_, err := s.SignTransaction(ctx, &core.TransferOrder{Hash: sui.TransactionDigest(raw), RawTransaction: raw}, l.eph.KeyPair, l.eph.MaxEpoch, l.proof)
	assert.ErrorIs(t, err, core.ErrSigning)
	assert.ErrorIs(t, err, core.ErrSenderMismatch)

	_, err = s.SignTransaction(ctx, &core.TransferOrder{Hash: "garbage", RawTransaction: []byte{0xff, 0x01}}, l.eph.KeyPair, l.eph.MaxEpoch, l.proof)
	assert.ErrorIs(t, err, core.ErrSigning)
}

func TestSessionSubmitExpiredSignature(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.session
	l := h.login(t, s)

	order, err := s.CreateTransferOrder(ctx, core.TransferRequest{ToAddress: recipient, Amount: decimal.NewFromInt(1)})
	require.NoError(t, err)
	signed, err := s.SignTransaction(ctx, order, l.eph.KeyPair, l.eph.MaxEpoch, l.proof)
	require.NoError(t, err)

	h.backend.Ledger().SetEpoch(l.eph.MaxEpoch + 1)
	_, err = s.SubmitTransaction(ctx, signed)
	require.ErrorIs(t, err, core.ErrSubmission)
	var remote *core.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, sandbox.CodeEpochExpired, remote.Code)
	assert.Equal(t, core.StateTxSigned, s.State())
	assert.Zero(t, h.backend.Ledger().Balance(recipient, sandbox.SuiCoinType))
}

func TestSessionRefreshToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.session
	l := h.login(t, s)

	refreshed, err := s.RefreshToken(ctx, l.eph.Nonce.Value)
	require.NoError(t, err)
	assert.NotEqual(t, l.auth.AccessToken, refreshed.AccessToken)
	assert.Equal(t, refreshed.AccessToken, s.Credential().AccessToken)
	assert.Equal(t, l.auth.Salt, refreshed.Salt)

	claims, err := s.claims.ParseIDToken(refreshed.JWT)
	require.NoError(t, err)
	assert.Equal(t, l.eph.Nonce.Value, claims.Nonce)

	// the previous access token is revoked
	_, err = h.api.TokenProfile(ctx, l.auth.Credential())
	require.ErrorIs(t, err, core.ErrAuth)
	var remote *core.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, sandbox.CodeTokenExpired, remote.Code)

	profile, err := s.TokenProfile(ctx)
	require.NoError(t, err)
	assert.Equal(t, l.auth.DID, profile.DID)

	// the proof fetched under the old token still signs
	order, err := s.CreateTransferOrder(ctx, core.TransferRequest{ToAddress: recipient, Amount: decimal.NewFromInt(1)})
	require.NoError(t, err)
	signed, err := s.SignTransaction(ctx, order, l.eph.KeyPair, l.eph.MaxEpoch, l.proof)
	require.NoError(t, err)
	_, err = s.SubmitTransaction(ctx, signed)
	require.NoError(t, err)
}

func TestSessionConcurrentRefresh(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.session
	l := h.login(t, s)

	const n = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		tokens   = make(map[string]int)
		failures int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			auth, err := s.RefreshToken(ctx, l.eph.Nonce.Value)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures++
				return
			}
			tokens[auth.AccessToken]++
		}()
	}
	wg.Wait()

	// late callers may rotate again, but every returned token was current when issued
	// and the session ends on a token the service accepts
	assert.Zero(t, failures)
	assert.NotEmpty(t, tokens)
	_, err := s.TokenProfile(ctx)
	require.NoError(t, err)
}

func TestSessionRefreshExpired(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.session
	l := h.login(t, s)
	before := s.Credential()

	h.advance(2 * time.Hour)

	auth, err := s.RefreshToken(ctx, l.eph.Nonce.Value)
	require.ErrorIs(t, err, core.ErrAuth)
	assert.Nil(t, auth)
	var remote *core.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, sandbox.CodeTokenExpired, remote.Code)

	assert.Equal(t, before, s.Credential())
	assert.Equal(t, core.StateProofReady, s.State())
}

func TestSessionFetchProofForeignNonce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.session

	codeID, err := s.RequestCode(ctx, testMobile, core.ProviderHuione)
	require.NoError(t, err)
	authCode, err := s.VerifyCode(ctx, testMobile, core.ProviderHuione, testSMSCode, codeID)
	require.NoError(t, err)
	eph, err := s.GenerateEphemeralForNetwork(ctx)
	require.NoError(t, err)
	auth, err := s.ExchangeToken(ctx, core.ProviderHuione, authCode, core.LoginTypeSMS, eph.Nonce.Value)
	require.NoError(t, err)

	other, err := s.GenerateEphemeralForNetwork(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, eph.Nonce.Value, other.Nonce.Value)

	_, err = s.FetchProof(ctx, ProofRequest{
		MaxEpoch:   other.MaxEpoch,
		Randomness: other.Randomness,
		KeyPair:    other.KeyPair,
		JWT:        auth.JWT,
		Salt:       auth.Salt,
	})
	assert.ErrorIs(t, err, core.ErrProof)
	assert.ErrorIs(t, err, core.ErrBindingMismatch)

	_, err = s.FetchProof(ctx, ProofRequest{
		MaxEpoch:   eph.MaxEpoch,
		Randomness: eph.Randomness,
		KeyPair:    eph.KeyPair,
		JWT:        "not-a-jwt",
		Salt:       auth.Salt,
	})
	assert.ErrorIs(t, err, core.ErrProof)
	assert.Equal(t, core.StateAuthenticated, s.State())
	assert.Nil(t, s.Proof())

	proof, err := s.FetchProof(ctx, ProofRequest{
		MaxEpoch:   eph.MaxEpoch,
		Randomness: eph.Randomness,
		KeyPair:    eph.KeyPair,
		JWT:        auth.JWT,
		Salt:       auth.Salt,
	})
	require.NoError(t, err)
	assert.Equal(t, "https://accounts.google.com", proof.Issuer)
}

func TestSessionExchangeTokenInvalidLoginType(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.session

	codeID, err := s.RequestCode(ctx, testMobile, core.ProviderHuione)
	require.NoError(t, err)
	authCode, err := s.VerifyCode(ctx, testMobile, core.ProviderHuione, testSMSCode, codeID)
	require.NoError(t, err)

	_, err = s.ExchangeToken(ctx, core.ProviderHuione, authCode, core.LoginType("password"), "nonce")
	require.ErrorIs(t, err, core.ErrAuth)
	assert.False(t, s.HasToken())
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

func TestSessionNonceReuse(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := NewSession(h.api, h.chain, h.store, events.NewWatermillPublisher(h.pubSub), nil, Options{Rand: zeroReader{}})

	first, err := s.GenerateEphemeral(ctx, 10, 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(15), first.MaxEpoch)

	_, err = s.GenerateEphemeral(ctx, 10, 5)
	assert.ErrorIs(t, err, core.ErrAuth)
	assert.ErrorIs(t, err, core.ErrNonceReused)
	assert.Same(t, first, s.Ephemeral())

	_, err = s.GenerateEphemeral(ctx, ^uint64(0)-1, 5)
	assert.ErrorIs(t, err, core.ErrAuth)
}

func TestSessionGenerateEphemeralDefaults(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	a, err := h.session.GenerateEphemeral(ctx, 7, 0)
	require.NoError(t, err)
	b, err := h.session.GenerateEphemeral(ctx, 7, 0)
	require.NoError(t, err)

	assert.Equal(t, uint64(7+DefaultEpochWindow), a.MaxEpoch)
	assert.NotEqual(t, a.Nonce.Value, b.Nonce.Value)
	assert.NotEqual(t, a.KeyPair.PublicKey(), b.KeyPair.PublicKey())
	assert.Equal(t, core.StateUnauthenticated, h.session.State())
}

func TestSessionLogout(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s := h.session
	l := h.login(t, s)

	logouts, err := h.pubSub.Subscribe(ctx, events.TopicLogout)
	require.NoError(t, err)

	require.NoError(t, s.Logout(ctx))
	assert.Equal(t, core.StateUnauthenticated, s.State())
	assert.False(t, s.HasToken())
	assert.Nil(t, s.Proof())
	assert.True(t, l.eph.KeyPair.Destroyed())

	_, err = l.eph.KeyPair.Sign([]byte("msg"))
	assert.Error(t, err)

	select {
	case msg := <-logouts:
		var ev events.SessionEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &ev))
		assert.Equal(t, l.auth.DID, ev.DID)
		msg.Ack()
	case <-ctx.Done():
		t.Fatal("no logout event")
	}

	// a fresh login on the same session works again
	l2 := h.login(t, s)
	assert.Equal(t, l.proof.Address, l2.proof.Address)
}

func TestSessionsAreIndependent(t *testing.T) {
	h := newHarness(t)
	a := h.newSession()
	b := h.newSession()

	la := h.login(t, a)
	assert.Equal(t, core.StateUnauthenticated, b.State())

	lb := h.login(t, b)
	assert.Equal(t, la.proof.Address, lb.proof.Address)
	assert.NotEqual(t, la.auth.AccessToken, lb.auth.AccessToken)
	assert.NotEqual(t, la.eph.Nonce.Value, lb.eph.Nonce.Value)
}
