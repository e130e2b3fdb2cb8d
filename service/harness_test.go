package service

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/onewallet/adapters/chain"
	"github.com/layer-3/onewallet/adapters/events"
	"github.com/layer-3/onewallet/adapters/rest"
	"github.com/layer-3/onewallet/adapters/store"
	"github.com/layer-3/onewallet/adapters/tokenizer"
	"github.com/layer-3/onewallet/core"
	"github.com/layer-3/onewallet/internal/retrier"
	"github.com/layer-3/onewallet/ports"
	"github.com/layer-3/onewallet/sandbox"
	transport "github.com/layer-3/onewallet/transport/http"
)

const (
	testMerchantID = "M-0001"
	testSMSCode    = "246810"
)

var (
	merchantOnce sync.Once
	merchantPriv *rsa.PrivateKey
	merchantB64  string
)

func testMerchant(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	merchantOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
		der, err := x509.MarshalPKCS8PrivateKey(key)
		require.NoError(t, err)
		merchantPriv, merchantB64 = key, base64.StdEncoding.EncodeToString(der)
	})
	return merchantPriv, merchantB64
}

// harness runs a session against the sandbox over real HTTP and JSON-RPC.
type harness struct {
	backend *sandbox.Backend
	api     *rest.Client
	chain   *chain.Client
	store   ports.Store
	pubSub  *gochannel.GoChannel
	session *Session

	mu  sync.Mutex
	now time.Time
}

func (h *harness) clock() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.now
}

func (h *harness) advance(d time.Duration) {
	h.mu.Lock()
	h.now = h.now.Add(d)
	h.mu.Unlock()
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger, _ := test.NewNullLogger()

	priv, b64 := testMerchant(t)
	signKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	h := &harness{now: time.Now(), store: store.NewMemoryStore()}
	h.backend = sandbox.NewBackend(sandbox.Config{
		MerchantID:  testMerchantID,
		MerchantKey: &priv.PublicKey,
		SMSCode:     testSMSCode,
		Logger:      logger,
		Now:         h.clock,
	}, tokenizer.NewJWTTokenizer(signKey), store.NewMemoryStore())

	router, err := transport.SetupRouter(h.backend, logger)
	require.NoError(t, err)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	signer, err := rest.NewMerchantSigner(testMerchantID, b64)
	require.NoError(t, err)
	policy := retrier.Policy{Attempts: 2, Base: time.Millisecond, Factor: 2}
	h.api, err = rest.New(rest.Options{BaseURL: srv.URL, Merchant: signer, Retry: policy, Logger: logger})
	require.NoError(t, err)

	h.chain, err = chain.Dial(srv.URL+transport.RPCPath, logger)
	require.NoError(t, err)
	h.chain.WithRetry(policy)
	t.Cleanup(h.chain.Close)

	h.pubSub = gochannel.NewGoChannel(gochannel.Config{Persistent: true}, events.NewLogrusAdapter(logger))
	t.Cleanup(func() { _ = h.pubSub.Close() })

	h.session = h.newSession()
	return h
}

func (h *harness) newSession() *Session {
	logger, _ := test.NewNullLogger()
	return NewSession(h.api, h.chain, h.store, events.NewWatermillPublisher(h.pubSub), tokenizer.NewParser(), Options{
		Logger: logger,
		Now:    h.clock,
	})
}

var testMobile = core.Mobile{Prefix: "855", Number: "123123123"}

// loggedIn is a session that completed the handshake.
type loggedIn struct {
	eph   *core.Ephemeral
	auth  *core.AuthSession
	proof *core.ZkProof
}

func (h *harness) authenticate(t *testing.T, s *Session) {
	t.Helper()
	ctx := context.Background()
	codeID, err := s.RequestCode(ctx, testMobile, core.ProviderHuione)
	require.NoError(t, err)
	require.NotEmpty(t, codeID)
	_, err = s.VerifyCode(ctx, testMobile, core.ProviderHuione, testSMSCode, codeID)
	require.NoError(t, err)
}

func (h *harness) login(t *testing.T, s *Session) *loggedIn {
	t.Helper()
	ctx := context.Background()

	codeID, err := s.RequestCode(ctx, testMobile, core.ProviderHuione)
	require.NoError(t, err)
	authCode, err := s.VerifyCode(ctx, testMobile, core.ProviderHuione, testSMSCode, codeID)
	require.NoError(t, err)

	eph, err := s.GenerateEphemeralForNetwork(ctx)
	require.NoError(t, err)
	auth, err := s.ExchangeToken(ctx, core.ProviderHuione, authCode, core.LoginTypeSMS, eph.Nonce.Value)
	require.NoError(t, err)

	proof, err := s.FetchProof(ctx, ProofRequest{
		MaxEpoch:   eph.MaxEpoch,
		Randomness: eph.Randomness,
		KeyPair:    eph.KeyPair,
		JWT:        auth.JWT,
		Salt:       auth.Salt,
	})
	require.NoError(t, err)
	return &loggedIn{eph: eph, auth: auth, proof: proof}
}
