package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/layer-3/onewallet/core"
	"github.com/layer-3/onewallet/internal/sui"
	"github.com/layer-3/onewallet/internal/zk"
	"github.com/layer-3/onewallet/ports"
)

// DefaultEpochWindow is how many epochs an ephemeral key stays valid.
const DefaultEpochWindow = 30

// Options tunes a Session. Zero values select defaults.
type Options struct {
	EpochWindow  uint64
	NonceTTL     time.Duration
	KeyClaimName string
	// RefreshTimeout bounds a shared token refresh, which outlives any single caller's context.
	RefreshTimeout time.Duration
	Logger         logrus.FieldLogger
	Rand           io.Reader
	Now            func() time.Time
}

// Session drives one end user through SMS login, zkLogin proof retrieval and transaction signing.
// It is safe for concurrent use; independent sessions share nothing but their collaborators.
type Session struct {
	api    ports.WalletAPI
	chain  ports.EpochSource
	store  ports.Store
	events ports.EventPublisher
	claims ports.ClaimsParser

	window       uint64
	nonceTTL     time.Duration
	keyClaimName string
	refreshLimit time.Duration
	log          logrus.FieldLogger
	rand         io.Reader
	now          func() time.Time

	mu        sync.RWMutex
	state     core.State
	auth      *core.AuthSession
	ephemeral *core.Ephemeral
	proof     *core.ZkProof

	// tokenMu keeps at most one token exchange or refresh in flight.
	tokenMu sync.Mutex
	refresh singleflight.Group
}

// NewSession creates a session in the Unauthenticated state.
func NewSession(
	api ports.WalletAPI,
	chain ports.EpochSource,
	store ports.Store,
	events ports.EventPublisher,
	claims ports.ClaimsParser,
	opts Options,
) *Session {
	s := &Session{
		api:          api,
		chain:        chain,
		store:        store,
		events:       events,
		claims:       claims,
		window:       opts.EpochWindow,
		nonceTTL:     opts.NonceTTL,
		keyClaimName: opts.KeyClaimName,
		refreshLimit: opts.RefreshTimeout,
		log:          opts.Logger,
		rand:         opts.Rand,
		now:          opts.Now,
	}
	if s.window == 0 {
		s.window = DefaultEpochWindow
	}
	if s.nonceTTL == 0 {
		s.nonceTTL = 30 * 24 * time.Hour
	}
	if s.keyClaimName == "" {
		s.keyClaimName = core.DefaultKeyClaimName
	}
	if s.refreshLimit <= 0 {
		s.refreshLimit = 30 * time.Second
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	if s.rand == nil {
		s.rand = rand.Reader
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// State returns the current step of the handshake.
func (s *Session) State() core.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Credential returns the bearer credential, empty before token exchange.
func (s *Session) Credential() core.Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.auth == nil {
		return core.Credential{}
	}
	return s.auth.Credential()
}

// HasToken reports whether the session holds a credential.
func (s *Session) HasToken() bool {
	return !s.Credential().Empty()
}

// AuthSession returns a copy of the server issued session.
func (s *Session) AuthSession() (core.AuthSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.auth == nil {
		return core.AuthSession{}, false
	}
	return *s.auth, true
}

// Ephemeral returns the ephemeral material generated last.
func (s *Session) Ephemeral() *core.Ephemeral {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ephemeral
}

// Proof returns the proof fetched last.
func (s *Session) Proof() *core.ZkProof {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.proof
}

// Address returns the zkLogin address once a proof is ready.
func (s *Session) Address() (core.Address, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.proof == nil {
		return core.Address{}, false
	}
	return s.proof.Address, true
}

func (s *Session) logger(op string) logrus.FieldLogger {
	return s.log.WithFields(logrus.Fields{"op": op, "state": s.State().String()})
}

// require checks the state under the read lock and returns an error of the given kind otherwise.
func (s *Session) require(kind error, allowed ...core.State) error {
	state := s.State()
	for _, a := range allowed {
		if state == a {
			return nil
		}
	}
	return fmt.Errorf("%w: %w: %s", kind, core.ErrInvalidState, state)
}

// transition moves from any of the allowed states to next.
func (s *Session) transition(next core.State, allowed ...core.State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range allowed {
		if s.state == a {
			s.state = next
			return true
		}
	}
	return false
}

// RequestCode asks the wallet service to send an SMS code. It is never retried.
func (s *Session) RequestCode(ctx context.Context, mobile core.Mobile, provider core.Provider) (string, error) {
	if err := s.require(core.ErrDelivery, core.StateUnauthenticated, core.StateCodeSent); err != nil {
		return "", err
	}

	codeID, err := s.api.SendCode(ctx, mobile, provider)
	if err != nil {
		s.logger("request_code").WithError(err).Warn("sms delivery failed")
		return "", kinded(core.ErrDelivery, err)
	}
	if codeID == "" {
		return "", fmt.Errorf("%w: empty code id", core.ErrDelivery)
	}

	s.transition(core.StateCodeSent, core.StateUnauthenticated, core.StateCodeSent)
	s.logger("request_code").WithField("mobile_prefix", mobile.Prefix).Info("sms code sent")
	return codeID, nil
}

// VerifyCode exchanges the SMS code for a short lived authorization code.
func (s *Session) VerifyCode(ctx context.Context, mobile core.Mobile, provider core.Provider, smsCode, codeID string) (string, error) {
	if err := s.require(core.ErrAuth, core.StateCodeSent); err != nil {
		return "", err
	}

	authCode, err := s.api.AuthenticateSMS(ctx, core.SMSVerification{
		Mobile:   mobile,
		Provider: provider,
		SMSCode:  smsCode,
		CodeID:   codeID,
	})
	if err != nil {
		return "", kinded(core.ErrAuth, err)
	}
	if authCode == "" {
		return "", fmt.Errorf("%w: empty authorization code", core.ErrAuth)
	}

	if !s.transition(core.StateAuthenticated, core.StateCodeSent) {
		return "", fmt.Errorf("%w: %w: session changed during verification", core.ErrAuth, core.ErrInvalidState)
	}
	return authCode, nil
}

// GenerateEphemeral creates a fresh keypair valid until currentEpoch+window and the nonce that
// commits to it. The randomness is registered so it can never be handed out twice.
func (s *Session) GenerateEphemeral(ctx context.Context, currentEpoch, window uint64) (*core.Ephemeral, error) {
	if window == 0 {
		window = s.window
	}
	if currentEpoch > math.MaxUint64-window {
		return nil, fmt.Errorf("%w: epoch window overflows", core.ErrAuth)
	}
	maxEpoch := currentEpoch + window

	kp, err := core.GenerateEphemeralKeyPair(s.rand)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrAuth, err)
	}
	randomness, err := zk.ReadRandomness(s.rand)
	if err != nil {
		kp.Destroy()
		return nil, fmt.Errorf("%w: %w", core.ErrAuth, err)
	}
	nonce, err := zk.NewNonce(kp.PublicKey(), maxEpoch, randomness)
	if err != nil {
		kp.Destroy()
		return nil, fmt.Errorf("%w: %w", core.ErrAuth, err)
	}

	claimed, err := s.store.Claim(ctx, nonceKey(randomness), s.nonceTTL)
	if err != nil {
		kp.Destroy()
		return nil, fmt.Errorf("%w: %w", core.ErrAuth, err)
	}
	if !claimed {
		kp.Destroy()
		return nil, fmt.Errorf("%w: %w", core.ErrAuth, core.ErrNonceReused)
	}

	eph := &core.Ephemeral{KeyPair: kp, MaxEpoch: maxEpoch, Randomness: randomness, Nonce: nonce}

	s.mu.Lock()
	s.ephemeral = eph
	s.mu.Unlock()

	s.logger("generate_ephemeral").WithField("max_epoch", maxEpoch).Debug("ephemeral key generated")
	return eph, nil
}

// GenerateEphemeralForNetwork reads the current epoch from the network and uses the configured window.
func (s *Session) GenerateEphemeralForNetwork(ctx context.Context) (*core.Ephemeral, error) {
	epoch, err := s.chain.CurrentEpoch(ctx)
	if err != nil {
		return nil, err
	}
	return s.GenerateEphemeral(ctx, epoch, s.window)
}

func nonceKey(r *uint256.Int) string {
	return "nonce:" + r.Dec()
}

// ExchangeToken trades the authorization code for an access token and JWT bound to nonce.
func (s *Session) ExchangeToken(ctx context.Context, provider core.Provider, authCode string, loginType core.LoginType, nonce string) (*core.AuthSession, error) {
	if err := s.require(core.ErrAuth, core.StateAuthenticated); err != nil {
		return nil, err
	}

	s.tokenMu.Lock()
	defer s.tokenMu.Unlock()

	auth, err := s.api.GetToken(ctx, core.TokenRequest{
		Provider:  provider,
		Code:      authCode,
		LoginType: loginType,
		Nonce:     nonce,
	})
	if err != nil {
		return nil, kinded(core.ErrAuth, err)
	}
	if err := s.checkIssued(auth, nonce); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.state != core.StateAuthenticated {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %w: session changed during token exchange", core.ErrAuth, core.ErrInvalidState)
	}
	s.auth = auth
	s.mu.Unlock()

	if err := s.events.PublishAuthenticated(ctx, auth.DID, auth.Profile.Jti); err != nil {
		s.logger("exchange_token").WithError(err).Warn("failed to publish authenticated event")
	}

	out := *auth
	return &out, nil
}

// checkIssued validates a freshly issued session before it replaces the credential.
func (s *Session) checkIssued(auth *core.AuthSession, nonce string) error {
	if auth == nil || auth.AccessToken == "" || auth.JWT == "" {
		return fmt.Errorf("%w: incomplete token response", core.ErrAuth)
	}
	claims, err := s.claims.ParseIDToken(auth.JWT)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrAuth, err)
	}
	if claims.Nonce != nonce {
		return fmt.Errorf("%w: %w: jwt nonce does not match", core.ErrAuth, core.ErrBindingMismatch)
	}
	return nil
}

// RefreshToken re-authorizes with the same nonce. Concurrent calls share one remote request.
// On failure the previous session is never returned. The shared request is not cancelled when one
// caller gives up; that caller alone returns early with a transport error.
func (s *Session) RefreshToken(ctx context.Context, nonce string) (*core.AuthSession, error) {
	if !s.HasToken() {
		return nil, fmt.Errorf("%w: %w", core.ErrAuth, core.ErrNotAuthenticated)
	}

	ch := s.refresh.DoChan(nonce, func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.refreshLimit)
		defer cancel()

		s.tokenMu.Lock()
		defer s.tokenMu.Unlock()

		cred := s.Credential()
		if cred.Empty() {
			return nil, fmt.Errorf("%w: %w", core.ErrAuth, core.ErrNotAuthenticated)
		}

		auth, err := s.api.RefreshToken(ctx, cred, nonce)
		if err != nil {
			return nil, kinded(core.ErrAuth, err)
		}
		if err := s.checkIssued(auth, nonce); err != nil {
			return nil, err
		}
		if exp := auth.ExpiresAt(); !exp.IsZero() && !s.now().Before(exp) {
			return nil, fmt.Errorf("%w: %w", core.ErrAuth, core.ErrSessionExpired)
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.auth == nil || s.auth.AccessToken != cred.AccessToken {
			return nil, fmt.Errorf("%w: %w: credential changed during refresh", core.ErrAuth, core.ErrInvalidState)
		}
		s.auth = auth
		return *auth, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", core.ErrTransport, ctx.Err())
	case res = <-ch:
	}
	if res.Err != nil {
		s.logger("refresh_token").WithError(res.Err).Warn("token refresh failed")
		return nil, res.Err
	}

	out := res.Val.(core.AuthSession)
	return &out, nil
}

// ProofRequest names the inputs of FetchProof.
type ProofRequest struct {
	MaxEpoch     uint64
	Randomness   *uint256.Int
	KeyPair      *core.EphemeralKeyPair
	JWT          string
	Salt         string
	KeyClaimName string
}

// FetchProof checks the JWT locally, asks the prover for the proof and derives the zkLogin address.
func (s *Session) FetchProof(ctx context.Context, req ProofRequest) (*core.ZkProof, error) {
	if err := s.require(core.ErrProof, core.StateAuthenticated, core.StateProofReady, core.StateTxSigned); err != nil {
		return nil, err
	}
	cred := s.Credential()
	if cred.Empty() {
		return nil, fmt.Errorf("%w: %w", core.ErrProof, core.ErrNotAuthenticated)
	}
	if req.KeyPair == nil || req.KeyPair.Destroyed() {
		return nil, fmt.Errorf("%w: %w: no usable ephemeral key", core.ErrProof, core.ErrBindingMismatch)
	}
	if req.Randomness == nil {
		return nil, fmt.Errorf("%w: missing randomness", core.ErrProof)
	}
	claimName := req.KeyClaimName
	if claimName == "" {
		claimName = s.keyClaimName
	}

	claims, err := s.claims.ParseIDToken(req.JWT)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrProof, err)
	}
	if !claims.ExpiresAt.IsZero() && !s.now().Before(claims.ExpiresAt) {
		return nil, fmt.Errorf("%w: %w: jwt expired at %s", core.ErrProof, core.ErrSessionExpired, claims.ExpiresAt)
	}
	claimValue, ok := claims.Claim(claimName)
	if !ok {
		return nil, fmt.Errorf("%w: %w: missing claim %q", core.ErrProof, core.ErrMalformedJWT, claimName)
	}

	publicKey := req.KeyPair.PublicKey()
	nonce, err := zk.NewNonce(publicKey, req.MaxEpoch, req.Randomness)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrProof, err)
	}
	if claims.Nonce != nonce.Value {
		return nil, fmt.Errorf("%w: %w: jwt nonce was not derived from this key", core.ErrProof, core.ErrBindingMismatch)
	}

	proof, err := s.api.ZkProofs(ctx, cred, core.ProofRequest{
		MaxEpoch:          req.MaxEpoch,
		Randomness:        req.Randomness,
		ExtendedPublicKey: zk.ExtendedPublicKey(req.KeyPair.Scheme(), publicKey),
		JWT:               req.JWT,
		Salt:              req.Salt,
		KeyClaimName:      claimName,
	})
	if err != nil {
		s.logger("fetch_proof").WithError(err).Warn("proof request failed")
		return nil, err
	}

	seed, err := zk.AddressSeed(req.Salt, claimName, claimValue, claims.Audience)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrProof, err)
	}
	iss, err := zk.DecodeClaim(proof.IssBase64Details, "iss")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrProof, err)
	}
	if zk.NormalizeIssuer(iss) != zk.NormalizeIssuer(claims.Issuer) {
		return nil, fmt.Errorf("%w: proof issuer %q does not match jwt issuer %q", core.ErrProof, iss, claims.Issuer)
	}
	address, err := zk.Address(iss, seed)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrProof, err)
	}

	proof.AddressSeed = seed
	proof.Issuer = iss
	proof.KeyClaimName = claimName
	proof.Address = address
	proof.Binding = core.ProofBinding{PublicKey: publicKey, MaxEpoch: req.MaxEpoch, Nonce: nonce.Value}

	s.mu.Lock()
	if s.state != core.StateAuthenticated && s.state != core.StateProofReady && s.state != core.StateTxSigned {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %w: session changed during proof fetch", core.ErrProof, core.ErrInvalidState)
	}
	s.proof = proof
	s.state = core.StateProofReady
	s.mu.Unlock()

	s.logger("fetch_proof").WithField("address", address.String()).Info("proof ready")
	return proof, nil
}

// SignTransaction produces the zkLogin signature for order. Every guard runs locally before anything
// is signed; the order is consumed only once a signature exists.
func (s *Session) SignTransaction(ctx context.Context, order *core.TransferOrder, kp *core.EphemeralKeyPair, maxEpoch uint64, proof *core.ZkProof) (*core.SignedTransaction, error) {
	if err := s.require(core.ErrSigning, core.StateProofReady, core.StateTxSigned); err != nil {
		return nil, err
	}
	if order == nil || len(order.RawTransaction) == 0 {
		return nil, fmt.Errorf("%w: %w: empty order", core.ErrSigning, core.ErrInvalidTx)
	}
	if kp == nil || kp.Destroyed() {
		return nil, fmt.Errorf("%w: %w: no usable ephemeral key", core.ErrSigning, core.ErrBindingMismatch)
	}
	if !proof.Matches(kp.PublicKey(), maxEpoch) {
		return nil, fmt.Errorf("%w: %w", core.ErrSigning, core.ErrBindingMismatch)
	}

	epoch, err := s.chain.CurrentEpoch(ctx)
	if err != nil {
		return nil, err
	}
	if epoch > maxEpoch {
		return nil, fmt.Errorf("%w: %w: current epoch %d, max epoch %d", core.ErrSigning, core.ErrEpochExpired, epoch, maxEpoch)
	}

	tx, err := sui.DecodeTransactionData(order.RawTransaction)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrSigning, err)
	}
	if tx.Sender != proof.Address {
		return nil, fmt.Errorf("%w: %w: sender %s", core.ErrSigning, core.ErrSenderMismatch, tx.Sender)
	}

	userSig, err := sui.SignTransaction(kp, order.RawTransaction)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrSigning, err)
	}
	sig := sui.NewZkLoginSignature(proof, maxEpoch, userSig)

	if order.Hash != "" {
		claimed, err := s.store.Claim(ctx, "order:"+order.Hash, 0)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", core.ErrSigning, err)
		}
		if !claimed {
			return nil, fmt.Errorf("%w: %w: %s", core.ErrSigning, core.ErrOrderConsumed, order.Hash)
		}
	}

	if !s.transition(core.StateTxSigned, core.StateProofReady, core.StateTxSigned) {
		return nil, fmt.Errorf("%w: %w: session changed during signing", core.ErrSigning, core.ErrInvalidState)
	}

	return &core.SignedTransaction{
		OrderHash:     order.Hash,
		TxBytes:       append([]byte(nil), order.RawTransaction...),
		UserSignature: sig.Base64(),
		Digest:        sui.TransactionDigest(order.RawTransaction),
	}, nil
}

// SubmitTransaction sends a signed transfer order. It is never retried.
func (s *Session) SubmitTransaction(ctx context.Context, signed *core.SignedTransaction) (*core.TxResult, error) {
	return s.submit(ctx, signed, "", false)
}

// SubmitSponsoredTransaction sends a signed sponsored transaction under its gas reservation.
func (s *Session) SubmitSponsoredTransaction(ctx context.Context, reservationID string, signed *core.SignedTransaction) (*core.TxResult, error) {
	if reservationID == "" {
		return nil, fmt.Errorf("%w: missing reservation id", core.ErrSubmission)
	}
	return s.submit(ctx, signed, reservationID, true)
}

func (s *Session) submit(ctx context.Context, signed *core.SignedTransaction, reservationID string, sponsored bool) (*core.TxResult, error) {
	if err := s.require(core.ErrSubmission, core.StateTxSigned); err != nil {
		return nil, err
	}
	if signed == nil || len(signed.TxBytes) == 0 || signed.UserSignature == "" {
		return nil, fmt.Errorf("%w: %w: unsigned transaction", core.ErrSubmission, core.ErrInvalidTx)
	}
	cred := s.Credential()
	if cred.Empty() {
		return nil, fmt.Errorf("%w: %w", core.ErrSubmission, core.ErrNotAuthenticated)
	}

	var (
		res *core.TxResult
		err error
	)
	if sponsored {
		res, err = s.api.ProxyPay(ctx, cred, reservationID, *signed)
	} else {
		res, err = s.api.SendTransaction(ctx, cred, *signed)
	}
	if err != nil {
		s.logger("submit").WithError(err).Warn("transaction submission failed")
		return nil, err
	}
	if res.Hash == "" {
		return nil, fmt.Errorf("%w: empty transaction hash", core.ErrSubmission)
	}

	s.transition(core.StateProofReady, core.StateTxSigned)

	sender := ""
	if addr, ok := s.Address(); ok {
		sender = addr.String()
	}
	if err := s.events.PublishTxSubmitted(ctx, sender, res.Hash, sponsored); err != nil {
		s.logger("submit").WithError(err).Warn("failed to publish submitted event")
	}

	s.logger("submit").WithFields(logrus.Fields{"hash": res.Hash, "sponsored": sponsored}).Info("transaction submitted")
	return res, nil
}

// Logout drops the credential and destroys the key material held by the session.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	auth := s.auth
	eph := s.ephemeral
	s.auth = nil
	s.ephemeral = nil
	s.proof = nil
	s.state = core.StateUnauthenticated
	s.mu.Unlock()

	if eph != nil && eph.KeyPair != nil {
		eph.KeyPair.Destroy()
	}
	if auth == nil {
		return nil
	}

	if err := s.events.PublishLogout(ctx, auth.DID, auth.Profile.Jti); err != nil {
		// the credential is already gone, which is what matters
		s.logger("logout").WithError(err).Warn("failed to publish logout event")
	}
	return nil
}

// kinded wraps err in kind unless it already carries an error kind.
func kinded(kind, err error) error {
	for _, k := range []error{core.ErrDelivery, core.ErrAuth, core.ErrProof, core.ErrSigning, core.ErrSubmission, core.ErrTransport} {
		if errors.Is(err, k) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", kind, err)
}
