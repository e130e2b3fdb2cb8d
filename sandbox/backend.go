// Package sandbox emulates the wallet service, the prover and the network in memory. It backs
// the integration tests and the `onewallet sandbox` command.
package sandbox

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/layer-3/onewallet/adapters/rest"
	"github.com/layer-3/onewallet/core"
	"github.com/layer-3/onewallet/ports"
)

// Config tunes the sandbox. Zero values select defaults.
type Config struct {
	MerchantID string
	// MerchantKey verifies merchant-signed requests; nil accepts any signature.
	MerchantKey *rsa.PublicKey
	// SMSCode is the code every SMS "delivers".
	SMSCode    string
	Issuer     string
	Audience   string
	CodeTTL    time.Duration
	AccessTTL  time.Duration
	IDTokenTTL time.Duration
	Epoch      uint64
	GasPrice   uint64
	GasBudget  uint64
	// Faucet is the MIST balance minted to every new wallet.
	Faucet uint64
	Logger logrus.FieldLogger
	Now    func() time.Time
}

func (c *Config) defaults() {
	if c.SMSCode == "" {
		c.SMSCode = "123456"
	}
	if c.Issuer == "" {
		c.Issuer = "https://accounts.google.com"
	}
	if c.Audience == "" {
		c.Audience = "onewallet-sandbox"
	}
	if c.CodeTTL == 0 {
		c.CodeTTL = 5 * time.Minute
	}
	if c.AccessTTL == 0 {
		c.AccessTTL = time.Hour
	}
	if c.IDTokenTTL == 0 {
		c.IDTokenTTL = time.Hour
	}
	if c.Epoch == 0 {
		c.Epoch = 100
	}
	if c.GasPrice == 0 {
		c.GasPrice = 1000
	}
	if c.GasBudget == 0 {
		c.GasBudget = 10_000_000
	}
	if c.Faucet == 0 {
		c.Faucet = 10_000_000_000
	}
	if c.Logger == nil {
		c.Logger = logrus.StandardLogger()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

type smsCode struct {
	mobile   string
	provider string
	code     string
	expires  time.Time
}

type authCode struct {
	mobile   string
	provider string
	expires  time.Time
}

type user struct {
	DID      string
	UserNo   string
	Mobile   string
	Provider string
	Salt     string
	Nickname string
	Wallets  []core.Address
}

// Session is an access token the sandbox issued.
type Session struct {
	TokenID string
	Nonce   string
	Expires time.Time
	user    *user
}

// Backend holds all sandbox state. It is safe for concurrent use.
type Backend struct {
	cfg    Config
	tokens ports.Tokenizer
	store  ports.Store
	ledger *Ledger
	log    logrus.FieldLogger

	mu           sync.Mutex
	codes        map[string]*smsCode
	authCodes    map[string]*authCode
	users        map[string]*user
	sessions     map[string]*Session
	proofs       map[string]*issuedProof
	orders       map[string]*order
	reservations map[string]*reservation
	sponsor      core.Address
}

// NewBackend creates a sandbox backend.
func NewBackend(cfg Config, tokens ports.Tokenizer, store ports.Store) *Backend {
	cfg.defaults()
	b := &Backend{
		cfg:          cfg,
		tokens:       tokens,
		store:        store,
		ledger:       newLedger(cfg.Epoch, cfg.GasPrice),
		log:          cfg.Logger.WithField("component", "sandbox"),
		codes:        make(map[string]*smsCode),
		authCodes:    make(map[string]*authCode),
		users:        make(map[string]*user),
		sessions:     make(map[string]*Session),
		proofs:       make(map[string]*issuedProof),
		orders:       make(map[string]*order),
		reservations: make(map[string]*reservation),
	}
	b.sponsor = core.MustParseAddress("0x5e0" + strings.Repeat("0", 58) + "1")
	b.ledger.Mint(b.sponsor, SuiCoinType, 1_000_000*1_000_000_000)
	return b
}

// Ledger returns the emulated network.
func (b *Backend) Ledger() *Ledger {
	return b.ledger
}

// MerchantID is the merchant signed requests must name; empty accepts any.
func (b *Backend) MerchantID() string {
	return b.cfg.MerchantID
}

// MerchantKey returns the key merchant signatures are checked against.
func (b *Backend) MerchantKey() *rsa.PublicKey {
	return b.cfg.MerchantKey
}

func (b *Backend) now() time.Time {
	return b.cfg.Now()
}

// SendCode starts an SMS login and returns the code id.
func (b *Backend) SendCode(ctx context.Context, req rest.SendCodeRequest) (string, error) {
	mobile, err := core.NewMobile(req.MobilePrefix, req.Mobile)
	if err != nil {
		return "", reject(CodeBadRequest, "%v", err)
	}
	if _, err := core.ParseProvider(req.Provider); err != nil {
		return "", reject(CodeBadRequest, "%v", err)
	}

	codeID := uuid.New().String()
	b.mu.Lock()
	b.codes[codeID] = &smsCode{
		mobile:   mobile.String(),
		provider: req.Provider,
		code:     b.cfg.SMSCode,
		expires:  b.now().Add(b.cfg.CodeTTL),
	}
	b.mu.Unlock()

	b.log.WithFields(logrus.Fields{"code_id": codeID, "mobile_prefix": mobile.Prefix}).Info("sms code sent")
	return codeID, nil
}

// AuthenticateSMS consumes an SMS code and returns a one-time authorization code.
func (b *Backend) AuthenticateSMS(ctx context.Context, req rest.AuthenticateSMSRequest) (*rest.AuthenticateSMSResponse, error) {
	mobile, err := core.NewMobile(req.MobilePrefix, req.Mobile)
	if err != nil {
		return nil, reject(CodeBadRequest, "%v", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	code, ok := b.codes[req.Code]
	if !ok || code.mobile != mobile.String() || code.provider != req.Provider {
		return nil, reject(CodeInvalidSMSCode, "unknown code id")
	}
	if b.now().After(code.expires) {
		delete(b.codes, req.Code)
		return nil, reject(CodeInvalidSMSCode, "sms code expired")
	}
	if code.code != req.SMSCode {
		return nil, reject(CodeInvalidSMSCode, "sms code mismatch")
	}
	delete(b.codes, req.Code)

	auth := uuid.New().String()
	b.authCodes[auth] = &authCode{mobile: code.mobile, provider: code.provider, expires: b.now().Add(b.cfg.CodeTTL)}
	return &rest.AuthenticateSMSResponse{Code: auth}, nil
}

// GetToken trades an authorization code for an access token and an id token carrying nonce.
func (b *Backend) GetToken(ctx context.Context, req rest.TokenRequest) (*rest.TokenResponse, error) {
	if _, err := core.ParseLoginType(req.LoginType); err != nil {
		return nil, reject(CodeBadRequest, "%v", err)
	}
	if req.Nonce == "" {
		return nil, reject(CodeBadRequest, "missing nonce")
	}

	b.mu.Lock()
	code, ok := b.authCodes[req.Code]
	if ok {
		delete(b.authCodes, req.Code)
	}
	b.mu.Unlock()
	if !ok || code.provider != req.Provider {
		return nil, reject(CodeInvalidAuthCode, "unknown authorization code")
	}
	if b.now().After(code.expires) {
		return nil, reject(CodeInvalidAuthCode, "authorization code expired")
	}

	u, err := b.userFor(code.mobile, code.provider)
	if err != nil {
		return nil, err
	}
	return b.issue(ctx, u, req.Nonce)
}

func (b *Backend) userFor(mobile, provider string) (*user, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := provider + "|" + mobile
	if u, ok := b.users[key]; ok {
		return u, nil
	}

	// salts stay below 2^128
	salt, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, reject(CodeInternal, "failed to generate salt")
	}
	n := len(b.users) + 1
	u := &user{
		DID:      "did:onechain:" + uuid.New().String(),
		UserNo:   fmt.Sprintf("U%010d", n),
		Mobile:   mobile,
		Provider: provider,
		Salt:     salt.String(),
		Nickname: fmt.Sprintf("user%d", n),
	}
	b.users[key] = u
	return u, nil
}

// issue mints an access token and an id token for u bound to nonce.
func (b *Backend) issue(ctx context.Context, u *user, nonce string) (*rest.TokenResponse, error) {
	now := b.now()
	tokenID := uuid.New().String()
	accessExp := now.Add(b.cfg.AccessTTL)

	idToken, err := b.tokens.IssueIDToken(core.IDClaims{
		Issuer:    b.cfg.Issuer,
		Subject:   u.UserNo,
		Audience:  b.cfg.Audience,
		Nonce:     nonce,
		ID:        uuid.New().String(),
		IssuedAt:  now,
		ExpiresAt: now.Add(b.cfg.IDTokenTTL),
	})
	if err != nil {
		return nil, reject(CodeInternal, "failed to issue id token")
	}
	access, err := b.tokens.IssueAccessToken(u.UserNo, tokenID, now, accessExp)
	if err != nil {
		return nil, reject(CodeInternal, "failed to issue access token")
	}

	b.mu.Lock()
	b.sessions[tokenID] = &Session{TokenID: tokenID, Nonce: nonce, Expires: accessExp, user: u}
	b.mu.Unlock()

	did, nickname := u.DID, u.Nickname
	return &rest.TokenResponse{
		AccessTokenProfile: core.AccessTokenProfile{
			Iss:   b.cfg.Issuer,
			Azp:   b.cfg.Audience,
			Aud:   b.cfg.Audience,
			Sub:   u.UserNo,
			Nonce: nonce,
			Nbf:   now.Unix(),
			Iat:   now.Unix(),
			Exp:   accessExp.Unix(),
			Jti:   tokenID,
		},
		AccessToken: access,
		JWTToken:    idToken,
		DID:         &did,
		Nickname:    &nickname,
		Salt:        u.Salt,
	}, nil
}

// Authorize resolves the session of an access token.
func (b *Backend) Authorize(ctx context.Context, accessToken string) (*Session, error) {
	if accessToken == "" {
		return nil, reject(CodeUnauthorized, "missing access token")
	}
	_, tokenID, err := b.tokens.VerifyAccessToken(accessToken)
	if err != nil {
		return nil, reject(CodeUnauthorized, "invalid access token")
	}

	revoked, err := b.store.IsTokenRevoked(ctx, tokenID)
	if err != nil {
		return nil, reject(CodeInternal, "failed to check token revocation")
	}
	if revoked {
		return nil, reject(CodeTokenExpired, "access token has been revoked")
	}

	b.mu.Lock()
	sess, ok := b.sessions[tokenID]
	b.mu.Unlock()
	if !ok {
		return nil, reject(CodeUnauthorized, "unknown session")
	}
	if !b.now().Before(sess.Expires) {
		return nil, reject(CodeTokenExpired, "access token expired")
	}
	return sess, nil
}

// RefreshToken rotates the session's tokens. The old access token is revoked.
func (b *Backend) RefreshToken(ctx context.Context, sess *Session, req rest.RefreshTokenRequest) (*rest.TokenResponse, error) {
	if req.Nonce == "" {
		return nil, reject(CodeBadRequest, "missing nonce")
	}

	remaining := sess.Expires.Sub(b.now())
	if remaining <= 0 {
		remaining = time.Hour
	}
	if err := b.store.RevokeToken(ctx, sess.TokenID, remaining); err != nil {
		return nil, reject(CodeInternal, "failed to revoke old token")
	}

	b.mu.Lock()
	delete(b.sessions, sess.TokenID)
	b.mu.Unlock()

	return b.issue(ctx, sess.user, req.Nonce)
}

// TokenProfile describes the user behind a session.
func (b *Backend) TokenProfile(ctx context.Context, sess *Session, accessToken string) (*core.UserTokenProfile, error) {
	u := sess.user
	return &core.UserTokenProfile{
		ExpireTime:    sess.Expires.UnixMilli(),
		UserName:      u.Nickname,
		ChannelUserNo: u.Mobile,
		UserNo:        u.UserNo,
		AccessToken:   accessToken,
		Provider:      u.Provider,
		DID:           u.DID,
	}, nil
}
