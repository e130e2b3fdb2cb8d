package onewallet

import (
	"context"

	"github.com/layer-3/onewallet/core"
	"github.com/layer-3/onewallet/service"
)

// Session is the public interface of one user's zkLogin wallet session.
type Session interface {
	// RequestCode sends an SMS code to mobile and returns its code id
	RequestCode(ctx context.Context, mobile core.Mobile, provider core.Provider) (string, error)

	// VerifyCode trades the SMS code for an authorization code
	VerifyCode(ctx context.Context, mobile core.Mobile, provider core.Provider, smsCode, codeID string) (string, error)

	// GenerateEphemeral creates the keypair, randomness and nonce of a login attempt
	GenerateEphemeral(ctx context.Context, currentEpoch, window uint64) (*core.Ephemeral, error)
	GenerateEphemeralForNetwork(ctx context.Context) (*core.Ephemeral, error)

	// ExchangeToken trades the authorization code for a credential bound to nonce
	ExchangeToken(ctx context.Context, provider core.Provider, authCode string, loginType core.LoginType, nonce string) (*core.AuthSession, error)

	// RefreshToken re-issues the credential for the same nonce
	RefreshToken(ctx context.Context, nonce string) (*core.AuthSession, error)

	FetchProof(ctx context.Context, req service.ProofRequest) (*core.ZkProof, error)
	SignTransaction(ctx context.Context, order *core.TransferOrder, kp *core.EphemeralKeyPair, maxEpoch uint64, proof *core.ZkProof) (*core.SignedTransaction, error)
	SubmitTransaction(ctx context.Context, signed *core.SignedTransaction) (*core.TxResult, error)
	SubmitSponsoredTransaction(ctx context.Context, reservationID string, signed *core.SignedTransaction) (*core.TxResult, error)

	CreateTransferOrder(ctx context.Context, req core.TransferRequest) (*core.TransferOrder, error)
	BuildSponsoredTransaction(ctx context.Context, req core.SponsorRequest) (*core.SponsoredTransaction, error)
	TokenProfile(ctx context.Context) (*core.UserTokenProfile, error)
	QueryOrder(ctx context.Context, q core.OrderQuery) (*core.OrderDetail, error)
	PageOrders(ctx context.Context, q core.OrderPageQuery) (*core.Page[core.OrderDetail], error)
	Currencies(ctx context.Context) ([]core.CurrencyChain, error)
	UserWallets(ctx context.Context, q core.WalletQuery) ([]core.UserWallet, error)

	// Logout drops the credential and destroys key material
	Logout(ctx context.Context) error

	State() core.State
	Credential() core.Credential
	Address() (core.Address, bool)
}

var _ Session = (*service.Session)(nil)
