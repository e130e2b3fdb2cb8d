package ports

import (
	"context"

	"github.com/layer-3/onewallet/core"
)

// WalletAPI is the remote wallet service. Every call after token exchange takes the caller's
// credential explicitly; implementations hold no per-user state.
type WalletAPI interface {
	// Identity
	SendCode(ctx context.Context, mobile core.Mobile, provider core.Provider) (string, error)
	AuthenticateSMS(ctx context.Context, v core.SMSVerification) (string, error)
	GetToken(ctx context.Context, req core.TokenRequest) (*core.AuthSession, error)
	RefreshToken(ctx context.Context, cred core.Credential, nonce string) (*core.AuthSession, error)
	TokenProfile(ctx context.Context, cred core.Credential) (*core.UserTokenProfile, error)
	ZkProofs(ctx context.Context, cred core.Credential, req core.ProofRequest) (*core.ZkProof, error)

	// Transfers
	CreateOrder(ctx context.Context, cred core.Credential, req core.TransferRequest) (*core.TransferOrder, error)
	SendTransaction(ctx context.Context, cred core.Credential, tx core.SignedTransaction) (*core.TxResult, error)
	QueryOrder(ctx context.Context, cred core.Credential, q core.OrderQuery) (*core.OrderDetail, error)
	PageOrders(ctx context.Context, cred core.Credential, q core.OrderPageQuery) (*core.Page[core.OrderDetail], error)
	BuildSponsorTransaction(ctx context.Context, cred core.Credential, req core.SponsorRequest) (*core.SponsoredTransaction, error)
	ProxyPay(ctx context.Context, cred core.Credential, reservationID string, tx core.SignedTransaction) (*core.TxResult, error)

	// Wallets
	Currencies(ctx context.Context, cred core.Credential) ([]core.CurrencyChain, error)
	UserWallets(ctx context.Context, cred core.Credential, q core.WalletQuery) ([]core.UserWallet, error)
}
