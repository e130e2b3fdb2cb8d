package rest

import (
	"context"
	"fmt"

	"github.com/layer-3/onewallet/core"
	"github.com/layer-3/onewallet/internal/sui"
	"github.com/layer-3/onewallet/ports"
)

var (
	epSendCode        = endpoint{path: "/did/sendCode", kind: core.ErrDelivery, signed: true}
	epAuthenticateSMS = endpoint{path: "/did/authenticateSms", kind: core.ErrAuth}
	epGetToken        = endpoint{path: "/did/getToken", kind: core.ErrAuth}
	epRefreshToken    = endpoint{path: "/did/refreshJwtToken", kind: core.ErrAuth}
	epTokenProfile    = endpoint{path: "/did/getTokenUserProfile", kind: core.ErrAuth, idempotent: true}
	epZkProofs        = endpoint{path: "/did/getZkProofs", kind: core.ErrProof, idempotent: true}
	epCreateOrder     = endpoint{path: "/transfer/createOrder", kind: core.ErrSubmission}
	epSendTx          = endpoint{path: "/transfer/sendTx", kind: core.ErrSubmission}
	epQueryOrder      = endpoint{path: "/transfer/queryOrder", kind: core.ErrSubmission, idempotent: true}
	epPageOrders      = endpoint{path: "/transfer/pageList", kind: core.ErrSubmission, idempotent: true}
	epBuildSponsorTx  = endpoint{path: "/transfer/buildSponsorTransaction", kind: core.ErrSubmission}
	epProxyPay        = endpoint{path: "/transfer/doProxyPayTx", kind: core.ErrSubmission}
	epCurrencies      = endpoint{path: "/wallet/queryChainCurrencyForList", kind: core.ErrTransport, idempotent: true}
	epUserWallets     = endpoint{path: "/wallet/queryUserWalletForList", kind: core.ErrTransport, idempotent: true}
)

var _ ports.WalletAPI = (*Client)(nil)

func (c *Client) SendCode(ctx context.Context, mobile core.Mobile, provider core.Provider) (string, error) {
	var codeID string
	err := c.post(ctx, epSendCode, nil, SendCodeRequest{
		Mobile:       mobile.Number,
		MobilePrefix: mobile.Prefix,
		Provider:     string(provider),
	}, &codeID)
	if err != nil {
		return "", err
	}
	return codeID, nil
}

func (c *Client) AuthenticateSMS(ctx context.Context, v core.SMSVerification) (string, error) {
	var resp AuthenticateSMSResponse
	err := c.post(ctx, epAuthenticateSMS, nil, AuthenticateSMSRequest{
		MobilePrefix: v.Mobile.Prefix,
		Mobile:       v.Mobile.Number,
		Code:         v.CodeID,
		SMSCode:      v.SMSCode,
		Provider:     string(v.Provider),
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Code, nil
}

func (c *Client) GetToken(ctx context.Context, req core.TokenRequest) (*core.AuthSession, error) {
	var resp TokenResponse
	err := c.post(ctx, epGetToken, nil, TokenRequest{
		Code:      req.Code,
		Nonce:     req.Nonce,
		Provider:  string(req.Provider),
		LoginType: string(req.LoginType),
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.session(req.Nonce), nil
}

func (c *Client) RefreshToken(ctx context.Context, cred core.Credential, nonce string) (*core.AuthSession, error) {
	var resp TokenResponse
	if err := c.post(ctx, epRefreshToken, &cred, RefreshTokenRequest{Nonce: nonce}, &resp); err != nil {
		return nil, err
	}
	return resp.session(nonce), nil
}

func (c *Client) TokenProfile(ctx context.Context, cred core.Credential) (*core.UserTokenProfile, error) {
	var resp core.UserTokenProfile
	if err := c.post(ctx, epTokenProfile, &cred, TokenProfileRequest{AccessToken: cred.AccessToken}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ZkProofs(ctx context.Context, cred core.Credential, req core.ProofRequest) (*core.ZkProof, error) {
	if req.Randomness == nil || req.ExtendedPublicKey == nil {
		return nil, fmt.Errorf("%w: incomplete proof request", core.ErrProof)
	}
	var resp ZkProofsResponse
	err := c.post(ctx, epZkProofs, &cred, ZkProofsRequest{
		MaxEpoch:                   int64(req.MaxEpoch),
		JWTRandomness:              req.Randomness.Dec(),
		ExtendedEphemeralPublicKey: req.ExtendedPublicKey.String(),
		JWT:                        req.JWT,
		Salt:                       req.Salt,
		KeyClaimName:               req.KeyClaimName,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &core.ZkProof{
		ProofPoints:      resp.ProofPoints,
		IssBase64Details: resp.IssBase64Details,
		HeaderBase64:     resp.HeaderBase64,
		KeyClaimName:     req.KeyClaimName,
	}, nil
}

func (c *Client) CreateOrder(ctx context.Context, cred core.Credential, req core.TransferRequest) (*core.TransferOrder, error) {
	wire := CreateOrderRequest{
		FromAddress: req.FromAddress.String(),
		ToAddress:   req.ToAddress.String(),
		CoinType:    req.CoinType,
		Amount:      req.Amount.String(),
	}
	if req.Remark != "" {
		wire.Remark = &req.Remark
	}

	var resp CreateOrderResponse
	if err := c.post(ctx, epCreateOrder, &cred, wire, &resp); err != nil {
		return nil, err
	}
	raw, err := sui.DecodeBase64(resp.RawTransaction)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrSubmission, err)
	}
	return &core.TransferOrder{TransferRequest: req, Hash: resp.Hash, RawTransaction: raw}, nil
}

func (c *Client) SendTransaction(ctx context.Context, cred core.Credential, tx core.SignedTransaction) (*core.TxResult, error) {
	var resp SendTxResponse
	err := c.post(ctx, epSendTx, &cred, SendTxRequest{
		Hash:    tx.OrderHash,
		TxBytes: sui.EncodeBase64(tx.TxBytes),
		UserSig: tx.UserSignature,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &core.TxResult{Hash: resp.Hash, Status: resp.Status}, nil
}

func (c *Client) QueryOrder(ctx context.Context, cred core.Credential, q core.OrderQuery) (*core.OrderDetail, error) {
	var resp core.OrderDetail
	if err := c.post(ctx, epQueryOrder, &cred, q, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) PageOrders(ctx context.Context, cred core.Credential, q core.OrderPageQuery) (*core.Page[core.OrderDetail], error) {
	var resp core.Page[core.OrderDetail]
	if err := c.post(ctx, epPageOrders, &cred, q, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) BuildSponsorTransaction(ctx context.Context, cred core.Credential, req core.SponsorRequest) (*core.SponsoredTransaction, error) {
	wire := BuildSponsorTxRequest{
		Address:             req.Address.String(),
		RawTransaction:      sui.EncodeBase64(req.RawTransaction),
		OnlyTransactionKind: req.OnlyTransactionKind,
	}
	if req.GasBudget != nil {
		budget := req.GasBudget.String()
		wire.GasBudget = &budget
	}

	var resp BuildSponsorTxResponse
	if err := c.post(ctx, epBuildSponsorTx, &cred, wire, &resp); err != nil {
		return nil, err
	}
	raw, err := sui.DecodeBase64(resp.RawTransaction)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrSubmission, err)
	}
	return &core.SponsoredTransaction{
		Hash:           resp.Hash,
		RawTransaction: raw,
		Expiration:     resp.Expiration,
		Sponsor:        resp.Sponsor,
		ReservationID:  resp.ReservationID,
	}, nil
}

func (c *Client) ProxyPay(ctx context.Context, cred core.Credential, reservationID string, tx core.SignedTransaction) (*core.TxResult, error) {
	var resp ProxyPayResponse
	err := c.post(ctx, epProxyPay, &cred, ProxyPayRequest{
		UserSig:       tx.UserSignature,
		TxBytes:       sui.EncodeBase64(tx.TxBytes),
		ReservationID: reservationID,
	}, &resp)
	if err != nil {
		return nil, err
	}
	status := core.OrderStatusFail
	if resp.Status {
		status = core.OrderStatusSuccess
	}
	return &core.TxResult{Hash: resp.Hash, Status: status}, nil
}

func (c *Client) Currencies(ctx context.Context, cred core.Credential) ([]core.CurrencyChain, error) {
	var resp []core.CurrencyChain
	if err := c.post(ctx, epCurrencies, &cred, nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) UserWallets(ctx context.Context, cred core.Credential, q core.WalletQuery) ([]core.UserWallet, error) {
	var resp []core.UserWallet
	if err := c.post(ctx, epUserWallets, &cred, q, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}
