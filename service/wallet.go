package service

import (
	"context"
	"fmt"

	"github.com/layer-3/onewallet/core"
	"github.com/layer-3/onewallet/internal/sui"
)

func (s *Session) credentialFor(kind error) (core.Credential, error) {
	cred := s.Credential()
	if cred.Empty() {
		return core.Credential{}, fmt.Errorf("%w: %w", kind, core.ErrNotAuthenticated)
	}
	return cred, nil
}

// CreateTransferOrder asks the wallet service to draft a transfer from the session address.
func (s *Session) CreateTransferOrder(ctx context.Context, req core.TransferRequest) (*core.TransferOrder, error) {
	cred, err := s.credentialFor(core.ErrSubmission)
	if err != nil {
		return nil, err
	}
	if req.FromAddress.IsZero() {
		addr, ok := s.Address()
		if !ok {
			return nil, fmt.Errorf("%w: %w: no proof yet", core.ErrSubmission, core.ErrInvalidState)
		}
		req.FromAddress = addr
	}
	if req.ToAddress.IsZero() {
		return nil, fmt.Errorf("%w: %w: missing recipient", core.ErrSubmission, core.ErrInvalidAddress)
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", core.ErrSubmission)
	}

	order, err := s.api.CreateOrder(ctx, cred, req)
	if err != nil {
		return nil, err
	}
	if _, err := sui.DecodeTransactionData(order.RawTransaction); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrSubmission, err)
	}
	return order, nil
}

// BuildSponsoredTransaction sends client-built transaction bytes to the sponsor and returns the
// gas-funded transaction.
func (s *Session) BuildSponsoredTransaction(ctx context.Context, req core.SponsorRequest) (*core.SponsoredTransaction, error) {
	cred, err := s.credentialFor(core.ErrSubmission)
	if err != nil {
		return nil, err
	}
	if len(req.RawTransaction) == 0 {
		return nil, fmt.Errorf("%w: %w: empty transaction", core.ErrSubmission, core.ErrInvalidTx)
	}
	if req.Address.IsZero() {
		addr, ok := s.Address()
		if !ok {
			return nil, fmt.Errorf("%w: %w: no proof yet", core.ErrSubmission, core.ErrInvalidState)
		}
		req.Address = addr
	}

	sponsored, err := s.api.BuildSponsorTransaction(ctx, cred, req)
	if err != nil {
		return nil, err
	}
	if _, err := sui.DecodeTransactionData(sponsored.RawTransaction); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrSubmission, err)
	}
	return sponsored, nil
}

// SponsoredOrder turns a sponsored transaction into an order SignTransaction accepts.
func SponsoredOrder(sponsored *core.SponsoredTransaction) *core.TransferOrder {
	return &core.TransferOrder{
		Hash:           sponsored.Hash,
		RawTransaction: sponsored.RawTransaction,
	}
}

// TokenProfile returns the user profile bound to the session's access token.
func (s *Session) TokenProfile(ctx context.Context) (*core.UserTokenProfile, error) {
	cred, err := s.credentialFor(core.ErrAuth)
	if err != nil {
		return nil, err
	}
	return s.api.TokenProfile(ctx, cred)
}

func (s *Session) QueryOrder(ctx context.Context, q core.OrderQuery) (*core.OrderDetail, error) {
	cred, err := s.credentialFor(core.ErrSubmission)
	if err != nil {
		return nil, err
	}
	return s.api.QueryOrder(ctx, cred, q)
}

func (s *Session) PageOrders(ctx context.Context, q core.OrderPageQuery) (*core.Page[core.OrderDetail], error) {
	cred, err := s.credentialFor(core.ErrSubmission)
	if err != nil {
		return nil, err
	}
	if q.PageSize == 0 {
		q.PageSize = 10
	}
	if q.PageIndex == 0 {
		q.PageIndex = 1
	}
	return s.api.PageOrders(ctx, cred, q)
}

func (s *Session) Currencies(ctx context.Context) ([]core.CurrencyChain, error) {
	cred, err := s.credentialFor(core.ErrTransport)
	if err != nil {
		return nil, err
	}
	return s.api.Currencies(ctx, cred)
}

func (s *Session) UserWallets(ctx context.Context, q core.WalletQuery) ([]core.UserWallet, error) {
	cred, err := s.credentialFor(core.ErrTransport)
	if err != nil {
		return nil, err
	}
	return s.api.UserWallets(ctx, cred, q)
}
