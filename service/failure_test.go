package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/onewallet/adapters/events"
	"github.com/layer-3/onewallet/adapters/tokenizer"
	"github.com/layer-3/onewallet/core"
	"github.com/layer-3/onewallet/ports"
)

// faultyAPI forwards to the sandbox client unless a fault is installed.
type faultyAPI struct {
	ports.WalletAPI
	authenticateErr error
	refresh         func(ctx context.Context, cred core.Credential, nonce string) (*core.AuthSession, error)
}

func (f *faultyAPI) AuthenticateSMS(ctx context.Context, v core.SMSVerification) (string, error) {
	if f.authenticateErr != nil {
		return "", f.authenticateErr
	}
	return f.WalletAPI.AuthenticateSMS(ctx, v)
}

func (f *faultyAPI) RefreshToken(ctx context.Context, cred core.Credential, nonce string) (*core.AuthSession, error) {
	if f.refresh != nil {
		return f.refresh(ctx, cred, nonce)
	}
	return f.WalletAPI.RefreshToken(ctx, cred, nonce)
}

func (h *harness) sessionOn(api ports.WalletAPI) *Session {
	logger, _ := test.NewNullLogger()
	return NewSession(api, h.chain, h.store, events.NewWatermillPublisher(h.pubSub), tokenizer.NewParser(), Options{
		Logger: logger,
		Now:    h.clock,
	})
}

func TestSessionTransportFailureKeepsItsKind(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	api := &faultyAPI{WalletAPI: h.api}
	s := h.sessionOn(api)

	codeID, err := s.RequestCode(ctx, testMobile, core.ProviderHuione)
	require.NoError(t, err)

	api.authenticateErr = fmt.Errorf("%w: i/o timeout", core.ErrTransport)
	_, err = s.VerifyCode(ctx, testMobile, core.ProviderHuione, testSMSCode, codeID)
	assert.ErrorIs(t, err, core.ErrTransport)
	assert.False(t, errors.Is(err, core.ErrAuth))
	assert.Equal(t, core.StateCodeSent, s.State())

	// the same code still works once the network is back
	api.authenticateErr = nil
	_, err = s.VerifyCode(ctx, testMobile, core.ProviderHuione, testSMSCode, codeID)
	require.NoError(t, err)
	assert.Equal(t, core.StateAuthenticated, s.State())
}

func TestKinded(t *testing.T) {
	timeout := fmt.Errorf("%w: i/o timeout", core.ErrTransport)
	for _, kind := range []error{core.ErrDelivery, core.ErrAuth, core.ErrProof, core.ErrSubmission} {
		err := kinded(kind, timeout)
		assert.Same(t, timeout, err)
		assert.False(t, errors.Is(err, kind))
	}

	remote := &core.RemoteError{Op: "getToken", Code: "100001", Msg: "expired"}
	err := kinded(core.ErrAuth, remote)
	assert.ErrorIs(t, err, core.ErrAuth)
	var re *core.RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "100001", re.Code)
}

func TestSessionRefreshSurvivesCancelledCaller(t *testing.T) {
	h := newHarness(t)
	api := &faultyAPI{WalletAPI: h.api}
	s := h.sessionOn(api)
	l := h.login(t, s)

	entered := make(chan struct{})
	release := make(chan struct{})
	sharedErr := make(chan error, 2)
	api.refresh = func(ctx context.Context, cred core.Credential, nonce string) (*core.AuthSession, error) {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
		sharedErr <- ctx.Err()
		return h.api.RefreshToken(ctx, cred, nonce)
	}

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := s.RefreshToken(ctx, l.eph.Nonce.Value)
		first <- err
	}()
	<-entered
	cancel()

	select {
	case err := <-first:
		assert.ErrorIs(t, err, core.ErrTransport)
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled caller did not return")
	}

	second := make(chan error, 1)
	go func() {
		_, err := s.RefreshToken(context.Background(), l.eph.Nonce.Value)
		second <- err
	}()
	close(release)

	select {
	case err := <-second:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("refresh did not complete")
	}
	assert.NoError(t, <-sharedErr)
	assert.NotEqual(t, l.auth.AccessToken, s.Credential().AccessToken)
}
