package core

import (
	"errors"
	"fmt"
)

// Error kinds. Every failure returned by a session operation wraps exactly one of these.
var (
	ErrDelivery   = errors.New("sms delivery failed")
	ErrAuth       = errors.New("authentication failed")
	ErrProof      = errors.New("zk proof failed")
	ErrSigning    = errors.New("transaction signing failed")
	ErrSubmission = errors.New("transaction submission failed")
	ErrTransport  = errors.New("transport failure")
)

var (
	ErrInvalidState        = errors.New("operation not allowed in current session state")
	ErrNotAuthenticated    = errors.New("session has no credential")
	ErrSessionExpired      = errors.New("session has expired")
	ErrEpochExpired        = errors.New("max epoch has elapsed")
	ErrBindingMismatch     = errors.New("keypair, max epoch and proof do not belong together")
	ErrOrderConsumed       = errors.New("transfer order already signed")
	ErrNonceReused         = errors.New("ephemeral randomness already used")
	ErrMalformedJWT        = errors.New("malformed jwt")
	ErrInvalidProvider     = errors.New("invalid provider")
	ErrInvalidLoginType    = errors.New("invalid login type")
	ErrInvalidMobile       = errors.New("invalid mobile number")
	ErrInvalidAddress      = errors.New("invalid address")
	ErrInvalidTx           = errors.New("invalid transaction bytes")
	ErrSenderMismatch      = errors.New("transaction sender is not the session address")
	ErrInsufficientBalance = errors.New("insufficient coin balance")
)

// SuccessCode is the envelope code the wallet service uses for success.
const SuccessCode = "000000"

// RemoteError is a business failure reported by the wallet service envelope.
type RemoteError struct {
	Op      string
	Code    string
	Msg     string
	TraceID string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: code: %s msg: %s trace: %s", e.Op, e.Code, e.Msg, e.TraceID)
}
