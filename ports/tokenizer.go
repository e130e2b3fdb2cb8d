package ports

import (
	"time"

	"github.com/layer-3/onewallet/core"
)

// ClaimsParser reads JWT claims without verifying the signature; the prover is the authority.
type ClaimsParser interface {
	ParseIDToken(token string) (*core.IDClaims, error)
}

// Tokenizer issues and verifies the tokens of the sandbox wallet service.
type Tokenizer interface {
	ClaimsParser
	IssueIDToken(claims core.IDClaims) (string, error)
	VerifyIDToken(token string) (*core.IDClaims, error)
	IssueAccessToken(subject, tokenID string, issuedAt, expiresAt time.Time) (string, error)
	VerifyAccessToken(token string) (subject, tokenID string, err error)
}
