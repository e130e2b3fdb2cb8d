package tokenizer

import "github.com/golang-jwt/jwt/v5"

// IDTokenClaims are the claims of the federated id token the prover consumes.
type IDTokenClaims struct {
	jwt.RegisteredClaims
	Nonce string `json:"nonce"`
}

// AccessClaims are the claims of a sandbox access token.
type AccessClaims struct {
	jwt.RegisteredClaims
}
