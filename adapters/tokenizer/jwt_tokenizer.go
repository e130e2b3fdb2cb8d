package tokenizer

import (
	"crypto/ecdsa"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/layer-3/onewallet/core"
	"github.com/layer-3/onewallet/ports"
)

const AudienceAccess = "onewallet:access"

// Parser reads id tokens without verifying them.
type Parser struct {
	parser *jwt.Parser
}

// NewParser creates a client side claims parser.
func NewParser() ports.ClaimsParser {
	return &Parser{parser: jwt.NewParser()}
}

// ParseIDToken decodes the payload of an id token.
func (p *Parser) ParseIDToken(tokenStr string) (*core.IDClaims, error) {
	return parseUnverified(p.parser, tokenStr)
}

func parseUnverified(parser *jwt.Parser, tokenStr string) (*core.IDClaims, error) {
	if strings.Count(tokenStr, ".") != 2 {
		return nil, fmt.Errorf("%w: expected three segments", core.ErrMalformedJWT)
	}

	claims := &IDTokenClaims{}
	if _, _, err := parser.ParseUnverified(tokenStr, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMalformedJWT, err)
	}
	raw := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(tokenStr, raw); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMalformedJWT, err)
	}

	return toIDClaims(claims, raw), nil
}

func toIDClaims(claims *IDTokenClaims, raw jwt.MapClaims) *core.IDClaims {
	out := &core.IDClaims{
		Issuer:  claims.Issuer,
		Subject: claims.Subject,
		Nonce:   claims.Nonce,
		ID:      claims.ID,
		Raw:     map[string]any(raw),
	}
	if len(claims.Audience) > 0 {
		out.Audience = claims.Audience[0]
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	return out
}

// JWTTokenizer issues and verifies ES256 tokens for the sandbox wallet service.
type JWTTokenizer struct {
	signKey *ecdsa.PrivateKey
	parser  *jwt.Parser
}

// NewJWTTokenizer creates a new JWT tokenizer
func NewJWTTokenizer(signKey *ecdsa.PrivateKey) ports.Tokenizer {
	return &JWTTokenizer{signKey: signKey, parser: jwt.NewParser()}
}

func (j *JWTTokenizer) ParseIDToken(tokenStr string) (*core.IDClaims, error) {
	return parseUnverified(j.parser, tokenStr)
}

// IssueIDToken signs a federated id token carrying the session nonce.
func (j *JWTTokenizer) IssueIDToken(c core.IDClaims) (string, error) {
	claims := IDTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.Issuer,
			Subject:   c.Subject,
			Audience:  jwt.ClaimStrings{c.Audience},
			ExpiresAt: jwt.NewNumericDate(c.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(c.IssuedAt),
			ID:        c.ID,
		},
		Nonce: c.Nonce,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)

	signedToken, err := token.SignedString(j.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign id token: %w", err)
	}

	return signedToken, nil
}

// VerifyIDToken checks the signature and expiry of an id token.
func (j *JWTTokenizer) VerifyIDToken(tokenStr string) (*core.IDClaims, error) {
	claims := &IDTokenClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, j.keyFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse id token: %w", err)
	}

	if !token.Valid {
		return nil, core.ErrMalformedJWT
	}

	raw := jwt.MapClaims{}
	if _, _, err := j.parser.ParseUnverified(tokenStr, raw); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMalformedJWT, err)
	}

	return toIDClaims(claims, raw), nil
}

// IssueAccessToken signs the bearer token sent in the ACCESS_TOKEN header.
func (j *JWTTokenizer) IssueAccessToken(subject, tokenID string, issuedAt, expiresAt time.Time) (string, error) {
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        tokenID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			Audience:  jwt.ClaimStrings{AudienceAccess},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)

	signedToken, err := token.SignedString(j.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}

	return signedToken, nil
}

// VerifyAccessToken parses an access token and returns its subject and token id.
func (j *JWTTokenizer) VerifyAccessToken(tokenStr string) (string, string, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &AccessClaims{}, j.keyFunc, jwt.WithAudience(AudienceAccess))
	if err != nil {
		return "", "", fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return "", "", core.ErrSessionExpired
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok {
		return "", "", fmt.Errorf("invalid claims type")
	}

	return claims.Subject, claims.ID, nil
}

func (j *JWTTokenizer) keyFunc(token *jwt.Token) (interface{}, error) {
	// Validate the signing method
	if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return &j.signKey.PublicKey, nil
}
