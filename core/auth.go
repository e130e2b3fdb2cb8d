package core

import (
	"fmt"
	"time"
)

// Provider identifies the identity channel the wallet service authenticates against.
type Provider string

const ProviderHuione Provider = "huione"

// ParseProvider validates a provider name.
func ParseProvider(s string) (Provider, error) {
	switch p := Provider(s); p {
	case ProviderHuione:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidProvider, s)
	}
}

// LoginType is the authentication method used to obtain the authorization code.
type LoginType string

const LoginTypeSMS LoginType = "sms"

// ParseLoginType validates a login type.
func ParseLoginType(s string) (LoginType, error) {
	switch l := LoginType(s); l {
	case LoginTypeSMS:
		return l, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidLoginType, s)
	}
}

// Mobile is a phone number split into its country prefix and subscriber number.
type Mobile struct {
	Prefix string
	Number string
}

// NewMobile validates and returns a Mobile.
func NewMobile(prefix, number string) (Mobile, error) {
	if !digits(prefix, 1, 4) {
		return Mobile{}, fmt.Errorf("%w: prefix %q", ErrInvalidMobile, prefix)
	}
	if !digits(number, 4, 15) {
		return Mobile{}, fmt.Errorf("%w: number %q", ErrInvalidMobile, number)
	}
	return Mobile{Prefix: prefix, Number: number}, nil
}

func (m Mobile) String() string {
	return "+" + m.Prefix + " " + m.Number
}

func digits(s string, min, max int) bool {
	if len(s) < min || len(s) > max {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// AccessTokenProfile is the decoded profile of the issued access token.
type AccessTokenProfile struct {
	Iss   string `json:"iss"`
	Azp   string `json:"azp"`
	Aud   string `json:"aud"`
	Sub   string `json:"sub"`
	Nonce string `json:"nonce"`
	Nbf   int64  `json:"nbf"`
	Iat   int64  `json:"iat"`
	Exp   int64  `json:"exp"`
	Jti   string `json:"jti"`
}

// AuthSession is the server-issued identity state returned by token exchange and refresh.
type AuthSession struct {
	AccessToken        string
	JWT                string
	Salt               string
	Nonce              string
	DID                string
	Nickname           string
	AvatarURL          string
	SettingPayPassword bool
	Anonymous          bool
	Profile            AccessTokenProfile
}

// ExpiresAt returns the access token expiry, or the zero time when the profile carries none.
func (s *AuthSession) ExpiresAt() time.Time {
	if s.Profile.Exp == 0 {
		return time.Time{}
	}
	return time.Unix(s.Profile.Exp, 0)
}

// Credential returns the bearer credential derived from the session.
func (s *AuthSession) Credential() Credential {
	return Credential{AccessToken: s.AccessToken, TokenID: s.Profile.Jti}
}

// Credential is the per-session bearer credential passed explicitly to every wallet service call.
type Credential struct {
	AccessToken string
	TokenID     string
}

// Empty reports whether the credential carries no token.
func (c Credential) Empty() bool {
	return c.AccessToken == ""
}

// UserTokenProfile is the user profile bound to an access token.
type UserTokenProfile struct {
	ExpireTime    int64  `json:"expireTime"`
	UserName      string `json:"userName"`
	Avatar        string `json:"avatar"`
	ID            int64  `json:"id"`
	ChannelUserNo string `json:"channelUserNo"`
	UserNo        string `json:"userNo"`
	AccessToken   string `json:"accessToken"`
	Provider      string `json:"provider"`
	DID           string `json:"did"`
}

// SMSVerification carries the code the user received back to the wallet service.
type SMSVerification struct {
	Mobile   Mobile
	Provider Provider
	SMSCode  string
	CodeID   string
}

// TokenRequest exchanges an authorization code for an AuthSession bound to Nonce.
type TokenRequest struct {
	Provider  Provider
	Code      string
	LoginType LoginType
	Nonce     string
}

// IDClaims are the JWT claims the client inspects before requesting a proof.
type IDClaims struct {
	Issuer    string
	Subject   string
	Audience  string
	Nonce     string
	ID        string
	ExpiresAt time.Time
	IssuedAt  time.Time
	// Raw holds every payload claim, for key claims other than sub.
	Raw map[string]any
}

// Claim returns the string value of a payload claim.
func (c *IDClaims) Claim(name string) (string, bool) {
	v, ok := c.Raw[name]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}
