package rest

import "github.com/layer-3/onewallet/core"

// Wire types of the wallet service. Field names follow the service's camelCase JSON.

type SendCodeRequest struct {
	Mobile       string `json:"mobile"`
	MobilePrefix string `json:"mobilePrefix"`
	Provider     string `json:"provider"`
}

type AuthenticateSMSRequest struct {
	MobilePrefix string `json:"mobilePrefix"`
	Mobile       string `json:"mobile"`
	Code         string `json:"code"`
	SMSCode      string `json:"smsCode"`
	Provider     string `json:"provider"`
}

type AuthenticateSMSResponse struct {
	Code string `json:"code"`
}

type TokenRequest struct {
	Code      string `json:"code"`
	Nonce     string `json:"nonce"`
	Provider  string `json:"provider"`
	LoginType string `json:"loginType"`
}

type RefreshTokenRequest struct {
	Nonce string `json:"nonce"`
}

type TokenProfileRequest struct {
	AccessToken string `json:"accessToken"`
}

type TokenResponse struct {
	AccessTokenProfile core.AccessTokenProfile `json:"accessTokenProfile"`
	AccessToken        string                  `json:"accessToken"`
	JWTToken           string                  `json:"jwtToken"`
	SettingPayPassword bool                    `json:"settingPayPassword"`
	AvatarURL          *string                 `json:"avatarUrl"`
	Nickname           *string                 `json:"nickname"`
	DID                *string                 `json:"did"`
	Salt               string                  `json:"salt"`
	Anonymous          bool                    `json:"anonymous"`
}

func (r *TokenResponse) session(nonce string) *core.AuthSession {
	return &core.AuthSession{
		AccessToken:        r.AccessToken,
		JWT:                r.JWTToken,
		Salt:               r.Salt,
		Nonce:              nonce,
		DID:                deref(r.DID),
		Nickname:           deref(r.Nickname),
		AvatarURL:          deref(r.AvatarURL),
		SettingPayPassword: r.SettingPayPassword,
		Anonymous:          r.Anonymous,
		Profile:            r.AccessTokenProfile,
	}
}

type ZkProofsRequest struct {
	MaxEpoch                   int64  `json:"maxEpoch"`
	JWTRandomness              string `json:"jwtRandomness"`
	ExtendedEphemeralPublicKey string `json:"extendedEphemeralPublicKey"`
	JWT                        string `json:"jwt"`
	Salt                       string `json:"salt"`
	KeyClaimName               string `json:"keyClaimName"`
}

type ZkProofsResponse struct {
	ProofPoints      core.ProofPoints `json:"proofPoints"`
	IssBase64Details core.Claim       `json:"issBase64Details"`
	HeaderBase64     string           `json:"headerBase64"`
}

type CreateOrderRequest struct {
	FromAddress string  `json:"fromAddress"`
	ToAddress   string  `json:"toAddress"`
	CoinType    string  `json:"coinType"`
	Amount      string  `json:"amount"`
	Remark      *string `json:"remark"`
}

type CreateOrderResponse struct {
	Hash           string `json:"hash"`
	RawTransaction string `json:"rawTransaction"`
}

type SendTxRequest struct {
	Hash    string `json:"hash"`
	TxBytes string `json:"txBytes"`
	UserSig string `json:"userSig"`
}

type SendTxResponse struct {
	Status string `json:"status"`
	Hash   string `json:"hash"`
}

type BuildSponsorTxRequest struct {
	Address             string  `json:"address"`
	RawTransaction      string  `json:"rawTransaction"`
	OnlyTransactionKind bool    `json:"onlyTransactionKind"`
	GasBudget           *string `json:"gasBudget"`
}

type BuildSponsorTxResponse struct {
	Hash           string `json:"hash"`
	RawTransaction string `json:"rawTransaction"`
	Expiration     int64  `json:"expiration"`
	Sponsor        string `json:"sponsor"`
	ReservationID  string `json:"reservationId"`
}

type ProxyPayRequest struct {
	UserSig       string `json:"userSig"`
	TxBytes       string `json:"txBytes"`
	ReservationID string `json:"reservationId"`
}

type ProxyPayResponse struct {
	Hash   string `json:"hash"`
	Status bool   `json:"status"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
