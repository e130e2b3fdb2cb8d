package rest

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkString(t *testing.T) {
	fields := map[string]interface{}{
		"timestamp":    json.Number("1700000000000"),
		"merchantId":   "1000000",
		"merchantSign": "ignored",
		"mobile":       "123123123",
		"remark":       "",
		"extra":        nil,
		"list":         []interface{}{"a"},
		"flag":         true,
		"nested":       map[string]interface{}{"b": json.Number("2"), "a": "x"},
	}

	assert.Equal(t,
		`flag=true&merchantId=1000000&mobile=123123123&nested={"a":"x","b":2}&timestamp=1700000000000`,
		LinkString(fields))
}

func TestMerchantEnvelopeRoundTrip(t *testing.T) {
	key, b64 := merchantKey(t)
	signer, err := NewMerchantSigner("42", b64)
	require.NoError(t, err)

	fields, err := signer.Envelope(SendCodeRequest{Mobile: "1", MobilePrefix: "2", Provider: "huione"}, 1700000000000)
	require.NoError(t, err)

	raw, err := json.Marshal(fields)
	require.NoError(t, err)
	decoded, err := DecodeFields(raw)
	require.NoError(t, err)
	require.NoError(t, VerifyEnvelope(&key.PublicKey, decoded))

	decoded["mobile"] = "2"
	assert.ErrorIs(t, VerifyEnvelope(&key.PublicKey, decoded), ErrMerchantSignature)
}

func TestNewMerchantSignerRejectsGarbage(t *testing.T) {
	_, err := NewMerchantSigner("1", "not base64!")
	assert.Error(t, err)

	_, err = NewMerchantSigner("1", "AAAA")
	assert.Error(t, err)
}
