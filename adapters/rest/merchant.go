package rest

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

const (
	fieldTimestamp    = "timestamp"
	fieldMerchantID   = "merchantId"
	fieldMerchantSign = "merchantSign"
)

var ErrMerchantSignature = errors.New("invalid merchant signature")

// MerchantSigner signs requests on behalf of the integrating merchant.
type MerchantSigner struct {
	merchantID string
	key        *rsa.PrivateKey
}

// NewMerchantSigner parses a base64 PKCS#8 RSA private key.
func NewMerchantSigner(merchantID, b64der string) (*MerchantSigner, error) {
	der, err := base64.StdEncoding.DecodeString(strings.TrimSpace(b64der))
	if err != nil {
		return nil, fmt.Errorf("failed to decode merchant key: %w", err)
	}
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse merchant key: %w", err)
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("merchant key is %T, not RSA", key)
	}
	return &MerchantSigner{merchantID: merchantID, key: rsaKey}, nil
}

// MerchantID returns the merchant the signer acts for.
func (s *MerchantSigner) MerchantID() string {
	return s.merchantID
}

// Envelope flattens body into a signed merchant request.
func (s *MerchantSigner) Envelope(body interface{}, timestampMillis int64) (map[string]interface{}, error) {
	fields, err := toFields(body)
	if err != nil {
		return nil, err
	}
	fields[fieldTimestamp] = json.Number(fmt.Sprint(timestampMillis))
	fields[fieldMerchantID] = s.merchantID
	fields[fieldMerchantSign] = ""

	digest := sha256.Sum256([]byte(LinkString(fields)))
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, digest[:])
	if err != nil {
		return nil, fmt.Errorf("failed to sign request: %w", err)
	}
	fields[fieldMerchantSign] = base64.StdEncoding.EncodeToString(sig)
	return fields, nil
}

// VerifyEnvelope checks the merchantSign field of a decoded request against pub.
func VerifyEnvelope(pub *rsa.PublicKey, fields map[string]interface{}) error {
	encoded, _ := fields[fieldMerchantSign].(string)
	sig, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(sig) == 0 {
		return ErrMerchantSignature
	}
	digest := sha256.Sum256([]byte(LinkString(fields)))
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig); err != nil {
		return ErrMerchantSignature
	}
	return nil
}

// DecodeFields reads a JSON object keeping numbers in their literal form.
func DecodeFields(data []byte) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var fields map[string]interface{}
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, errors.New("request body is not an object")
	}
	return fields, nil
}

func toFields(body interface{}) (map[string]interface{}, error) {
	if body == nil {
		return map[string]interface{}{}, nil
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	fields, err := DecodeFields(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to flatten request: %w", err)
	}
	return fields, nil
}

// LinkString is the canonical string the merchant signature covers: k=v pairs sorted by key and
// joined by '&'. merchantSign, empty strings, nulls and arrays are left out; objects are JSON.
func LinkString(fields map[string]interface{}) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == fieldMerchantSign {
			continue
		}
		switch v := fields[k].(type) {
		case string:
			if v != "" {
				parts = append(parts, k+"="+v)
			}
		case bool:
			parts = append(parts, fmt.Sprintf("%s=%t", k, v))
		case json.Number:
			parts = append(parts, k+"="+v.String())
		case float64:
			parts = append(parts, k+"="+json.Number(fmt.Sprint(v)).String())
		case map[string]interface{}:
			b, _ := json.Marshal(v)
			parts = append(parts, k+"="+string(b))
		}
	}
	return strings.Join(parts, "&")
}
