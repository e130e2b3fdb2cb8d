package zk

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/layer-3/onewallet/core"
)

var ErrClaimNotFound = errors.New("claim not found in jwt payload")

const base64URLAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

// ExtractClaim locates the "name":value pair of a top level claim inside the base64url payload
// of jwt and returns the smallest run of base64 characters that covers it.
func ExtractClaim(jwt, name string) (core.Claim, error) {
	parts := strings.Split(jwt, ".")
	if len(parts) != 3 {
		return core.Claim{}, core.ErrMalformedJWT
	}
	payloadB64 := parts[1]
	payload, err := base64.RawURLEncoding.DecodeString(payloadB64)
	if err != nil {
		return core.Claim{}, fmt.Errorf("%w: %v", core.ErrMalformedJWT, err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return core.Claim{}, fmt.Errorf("%w: %v", core.ErrMalformedJWT, err)
	}
	value, ok := fields[name]
	if !ok {
		return core.Claim{}, fmt.Errorf("%w: %s", ErrClaimNotFound, name)
	}

	needle := `"` + name + `":` + string(value)
	start := strings.Index(string(payload), needle)
	if start < 0 {
		return core.Claim{}, fmt.Errorf("%w: %s is not in compact form", ErrClaimNotFound, name)
	}
	// include the delimiter that closes the pair
	end := start + len(needle) + 1
	if end > len(payload) {
		return core.Claim{}, fmt.Errorf("%w: truncated payload", core.ErrMalformedJWT)
	}

	first := start * 8 / 6
	last := (end*8 - 1) / 6
	return core.Claim{Value: payloadB64[first : last+1], IndexMod4: uint8(first % 4)}, nil
}

// DecodeClaim reverses ExtractClaim and returns the claim's string value.
func DecodeClaim(c core.Claim, name string) (string, error) {
	if len(c.Value) < 2 || c.IndexMod4 > 2 {
		return "", fmt.Errorf("%w: invalid claim encoding", core.ErrMalformedJWT)
	}

	bits := make([]byte, 0, 6*len(c.Value))
	for i := 0; i < len(c.Value); i++ {
		v := strings.IndexByte(base64URLAlphabet, c.Value[i])
		if v < 0 {
			return "", fmt.Errorf("%w: invalid base64url character", core.ErrMalformedJWT)
		}
		for b := 5; b >= 0; b-- {
			bits = append(bits, byte(v>>b)&1)
		}
	}
	bits = bits[2*int(c.IndexMod4):]
	bits = bits[:len(bits)-len(bits)%8]

	raw := make([]byte, len(bits)/8)
	for i := range raw {
		for b := 0; b < 8; b++ {
			raw[i] = raw[i]<<1 | bits[8*i+b]
		}
	}

	// raw is `"name":value` followed by ',' or '}'
	s := string(raw)
	if len(s) < 2 || (s[len(s)-1] != ',' && s[len(s)-1] != '}') {
		return "", fmt.Errorf("%w: claim is not delimited", core.ErrMalformedJWT)
	}
	var obj map[string]string
	if err := json.Unmarshal([]byte("{"+s[:len(s)-1]+"}"), &obj); err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrMalformedJWT, err)
	}
	v, ok := obj[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrClaimNotFound, name)
	}
	return v, nil
}
