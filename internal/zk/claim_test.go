package zk

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/onewallet/core"
)

func fakeJWT(payload string) string {
	enc := base64.RawURLEncoding
	return enc.EncodeToString([]byte(`{"alg":"ES256","typ":"JWT"}`)) + "." +
		enc.EncodeToString([]byte(payload)) + ".c2ln"
}

func TestExtractAndDecodeClaim(t *testing.T) {
	payloads := []string{
		`{"iss":"https://accounts.huione.com","sub":"42","aud":"wallet"}`,
		`{"x":1,"iss":"https://accounts.huione.com","sub":"42"}`,
		`{"ab":"c","iss":"https://accounts.huione.com"}`,
		`{"abc":"de","iss":"https://id.example.org","nonce":"n"}`,
	}

	for _, payload := range payloads {
		claim, err := ExtractClaim(fakeJWT(payload), "iss")
		require.NoError(t, err, payload)
		assert.LessOrEqual(t, claim.IndexMod4, uint8(2))

		iss, err := DecodeClaim(claim, "iss")
		require.NoError(t, err, payload)
		assert.Contains(t, payload, `"iss":"`+iss+`"`)
	}
}

func TestExtractClaimErrors(t *testing.T) {
	_, err := ExtractClaim("not-a-jwt", "iss")
	assert.ErrorIs(t, err, core.ErrMalformedJWT)

	_, err = ExtractClaim(fakeJWT(`{"sub":"42"}`), "iss")
	assert.ErrorIs(t, err, ErrClaimNotFound)

	_, err = ExtractClaim(fakeJWT(`{"iss": "spaced"}`), "iss")
	assert.ErrorIs(t, err, ErrClaimNotFound)
}

func TestDecodeClaimRejectsGarbage(t *testing.T) {
	_, err := DecodeClaim(core.Claim{Value: "a", IndexMod4: 0}, "iss")
	assert.ErrorIs(t, err, core.ErrMalformedJWT)

	_, err = DecodeClaim(core.Claim{Value: "abcd", IndexMod4: 3}, "iss")
	assert.ErrorIs(t, err, core.ErrMalformedJWT)

	_, err = DecodeClaim(core.Claim{Value: "ab!d", IndexMod4: 0}, "iss")
	assert.ErrorIs(t, err, core.ErrMalformedJWT)
}
