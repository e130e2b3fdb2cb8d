// Package zk computes the zkLogin values the client derives locally: JWT randomness, the nonce
// committed into the JWT, the extended ephemeral public key, the address seed and the zkLogin address.
package zk

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
	"github.com/iden3/go-iden3-crypto/poseidon"
	"golang.org/x/crypto/blake2b"

	"github.com/layer-3/onewallet/core"
)

const (
	// RandomnessBytes is the entropy drawn for each nonce.
	RandomnessBytes = 16
	// NonceLength is the length of the base64url nonce string.
	NonceLength = 27

	nonceBytes = 20
	packWidth  = 31

	maxKeyClaimNameLength  = 32
	maxKeyClaimValueLength = 115
	maxAudValueLength      = 145
)

var (
	ErrStringTooLong = errors.New("string exceeds field capacity")
	ErrInvalidSalt   = errors.New("invalid salt")
	ErrEmptyIssuer   = errors.New("empty issuer")
)

var twoPow128 = new(big.Int).Lsh(big.NewInt(1), 128)

// NewRandomness draws 128 bits from crypto/rand.
func NewRandomness() (*uint256.Int, error) {
	return ReadRandomness(rand.Reader)
}

// ReadRandomness draws 128 bits from r.
func ReadRandomness(r io.Reader) (*uint256.Int, error) {
	var buf [RandomnessBytes]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, fmt.Errorf("failed to read randomness: %w", err)
	}
	return new(uint256.Int).SetBytes(buf[:]), nil
}

// ExtendedPublicKey is flag || public key read as a big-endian unsigned integer.
func ExtendedPublicKey(scheme core.SignatureScheme, publicKey []byte) *big.Int {
	b := make([]byte, 0, 1+len(publicKey))
	b = append(b, byte(scheme))
	b = append(b, publicKey...)
	return new(big.Int).SetBytes(b)
}

// NewNonce commits the Ed25519 public key, maxEpoch and randomness into the nonce string.
func NewNonce(publicKey []byte, maxEpoch uint64, randomness *uint256.Int) (core.Nonce, error) {
	if randomness == nil {
		return core.Nonce{}, errors.New("nil randomness")
	}
	ext := ExtendedPublicKey(core.SchemeEd25519, publicKey)
	hi, lo := new(big.Int).QuoRem(ext, twoPow128, new(big.Int))

	h, err := poseidon.Hash([]*big.Int{hi, lo, new(big.Int).SetUint64(maxEpoch), randomness.ToBig()})
	if err != nil {
		return core.Nonce{}, fmt.Errorf("failed to hash nonce: %w", err)
	}

	return core.Nonce{
		PublicKey:  append([]byte(nil), publicKey...),
		MaxEpoch:   maxEpoch,
		Randomness: new(uint256.Int).Set(randomness),
		Value:      base64.RawURLEncoding.EncodeToString(lowBytes(h, nonceBytes)),
	}, nil
}

// lowBytes returns the n least significant bytes of v, big-endian, zero padded.
func lowBytes(v *big.Int, n int) []byte {
	full := v.FillBytes(make([]byte, 32))
	return full[len(full)-n:]
}

// HashASCIIStrToField pads s with zeros to maxSize, packs it into 31 byte big-endian chunks
// (the leading chunk is the short one) and hashes the chunks.
func HashASCIIStrToField(s string, maxSize int) (*big.Int, error) {
	if len(s) > maxSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrStringTooLong, len(s), maxSize)
	}
	padded := make([]byte, maxSize)
	copy(padded, s)

	var chunks []*big.Int
	head := len(padded) % packWidth
	if head > 0 {
		chunks = append(chunks, new(big.Int).SetBytes(padded[:head]))
	}
	for i := head; i < len(padded); i += packWidth {
		chunks = append(chunks, new(big.Int).SetBytes(padded[i:i+packWidth]))
	}
	return poseidon.Hash(chunks)
}

// AddressSeed binds the salt to the key claim and audience of the JWT.
func AddressSeed(salt, claimName, claimValue, aud string) (*big.Int, error) {
	s, ok := new(big.Int).SetString(salt, 10)
	if !ok || s.Sign() < 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSalt, salt)
	}
	saltHash, err := poseidon.Hash([]*big.Int{s})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSalt, err)
	}
	name, err := HashASCIIStrToField(claimName, maxKeyClaimNameLength)
	if err != nil {
		return nil, fmt.Errorf("claim name: %w", err)
	}
	value, err := HashASCIIStrToField(claimValue, maxKeyClaimValueLength)
	if err != nil {
		return nil, fmt.Errorf("claim value: %w", err)
	}
	audience, err := HashASCIIStrToField(aud, maxAudValueLength)
	if err != nil {
		return nil, fmt.Errorf("aud: %w", err)
	}
	return poseidon.Hash([]*big.Int{name, value, audience, saltHash})
}

// NormalizeIssuer applies the one issuer rewrite the verifier performs.
func NormalizeIssuer(iss string) string {
	if iss == "accounts.google.com" {
		return "https://accounts.google.com"
	}
	return iss
}

// Address derives the on-chain address of a zkLogin identity.
func Address(iss string, addressSeed *big.Int) (core.Address, error) {
	iss = NormalizeIssuer(strings.TrimSpace(iss))
	if iss == "" {
		return core.Address{}, ErrEmptyIssuer
	}
	if len(iss) > 255 {
		return core.Address{}, fmt.Errorf("%w: issuer", ErrStringTooLong)
	}
	if addressSeed == nil || addressSeed.Sign() < 0 || addressSeed.BitLen() > 256 {
		return core.Address{}, errors.New("invalid address seed")
	}

	h, _ := blake2b.New256(nil)
	h.Write([]byte{byte(core.SchemeZkLogin), byte(len(iss))})
	h.Write([]byte(iss))
	h.Write(addressSeed.FillBytes(make([]byte, 32)))

	var a core.Address
	copy(a[:], h.Sum(nil))
	return a, nil
}
