package core

import (
	"bytes"
	"math/big"

	"github.com/holiman/uint256"
)

// DefaultKeyClaimName is the JWT claim that identifies the user.
const DefaultKeyClaimName = "sub"

// ProofRequest is what the prover needs to bind a JWT to an ephemeral key.
type ProofRequest struct {
	MaxEpoch          uint64
	Randomness        *uint256.Int
	ExtendedPublicKey *big.Int
	JWT               string
	Salt              string
	KeyClaimName      string
}

// ProofPoints are the Groth16 proof points returned by the prover, as decimal strings.
type ProofPoints struct {
	A []string   `json:"a"`
	B [][]string `json:"b"`
	C []string   `json:"c"`
}

// Claim locates the base64 encoded issuer claim inside the JWT payload.
type Claim struct {
	Value     string `json:"value"`
	IndexMod4 uint8  `json:"indexMod4"`
}

// ProofBinding records the ephemeral inputs a proof was generated for.
type ProofBinding struct {
	PublicKey []byte
	MaxEpoch  uint64
	Nonce     string
}

// ZkProof is the zero-knowledge proof tying the JWT subject to the ephemeral key.
type ZkProof struct {
	ProofPoints      ProofPoints
	IssBase64Details Claim
	HeaderBase64     string
	AddressSeed      *big.Int
	Issuer           string
	KeyClaimName     string
	Address          Address
	Binding          ProofBinding
}

// Matches reports whether the proof was generated for the given ephemeral public key and max epoch.
func (p *ZkProof) Matches(publicKey []byte, maxEpoch uint64) bool {
	return p != nil &&
		len(p.Binding.PublicKey) > 0 &&
		bytes.Equal(p.Binding.PublicKey, publicKey) &&
		p.Binding.MaxEpoch == maxEpoch
}
