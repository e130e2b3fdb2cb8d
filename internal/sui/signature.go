package sui

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/layer-3/onewallet/core"
	"github.com/layer-3/onewallet/internal/bcs"
)

var (
	ErrSignatureFlag   = errors.New("unexpected signature scheme flag")
	ErrSignatureLength = errors.New("invalid signature length")
	ErrBadSignature    = errors.New("signature does not verify")
)

// Ed25519SignatureLength is flag || signature || public key.
const Ed25519SignatureLength = 1 + ed25519.SignatureSize + ed25519.PublicKeySize

// Signer signs raw digests with an ed25519 key.
type Signer interface {
	PublicKey() []byte
	Sign(msg []byte) ([]byte, error)
}

// SerializeEd25519Signature renders flag || sig || pk.
func SerializeEd25519Signature(sig, pub []byte) []byte {
	out := make([]byte, 0, Ed25519SignatureLength)
	out = append(out, byte(core.SchemeEd25519))
	out = append(out, sig...)
	return append(out, pub...)
}

// ParseEd25519Signature splits a serialized ed25519 signature into its signature and public key.
func ParseEd25519Signature(b []byte) (sig, pub []byte, err error) {
	if len(b) != Ed25519SignatureLength {
		return nil, nil, fmt.Errorf("%w: %d", ErrSignatureLength, len(b))
	}
	if core.SignatureScheme(b[0]) != core.SchemeEd25519 {
		return nil, nil, fmt.Errorf("%w: %#x", ErrSignatureFlag, b[0])
	}
	return b[1 : 1+ed25519.SignatureSize], b[1+ed25519.SignatureSize:], nil
}

// SignTransaction produces the serialized ed25519 user signature over the intent digest of tx.
func SignTransaction(s Signer, tx []byte) ([]byte, error) {
	digest := IntentDigest(ScopeTransactionData, tx)
	sig, err := s.Sign(digest[:])
	if err != nil {
		return nil, err
	}
	return SerializeEd25519Signature(sig, s.PublicKey()), nil
}

// VerifyEd25519Signature checks a serialized user signature against tx and returns its public key.
func VerifyEd25519Signature(userSig, tx []byte) ([]byte, error) {
	sig, pub, err := ParseEd25519Signature(userSig)
	if err != nil {
		return nil, err
	}
	digest := IntentDigest(ScopeTransactionData, tx)
	if !ed25519.Verify(pub, digest[:], sig) {
		return nil, ErrBadSignature
	}
	return pub, nil
}

// ZkLoginInputs are the prover outputs carried inside a zkLogin signature.
type ZkLoginInputs struct {
	ProofPoints      core.ProofPoints
	IssBase64Details core.Claim
	HeaderBase64     string
	AddressSeed      string
}

func (in ZkLoginInputs) MarshalBCS(e *bcs.Encoder) {
	marshalStrings(e, in.ProofPoints.A)
	e.ULEB128(uint64(len(in.ProofPoints.B)))
	for _, row := range in.ProofPoints.B {
		marshalStrings(e, row)
	}
	marshalStrings(e, in.ProofPoints.C)
	e.String(in.IssBase64Details.Value)
	e.U8(in.IssBase64Details.IndexMod4)
	e.String(in.HeaderBase64)
	e.String(in.AddressSeed)
}

func (in *ZkLoginInputs) UnmarshalBCS(d *bcs.Decoder) {
	in.ProofPoints.A = unmarshalStrings(d)
	n := d.Len()
	for i := 0; i < n && d.Err() == nil; i++ {
		in.ProofPoints.B = append(in.ProofPoints.B, unmarshalStrings(d))
	}
	in.ProofPoints.C = unmarshalStrings(d)
	in.IssBase64Details.Value = d.Str()
	in.IssBase64Details.IndexMod4 = d.U8()
	in.HeaderBase64 = d.Str()
	in.AddressSeed = d.Str()
}

func marshalStrings(e *bcs.Encoder, ss []string) {
	e.ULEB128(uint64(len(ss)))
	for _, s := range ss {
		e.String(s)
	}
}

func unmarshalStrings(d *bcs.Decoder) []string {
	n := d.Len()
	out := make([]string, 0, n)
	for i := 0; i < n && d.Err() == nil; i++ {
		out = append(out, d.Str())
	}
	return out
}

// ZkLoginSignature is the composite authenticator for a zkLogin address.
type ZkLoginSignature struct {
	Inputs        ZkLoginInputs
	MaxEpoch      uint64
	UserSignature []byte
}

// NewZkLoginSignature wraps proof and a serialized ed25519 user signature.
func NewZkLoginSignature(proof *core.ZkProof, maxEpoch uint64, userSig []byte) ZkLoginSignature {
	seed := ""
	if proof.AddressSeed != nil {
		seed = proof.AddressSeed.String()
	}
	return ZkLoginSignature{
		Inputs: ZkLoginInputs{
			ProofPoints:      proof.ProofPoints,
			IssBase64Details: proof.IssBase64Details,
			HeaderBase64:     proof.HeaderBase64,
			AddressSeed:      seed,
		},
		MaxEpoch:      maxEpoch,
		UserSignature: userSig,
	}
}

func (z ZkLoginSignature) MarshalBCS(e *bcs.Encoder) {
	z.Inputs.MarshalBCS(e)
	e.U64(z.MaxEpoch)
	e.ByteVector(z.UserSignature)
}

func (z *ZkLoginSignature) UnmarshalBCS(d *bcs.Decoder) {
	z.Inputs.UnmarshalBCS(d)
	z.MaxEpoch = d.U64()
	z.UserSignature = d.ByteVector()
}

// Bytes returns flag 0x05 followed by the BCS encoded signature.
func (z ZkLoginSignature) Bytes() []byte {
	return append([]byte{byte(core.SchemeZkLogin)}, bcs.Marshal(z)...)
}

// Base64 is the form submitted to the wallet service.
func (z ZkLoginSignature) Base64() string {
	return base64.StdEncoding.EncodeToString(z.Bytes())
}

// ParseZkLoginSignature decodes a serialized zkLogin signature, with or without base64.
func ParseZkLoginSignature(b []byte) (*ZkLoginSignature, error) {
	if len(b) == 0 || core.SignatureScheme(b[0]) != core.SchemeZkLogin {
		if raw, err := base64.StdEncoding.DecodeString(string(bytes.TrimSpace(b))); err == nil && len(raw) > 0 && core.SignatureScheme(raw[0]) == core.SchemeZkLogin {
			b = raw
		} else {
			return nil, ErrSignatureFlag
		}
	}
	var z ZkLoginSignature
	if err := bcs.Unmarshal(b[1:], &z); err != nil {
		return nil, fmt.Errorf("invalid zklogin signature: %w", err)
	}
	return &z, nil
}
