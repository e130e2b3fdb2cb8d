package core

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/holiman/uint256"
)

// SignatureScheme is the flag byte that prefixes serialized signatures and public keys.
type SignatureScheme byte

const (
	SchemeEd25519 SignatureScheme = 0x00
	SchemeZkLogin SignatureScheme = 0x05
)

var errKeyDestroyed = errors.New("ephemeral key destroyed")

// EphemeralKeyPair is the transient Ed25519 signing identity of one login session.
// The private half is never printed, logged or marshalled.
type EphemeralKeyPair struct {
	mu      sync.RWMutex
	public  ed25519.PublicKey
	private ed25519.PrivateKey
}

// GenerateEphemeralKeyPair draws a fresh keypair from r, which must be a cryptographically secure source.
func GenerateEphemeralKeyPair(r io.Reader) (*EphemeralKeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(r)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ephemeral key: %w", err)
	}
	return &EphemeralKeyPair{public: pub, private: priv}, nil
}

// Scheme returns the signature scheme of the keypair.
func (k *EphemeralKeyPair) Scheme() SignatureScheme {
	return SchemeEd25519
}

// PublicKey returns a copy of the raw public key bytes.
func (k *EphemeralKeyPair) PublicKey() []byte {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return append([]byte(nil), k.public...)
}

// Sign signs msg with the private key.
func (k *EphemeralKeyPair) Sign(msg []byte) ([]byte, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.private == nil {
		return nil, errKeyDestroyed
	}
	return ed25519.Sign(k.private, msg), nil
}

// Destroy zeroes the private key. The keypair can no longer sign afterwards.
func (k *EphemeralKeyPair) Destroy() {
	k.mu.Lock()
	defer k.mu.Unlock()
	for i := range k.private {
		k.private[i] = 0
	}
	k.private = nil
}

// Destroyed reports whether Destroy has been called.
func (k *EphemeralKeyPair) Destroyed() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.private == nil
}

func (k *EphemeralKeyPair) String() string {
	return fmt.Sprintf("EphemeralKeyPair{scheme: ed25519, public: %x}", k.PublicKey())
}

func (k *EphemeralKeyPair) GoString() string {
	return k.String()
}

// MarshalJSON only ever exposes the public key.
func (k *EphemeralKeyPair) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf(`{"scheme":"ed25519","publicKey":"%x"}`, k.PublicKey())), nil
}

// Nonce commits to the ephemeral public key, an expiry epoch and randomness.
type Nonce struct {
	PublicKey  []byte
	MaxEpoch   uint64
	Randomness *uint256.Int
	Value      string
}

func (n Nonce) String() string {
	return n.Value
}

// Ephemeral bundles everything generateEphemeral produces for one login attempt.
type Ephemeral struct {
	KeyPair    *EphemeralKeyPair
	MaxEpoch   uint64
	Randomness *uint256.Int
	Nonce      Nonce
}
