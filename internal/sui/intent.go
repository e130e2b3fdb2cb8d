package sui

import (
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

// IntentScope says what kind of message is being signed.
type IntentScope uint8

const (
	ScopeTransactionData IntentScope = 0
	ScopePersonalMessage IntentScope = 3
)

const (
	intentVersionV0 = 0
	intentAppSui    = 0
)

// IntentMessage prefixes msg with the three byte intent (scope, version, app id).
func IntentMessage(scope IntentScope, msg []byte) []byte {
	out := make([]byte, 0, 3+len(msg))
	out = append(out, byte(scope), intentVersionV0, intentAppSui)
	return append(out, msg...)
}

// IntentDigest is the 32 byte Blake2b hash an ed25519 user signature commits to.
func IntentDigest(scope IntentScope, msg []byte) [32]byte {
	return blake2b.Sum256(IntentMessage(scope, msg))
}

// TransactionDigest is the base58 identifier the network assigns to tx.
func TransactionDigest(tx []byte) string {
	h, _ := blake2b.New256(nil)
	h.Write([]byte("TransactionData::"))
	h.Write(tx)
	return base58.Encode(h.Sum(nil))
}
