package sandbox

import (
	"context"
	"encoding/binary"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
	"golang.org/x/crypto/blake2b"

	"github.com/layer-3/onewallet/adapters/rest"
	"github.com/layer-3/onewallet/core"
	"github.com/layer-3/onewallet/internal/zk"
)

// issuedProof is what the emulated circuit attested to. The verifier looks it up by proof points.
type issuedProof struct {
	PublicKey []byte
	MaxEpoch  uint64
	Seed      *big.Int
	Issuer    string
}

// ZkProofs emulates the prover: it checks everything the circuit would and returns
// deterministic proof points.
func (b *Backend) ZkProofs(ctx context.Context, sess *Session, req rest.ZkProofsRequest) (*rest.ZkProofsResponse, error) {
	claims, err := b.tokens.VerifyIDToken(req.JWT)
	if err != nil {
		return nil, reject(CodeInvalidJWT, "%v", err)
	}
	if claims.Subject != sess.user.UserNo {
		return nil, reject(CodeInvalidJWT, "jwt belongs to another user")
	}
	if req.Salt != sess.user.Salt {
		return nil, reject(CodeBadRequest, "salt does not belong to the user")
	}

	claimName := req.KeyClaimName
	if claimName == "" {
		claimName = core.DefaultKeyClaimName
	}
	claimValue, ok := claims.Claim(claimName)
	if !ok {
		return nil, reject(CodeInvalidJWT, "jwt has no %q claim", claimName)
	}

	ext, ok := new(big.Int).SetString(req.ExtendedEphemeralPublicKey, 10)
	if !ok || ext.Sign() <= 0 || ext.BitLen() > 8*33 {
		return nil, reject(CodeBadRequest, "invalid extended public key")
	}
	extBytes := ext.FillBytes(make([]byte, 33))
	if core.SignatureScheme(extBytes[0]) != core.SchemeEd25519 {
		return nil, reject(CodeUnsupported, "unsupported key scheme %d", extBytes[0])
	}
	publicKey := extBytes[1:]

	randomness, err := uint256.FromDecimal(req.JWTRandomness)
	if err != nil {
		return nil, reject(CodeBadRequest, "invalid randomness")
	}
	if req.MaxEpoch < 0 {
		return nil, reject(CodeBadRequest, "invalid max epoch")
	}
	maxEpoch := uint64(req.MaxEpoch)
	if maxEpoch < b.ledger.Epoch() {
		return nil, reject(CodeEpochExpired, "max epoch %d has passed", maxEpoch)
	}

	nonce, err := zk.NewNonce(publicKey, maxEpoch, randomness)
	if err != nil {
		return nil, reject(CodeBadRequest, "%v", err)
	}
	if nonce.Value != claims.Nonce {
		return nil, reject(CodeNonceMismatch, "jwt nonce does not commit to the ephemeral key")
	}

	iss, err := zk.ExtractClaim(req.JWT, "iss")
	if err != nil {
		return nil, reject(CodeInvalidJWT, "%v", err)
	}
	seed, err := zk.AddressSeed(req.Salt, claimName, claimValue, claims.Audience)
	if err != nil {
		return nil, reject(CodeBadRequest, "%v", err)
	}
	address, err := zk.Address(claims.Issuer, seed)
	if err != nil {
		return nil, reject(CodeInvalidJWT, "%v", err)
	}

	points := provePoints(seed, publicKey, maxEpoch)

	b.mu.Lock()
	b.proofs[points.A[0]] = &issuedProof{PublicKey: publicKey, MaxEpoch: maxEpoch, Seed: seed, Issuer: claims.Issuer}
	fund := !hasWallet(sess.user, address)
	if fund {
		sess.user.Wallets = append(sess.user.Wallets, address)
	}
	b.mu.Unlock()

	if fund {
		b.ledger.Mint(address, SuiCoinType, b.cfg.Faucet)
		b.log.WithField("address", address.String()).Info("wallet created")
	}

	return &rest.ZkProofsResponse{
		ProofPoints:      points,
		IssBase64Details: iss,
		HeaderBase64:     strings.SplitN(req.JWT, ".", 2)[0],
	}, nil
}

func hasWallet(u *user, a core.Address) bool {
	for _, w := range u.Wallets {
		if w == a {
			return true
		}
	}
	return false
}

// provePoints derives stand-in Groth16 points from the statement.
func provePoints(seed *big.Int, publicKey []byte, maxEpoch uint64) core.ProofPoints {
	statement := append(seed.FillBytes(make([]byte, 32)), publicKey...)
	statement = binary.BigEndian.AppendUint64(statement, maxEpoch)

	field := func(i byte) string {
		h := blake2b.Sum256(append(statement[:len(statement):len(statement)], i))
		return new(big.Int).SetBytes(h[:31]).String()
	}
	return core.ProofPoints{
		A: []string{field(0), field(1), "1"},
		B: [][]string{{field(2), field(3)}, {field(4), field(5)}, {"1", "0"}},
		C: []string{field(6), field(7), "1"},
	}
}
