package core

// State is a step of the zkLogin session handshake.
type State uint8

const (
	StateUnauthenticated State = iota
	StateCodeSent
	StateAuthenticated
	StateProofReady
	StateTxSigned
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateCodeSent:
		return "code_sent"
	case StateAuthenticated:
		return "authenticated"
	case StateProofReady:
		return "proof_ready"
	case StateTxSigned:
		return "tx_signed"
	default:
		return "unknown"
	}
}
