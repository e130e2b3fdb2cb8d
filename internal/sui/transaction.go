package sui

import (
	"encoding/base64"
	"fmt"

	"github.com/layer-3/onewallet/core"
	"github.com/layer-3/onewallet/internal/bcs"
)

// ProgrammableTransaction is a sequence of commands over a shared list of inputs.
type ProgrammableTransaction struct {
	Inputs   []CallArg
	Commands []Command
}

func (p ProgrammableTransaction) MarshalBCS(e *bcs.Encoder) {
	e.ULEB128(uint64(len(p.Inputs)))
	for _, in := range p.Inputs {
		in.MarshalBCS(e)
	}
	e.ULEB128(uint64(len(p.Commands)))
	for _, c := range p.Commands {
		marshalCommand(e, c)
	}
}

func (p *ProgrammableTransaction) UnmarshalBCS(d *bcs.Decoder) {
	n := d.Len()
	for i := 0; i < n && d.Err() == nil; i++ {
		var in CallArg
		in.UnmarshalBCS(d)
		p.Inputs = append(p.Inputs, in)
	}
	n = d.Len()
	for i := 0; i < n && d.Err() == nil; i++ {
		if c := unmarshalCommand(d); c != nil {
			p.Commands = append(p.Commands, c)
		}
	}
}

// transactionKindProgrammable is the only transaction kind a user can sign.
const transactionKindProgrammable = 0

// TransactionKind wraps a programmable transaction with its kind tag.
type TransactionKind struct {
	Programmable ProgrammableTransaction
}

func (k TransactionKind) MarshalBCS(e *bcs.Encoder) {
	e.ULEB128(transactionKindProgrammable)
	k.Programmable.MarshalBCS(e)
}

func (k *TransactionKind) UnmarshalBCS(d *bcs.Decoder) {
	if tag := d.ULEB128(); tag != transactionKindProgrammable {
		d.Fail(fmt.Errorf("unsupported transaction kind %d", tag))
		return
	}
	k.Programmable.UnmarshalBCS(d)
}

// GasData names who pays for gas and with which coins.
type GasData struct {
	Payment []ObjectRef
	Owner   core.Address
	Price   uint64
	Budget  uint64
}

func (g GasData) MarshalBCS(e *bcs.Encoder) {
	e.ULEB128(uint64(len(g.Payment)))
	for _, r := range g.Payment {
		r.MarshalBCS(e)
	}
	e.Fixed(g.Owner[:])
	e.U64(g.Price)
	e.U64(g.Budget)
}

func (g *GasData) UnmarshalBCS(d *bcs.Decoder) {
	n := d.Len()
	for i := 0; i < n && d.Err() == nil; i++ {
		var r ObjectRef
		r.UnmarshalBCS(d)
		g.Payment = append(g.Payment, r)
	}
	decodeAddress(d, &g.Owner)
	g.Price = d.U64()
	g.Budget = d.U64()
}

// Expiration bounds the epoch in which the transaction may execute; nil Epoch means none.
type Expiration struct {
	Epoch *uint64
}

func (x Expiration) MarshalBCS(e *bcs.Encoder) {
	if x.Epoch == nil {
		e.ULEB128(0)
		return
	}
	e.ULEB128(1)
	e.U64(*x.Epoch)
}

func (x *Expiration) UnmarshalBCS(d *bcs.Decoder) {
	switch tag := d.ULEB128(); tag {
	case 0:
	case 1:
		epoch := d.U64()
		x.Epoch = &epoch
	default:
		d.Fail(fmt.Errorf("unknown expiration %d", tag))
	}
}

// transactionDataV1 is the only TransactionData version.
const transactionDataV1 = 0

// TransactionData is the signable transaction.
type TransactionData struct {
	Kind       TransactionKind
	Sender     core.Address
	GasData    GasData
	Expiration Expiration
}

// NewProgrammable builds TransactionData for a programmable transaction paid by the sender.
func NewProgrammable(sender core.Address, payment []ObjectRef, pt ProgrammableTransaction, gasBudget, gasPrice uint64) TransactionData {
	return TransactionData{
		Kind:   TransactionKind{Programmable: pt},
		Sender: sender,
		GasData: GasData{
			Payment: payment,
			Owner:   sender,
			Price:   gasPrice,
			Budget:  gasBudget,
		},
	}
}

func (t TransactionData) MarshalBCS(e *bcs.Encoder) {
	e.ULEB128(transactionDataV1)
	t.Kind.MarshalBCS(e)
	e.Fixed(t.Sender[:])
	t.GasData.MarshalBCS(e)
	t.Expiration.MarshalBCS(e)
}

func (t *TransactionData) UnmarshalBCS(d *bcs.Decoder) {
	if v := d.ULEB128(); v != transactionDataV1 {
		d.Fail(fmt.Errorf("unsupported transaction data version %d", v))
		return
	}
	t.Kind.UnmarshalBCS(d)
	decodeAddress(d, &t.Sender)
	t.GasData.UnmarshalBCS(d)
	t.Expiration.UnmarshalBCS(d)
}

// Bytes returns the canonical encoding of t.
func (t TransactionData) Bytes() []byte {
	return bcs.Marshal(t)
}

// DecodeTransactionData parses canonical transaction bytes.
func DecodeTransactionData(b []byte) (*TransactionData, error) {
	var t TransactionData
	if err := bcs.Unmarshal(b, &t); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidTx, err)
	}
	return &t, nil
}

// DecodeTransactionKind parses the bytes of a bare transaction kind.
func DecodeTransactionKind(b []byte) (*TransactionKind, error) {
	var k TransactionKind
	if err := bcs.Unmarshal(b, &k); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidTx, err)
	}
	return &k, nil
}

// EncodeBase64 renders transaction bytes the way the wallet service expects them.
func EncodeBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// DecodeBase64 parses base64 transaction bytes from the wallet service.
func DecodeBase64(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidTx, err)
	}
	return b, nil
}
