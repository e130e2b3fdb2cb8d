// Package sui models the on-chain transaction format: BCS encoded TransactionData, programmable
// transactions, intent messages and the signature envelopes the network verifier accepts.
package sui

import (
	"fmt"

	"github.com/mr-tron/base58"

	"github.com/layer-3/onewallet/core"
	"github.com/layer-3/onewallet/internal/bcs"
)

// DigestLength is the byte length of object and transaction digests.
const DigestLength = 32

// ObjectRef pins an object at a version.
type ObjectRef struct {
	ObjectID core.Address
	Version  uint64
	Digest   [DigestLength]byte
}

func (r ObjectRef) MarshalBCS(e *bcs.Encoder) {
	e.Fixed(r.ObjectID[:])
	e.U64(r.Version)
	e.ByteVector(r.Digest[:])
}

func (r *ObjectRef) UnmarshalBCS(d *bcs.Decoder) {
	decodeAddress(d, &r.ObjectID)
	r.Version = d.U64()
	digest := d.ByteVector()
	if d.Err() != nil {
		return
	}
	if len(digest) != DigestLength {
		d.Fail(fmt.Errorf("object digest length %d", len(digest)))
		return
	}
	copy(r.Digest[:], digest)
}

// ParseDigest decodes a base58 object digest.
func ParseDigest(s string) ([DigestLength]byte, error) {
	var d [DigestLength]byte
	b, err := base58.Decode(s)
	if err != nil {
		return d, fmt.Errorf("invalid digest %q: %w", s, err)
	}
	if len(b) != DigestLength {
		return d, fmt.Errorf("invalid digest %q: length %d", s, len(b))
	}
	copy(d[:], b)
	return d, nil
}

// CoinRef returns the object reference of a coin.
func CoinRef(c core.Coin) (ObjectRef, error) {
	digest, err := ParseDigest(c.Digest)
	if err != nil {
		return ObjectRef{}, err
	}
	return ObjectRef{ObjectID: c.ObjectID, Version: c.Version, Digest: digest}, nil
}

func decodeAddress(d *bcs.Decoder, a *core.Address) {
	copy(a[:], d.Fixed(core.AddressLength))
}

// TypeTagKind is the variant tag of a Move type.
type TypeTagKind uint8

const (
	TypeBool TypeTagKind = iota
	TypeU8
	TypeU64
	TypeU128
	TypeAddress
	TypeSigner
	TypeVector
	TypeStruct
	TypeU16
	TypeU32
	TypeU256
)

// maxTypeDepth bounds TypeTag nesting while decoding.
const maxTypeDepth = 16

// TypeTag is a Move type argument.
type TypeTag struct {
	Kind   TypeTagKind
	Vector *TypeTag
	Struct *StructTag
}

// StructTag names a Move struct type.
type StructTag struct {
	Address    core.Address
	Module     string
	Name       string
	TypeParams []TypeTag
}

func (t TypeTag) MarshalBCS(e *bcs.Encoder) {
	e.ULEB128(uint64(t.Kind))
	switch t.Kind {
	case TypeVector:
		t.Vector.MarshalBCS(e)
	case TypeStruct:
		t.Struct.MarshalBCS(e)
	}
}

func (t *TypeTag) UnmarshalBCS(d *bcs.Decoder) {
	t.decode(d, 0)
}

func (t *TypeTag) decode(d *bcs.Decoder, depth int) {
	if depth > maxTypeDepth {
		d.Fail(fmt.Errorf("type tag nested deeper than %d", maxTypeDepth))
		return
	}
	t.Kind = TypeTagKind(d.ULEB128())
	switch t.Kind {
	case TypeBool, TypeU8, TypeU64, TypeU128, TypeAddress, TypeSigner, TypeU16, TypeU32, TypeU256:
	case TypeVector:
		t.Vector = new(TypeTag)
		t.Vector.decode(d, depth+1)
	case TypeStruct:
		t.Struct = new(StructTag)
		t.Struct.decode(d, depth+1)
	default:
		d.Fail(fmt.Errorf("unknown type tag %d", t.Kind))
	}
}

func (s StructTag) MarshalBCS(e *bcs.Encoder) {
	e.Fixed(s.Address[:])
	e.String(s.Module)
	e.String(s.Name)
	e.ULEB128(uint64(len(s.TypeParams)))
	for _, p := range s.TypeParams {
		p.MarshalBCS(e)
	}
}

func (s *StructTag) decode(d *bcs.Decoder, depth int) {
	decodeAddress(d, &s.Address)
	s.Module = d.Str()
	s.Name = d.Str()
	n := d.Len()
	for i := 0; i < n && d.Err() == nil; i++ {
		var p TypeTag
		p.decode(d, depth+1)
		s.TypeParams = append(s.TypeParams, p)
	}
}

// ArgumentKind is the variant tag of a command argument.
type ArgumentKind uint8

const (
	ArgGasCoin ArgumentKind = iota
	ArgInput
	ArgResult
	ArgNestedResult
)

// Argument references the gas coin, a transaction input or an earlier command result.
type Argument struct {
	Kind        ArgumentKind
	Index       uint16
	ResultIndex uint16
}

func GasCoin() Argument        { return Argument{Kind: ArgGasCoin} }
func Input(i uint16) Argument  { return Argument{Kind: ArgInput, Index: i} }
func Result(i uint16) Argument { return Argument{Kind: ArgResult, Index: i} }
func NestedResult(i, j uint16) Argument {
	return Argument{Kind: ArgNestedResult, Index: i, ResultIndex: j}
}

func (a Argument) MarshalBCS(e *bcs.Encoder) {
	e.ULEB128(uint64(a.Kind))
	switch a.Kind {
	case ArgInput, ArgResult:
		e.U16(a.Index)
	case ArgNestedResult:
		e.U16(a.Index)
		e.U16(a.ResultIndex)
	}
}

func (a *Argument) UnmarshalBCS(d *bcs.Decoder) {
	a.Kind = ArgumentKind(d.ULEB128())
	switch a.Kind {
	case ArgGasCoin:
	case ArgInput, ArgResult:
		a.Index = d.U16()
	case ArgNestedResult:
		a.Index = d.U16()
		a.ResultIndex = d.U16()
	default:
		d.Fail(fmt.Errorf("unknown argument kind %d", a.Kind))
	}
}

func marshalArguments(e *bcs.Encoder, args []Argument) {
	e.ULEB128(uint64(len(args)))
	for _, a := range args {
		a.MarshalBCS(e)
	}
}

func unmarshalArguments(d *bcs.Decoder) []Argument {
	n := d.Len()
	args := make([]Argument, 0, n)
	for i := 0; i < n && d.Err() == nil; i++ {
		var a Argument
		a.UnmarshalBCS(d)
		args = append(args, a)
	}
	return args
}

// ObjectArgKind is the variant tag of an object input.
type ObjectArgKind uint8

const (
	ObjectImmOrOwned ObjectArgKind = iota
	ObjectShared
	ObjectReceiving
)

// ObjectArg is an object passed as a transaction input.
type ObjectArg struct {
	Kind                 ObjectArgKind
	Ref                  ObjectRef
	SharedID             core.Address
	InitialSharedVersion uint64
	Mutable              bool
}

func (o ObjectArg) MarshalBCS(e *bcs.Encoder) {
	e.ULEB128(uint64(o.Kind))
	switch o.Kind {
	case ObjectImmOrOwned, ObjectReceiving:
		o.Ref.MarshalBCS(e)
	case ObjectShared:
		e.Fixed(o.SharedID[:])
		e.U64(o.InitialSharedVersion)
		e.Bool(o.Mutable)
	}
}

func (o *ObjectArg) UnmarshalBCS(d *bcs.Decoder) {
	o.Kind = ObjectArgKind(d.ULEB128())
	switch o.Kind {
	case ObjectImmOrOwned, ObjectReceiving:
		o.Ref.UnmarshalBCS(d)
	case ObjectShared:
		decodeAddress(d, &o.SharedID)
		o.InitialSharedVersion = d.U64()
		o.Mutable = d.Bool()
	default:
		d.Fail(fmt.Errorf("unknown object arg kind %d", o.Kind))
	}
}

// CallArg is a transaction input: either pure BCS bytes or an object.
type CallArg struct {
	Pure   []byte
	Object *ObjectArg
}

func (c CallArg) MarshalBCS(e *bcs.Encoder) {
	if c.Object != nil {
		e.ULEB128(1)
		c.Object.MarshalBCS(e)
		return
	}
	e.ULEB128(0)
	e.ByteVector(c.Pure)
}

func (c *CallArg) UnmarshalBCS(d *bcs.Decoder) {
	switch tag := d.ULEB128(); tag {
	case 0:
		c.Pure = d.ByteVector()
		if c.Pure == nil {
			c.Pure = []byte{}
		}
	case 1:
		c.Object = new(ObjectArg)
		c.Object.UnmarshalBCS(d)
	default:
		d.Fail(fmt.Errorf("unknown call arg %d", tag))
	}
}
