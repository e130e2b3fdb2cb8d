package sui

import (
	"encoding/binary"

	"github.com/layer-3/onewallet/core"
)

// Builder assembles a ProgrammableTransaction.
type Builder struct {
	inputs   []CallArg
	commands []Command
}

func NewBuilder() *Builder {
	return &Builder{}
}

// Pure adds BCS encoded bytes as an input.
func (b *Builder) Pure(v []byte) Argument {
	b.inputs = append(b.inputs, CallArg{Pure: v})
	return Input(uint16(len(b.inputs) - 1))
}

// PureAddress adds an address input.
func (b *Builder) PureAddress(a core.Address) Argument {
	return b.Pure(append([]byte(nil), a[:]...))
}

// PureU64 adds a u64 input.
func (b *Builder) PureU64(v uint64) Argument {
	return b.Pure(binary.LittleEndian.AppendUint64(nil, v))
}

// Object adds an owned or immutable object input.
func (b *Builder) Object(ref ObjectRef) Argument {
	b.inputs = append(b.inputs, CallArg{Object: &ObjectArg{Kind: ObjectImmOrOwned, Ref: ref}})
	return Input(uint16(len(b.inputs) - 1))
}

// Command appends c and returns a reference to its result.
func (b *Builder) Command(c Command) Argument {
	b.commands = append(b.commands, c)
	return Result(uint16(len(b.commands) - 1))
}

// TransferObject transfers one owned object to recipient.
func (b *Builder) TransferObject(recipient core.Address, ref ObjectRef) {
	obj := b.Object(ref)
	to := b.PureAddress(recipient)
	b.Command(TransferObjects{Objects: []Argument{obj}, Recipient: to})
}

// PaySui splits amount off the gas coin and sends it to recipient.
func (b *Builder) PaySui(recipient core.Address, amount uint64) {
	to := b.PureAddress(recipient)
	amt := b.PureU64(amount)
	coin := b.Command(SplitCoins{Coin: GasCoin(), Amounts: []Argument{amt}})
	b.Command(TransferObjects{Objects: []Argument{NestedResult(coin.Index, 0)}, Recipient: to})
}

// Finish returns the built transaction.
func (b *Builder) Finish() ProgrammableTransaction {
	return ProgrammableTransaction{Inputs: b.inputs, Commands: b.commands}
}
