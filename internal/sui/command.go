package sui

import (
	"fmt"

	"github.com/layer-3/onewallet/core"
	"github.com/layer-3/onewallet/internal/bcs"
)

// Command is one step of a programmable transaction.
type Command interface {
	bcs.Marshaler
	commandTag() uint64
}

// MoveCall invokes a Move function.
type MoveCall struct {
	Package       core.Address
	Module        string
	Function      string
	TypeArguments []TypeTag
	Arguments     []Argument
}

// TransferObjects sends objects to the address held by Recipient.
type TransferObjects struct {
	Objects   []Argument
	Recipient Argument
}

// SplitCoins splits Coin into new coins with the given amounts.
type SplitCoins struct {
	Coin    Argument
	Amounts []Argument
}

// MergeCoins merges Sources into Destination.
type MergeCoins struct {
	Destination Argument
	Sources     []Argument
}

// Publish publishes Move modules.
type Publish struct {
	Modules      [][]byte
	Dependencies []core.Address
}

// MakeMoveVec builds a Move vector from Elements.
type MakeMoveVec struct {
	Type     *TypeTag
	Elements []Argument
}

// Upgrade upgrades a published package.
type Upgrade struct {
	Modules      [][]byte
	Dependencies []core.Address
	Package      core.Address
	Ticket       Argument
}

func (MoveCall) commandTag() uint64        { return 0 }
func (TransferObjects) commandTag() uint64 { return 1 }
func (SplitCoins) commandTag() uint64      { return 2 }
func (MergeCoins) commandTag() uint64      { return 3 }
func (Publish) commandTag() uint64         { return 4 }
func (MakeMoveVec) commandTag() uint64     { return 5 }
func (Upgrade) commandTag() uint64         { return 6 }

func (c MoveCall) MarshalBCS(e *bcs.Encoder) {
	e.Fixed(c.Package[:])
	e.String(c.Module)
	e.String(c.Function)
	e.ULEB128(uint64(len(c.TypeArguments)))
	for _, t := range c.TypeArguments {
		t.MarshalBCS(e)
	}
	marshalArguments(e, c.Arguments)
}

func (c TransferObjects) MarshalBCS(e *bcs.Encoder) {
	marshalArguments(e, c.Objects)
	c.Recipient.MarshalBCS(e)
}

func (c SplitCoins) MarshalBCS(e *bcs.Encoder) {
	c.Coin.MarshalBCS(e)
	marshalArguments(e, c.Amounts)
}

func (c MergeCoins) MarshalBCS(e *bcs.Encoder) {
	c.Destination.MarshalBCS(e)
	marshalArguments(e, c.Sources)
}

func (c Publish) MarshalBCS(e *bcs.Encoder) {
	marshalModules(e, c.Modules, c.Dependencies)
}

func (c MakeMoveVec) MarshalBCS(e *bcs.Encoder) {
	if c.Type == nil {
		e.U8(0)
	} else {
		e.U8(1)
		c.Type.MarshalBCS(e)
	}
	marshalArguments(e, c.Elements)
}

func (c Upgrade) MarshalBCS(e *bcs.Encoder) {
	marshalModules(e, c.Modules, c.Dependencies)
	e.Fixed(c.Package[:])
	c.Ticket.MarshalBCS(e)
}

func marshalModules(e *bcs.Encoder, modules [][]byte, deps []core.Address) {
	e.ULEB128(uint64(len(modules)))
	for _, m := range modules {
		e.ByteVector(m)
	}
	e.ULEB128(uint64(len(deps)))
	for _, dep := range deps {
		e.Fixed(dep[:])
	}
}

func unmarshalModules(d *bcs.Decoder) ([][]byte, []core.Address) {
	n := d.Len()
	modules := make([][]byte, 0, n)
	for i := 0; i < n && d.Err() == nil; i++ {
		modules = append(modules, d.ByteVector())
	}
	n = d.Len()
	deps := make([]core.Address, n)
	for i := 0; i < n && d.Err() == nil; i++ {
		decodeAddress(d, &deps[i])
	}
	return modules, deps
}

func marshalCommand(e *bcs.Encoder, c Command) {
	e.ULEB128(c.commandTag())
	c.MarshalBCS(e)
}

func unmarshalCommand(d *bcs.Decoder) Command {
	switch tag := d.ULEB128(); tag {
	case 0:
		var c MoveCall
		decodeAddress(d, &c.Package)
		c.Module = d.Str()
		c.Function = d.Str()
		n := d.Len()
		for i := 0; i < n && d.Err() == nil; i++ {
			var t TypeTag
			t.UnmarshalBCS(d)
			c.TypeArguments = append(c.TypeArguments, t)
		}
		c.Arguments = unmarshalArguments(d)
		return c
	case 1:
		var c TransferObjects
		c.Objects = unmarshalArguments(d)
		c.Recipient.UnmarshalBCS(d)
		return c
	case 2:
		var c SplitCoins
		c.Coin.UnmarshalBCS(d)
		c.Amounts = unmarshalArguments(d)
		return c
	case 3:
		var c MergeCoins
		c.Destination.UnmarshalBCS(d)
		c.Sources = unmarshalArguments(d)
		return c
	case 4:
		var c Publish
		c.Modules, c.Dependencies = unmarshalModules(d)
		return c
	case 5:
		var c MakeMoveVec
		switch d.U8() {
		case 0:
		case 1:
			c.Type = new(TypeTag)
			c.Type.UnmarshalBCS(d)
		default:
			d.Fail(fmt.Errorf("invalid option tag"))
		}
		c.Elements = unmarshalArguments(d)
		return c
	case 6:
		var c Upgrade
		c.Modules, c.Dependencies = unmarshalModules(d)
		decodeAddress(d, &c.Package)
		c.Ticket.UnmarshalBCS(d)
		return c
	default:
		d.Fail(fmt.Errorf("unknown command %d", tag))
		return nil
	}
}
