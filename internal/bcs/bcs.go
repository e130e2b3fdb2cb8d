// Package bcs implements the Binary Canonical Serialization used for transaction data and
// signatures: little-endian fixed-width integers, ULEB128 lengths and enum tags, and
// length-prefixed byte vectors and strings.
package bcs

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	ErrUnexpectedEOF  = errors.New("bcs: unexpected end of input")
	ErrTrailingBytes  = errors.New("bcs: trailing bytes")
	ErrInvalidULEB128 = errors.New("bcs: invalid uleb128")
	ErrInvalidBool    = errors.New("bcs: invalid bool")
)

// Marshaler is implemented by types with a canonical binary encoding.
type Marshaler interface {
	MarshalBCS(e *Encoder)
}

// Unmarshaler is implemented by types that can decode themselves from a Decoder.
type Unmarshaler interface {
	UnmarshalBCS(d *Decoder)
}

// Marshal encodes m.
func Marshal(m Marshaler) []byte {
	e := NewEncoder()
	m.MarshalBCS(e)
	return e.Result()
}

// Unmarshal decodes data into u and requires every byte to be consumed.
func Unmarshal(data []byte, u Unmarshaler) error {
	d := NewDecoder(data)
	u.UnmarshalBCS(d)
	return d.Finish()
}

// Encoder appends BCS values to an internal buffer.
type Encoder struct {
	buf []byte
}

func NewEncoder() *Encoder {
	return &Encoder{buf: make([]byte, 0, 256)}
}

// Result returns the encoded bytes.
func (e *Encoder) Result() []byte {
	return e.buf
}

func (e *Encoder) U8(v uint8) {
	e.buf = append(e.buf, v)
}

func (e *Encoder) Bool(v bool) {
	if v {
		e.U8(1)
		return
	}
	e.U8(0)
}

func (e *Encoder) U16(v uint16) {
	e.buf = binary.LittleEndian.AppendUint16(e.buf, v)
}

func (e *Encoder) U32(v uint32) {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, v)
}

func (e *Encoder) U64(v uint64) {
	e.buf = binary.LittleEndian.AppendUint64(e.buf, v)
}

// ULEB128 writes v as an unsigned LEB128 varint, used for lengths and enum variant tags.
func (e *Encoder) ULEB128(v uint64) {
	for v >= 0x80 {
		e.buf = append(e.buf, byte(v)|0x80)
		v >>= 7
	}
	e.buf = append(e.buf, byte(v))
}

// Fixed writes b without a length prefix.
func (e *Encoder) Fixed(b []byte) {
	e.buf = append(e.buf, b...)
}

// ByteVector writes b with a ULEB128 length prefix.
func (e *Encoder) ByteVector(b []byte) {
	e.ULEB128(uint64(len(b)))
	e.Fixed(b)
}

func (e *Encoder) String(s string) {
	e.ByteVector([]byte(s))
}

// Decoder reads BCS values. The first error is sticky; later reads return zero values.
type Decoder struct {
	data []byte
	off  int
	err  error
}

func NewDecoder(data []byte) *Decoder {
	return &Decoder{data: data}
}

// Err returns the first decoding error.
func (d *Decoder) Err() error {
	return d.err
}

// Fail records err unless an earlier error is already recorded.
func (d *Decoder) Fail(err error) {
	if d.err == nil {
		d.err = err
	}
}

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int {
	return len(d.data) - d.off
}

// Finish returns the sticky error, or ErrTrailingBytes when input is left over.
func (d *Decoder) Finish() error {
	if d.err != nil {
		return d.err
	}
	if d.off != len(d.data) {
		return fmt.Errorf("%w: %d", ErrTrailingBytes, len(d.data)-d.off)
	}
	return nil
}

func (d *Decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || d.Remaining() < n {
		d.err = ErrUnexpectedEOF
		return nil
	}
	b := d.data[d.off : d.off+n]
	d.off += n
	return b
}

func (d *Decoder) U8() uint8 {
	b := d.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (d *Decoder) Bool() bool {
	switch d.U8() {
	case 0:
		return false
	case 1:
		return true
	default:
		d.Fail(ErrInvalidBool)
		return false
	}
}

func (d *Decoder) U16() uint16 {
	b := d.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (d *Decoder) U32() uint32 {
	b := d.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (d *Decoder) U64() uint64 {
	b := d.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

// ULEB128 reads an unsigned LEB128 varint that fits in 32 bits, rejecting non-canonical encodings.
func (d *Decoder) ULEB128() uint64 {
	var v uint64
	for shift := uint(0); shift < 35; shift += 7 {
		b := d.take(1)
		if b == nil {
			return 0
		}
		v |= uint64(b[0]&0x7f) << shift
		if b[0]&0x80 == 0 {
			if (b[0] == 0 && shift > 0) || v > math.MaxUint32 {
				d.Fail(ErrInvalidULEB128)
				return 0
			}
			return v
		}
	}
	d.Fail(ErrInvalidULEB128)
	return 0
}

// Len reads a sequence length and checks it against the remaining input.
func (d *Decoder) Len() int {
	n := d.ULEB128()
	if d.err == nil && n > uint64(d.Remaining()) {
		d.err = ErrUnexpectedEOF
		return 0
	}
	return int(n)
}

// Fixed reads n bytes without a length prefix.
func (d *Decoder) Fixed(n int) []byte {
	b := d.take(n)
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

// ByteVector reads a ULEB128 length-prefixed byte slice.
func (d *Decoder) ByteVector() []byte {
	n := d.Len()
	if d.err != nil {
		return nil
	}
	return d.Fixed(n)
}

// Str reads a length-prefixed string.
func (d *Decoder) Str() string {
	return string(d.ByteVector())
}
