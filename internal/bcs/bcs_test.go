package bcs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestULEB128(t *testing.T) {
	tests := []struct {
		value uint64
		bytes []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{300, []byte{0xac, 0x02}},
		{16384, []byte{0x80, 0x80, 0x01}},
		{4294967295, []byte{0xff, 0xff, 0xff, 0xff, 0x0f}},
	}

	for _, tc := range tests {
		e := NewEncoder()
		e.ULEB128(tc.value)
		assert.Equal(t, tc.bytes, e.Result(), "encode %d", tc.value)

		d := NewDecoder(tc.bytes)
		assert.Equal(t, tc.value, d.ULEB128(), "decode %x", tc.bytes)
		require.NoError(t, d.Finish())
	}
}

func TestULEB128RejectsNonCanonical(t *testing.T) {
	for _, b := range [][]byte{
		{0x80, 0x00},
		{0xff, 0xff, 0xff, 0xff, 0x1f},
		{0x80, 0x80, 0x80, 0x80, 0x80, 0x01},
	} {
		d := NewDecoder(b)
		d.ULEB128()
		assert.ErrorIs(t, d.Err(), ErrInvalidULEB128, "%x", b)
	}
}

func TestIntegersAreLittleEndian(t *testing.T) {
	e := NewEncoder()
	e.U8(0x01)
	e.U16(0x0203)
	e.U32(0x04050607)
	e.U64(0x08090a0b0c0d0e0f)
	e.Bool(true)

	assert.Equal(t, []byte{
		0x01,
		0x03, 0x02,
		0x07, 0x06, 0x05, 0x04,
		0x0f, 0x0e, 0x0d, 0x0c, 0x0b, 0x0a, 0x09, 0x08,
		0x01,
	}, e.Result())

	d := NewDecoder(e.Result())
	assert.Equal(t, uint8(0x01), d.U8())
	assert.Equal(t, uint16(0x0203), d.U16())
	assert.Equal(t, uint32(0x04050607), d.U32())
	assert.Equal(t, uint64(0x08090a0b0c0d0e0f), d.U64())
	assert.True(t, d.Bool())
	require.NoError(t, d.Finish())
}

func TestByteVectorAndString(t *testing.T) {
	e := NewEncoder()
	e.ByteVector([]byte{0xaa, 0xbb})
	e.String("sui")
	assert.Equal(t, []byte{0x02, 0xaa, 0xbb, 0x03, 's', 'u', 'i'}, e.Result())

	d := NewDecoder(e.Result())
	assert.Equal(t, []byte{0xaa, 0xbb}, d.ByteVector())
	assert.Equal(t, "sui", d.Str())
	require.NoError(t, d.Finish())
}

func TestDecoderErrors(t *testing.T) {
	d := NewDecoder([]byte{0x05, 0x01})
	d.ByteVector()
	assert.ErrorIs(t, d.Err(), ErrUnexpectedEOF)

	d = NewDecoder([]byte{0x02})
	d.Bool()
	assert.ErrorIs(t, d.Err(), ErrInvalidBool)

	d = NewDecoder([]byte{0x01, 0x02})
	d.U8()
	assert.ErrorIs(t, d.Finish(), ErrTrailingBytes)

	d = NewDecoder(nil)
	assert.Zero(t, d.U64())
	assert.Zero(t, d.U8())
	assert.ErrorIs(t, d.Finish(), ErrUnexpectedEOF)
}
