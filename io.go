// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package loadimage

import (
	"encoding/binary"
)

// Blob is an immutable byte sequence with a declared content type.
// Decoders never modify Data, they only read sub ranges of it.
type Blob struct {
	Data        []byte
	ContentType string
}

// Len returns the number of bytes in the blob.
func (b Blob) Len() int {
	return len(b.Data)
}

// IsZero reports whether the blob holds no data.
func (b Blob) IsZero() bool {
	return len(b.Data) == 0
}

// byteView reads scalars at absolute offsets in a fixed buffer.
// Every read is bounds checked and fails with a *BoundsError instead of panicking.
type byteView struct {
	b         []byte
	byteOrder binary.ByteOrder
}

func newByteView(b []byte, byteOrder binary.ByteOrder) byteView {
	return byteView{b: b, byteOrder: byteOrder}
}

func (v byteView) len() int {
	return len(v.b)
}

func (v byteView) withByteOrder(byteOrder binary.ByteOrder) byteView {
	v.byteOrder = byteOrder
	return v
}

func (v byteView) check(offset, size int) error {
	if offset < 0 || size < 0 || offset > len(v.b) || size > len(v.b)-offset {
		return &BoundsError{Offset: offset, Size: size, Len: len(v.b)}
	}
	return nil
}

func (v byteView) uint8(offset int) (uint8, error) {
	if err := v.check(offset, 1); err != nil {
		return 0, err
	}
	return v.b[offset], nil
}

func (v byteView) uint16(offset int) (uint16, error) {
	const n = 2
	if err := v.check(offset, n); err != nil {
		return 0, err
	}
	return v.byteOrder.Uint16(v.b[offset : offset+n]), nil
}

func (v byteView) int16(offset int) (int16, error) {
	u, err := v.uint16(offset)
	return int16(u), err
}

func (v byteView) uint32(offset int) (uint32, error) {
	const n = 4
	if err := v.check(offset, n); err != nil {
		return 0, err
	}
	return v.byteOrder.Uint32(v.b[offset : offset+n]), nil
}

func (v byteView) int32(offset int) (int32, error) {
	u, err := v.uint32(offset)
	return int32(u), err
}

// rational reads two unsigned 32-bit integers and returns their quotient.
func (v byteView) rational(offset int) (float64, error) {
	if err := v.check(offset, 8); err != nil {
		return 0, err
	}
	num, _ := v.uint32(offset)
	den, _ := v.uint32(offset + 4)
	return float64(num) / float64(den), nil
}

// srational reads two signed 32-bit integers and returns their quotient.
func (v byteView) srational(offset int) (float64, error) {
	if err := v.check(offset, 8); err != nil {
		return 0, err
	}
	num, _ := v.int32(offset)
	den, _ := v.int32(offset + 4)
	return float64(num) / float64(den), nil
}

// bytes returns a sub slice of the underlying buffer, not a copy.
func (v byteView) bytes(offset, n int) ([]byte, error) {
	if err := v.check(offset, n); err != nil {
		return nil, err
	}
	return v.b[offset : offset+n], nil
}

// bytesCopy is like bytes but returns a copy that is safe to retain.
func (v byteView) bytesCopy(offset, n int) ([]byte, error) {
	b, err := v.bytes(offset, n)
	if err != nil {
		return nil, err
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c, nil
}
