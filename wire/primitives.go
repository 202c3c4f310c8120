/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package wire

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"
)

// Encoder appends primitive SOME/IP wire values to an internal buffer.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an Encoder with capacity pre-allocated.
func NewEncoder(capacityHint int) *Encoder {
	return &Encoder{buf: make([]byte, 0, capacityHint)}
}

// Bytes returns the accumulated buffer.
func (e *Encoder) Bytes() []byte { return e.buf }

// PutU8 appends a uint8.
func (e *Encoder) PutU8(v uint8) { e.buf = append(e.buf, v) }

// PutI8 appends an int8.
func (e *Encoder) PutI8(v int8) { e.buf = append(e.buf, byte(v)) }

// PutBool appends a bool as one byte (0 or 1).
func (e *Encoder) PutBool(v bool) {
	if v {
		e.buf = append(e.buf, 1)
	} else {
		e.buf = append(e.buf, 0)
	}
}

// PutU16 appends a big-endian uint16.
func (e *Encoder) PutU16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

// PutI16 appends a big-endian int16.
func (e *Encoder) PutI16(v int16) { e.PutU16(uint16(v)) }

// PutU32 appends a big-endian uint32.
func (e *Encoder) PutU32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

// PutI32 appends a big-endian int32.
func (e *Encoder) PutI32(v int32) { e.PutU32(uint32(v)) }

// PutU64 appends a big-endian uint64.
func (e *Encoder) PutU64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

// PutI64 appends a big-endian int64.
func (e *Encoder) PutI64(v int64) { e.PutU64(uint64(v)) }

// PutF32 appends a big-endian IEEE-754 float32.
func (e *Encoder) PutF32(v float32) { e.PutU32(math.Float32bits(v)) }

// PutF64 appends a big-endian IEEE-754 float64.
func (e *Encoder) PutF64(v float64) { e.PutU64(math.Float64bits(v)) }

// PutString appends a u32 byte-length prefix followed by utf-8 bytes.
func (e *Encoder) PutString(v string) {
	e.PutU32(uint32(len(v)))
	e.buf = append(e.buf, v...)
}

// PutBytes appends a u32 byte-length prefix followed by the raw bytes - the
// encoding used for sequence<T> where T has already been serialised.
func (e *Encoder) PutBytes(v []byte) {
	e.PutU32(uint32(len(v)))
	e.buf = append(e.buf, v...)
}

// Decoder reads primitive SOME/IP wire values from a fixed buffer.
type Decoder struct {
	buf []byte
	pos int
}

// NewDecoder wraps b for sequential decoding.
func NewDecoder(b []byte) *Decoder { return &Decoder{buf: b} }

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int { return len(d.buf) - d.pos }

func (d *Decoder) need(n int) error {
	if d.Remaining() < n {
		return fmt.Errorf("%w: need %d bytes, have %d", ErrMalformed, n, d.Remaining())
	}
	return nil
}

// U8 decodes a uint8.
func (d *Decoder) U8() (uint8, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	v := d.buf[d.pos]
	d.pos++
	return v, nil
}

// I8 decodes an int8.
func (d *Decoder) I8() (int8, error) {
	v, err := d.U8()
	return int8(v), err
}

// Bool decodes a one-byte bool (non-zero is true).
func (d *Decoder) Bool() (bool, error) {
	v, err := d.U8()
	return v != 0, err
}

// U16 decodes a big-endian uint16.
func (d *Decoder) U16() (uint16, error) {
	if err := d.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(d.buf[d.pos:])
	d.pos += 2
	return v, nil
}

// I16 decodes a big-endian int16.
func (d *Decoder) I16() (int16, error) {
	v, err := d.U16()
	return int16(v), err
}

// U32 decodes a big-endian uint32.
func (d *Decoder) U32() (uint32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(d.buf[d.pos:])
	d.pos += 4
	return v, nil
}

// I32 decodes a big-endian int32.
func (d *Decoder) I32() (int32, error) {
	v, err := d.U32()
	return int32(v), err
}

// U64 decodes a big-endian uint64.
func (d *Decoder) U64() (uint64, error) {
	if err := d.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(d.buf[d.pos:])
	d.pos += 8
	return v, nil
}

// I64 decodes a big-endian int64.
func (d *Decoder) I64() (int64, error) {
	v, err := d.U64()
	return int64(v), err
}

// F32 decodes a big-endian IEEE-754 float32.
func (d *Decoder) F32() (float32, error) {
	v, err := d.U32()
	return math.Float32frombits(v), err
}

// F64 decodes a big-endian IEEE-754 float64.
func (d *Decoder) F64() (float64, error) {
	v, err := d.U64()
	return math.Float64frombits(v), err
}

// String decodes a u32 byte-length prefix followed by utf-8 bytes. Fails
// with ErrMalformed when fewer bytes than promised remain, or the bytes are
// not valid utf-8.
func (d *Decoder) String() (string, error) {
	n, err := d.U32()
	if err != nil {
		return "", err
	}
	if err := d.need(int(n)); err != nil {
		return "", err
	}
	b := d.buf[d.pos : d.pos+int(n)]
	if !utf8.Valid(b) {
		return "", fmt.Errorf("%w: invalid utf-8 string payload", ErrMalformed)
	}
	d.pos += int(n)
	return string(b), nil
}

// Bytes decodes a u32 byte-length prefix followed by raw bytes - the
// sequence<T> wrapper, leaving decoding of T to the caller.
func (d *Decoder) Bytes() ([]byte, error) {
	n, err := d.U32()
	if err != nil {
		return nil, err
	}
	if err := d.need(int(n)); err != nil {
		return nil, err
	}
	b := d.buf[d.pos : d.pos+int(n)]
	d.pos += int(n)
	return b, nil
}
