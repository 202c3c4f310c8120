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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPrimitivesRoundtrip(t *testing.T) {
	e := NewEncoder(64)
	e.PutU8(0xAB)
	e.PutI8(-5)
	e.PutBool(true)
	e.PutU16(0x1234)
	e.PutI16(-1234)
	e.PutU32(0xDEADBEEF)
	e.PutI32(-1)
	e.PutU64(0x0102030405060708)
	e.PutI64(-2)
	e.PutF32(3.5)
	e.PutF64(-2.25)
	e.PutString("hello")
	e.PutBytes([]byte{1, 2, 3})

	d := NewDecoder(e.Bytes())
	u8, err := d.U8()
	require.NoError(t, err)
	require.Equal(t, uint8(0xAB), u8)

	i8, err := d.I8()
	require.NoError(t, err)
	require.Equal(t, int8(-5), i8)

	b, err := d.Bool()
	require.NoError(t, err)
	require.True(t, b)

	u16, err := d.U16()
	require.NoError(t, err)
	require.Equal(t, uint16(0x1234), u16)

	i16, err := d.I16()
	require.NoError(t, err)
	require.Equal(t, int16(-1234), i16)

	u32, err := d.U32()
	require.NoError(t, err)
	require.Equal(t, uint32(0xDEADBEEF), u32)

	i32, err := d.I32()
	require.NoError(t, err)
	require.Equal(t, int32(-1), i32)

	u64, err := d.U64()
	require.NoError(t, err)
	require.Equal(t, uint64(0x0102030405060708), u64)

	i64, err := d.I64()
	require.NoError(t, err)
	require.Equal(t, int64(-2), i64)

	f32, err := d.F32()
	require.NoError(t, err)
	require.Equal(t, float32(3.5), f32)

	f64, err := d.F64()
	require.NoError(t, err)
	require.Equal(t, float64(-2.25), f64)

	s, err := d.String()
	require.NoError(t, err)
	require.Equal(t, "hello", s)

	seq, err := d.Bytes()
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, seq)

	require.Zero(t, d.Remaining())
}

func TestStringDecodeErrors(t *testing.T) {
	t.Run("length prefix promises more than available", func(t *testing.T) {
		e := NewEncoder(8)
		e.PutU32(10)
		e.buf = append(e.buf, "ab"...)
		_, err := NewDecoder(e.Bytes()).String()
		require.ErrorIs(t, err, ErrMalformed)
	})
	t.Run("invalid utf-8", func(t *testing.T) {
		e := NewEncoder(8)
		invalid := []byte{0xff, 0xfe}
		e.PutU32(uint32(len(invalid)))
		e.buf = append(e.buf, invalid...)
		_, err := NewDecoder(e.Bytes()).String()
		require.ErrorIs(t, err, ErrMalformed)
	})
}

func TestU16IsExactlyTwoBigEndianBytes(t *testing.T) {
	e := NewEncoder(2)
	e.PutU16(0x0102)
	require.Equal(t, []byte{0x01, 0x02}, e.Bytes())
}
