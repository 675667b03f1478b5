/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements.  See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License.  You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package hessian2

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, v Value) Value {
	t.Helper()
	e := NewEncoder()
	require.NoError(t, e.EncodeValue(v))
	d := NewDecoder(e.Bytes())
	got, err := d.DecodeValue()
	require.NoError(t, err)
	return got
}

func TestEncodeInt_BoundaryForms(t *testing.T) {
	cases := []struct {
		v        int32
		wantLen  int
		wantByte byte
	}{
		{-0x10, 1, 0x80},
		{0x2f, 1, 0xbf},
		{-0x11, 2, 0}, // just below the 1-byte window
		{0x30, 2, 0},  // just above the 1-byte window
		{-0x800, 2, 0xc0},
		{0x7ff, 2, 0xcf},
		{-0x801, 3, 0},
		{0x800, 3, 0},
		{-0x40000, 3, 0xd0},
		{0x3ffff, 3, 0xd7},
		{-0x40001, 5, 0},
		{0x40000, 5, 0},
	}
	for _, tc := range cases {
		e := NewEncoder()
		require.NoError(t, e.EncodeValue(Int32(tc.v)))
		assert.Equal(t, tc.wantLen, len(e.Bytes()), "v=%d", tc.v)
		if tc.wantByte != 0 {
			assert.Equal(t, tc.wantByte, e.Bytes()[0], "v=%d", tc.v)
		}

		got := roundTrip(t, Int32(tc.v))
		assert.Equal(t, Int32Value(tc.v), got)
	}
}

func TestEncodeLong_BoundaryForms(t *testing.T) {
	cases := []int64{
		-0x08, 0x0f, -0x09, 0x10,
		-0x800, 0x7ff, -0x801, 0x800,
		-0x40000, 0x3ffff, -0x40001, 0x40000,
		minInt32, maxInt32,
		int64(maxInt32) + 1, int64(minInt32) - 1,
	}
	for _, v := range cases {
		got := roundTrip(t, Int64(v))
		assert.Equal(t, Int64Value(v), got, "v=%d", v)
	}
}

func TestEncodeDouble_RoundTripsExactly(t *testing.T) {
	cases := []float64{
		0.0, 1.0, -1.0, 127, -128, 128, 32767, -32768, 32768,
		0.5, -1.5, 0.001, 123.456,
		3.14159, 1e100, -1e-100, 12345.678,
	}
	for _, v := range cases {
		got := roundTrip(t, Float64(v))
		fv, ok := got.(Float64Value)
		require.True(t, ok)
		assert.Equal(t, v, float64(fv), "v=%v", v)
	}
}

func TestEncodeDouble_CompactForms(t *testing.T) {
	cases := []struct {
		v        float64
		wantLen  int
		wantByte byte
	}{
		{0.0, 1, 0x5b},
		{1.0, 1, 0x5c},
		{127, 2, 0x5d},
		{-128, 2, 0x5d},
		{32767, 3, 0x5e},
		{-32768, 3, 0x5e},
		// Fractional values exactly representable as ms/1000 take the
		// 5-byte millisecond form.
		{0.5, 5, 0x5f},
		{-1.5, 5, 0x5f},
		{123.456, 5, 0x5f},
		{32768, 5, 0x5f},
		// Not a whole number of milliseconds: full 9-byte form.
		{3.14159, 9, 'D'},
		{1e100, 9, 'D'},
	}
	for _, tc := range cases {
		e := NewEncoder()
		require.NoError(t, e.EncodeValue(Float64(tc.v)))
		assert.Equal(t, tc.wantLen, len(e.Bytes()), "v=%v", tc.v)
		assert.Equal(t, tc.wantByte, e.Bytes()[0], "v=%v", tc.v)
	}
}

func TestEncodeString_LengthForms(t *testing.T) {
	short := "hello"
	medium := make([]byte, 100)
	for i := range medium {
		medium[i] = 'a'
	}
	long := make([]byte, 0x10001)
	for i := range long {
		long[i] = 'b'
	}

	for _, s := range []string{short, string(medium), string(long)} {
		got := roundTrip(t, String(s))
		sv, ok := got.(StringValue)
		require.True(t, ok)
		assert.Equal(t, s, string(sv))
	}
}

func TestEncodeString_UTF8Length(t *testing.T) {
	// "张三" is 6 UTF-8 bytes (3 bytes per rune), encoded with the
	// short-string 1-byte length prefix, per spec.md scenario 2.
	e := NewEncoder()
	require.NoError(t, e.EncodeValue(String("张三")))
	assert.Equal(t, byte(6), e.Bytes()[0])
	assert.Len(t, e.Bytes(), 7)
}

func TestEncodeObject_ClassDefOnceThenCompactReference(t *testing.T) {
	e := NewEncoder()
	obj := Obj("com.x.HelloRequest",
		Field("name", String("lisi")),
		Field("age", Int32(25)),
		Field("message", String("hello")),
	)
	require.NoError(t, e.EncodeValue(obj))
	first := append([]byte(nil), e.Bytes()...)
	assert.Equal(t, byte('C'), first[0])
	assert.Equal(t, 1, e.ClassDefCount())

	// A second emission of the same path in the same request must not
	// re-emit the class definition - only the compact class-id byte.
	require.NoError(t, e.EncodeValue(obj))
	second := e.Bytes()[len(first):]
	assert.Equal(t, byte(0x60), second[0])
	assert.Equal(t, 1, e.ClassDefCount())
}

func TestEncodeObject_CompactIdWithin16Classes(t *testing.T) {
	e := NewEncoder()
	for i := 0; i < 16; i++ {
		obj := Obj("com.x.Class"+string(rune('A'+i)), Field("v", Int32(int32(i))))
		require.NoError(t, e.EncodeValue(obj))
	}
	assert.Equal(t, 16, e.ClassDefCount())

	// The 17th distinct class must use the full 'O' + class-id form
	// since its index (16) exceeds the compact 0x6f ceiling.
	e2 := NewEncoder()
	for i := 0; i < 17; i++ {
		require.NoError(t, e2.EncodeValue(Obj("com.x.Q"+string(rune('A'+i)), Field("v", Int32(1)))))
	}
	assert.Equal(t, 17, e2.ClassDefCount())
}

func TestEncodeList_RoundTrip(t *testing.T) {
	lv := List(String("lisi"), String("zhangsan"), String("wangwu"))
	got := roundTrip(t, lv)
	gl, ok := got.(*ListValue)
	require.True(t, ok)
	require.Len(t, gl.Elements, 3)
	assert.Equal(t, StringValue("lisi"), gl.Elements[0])
	assert.Equal(t, StringValue("wangwu"), gl.Elements[2])
}

func TestEncodeList_LongFormAtSevenElements(t *testing.T) {
	elems := make([]Value, 7)
	for i := range elems {
		elems[i] = Int32(int32(i))
	}
	e := NewEncoder()
	require.NoError(t, e.EncodeValue(List(elems...)))
	assert.Equal(t, byte(bListFull), e.Bytes()[0])

	got := roundTrip(t, List(elems...))
	gl := got.(*ListValue)
	assert.Len(t, gl.Elements, 7)
}

func TestEncodeList_EmptyEncodesAsNull(t *testing.T) {
	e := NewEncoder()
	require.NoError(t, e.EncodeValue(&ListValue{}))
	assert.Equal(t, []byte{'N'}, e.Bytes())
}

func TestEncodeList_ListTypeTagReuseByIndex(t *testing.T) {
	e := NewEncoder()
	require.NoError(t, e.EncodeValue(List(String("a"), String("b"))))
	firstLen := len(e.Bytes())
	require.NoError(t, e.EncodeValue(List(String("c"), String("d"), String("e"))))
	second := e.Bytes()[firstLen:]
	// Second list's type tag is a back-reference: the 1-byte int form
	// for index 0 (0x90), not a re-emitted "[string" string literal
	// (which would start with the short-string length byte 7).
	assert.Equal(t, byte(0x90), second[1])
}

func TestEncodeList_HeterogeneousFails(t *testing.T) {
	e := NewEncoder()
	err := e.EncodeValue(List(String("a"), Int32(1)))
	require.Error(t, err)
}

func TestArrayListShape_EncodesAsList(t *testing.T) {
	obj := Obj("java.util.ArrayList",
		Field("elementData", List(String("lisi"), String("zhangsan"), String("wangwu"))),
		Field("size", Int32(3)),
	)
	e := NewEncoder()
	require.NoError(t, e.EncodeValue(obj))
	// The list-form branch fires: no class-definition byte, no "size" field on the wire.
	assert.Equal(t, 0, e.ClassDefCount())

	got := roundTrip(t, obj)
	gl, ok := got.(*ListValue)
	require.True(t, ok)
	assert.Len(t, gl.Elements, 3)
}

func TestEncoderSessionState_ResetBetweenRequests(t *testing.T) {
	e1 := NewEncoder()
	require.NoError(t, e1.EncodeValue(Obj("com.x.Foo", Field("a", Int32(1)))))
	assert.Equal(t, 1, e1.ClassDefCount())

	// A fresh encoder for the next request starts with empty tables -
	// the per-request invariant of spec.md 3/5.
	e2 := NewEncoder()
	assert.Equal(t, 0, e2.ClassDefCount())
}
