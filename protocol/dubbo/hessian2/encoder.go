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
	"encoding/binary"
	"math"

	"github.com/dubbogo/dubbo-invoke/common/constant"
	errs "github.com/dubbogo/dubbo-invoke/common/errors"
)

// Byte markers from the Hessian-2 wire grammar, spec.md 4.B.
const (
	bTrue  = 'T'
	bFalse = 'F'
	bNull  = 'N'

	bIntFull  = 'I'
	bLongFull = 'L'

	bDoubleZero  = 0x5b
	bDoubleOne   = 0x5c
	bDoubleByte  = 0x5d
	bDoubleShort = 0x5e
	bDoubleMill  = 0x5f
	bDoubleFull  = 'D'

	bStringChunk      = 0x52
	bStringChunkFinal = 0x53
	bStringShort      = 'S'

	bClassDef = 'C'
	bObjFull  = 'O'

	bListFull = 0x56

	maxShortStringLen = 0x1f
	maxMedStringLen   = 0x3ff
	maxStringChunk    = 0xffff

	compactObjectMax = 0x0f
	// compactListLenLimit is the exclusive upper bound on the list
	// length that still fits the compact 0x70+length form (spec.md
	// 4.B: "length < 7").
	compactListLenLimit = 7
)

// Encoder accumulates the Hessian-2 byte serialization of a request
// body. classDefs and listTypes are per-request reference tables: they
// MUST be built fresh for every request (NewEncoder) and never reused
// across requests, per spec.md 3's "Encoder session state" invariant
// and 9's "per-request reference tables" design note.
type Encoder struct {
	buf       []byte
	classDefs []string
	listTypes []string
}

// NewEncoder returns an Encoder with empty reference tables, ready to
// serialize exactly one request body.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Bytes returns the bytes written so far.
func (e *Encoder) Bytes() []byte { return e.buf }

// Reset clears the encoder's output buffer and reference tables so it
// can be reused for a fresh request. The framer and the reply encoder
// both call NewEncoder instead; Reset is for callers that want to
// reuse an Encoder value.
func (e *Encoder) Reset() {
	e.buf = e.buf[:0]
	e.classDefs = nil
	e.listTypes = nil
}

// ClassDefCount reports how many distinct object paths have been
// emitted as a full class definition so far - used by tests asserting
// the "exactly one class definition per (request, path)" invariant.
func (e *Encoder) ClassDefCount() int { return len(e.classDefs) }

// Append writes raw bytes directly, bypassing value dispatch - used by
// the framer for the attachments map's 'H' and 'Z' markers and by the
// reply encoder for the status marker byte.
func (e *Encoder) Append(b []byte) { e.buf = append(e.buf, b...) }

func (e *Encoder) writeByte(b byte) { e.buf = append(e.buf, b) }

// EncodeValue serializes v and appends it to the encoder's buffer,
// dispatching on its native shape.
func (e *Encoder) EncodeValue(v Value) error {
	switch val := v.(type) {
	case nil:
		e.writeByte(bNull)
		return nil
	case NullValue:
		e.writeByte(bNull)
		return nil
	case BoolValue:
		e.encodeBool(bool(val))
		return nil
	case Int32Value:
		e.encodeInt(int32(val))
		return nil
	case Int64Value:
		e.encodeLong(int64(val))
		return nil
	case Float64Value:
		e.encodeDouble(float64(val))
		return nil
	case StringValue:
		e.encodeString(string(val))
		return nil
	case *NamedObject:
		return e.encodeObject(val)
	case *ListValue:
		return e.encodeList(val)
	default:
		return errs.New(errs.KindUnsupportedType, "encoder: unsupported value shape %T", v)
	}
}

func (e *Encoder) encodeBool(v bool) {
	if v {
		e.writeByte(bTrue)
	} else {
		e.writeByte(bFalse)
	}
}

// encodeInt implements the four 32-bit integer forms of spec.md 4.B.
func (e *Encoder) encodeInt(v int32) {
	switch {
	case v >= -0x10 && v <= 0x2f:
		e.writeByte(byte(v + 0x90))
	case v >= -0x800 && v <= 0x7ff:
		e.writeByte(byte(0xc8 + (v >> 8)))
		e.writeByte(byte(v & 0xff))
	case v >= -0x40000 && v <= 0x3ffff:
		e.writeByte(byte(0xd4 + (v >> 16)))
		e.writeByte(byte((v >> 8) & 0xff))
		e.writeByte(byte(v & 0xff))
	default:
		e.writeByte(bIntFull)
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(v))
		e.buf = append(e.buf, b[:]...)
	}
}

// encodeLong implements the five 64-bit long forms of spec.md 4.B.
func (e *Encoder) encodeLong(v int64) {
	switch {
	case v >= -0x08 && v <= 0x0f:
		e.writeByte(byte(v + 0xe0))
	case v >= -0x800 && v <= 0x7ff:
		e.writeByte(byte(0xf8 + (v >> 8)))
		e.writeByte(byte(v & 0xff))
	case v >= -0x40000 && v <= 0x3ffff:
		e.writeByte(byte(0x3c + (v >> 16)))
		e.writeByte(byte((v >> 8) & 0xff))
		e.writeByte(byte(v & 0xff))
	case v >= minInt32 && v <= maxInt32:
		e.writeByte(0x59)
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(int32(v)))
		e.buf = append(e.buf, b[:]...)
	default:
		e.writeByte(bLongFull)
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(v))
		e.buf = append(e.buf, b[:]...)
	}
}

// encodeDouble implements the six double forms of spec.md 4.B,
// preferring the most compact form that round-trips v exactly.
func (e *Encoder) encodeDouble(v float64) {
	switch {
	case v == 0.0:
		e.writeByte(bDoubleZero)
		return
	case v == 1.0:
		e.writeByte(bDoubleOne)
		return
	}

	if iv := int64(v); float64(iv) == v {
		switch {
		case iv >= -128 && iv <= 127:
			e.writeByte(bDoubleByte)
			e.writeByte(byte(int8(iv)))
			return
		case iv >= -32768 && iv <= 32767:
			e.writeByte(bDoubleShort)
			var b [2]byte
			binary.BigEndian.PutUint16(b[:], uint16(int16(iv)))
			e.buf = append(e.buf, b[:]...)
			return
		}
	}

	// Fractional values land here too: any v exactly representable as
	// milliseconds/1000 with the milliseconds in int32 range takes the
	// compact 0x5f form. The range check happens before the int64
	// conversion, which is not defined for out-of-range floats.
	if scaled := v * 1000; scaled >= minInt32 && scaled <= maxInt32 {
		if ms := int64(scaled); float64(ms)/1000 == v {
			e.writeByte(bDoubleMill)
			var b [4]byte
			binary.BigEndian.PutUint32(b[:], uint32(int32(ms)))
			e.buf = append(e.buf, b[:]...)
			return
		}
	}

	e.writeByte(bDoubleFull)
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], math.Float64bits(v))
	e.buf = append(e.buf, b[:]...)
}

// encodeString implements the three string length forms of spec.md
// 4.B, chunking on the UTF-8 byte length, not the rune count.
func (e *Encoder) encodeString(s string) {
	raw := []byte(s)
	n := len(raw)

	switch {
	case n <= maxShortStringLen:
		e.writeByte(byte(n))
		e.buf = append(e.buf, raw...)
		return
	case n <= maxMedStringLen:
		e.writeByte(byte(0x30 + (n >> 8)))
		e.writeByte(byte(n & 0xff))
		e.buf = append(e.buf, raw...)
		return
	}

	for len(raw) > 0 {
		chunk := raw
		final := true
		if len(chunk) > maxStringChunk {
			chunk = raw[:maxStringChunk]
			final = false
		}
		marker := byte(bStringChunkFinal)
		if !final {
			marker = bStringChunk
		}
		e.writeByte(marker)
		e.writeByte(byte(len(chunk) >> 8))
		e.writeByte(byte(len(chunk) & 0xff))
		e.buf = append(e.buf, chunk...)
		raw = raw[len(chunk):]
	}
}

// encodeObject implements the named-object forms of spec.md 4.B,
// including the java.util.ArrayList special collection shortcut.
func (e *Encoder) encodeObject(obj *NamedObject) error {
	if lv, ok := isArrayListShape(obj, constant.ArrayListPath, constant.ElementDataField); ok {
		return e.encodeList(lv)
	}

	idx := e.classIndex(obj.Path)
	if idx < 0 {
		e.writeByte(bClassDef)
		e.encodeString(obj.Path)
		e.encodeInt(int32(len(obj.Fields)))
		for _, f := range obj.Fields {
			e.encodeString(f.Name)
		}
		e.classDefs = append(e.classDefs, obj.Path)
		idx = len(e.classDefs) - 1
	}

	if idx <= compactObjectMax {
		e.writeByte(byte(0x60 + idx))
	} else {
		e.writeByte(bObjFull)
		e.encodeInt(int32(idx))
	}

	for _, f := range obj.Fields {
		if err := e.EncodeValue(f.Value); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) classIndex(path string) int {
	for i, p := range e.classDefs {
		if p == path {
			return i
		}
	}
	return -1
}

// encodeList implements the list forms of spec.md 4.B: empty lists
// encode as null (they cannot be typed from their contents), and the
// element-type tag is emitted by literal string on first use, by
// table index thereafter.
func (e *Encoder) encodeList(lv *ListValue) error {
	if len(lv.Elements) == 0 {
		e.writeByte(bNull)
		return nil
	}

	typeTag, err := listTypeTag(lv.Elements[0])
	if err != nil {
		return err
	}
	for _, el := range lv.Elements[1:] {
		t, err := listTypeTag(el)
		if err != nil {
			return err
		}
		if t != typeTag {
			return errs.New(errs.KindHeterogeneousList,
				"list elements must share one native shape, first is %s but found %s", typeTag, t)
		}
	}

	n := len(lv.Elements)
	compact := n < compactListLenLimit
	if compact {
		e.writeByte(byte(0x70 + n))
	} else {
		e.writeByte(bListFull)
	}
	e.encodeListTypeRef(typeTag)
	if !compact {
		e.encodeInt(int32(n))
	}

	for _, el := range lv.Elements {
		if err := e.EncodeValue(el); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) encodeListTypeRef(typeTag string) {
	for i, t := range e.listTypes {
		if t == typeTag {
			e.encodeInt(int32(i))
			return
		}
	}
	e.encodeString(typeTag)
	e.listTypes = append(e.listTypes, typeTag)
}
