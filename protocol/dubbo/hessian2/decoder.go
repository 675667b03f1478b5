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

	errs "github.com/dubbogo/dubbo-invoke/common/errors"
)

// Decoder is the mirror image of Encoder: it reads a Hessian-2 byte
// stream back into Value instances, maintaining the same per-request
// classDefs/listTypes reference tables so that class-id and list-type
// back-references resolve correctly. §4.D of spec.md treats the reply
// decoder as an external contract; this implementation exists so the
// round-trip property in §8 is directly testable against this repo's
// own encoder, and so the client facade has a real decoder to call.
type Decoder struct {
	buf       []byte
	pos       int
	classDefs []classDef
	listTypes []string
}

type classDef struct {
	path   string
	fields []string
}

// NewDecoder wraps buf for sequential decoding, starting with empty
// reference tables - the same lifecycle rule as the encoder.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

func (d *Decoder) readByte() (byte, error) {
	if d.pos >= len(d.buf) {
		return 0, errs.New(errs.KindTransportFailure, "hessian2 decode: unexpected end of stream")
	}
	b := d.buf[d.pos]
	d.pos++
	return b, nil
}

func (d *Decoder) readN(n int) ([]byte, error) {
	if d.pos+n > len(d.buf) {
		return nil, errs.New(errs.KindTransportFailure, "hessian2 decode: unexpected end of stream reading %d bytes", n)
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

// Pos reports the current read offset, so callers decoding a fixed
// sequence of top-level values (the request/response body) know where
// the next value starts.
func (d *Decoder) Pos() int { return d.pos }

// DecodeValue reads one Hessian-2-encoded value and returns it as a Value.
func (d *Decoder) DecodeValue() (Value, error) {
	b, err := d.readByte()
	if err != nil {
		return nil, err
	}

	switch {
	case b == bNull:
		return NullValue{}, nil
	case b == bTrue:
		return BoolValue(true), nil
	case b == bFalse:
		return BoolValue(false), nil
	case b >= 0x80 && b <= 0xbf: // 1-byte int: v + 0x90
		return Int32Value(int32(b) - 0x90), nil
	case b >= 0xc0 && b <= 0xcf: // 2-byte int
		b2, err := d.readByte()
		if err != nil {
			return nil, err
		}
		v := (int32(b)-0xc8)<<8 | int32(b2)
		return Int32Value(v), nil
	case b >= 0xd0 && b <= 0xd7: // 3-byte int
		rest, err := d.readN(2)
		if err != nil {
			return nil, err
		}
		v := (int32(b)-0xd4)<<16 | int32(rest[0])<<8 | int32(rest[1])
		return Int32Value(v), nil
	case b == bIntFull:
		raw, err := d.readN(4)
		if err != nil {
			return nil, err
		}
		return Int32Value(int32(binary.BigEndian.Uint32(raw))), nil
	case b >= 0xd8 && b <= 0xef: // 1-byte long: v + 0xe0
		return Int64Value(int64(b) - 0xe0), nil
	case b >= 0xf0 && b <= 0xff: // 2-byte long
		b2, err := d.readByte()
		if err != nil {
			return nil, err
		}
		v := (int64(b)-0xf8)<<8 | int64(b2)
		return Int64Value(v), nil
	case b >= 0x38 && b <= 0x3f: // 3-byte long
		rest, err := d.readN(2)
		if err != nil {
			return nil, err
		}
		v := (int64(b)-0x3c)<<16 | int64(rest[0])<<8 | int64(rest[1])
		return Int64Value(v), nil
	case b == 0x59: // 5-byte long (int32-range)
		raw, err := d.readN(4)
		if err != nil {
			return nil, err
		}
		return Int64Value(int64(int32(binary.BigEndian.Uint32(raw)))), nil
	case b == bLongFull:
		raw, err := d.readN(8)
		if err != nil {
			return nil, err
		}
		return Int64Value(int64(binary.BigEndian.Uint64(raw))), nil
	case b == bDoubleZero:
		return Float64Value(0.0), nil
	case b == bDoubleOne:
		return Float64Value(1.0), nil
	case b == bDoubleByte:
		v, err := d.readByte()
		if err != nil {
			return nil, err
		}
		return Float64Value(float64(int8(v))), nil
	case b == bDoubleShort:
		raw, err := d.readN(2)
		if err != nil {
			return nil, err
		}
		return Float64Value(float64(int16(binary.BigEndian.Uint16(raw)))), nil
	case b == bDoubleMill:
		raw, err := d.readN(4)
		if err != nil {
			return nil, err
		}
		ms := int32(binary.BigEndian.Uint32(raw))
		return Float64Value(float64(ms) / 1000), nil
	case b == bDoubleFull:
		raw, err := d.readN(8)
		if err != nil {
			return nil, err
		}
		return Float64Value(math.Float64frombits(binary.BigEndian.Uint64(raw))), nil
	case b <= 0x1f: // short string
		raw, err := d.readN(int(b))
		if err != nil {
			return nil, err
		}
		return StringValue(string(raw)), nil
	case b >= 0x30 && b <= 0x33: // medium string
		b2, err := d.readByte()
		if err != nil {
			return nil, err
		}
		n := (int(b)-0x30)<<8 | int(b2)
		raw, err := d.readN(n)
		if err != nil {
			return nil, err
		}
		return StringValue(string(raw)), nil
	case b == bStringChunk || b == bStringChunkFinal || b == bStringShort:
		return d.decodeChunkedString(b)
	case b == bClassDef:
		return d.decodeClassDefThenInstance()
	case b >= 0x60 && b <= 0x6f: // compact class-id object reference
		return d.decodeObjectByIndex(int(b - 0x60))
	case b == bObjFull:
		idx, err := d.decodeIntBody()
		if err != nil {
			return nil, err
		}
		return d.decodeObjectByIndex(int(idx))
	case b >= 0x70 && b <= 0x76: // compact list
		n := int(b - 0x70)
		return d.decodeListBody(n)
	case b == bListFull:
		return d.decodeUntypedLengthList()
	default:
		return nil, errs.New(errs.KindUnsupportedType, "hessian2 decode: unrecognized marker byte 0x%02x", b)
	}
}

// decodeIntBody decodes an integer using the same forms DecodeValue
// dispatches on, but is only ever called where the wire says "an
// integer follows" (e.g. a class field count, a full-form object
// class-id, a full-form list length).
func (d *Decoder) decodeIntBody() (int32, error) {
	v, err := d.DecodeValue()
	if err != nil {
		return 0, err
	}
	iv, ok := v.(Int32Value)
	if !ok {
		return 0, errs.New(errs.KindUnsupportedType, "hessian2 decode: expected an int, got %T", v)
	}
	return int32(iv), nil
}

func (d *Decoder) decodeStringBody() (string, error) {
	v, err := d.DecodeValue()
	if err != nil {
		return "", err
	}
	sv, ok := v.(StringValue)
	if !ok {
		return "", errs.New(errs.KindUnsupportedType, "hessian2 decode: expected a string, got %T", v)
	}
	return string(sv), nil
}

func (d *Decoder) decodeChunkedString(first byte) (Value, error) {
	var sb []byte
	marker := first
	for {
		lenBytes, err := d.readN(2)
		if err != nil {
			return nil, err
		}
		n := int(lenBytes[0])<<8 | int(lenBytes[1])
		chunk, err := d.readN(n)
		if err != nil {
			return nil, err
		}
		sb = append(sb, chunk...)
		if marker != bStringChunk {
			break
		}
		marker, err = d.readByte()
		if err != nil {
			return nil, err
		}
		if marker != bStringChunk && marker != bStringChunkFinal && marker != bStringShort {
			return nil, errs.New(errs.KindUnsupportedType, "hessian2 decode: malformed chunked string continuation 0x%02x", marker)
		}
	}
	return StringValue(string(sb)), nil
}

func (d *Decoder) decodeClassDefThenInstance() (Value, error) {
	path, err := d.decodeStringBody()
	if err != nil {
		return nil, err
	}
	n, err := d.decodeIntBody()
	if err != nil {
		return nil, err
	}
	fields := make([]string, n)
	for i := range fields {
		name, err := d.decodeStringBody()
		if err != nil {
			return nil, err
		}
		fields[i] = name
	}
	d.classDefs = append(d.classDefs, classDef{path: path, fields: fields})
	idx := len(d.classDefs) - 1

	b, err := d.readByte()
	if err != nil {
		return nil, err
	}
	switch {
	case b >= 0x60 && b <= 0x6f:
		if int(b-0x60) != idx {
			return nil, errs.New(errs.KindUnsupportedType, "hessian2 decode: class-id %d does not match freshly-defined class %d", b-0x60, idx)
		}
	case b == bObjFull:
		got, err := d.decodeIntBody()
		if err != nil {
			return nil, err
		}
		if int(got) != idx {
			return nil, errs.New(errs.KindUnsupportedType, "hessian2 decode: class-id %d does not match freshly-defined class %d", got, idx)
		}
	default:
		return nil, errs.New(errs.KindUnsupportedType, "hessian2 decode: expected object marker after class definition, got 0x%02x", b)
	}
	return d.decodeInstanceFields(idx)
}

func (d *Decoder) decodeObjectByIndex(idx int) (Value, error) {
	return d.decodeInstanceFields(idx)
}

func (d *Decoder) decodeInstanceFields(idx int) (Value, error) {
	if idx < 0 || idx >= len(d.classDefs) {
		return nil, errs.New(errs.KindUnsupportedType, "hessian2 decode: class-id %d has no matching class definition", idx)
	}
	def := d.classDefs[idx]
	fields := make([]FieldValue, len(def.fields))
	for i, name := range def.fields {
		v, err := d.DecodeValue()
		if err != nil {
			return nil, err
		}
		fields[i] = FieldValue{Name: name, Value: v}
	}
	return &NamedObject{Path: def.path, Fields: fields}, nil
}

// decodeListTypeRef reads the list-type tag that precedes a list's
// elements: either a literal string (first use, recorded into
// listTypes) or an integer index into listTypes (reuse).
func (d *Decoder) decodeListTypeRef() (string, error) {
	v, err := d.DecodeValue()
	if err != nil {
		return "", err
	}
	switch t := v.(type) {
	case StringValue:
		d.listTypes = append(d.listTypes, string(t))
		return string(t), nil
	case Int32Value:
		idx := int(t)
		if idx < 0 || idx >= len(d.listTypes) {
			return "", errs.New(errs.KindUnsupportedType, "hessian2 decode: list-type index %d has no matching entry", idx)
		}
		return d.listTypes[idx], nil
	default:
		return "", errs.New(errs.KindUnsupportedType, "hessian2 decode: expected a list-type tag, got %T", v)
	}
}

func (d *Decoder) decodeListBody(n int) (Value, error) {
	if _, err := d.decodeListTypeRef(); err != nil {
		return nil, err
	}
	elems := make([]Value, n)
	for i := 0; i < n; i++ {
		v, err := d.DecodeValue()
		if err != nil {
			return nil, err
		}
		elems[i] = v
	}
	return &ListValue{Elements: elems}, nil
}

func (d *Decoder) decodeUntypedLengthList() (Value, error) {
	if _, err := d.decodeListTypeRef(); err != nil {
		return nil, err
	}
	n, err := d.decodeIntBody()
	if err != nil {
		return nil, err
	}
	elems := make([]Value, n)
	for i := int32(0); i < n; i++ {
		v, err := d.DecodeValue()
		if err != nil {
			return nil, err
		}
		elems[i] = v
	}
	return &ListValue{Elements: elems}, nil
}
