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

// Package hessian2 implements the Hessian-2 / Dubbo wire encoder and
// decoder: a compact self-describing binary serialization with
// per-request reference tables for repeated class definitions and
// repeated list element-type tags.
//
// Arguments are modeled as the closed Value sum type below rather than
// dispatched on via reflection, the way a statically typed rewrite of a
// dynamically-typed source should: each native shape the wire format
// understands gets its own concrete type, and the encoder switches on
// it once.
package hessian2

import (
	errs "github.com/dubbogo/dubbo-invoke/common/errors"
	"github.com/dubbogo/dubbo-invoke/common/types"
)

// int32 bounds, spelled out locally since math.MinInt32/MaxInt32 were
// only added to the standard library in Go 1.17.
const (
	minInt32 = -(1 << 31)
	maxInt32 = 1<<31 - 1
)

// Value is any argument shape the Hessian-2 encoder can serialize.
type Value interface {
	hessianTag() tag
}

type tag int

const (
	tagBool tag = iota
	tagInt32
	tagInt64
	tagFloat64
	tagString
	tagNull
	tagObject
	tagList
)

// BoolValue is a Hessian-2 boolean.
type BoolValue bool

func (BoolValue) hessianTag() tag { return tagBool }

// Int32Value is a 32-bit Hessian-2 int.
type Int32Value int32

func (Int32Value) hessianTag() tag { return tagInt32 }

// Int64Value is a 64-bit Hessian-2 long.
type Int64Value int64

func (Int64Value) hessianTag() tag { return tagInt64 }

// Float64Value is a Hessian-2 double.
type Float64Value float64

func (Float64Value) hessianTag() tag { return tagFloat64 }

// StringValue is a Hessian-2 UTF-8 string.
type StringValue string

func (StringValue) hessianTag() tag { return tagString }

// NullValue is the Hessian-2 null.
type NullValue struct{}

func (NullValue) hessianTag() tag { return tagNull }

// FieldValue is one named field of a NamedObject, carrying its wire
// emission order.
type FieldValue struct {
	Name  string
	Value Value
}

// NamedObject is a tagged record: a fully qualified remote class path
// plus an ordered field list. Field order is part of the object's
// identity on the wire - it must be stable across every emission of
// the same path within one request.
type NamedObject struct {
	Path   string
	Fields []FieldValue
}

func (*NamedObject) hessianTag() tag { return tagObject }

// ListValue is a homogeneous, ordered sequence of values.
type ListValue struct {
	Elements []Value
}

func (*ListValue) hessianTag() tag { return tagList }

// Bool wraps a boolean argument.
func Bool(v bool) Value { return BoolValue(v) }

// Int32 wraps a 32-bit integer argument.
func Int32(v int32) Value { return Int32Value(v) }

// Int64 wraps a 64-bit integer argument.
func Int64(v int64) Value { return Int64Value(v) }

// Float64 wraps a double argument.
func Float64(v float64) Value { return Float64Value(v) }

// String wraps a string argument.
func String(v string) Value { return StringValue(v) }

// Null returns the Hessian-2 null value.
func Null() Value { return NullValue{} }

// Field builds one NamedObject field entry.
func Field(name string, v Value) FieldValue { return FieldValue{Name: name, Value: v} }

// Obj builds a NamedObject with the given remote class path and fields,
// in the order given.
func Obj(path string, fields ...FieldValue) Value {
	return &NamedObject{Path: path, Fields: fields}
}

// List builds a ListValue from the given elements.
func List(elems ...Value) Value {
	return &ListValue{Elements: elems}
}

// FromGo converts a native Go value into a Value using the inference
// rules of the value-to-type resolver: no declared type is consulted,
// so only the shapes spec.md's inferred-type table recognizes succeed.
// A map (ordered or not) is not among those shapes - it only becomes a
// NamedObject via explicit declared-type coercion - so it is rejected
// here with UnsupportedType, matching the source's _get_class_name,
// which raises on anything but bool/int/float/str/Object/list.
func FromGo(raw interface{}) (Value, error) {
	switch v := raw.(type) {
	case nil:
		return NullValue{}, nil
	case Value:
		return v, nil
	case bool:
		return BoolValue(v), nil
	case int:
		return intFromInt64(int64(v)), nil
	case int8:
		return intFromInt64(int64(v)), nil
	case int16:
		return intFromInt64(int64(v)), nil
	case int32:
		return intFromInt64(int64(v)), nil
	case int64:
		return intFromInt64(v), nil
	case uint32:
		return intFromInt64(int64(v)), nil
	case float32:
		return Float64Value(float64(v)), nil
	case float64:
		return Float64Value(v), nil
	case string:
		return StringValue(v), nil
	case []interface{}:
		return fromGoList(v)
	case []Value:
		return fromValueList(v)
	default:
		return nil, errs.New(errs.KindUnsupportedType, "unsupported argument shape %T", raw)
	}
}

func intFromInt64(v int64) Value {
	if v >= minInt32 && v <= maxInt32 {
		return Int32Value(int32(v))
	}
	return Int64Value(v)
}

func fromGoList(raw []interface{}) (Value, error) {
	elems := make([]Value, 0, len(raw))
	for _, item := range raw {
		v, err := FromGo(item)
		if err != nil {
			return nil, err
		}
		elems = append(elems, v)
	}
	return fromValueList(elems)
}

func fromValueList(elems []Value) (Value, error) {
	if len(elems) > 1 {
		first, err := listTypeTag(elems[0])
		if err != nil {
			return nil, err
		}
		for _, el := range elems[1:] {
			t, err := listTypeTag(el)
			if err != nil {
				return nil, err
			}
			if t != first {
				return nil, errs.New(errs.KindHeterogeneousList,
					"list elements must share one native shape, first is %s but found %s", first, t)
			}
		}
	}
	return &ListValue{Elements: elems}, nil
}

// ToOrderedFields converts an already order-preserving source (an
// *types.OrderedMap) into a NamedObject field list, recursively
// converting nested maps/lists with FromGo. A plain map[string]interface{}
// is accepted too, but Go maps do not preserve insertion order - callers
// who need a stable field order across repeated emissions of the same
// path (the wire format requires it) should pass an *types.OrderedMap.
func ToOrderedFields(path string, raw interface{}) ([]FieldValue, error) {
	switch m := raw.(type) {
	case *types.OrderedMap:
		return fieldsFromPairs(m.Pairs())
	case map[string]interface{}:
		pairs := make([]types.KV, 0, len(m))
		for k, v := range m {
			pairs = append(pairs, types.KV{Key: k, Value: v})
		}
		return fieldsFromPairs(pairs)
	default:
		return nil, errs.New(errs.KindUnsupportedType, "expected an object-shaped value, got %T", raw)
	}
}

func fieldsFromPairs(pairs []types.KV) ([]FieldValue, error) {
	fields := make([]FieldValue, 0, len(pairs))
	for _, kv := range pairs {
		var (
			v   Value
			err error
		)
		switch nested := kv.Value.(type) {
		case *types.OrderedMap, map[string]interface{}:
			nestedFields, ferr := ToOrderedFields(objectPathFallback, nested)
			if ferr != nil {
				return nil, ferr
			}
			v = &NamedObject{Path: objectPathFallback, Fields: nestedFields}
		default:
			v, err = FromGo(kv.Value)
		}
		if err != nil {
			return nil, err
		}
		fields = append(fields, FieldValue{Name: kv.Key, Value: v})
	}
	return fields, nil
}

// objectPathFallback is the remote class path used for nested mappings
// discovered inside an Object-like declared type, per spec.md 4.F.
const objectPathFallback = "java.lang.Object"

func listTypeTag(v Value) (string, error) {
	switch v.(type) {
	case BoolValue:
		return "[boolean", nil
	case Int32Value, Int64Value:
		return "[int", nil
	case Float64Value:
		return "[double", nil
	case StringValue:
		return "[string", nil
	case *NamedObject:
		return "[object", nil
	default:
		return "", errs.New(errs.KindUnsupportedType, "unsupported list element shape %T", v)
	}
}

// isArrayListShape reports whether obj is the special java.util.ArrayList
// collection shortcut: a NamedObject at the ArrayList path carrying an
// "elementData" field whose value is a list. The encoder serializes
// this shape as a plain Hessian-2 list instead of an object.
func isArrayListShape(obj *NamedObject, arrayListPath, elementDataField string) (*ListValue, bool) {
	if obj.Path != arrayListPath {
		return nil, false
	}
	for _, f := range obj.Fields {
		if f.Name == elementDataField {
			if lv, ok := f.Value.(*ListValue); ok {
				return lv, true
			}
			return nil, false
		}
	}
	return nil, false
}
