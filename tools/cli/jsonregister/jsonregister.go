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

// Package jsonregister lets a caller register a named Go struct type
// for a remote class path, so the protocol handler's coercion layer
// (protocol/dubbo/coerce.go) can decode a JSON object argument into a
// concrete typed struct - and hence a stable, struct-declared wire
// field order - instead of leaving it as an unordered
// map[string]interface{}.
//
// This is the Go analogue of the original client's
// hessian.RegisterPOJOMapping / RegisterStructFromFile: where the
// source dynamically built a class from a JSON schema file at
// runtime, this package builds the equivalent struct type with
// reflect.StructOf from the same kind of JSON schema (a sample object
// whose values carry the field types), since a statically typed
// rewrite has no runtime class loader to reuse.
package jsonregister

import (
	"io/ioutil"
	"reflect"
	"sync"

	"github.com/dubbogo/dubbo-invoke/common/errors"
	"github.com/dubbogo/dubbo-invoke/common/types"
)

var (
	mu       sync.RWMutex
	registry = make(map[string]reflect.Type)
)

// Register associates javaClassName with sample's type. sample may be
// a struct value or a pointer to one; later Lookup(javaClassName)
// calls return a fresh instance of that struct type.
func Register(javaClassName string, sample interface{}) {
	t := reflect.TypeOf(sample)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	mu.Lock()
	defer mu.Unlock()
	registry[javaClassName] = t
}

// Lookup returns a fresh pointer to a zero value of the struct type
// registered for javaClassName, and whether one was registered.
func Lookup(javaClassName string) (interface{}, bool) {
	mu.RLock()
	t, ok := registry[javaClassName]
	mu.RUnlock()
	if !ok {
		return nil, false
	}
	return reflect.New(t).Interface(), true
}

// NewInstance returns a fresh pointer to a zero value of sample's
// underlying struct type.
func NewInstance(sample interface{}) interface{} {
	t := reflect.TypeOf(sample)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return reflect.New(t).Interface()
}

// FieldValue is one exported struct field's wire name and current value.
type FieldValue struct {
	Name  string
	Value interface{}
}

// FieldValues extracts instance's exported struct fields, in
// declaration order, as wire field entries. A field's wire name is its
// `json` struct tag if present, else its Go field name.
func FieldValues(instance interface{}) ([]FieldValue, error) {
	v := reflect.ValueOf(instance)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil, errors.New(errors.KindUnsupportedType, "jsonregister: nil instance")
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, errors.New(errors.KindUnsupportedType, "jsonregister: expected a struct, got %s", v.Kind())
	}

	t := v.Type()
	out := make([]FieldValue, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" { // unexported
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("json"); ok && tag != "" && tag != "-" {
			name = tag
		}
		out = append(out, FieldValue{Name: name, Value: v.Field(i).Interface()})
	}
	return out, nil
}

// RegisterStructFromFile reads a JSON schema file - a sample object
// whose keys are field names and whose values carry the field types
// (a zero-value string, number, bool, nested object or homogeneous
// array) - and registers a dynamically built struct type for
// javaClassName built from that schema via reflect.StructOf. It
// returns a fresh instance of the registered type, mirroring the
// original's RegisterStructFromFile(path) which returned the built
// package value.
func RegisterStructFromFile(javaClassName, path string) (interface{}, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.KindUnsupportedType, err, "reading json schema file %s", path)
	}

	parsed, err := types.DecodeOrderedJSON(data)
	if err != nil {
		return nil, errors.Wrap(errors.KindBadJSONValues, err, "parsing json schema file %s", path)
	}
	schema, ok := parsed.(*types.OrderedMap)
	if !ok {
		return nil, errors.New(errors.KindBadJSONValues, "json schema file %s must contain a top-level object", path)
	}

	structType, err := buildStructType(schema)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	registry[javaClassName] = structType
	mu.Unlock()

	return reflect.New(structType).Interface(), nil
}

func buildStructType(schema *types.OrderedMap) (reflect.Type, error) {
	fields := make([]reflect.StructField, 0, schema.Len())
	for _, kv := range schema.Pairs() {
		ft, err := fieldType(kv.Value)
		if err != nil {
			return nil, err
		}
		fields = append(fields, reflect.StructField{
			Name: exportedName(kv.Key),
			Type: ft,
			Tag:  reflect.StructTag(`json:"` + kv.Key + `"`),
		})
	}
	return reflect.StructOf(fields), nil
}

func fieldType(sample interface{}) (reflect.Type, error) {
	switch v := sample.(type) {
	case nil:
		return reflect.TypeOf((*interface{})(nil)).Elem(), nil
	case bool:
		return reflect.TypeOf(v), nil
	case int64:
		return reflect.TypeOf(v), nil
	case float64:
		return reflect.TypeOf(v), nil
	case string:
		return reflect.TypeOf(v), nil
	case *types.OrderedMap:
		nested, err := buildStructType(v)
		if err != nil {
			return nil, err
		}
		return nested, nil
	case []interface{}:
		if len(v) == 0 {
			return reflect.TypeOf([]interface{}{}), nil
		}
		elem, err := fieldType(v[0])
		if err != nil {
			return nil, err
		}
		return reflect.SliceOf(elem), nil
	default:
		return nil, errors.New(errors.KindUnsupportedType, "jsonregister: unsupported schema value shape %T", sample)
	}
}

// exportedName capitalizes key's first rune so it can back an
// exported (and therefore settable-by-reflection) struct field.
func exportedName(key string) string {
	if key == "" {
		return "Field"
	}
	r := []rune(key)
	if r[0] >= 'a' && r[0] <= 'z' {
		r[0] = r[0] - ('a' - 'A')
	}
	return string(r)
}
