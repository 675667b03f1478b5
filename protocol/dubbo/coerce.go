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

package dubbo

import (
	"strings"

	"github.com/jinzhu/copier"
	"github.com/mitchellh/mapstructure"

	"github.com/dubbogo/dubbo-invoke/common/constant"
	errs "github.com/dubbogo/dubbo-invoke/common/errors"
	"github.com/dubbogo/dubbo-invoke/common/types"
	"github.com/dubbogo/dubbo-invoke/protocol/dubbo/hessian2"
	"github.com/dubbogo/dubbo-invoke/tools/cli/jsonregister"
)

// mapLikeClasses are the declared reference types the Map-like
// coercion rule recognizes, per spec.md 4.F.
var mapLikeClasses = map[string]bool{
	"java.util.Map":           true,
	"java.util.HashMap":       true,
	"java.util.LinkedHashMap": true,
	"java.util.SortedMap":     true,
	"java.util.TreeMap":       true,
	"Map":                     true,
}

// listLikeClasses are the declared reference types the List-like
// coercion rule recognizes.
var listLikeClasses = map[string]bool{
	"java.util.List":       true,
	"java.util.ArrayList":  true,
	"java.util.Collection": true,
	"java.util.Set":        true,
	"List":                 true,
	"Collection":           true,
}

func bareClassName(declared string) string {
	if idx := strings.IndexByte(declared, '<'); idx >= 0 {
		declared = declared[:idx]
	}
	return strings.TrimSuffix(declared, "[]")
}

func isPrimitiveOrArrayDeclared(bare string) bool {
	if strings.HasSuffix(bare, "[]") {
		return true
	}
	switch bare {
	case "boolean", "byte", "char", "short", "int", "long", "float", "double", "void",
		"Boolean", "Byte", "Character", "Short", "Integer", "Long", "Float", "Double", "Void":
		return true
	}
	return false
}

// CoerceArg applies the declared-type coercion rules of spec.md 4.F to
// one raw argument (already parsed from JSON into Go's native
// map[string]interface{}/[]interface{}/scalar shapes, or a
// *types.OrderedMap when field order must be preserved). When declared
// is empty, raw is converted with hessian2.FromGo and no coercion is
// applied.
func CoerceArg(raw interface{}, declared string) (hessian2.Value, error) {
	if declared == "" {
		return hessian2.FromGo(raw)
	}

	bare := bareClassName(declared)

	switch {
	case mapLikeClasses[bare]:
		if isMapShaped(raw) {
			return coerceMapLike(raw, bare)
		}
	case listLikeClasses[bare] || strings.HasSuffix(declared, "[]"):
		if seq, ok := asSequence(raw); ok {
			return coerceListLike(seq, declared)
		}
	case !isPrimitiveOrArrayDeclared(bare):
		if isMapShaped(raw) {
			return coerceObjectLike(raw, bare)
		}
	}

	return hessian2.FromGo(raw)
}

func isMapShaped(raw interface{}) bool {
	switch raw.(type) {
	case map[string]interface{}, *types.OrderedMap:
		return true
	default:
		return false
	}
}

func asSequence(raw interface{}) ([]interface{}, bool) {
	seq, ok := raw.([]interface{})
	return seq, ok
}

// coerceMapLike wraps a mapping into a NamedObject with path = the
// declared class and the mapping's entries as fields in iteration
// order, per spec.md 4.F's Map-like rule.
func coerceMapLike(raw interface{}, declaredClass string) (hessian2.Value, error) {
	fields, err := hessian2.ToOrderedFields(declaredClass, raw)
	if err != nil {
		return nil, err
	}
	return &hessian2.NamedObject{Path: declaredClass, Fields: fields}, nil
}

// coerceObjectLike wraps a mapping into a NamedObject at the declared
// class path, recursively wrapping nested mappings as
// java.lang.Object, per spec.md 4.F's Object-like rule. If a Go struct
// type was registered for declaredClass via jsonregister, the mapping
// is first decoded into that struct (preserving its declared field
// order) before being re-flattened into wire fields.
func coerceObjectLike(raw interface{}, declaredClass string) (hessian2.Value, error) {
	if structType, ok := jsonregister.Lookup(declaredClass); ok {
		return coerceRegisteredStruct(raw, declaredClass, structType)
	}
	fields, err := objectFields(raw, declaredClass)
	if err != nil {
		return nil, err
	}
	return &hessian2.NamedObject{Path: declaredClass, Fields: fields}, nil
}

func objectFields(raw interface{}, path string) ([]hessian2.FieldValue, error) {
	switch m := raw.(type) {
	case *types.OrderedMap:
		return objectFieldsFromPairs(m.Pairs())
	case map[string]interface{}:
		pairs := make([]types.KV, 0, len(m))
		for k, v := range m {
			pairs = append(pairs, types.KV{Key: k, Value: v})
		}
		return objectFieldsFromPairs(pairs)
	default:
		return nil, errs.New(errs.KindUnsupportedType, "expected an object-shaped value for %s, got %T", path, raw)
	}
}

func objectFieldsFromPairs(pairs []types.KV) ([]hessian2.FieldValue, error) {
	fields := make([]hessian2.FieldValue, 0, len(pairs))
	for _, kv := range pairs {
		var (
			v   hessian2.Value
			err error
		)
		if isMapShaped(kv.Value) {
			nestedFields, ferr := objectFields(kv.Value, constant.ObjectPath)
			if ferr != nil {
				return nil, ferr
			}
			v = &hessian2.NamedObject{Path: constant.ObjectPath, Fields: nestedFields}
		} else {
			v, err = hessian2.FromGo(kv.Value)
		}
		if err != nil {
			return nil, err
		}
		fields = append(fields, hessian2.FieldValue{Name: kv.Key, Value: v})
	}
	return fields, nil
}

// coerceRegisteredStruct decodes raw into a fresh instance of
// structType (via mapstructure, since raw arrives as a generic JSON
// shape), deep-copies it defensively so repeated calls never share
// backing storage across requests, then flattens its exported fields
// into wire order using structType's field declaration order.
func coerceRegisteredStruct(raw interface{}, path string, structType interface{}) (hessian2.Value, error) {
	target := jsonregister.NewInstance(structType)
	if err := mapstructure.Decode(toPlainShape(raw), target); err != nil {
		return nil, errs.Wrap(errs.KindUnsupportedType, err, "decoding %s into registered struct", path)
	}

	safeCopy := jsonregister.NewInstance(structType)
	if err := copier.Copy(safeCopy, target); err != nil {
		return nil, errs.Wrap(errs.KindUnsupportedType, err, "copying decoded %s instance", path)
	}

	fields, err := jsonregister.FieldValues(safeCopy)
	if err != nil {
		return nil, err
	}

	out := make([]hessian2.FieldValue, 0, len(fields))
	for _, f := range fields {
		v, err := hessian2.FromGo(f.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, hessian2.FieldValue{Name: f.Name, Value: v})
	}
	return &hessian2.NamedObject{Path: path, Fields: out}, nil
}

// coerceListLike wraps a sequence into the java.util.ArrayList special
// collection shape (elementData + size fields), per spec.md 4.F's
// List-like rule. Nested mappings inside the sequence are wrapped as
// NamedObjects using the declared generic element type, falling back
// to java.lang.Object.
func coerceListLike(seq []interface{}, declared string) (hessian2.Value, error) {
	elemType := hessian2.ElementTypeOf(declared)

	elems := make([]hessian2.Value, 0, len(seq))
	for _, item := range seq {
		if isMapShaped(item) {
			fields, err := objectFields(item, elemType)
			if err != nil {
				return nil, err
			}
			elems = append(elems, &hessian2.NamedObject{Path: elemType, Fields: fields})
			continue
		}
		v, err := hessian2.FromGo(item)
		if err != nil {
			return nil, err
		}
		elems = append(elems, v)
	}

	listVal, err := hessian2.FromGo(toInterfaceSlice(elems))
	if err != nil {
		return nil, err
	}

	return hessian2.Obj(constant.ArrayListPath,
		hessian2.Field(constant.ElementDataField, listVal),
		hessian2.Field(constant.SizeField, hessian2.Int32(int32(len(seq)))),
	), nil
}

// toPlainShape recursively converts *types.OrderedMap values into the
// plain map[string]interface{} shape mapstructure can decode from.
// Order is irrelevant here: the registered struct's declaration order
// takes over as the wire field order.
func toPlainShape(raw interface{}) interface{} {
	switch v := raw.(type) {
	case *types.OrderedMap:
		out := make(map[string]interface{}, v.Len())
		for _, kv := range v.Pairs() {
			out[kv.Key] = toPlainShape(kv.Value)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, el := range v {
			out[i] = toPlainShape(el)
		}
		return out
	default:
		return raw
	}
}

func toInterfaceSlice(vs []hessian2.Value) []interface{} {
	out := make([]interface{}, len(vs))
	for i, v := range vs {
		out[i] = v
	}
	return out
}
