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
	"strings"

	errs "github.com/dubbogo/dubbo-invoke/common/errors"
)

// primitiveDescriptors maps the remote language's primitive/boxed type
// names to their single-letter descriptor fragments. Boxed names
// (Integer, Long, ...) map to the same fragment as their primitive
// counterpart since the wire only cares about the erased shape.
var primitiveDescriptors = map[string]string{
	"boolean":   "Z",
	"Boolean":   "Z",
	"byte":      "B",
	"Byte":      "B",
	"char":      "C",
	"Character": "C",
	"short":     "S",
	"Short":     "S",
	"int":       "I",
	"Integer":   "I",
	"long":      "J",
	"Long":      "J",
	"float":     "F",
	"Float":     "F",
	"double":    "D",
	"Double":    "D",
	"void":      "V",
	"Void":      "V",
}

// InferFragment resolves one argument's inferred type-descriptor
// fragment from the native shape of the value, per spec.md 4.A.
func InferFragment(v Value) (string, error) {
	switch val := v.(type) {
	case BoolValue:
		return "Z", nil
	case Int32Value:
		return "I", nil
	case Int64Value:
		return "J", nil
	case Float64Value:
		return "D", nil
	case StringValue:
		return "Ljava/lang/String;", nil
	case *NamedObject:
		return "L" + slashPath(val.Path) + ";", nil
	case *ListValue:
		if len(val.Elements) == 0 {
			return "", errs.New(errs.KindUnresolvableEmptyList,
				"cannot infer a wire type for an empty list argument")
		}
		first, err := InferFragment(val.Elements[0])
		if err != nil {
			return "", err
		}
		return "[" + first, nil
	default:
		return "", errs.New(errs.KindUnsupportedType, "unsupported argument shape %T", v)
	}
}

// InferDescriptor concatenates the inferred fragment of each value in
// order, with no separator - the parameter-type descriptor grammar of
// spec.md 3.
func InferDescriptor(values []Value) (string, error) {
	var sb strings.Builder
	for _, v := range values {
		frag, err := InferFragment(v)
		if err != nil {
			return "", err
		}
		sb.WriteString(frag)
	}
	return sb.String(), nil
}

// CanonicalizeDeclared maps one human-supplied declared type name (or
// already-descriptor-shaped string) to its wire descriptor fragment,
// per spec.md 4.A:
//   - pre-formed descriptors (leading '[', or leading 'L' with a
//     trailing ';') pass through unchanged
//   - "<...>" generic parameters are discarded before mapping
//   - "...[]" recurses on the element type and prepends '['
//   - the primitive/boxed name table is consulted
//   - anything left becomes "L<slashed>;"
func CanonicalizeDeclared(declared string) (string, error) {
	declared = strings.TrimSpace(declared)
	if declared == "" {
		return "", errs.New(errs.KindUnsupportedType, "declared type must not be empty")
	}

	if strings.HasPrefix(declared, "[") {
		return declared, nil
	}
	if strings.HasPrefix(declared, "L") && strings.HasSuffix(declared, ";") {
		return declared, nil
	}

	// Generic parameters are erased for the wire: Foo<Bar> -> Foo, and
	// Foo<Bar>[] -> Foo[] so the array suffix survives the erasure.
	if idx := strings.IndexByte(declared, '<'); idx >= 0 {
		rest := ""
		if end := strings.LastIndexByte(declared, '>'); end > idx {
			rest = declared[end+1:]
		}
		declared = declared[:idx] + rest
	}

	if strings.HasSuffix(declared, "[]") {
		elem, err := CanonicalizeDeclared(declared[:len(declared)-2])
		if err != nil {
			return "", err
		}
		return "[" + elem, nil
	}

	if frag, ok := primitiveDescriptors[declared]; ok {
		return frag, nil
	}

	return "L" + slashPath(declared) + ";", nil
}

// CanonicalizeDeclaredList canonicalizes each declared type in order
// and concatenates the resulting fragments with no separator.
func CanonicalizeDeclaredList(declared []string) (string, error) {
	var sb strings.Builder
	for _, d := range declared {
		frag, err := CanonicalizeDeclared(d)
		if err != nil {
			return "", err
		}
		sb.WriteString(frag)
	}
	return sb.String(), nil
}

// ElementTypeOf returns the generic element type name of a declared
// List-like type such as "java.util.List<com.x.Foo>", or the
// java.lang.Object fallback when the declaration carries no generic
// parameter. Used by the protocol handler's List-like coercion rule.
func ElementTypeOf(declared string) string {
	start := strings.IndexByte(declared, '<')
	end := strings.LastIndexByte(declared, '>')
	if start < 0 || end < 0 || end < start {
		return objectPathFallback
	}
	elem := strings.TrimSpace(declared[start+1 : end])
	if elem == "" {
		return objectPathFallback
	}
	return elem
}

func slashPath(path string) string {
	return strings.ReplaceAll(path, ".", "/")
}
