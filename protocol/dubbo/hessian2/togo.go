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

// ToGo converts a decoded Value back into plain Go data: bool, int32,
// int64, float64, string, nil, []interface{} for lists, and
// map[string]interface{} for named objects. The reverse of FromGo,
// used by the client facade to hand a decoded reply to the caller
// without exposing the wire-level Value types.
//
// A NamedObject's class path is not carried over - the caller asked
// for data, not for the remote type system. Field order is likewise
// not preserved on this side of the boundary; only the wire cares.
func ToGo(v Value) interface{} {
	switch val := v.(type) {
	case nil, NullValue:
		return nil
	case BoolValue:
		return bool(val)
	case Int32Value:
		return int32(val)
	case Int64Value:
		return int64(val)
	case Float64Value:
		return float64(val)
	case StringValue:
		return string(val)
	case *ListValue:
		out := make([]interface{}, len(val.Elements))
		for i, el := range val.Elements {
			out[i] = ToGo(el)
		}
		return out
	case *NamedObject:
		out := make(map[string]interface{}, len(val.Fields))
		for _, f := range val.Fields {
			out[f.Name] = ToGo(f.Value)
		}
		return out
	default:
		return nil
	}
}
