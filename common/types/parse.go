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

// Package types holds the declared-parameter-type string parser used by
// the client facade, and the insertion-ordered map and key-order-
// preserving JSON decoder shared by the facade and the protocol handler.
package types

import "strings"

// SplitParameterTypes splits a comma-separated declared parameter type
// string into its individual entries, treating a comma nested inside
// angle brackets (generic parameters, e.g. "Map<String,Integer>") as
// part of the current entry rather than a separator.
//
// "int,Map<String,Integer>,List<User>" -> ["int", "Map<String,Integer>", "List<User>"]
func SplitParameterTypes(declared string) []string {
	if strings.TrimSpace(declared) == "" {
		return nil
	}

	var (
		result  []string
		current strings.Builder
		depth   int
	)

	for _, r := range declared {
		switch r {
		case '<':
			depth++
			current.WriteRune(r)
		case '>':
			depth--
			current.WriteRune(r)
		case ',':
			if depth == 0 {
				if s := strings.TrimSpace(current.String()); s != "" {
					result = append(result, s)
				}
				current.Reset()
				continue
			}
			current.WriteRune(r)
		default:
			current.WriteRune(r)
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		result = append(result, s)
	}
	return result
}
