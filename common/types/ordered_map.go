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

package types

// KV is one key/value pair of an OrderedMap, in caller insertion order.
type KV struct {
	Key   string
	Value interface{}
}

// OrderedMap is a map-like argument value that remembers insertion
// order. The wire format requires a named object's field order to be
// stable across repeated emissions of the same class path within one
// request; a plain Go map cannot promise that, so callers who care about
// field order (most Object/Map-like declared-type arguments do) should
// build one of these instead of a map[string]interface{}.
type OrderedMap struct {
	pairs []KV
}

// NewOrderedMap returns an empty OrderedMap.
func NewOrderedMap() *OrderedMap {
	return &OrderedMap{}
}

// Set appends a key/value pair, returning the receiver for chaining.
// It does not deduplicate existing keys - last write wins on the
// decode side, but both entries remain on the wire, matching how a
// caller-built field list is taken literally.
func (m *OrderedMap) Set(key string, value interface{}) *OrderedMap {
	m.pairs = append(m.pairs, KV{Key: key, Value: value})
	return m
}

// Pairs returns the key/value pairs in insertion order.
func (m *OrderedMap) Pairs() []KV {
	return m.pairs
}

// Len returns the number of pairs.
func (m *OrderedMap) Len() int {
	return len(m.pairs)
}
