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

package jsonregister

import (
	"io/ioutil"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type user struct {
	Name string `json:"name"`
	Age  int32  `json:"age"`
	note string // unexported, never a wire field
}

func TestRegisterAndLookup(t *testing.T) {
	Register("com.x.User", user{})

	instance, ok := Lookup("com.x.User")
	require.True(t, ok)
	_, isUser := instance.(*user)
	assert.True(t, isUser)

	_, ok = Lookup("com.x.Unknown")
	assert.False(t, ok)
}

func TestFieldValues_DeclarationOrderAndJSONTags(t *testing.T) {
	u := &user{Name: "lisi", Age: 25, note: "hidden"}
	fields, err := FieldValues(u)
	require.NoError(t, err)

	require.Len(t, fields, 2)
	assert.Equal(t, "name", fields[0].Name)
	assert.Equal(t, "lisi", fields[0].Value)
	assert.Equal(t, "age", fields[1].Name)
	assert.Equal(t, int32(25), fields[1].Value)
}

func TestFieldValues_RejectsNonStruct(t *testing.T) {
	_, err := FieldValues("not a struct")
	require.Error(t, err)

	var nilUser *user
	_, err = FieldValues(nilUser)
	require.Error(t, err)
}

func TestRegisterStructFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hello_request.json")
	schema := `{"name": "", "age": 0, "tags": [""], "address": {"city": ""}}`
	require.NoError(t, ioutil.WriteFile(path, []byte(schema), 0o644))

	instance, err := RegisterStructFromFile("com.x.SchemaHello", path)
	require.NoError(t, err)

	typ := reflect.TypeOf(instance).Elem()
	require.Equal(t, 4, typ.NumField())
	// Schema key order is the struct declaration order.
	assert.Equal(t, "Name", typ.Field(0).Name)
	assert.Equal(t, "Age", typ.Field(1).Name)
	assert.Equal(t, "Tags", typ.Field(2).Name)
	assert.Equal(t, "Address", typ.Field(3).Name)
	assert.Equal(t, reflect.String, typ.Field(0).Type.Kind())
	assert.Equal(t, reflect.Int64, typ.Field(1).Type.Kind())
	assert.Equal(t, reflect.Slice, typ.Field(2).Type.Kind())
	assert.Equal(t, reflect.Struct, typ.Field(3).Type.Kind())

	_, ok := Lookup("com.x.SchemaHello")
	assert.True(t, ok)
}

func TestRegisterStructFromFile_BadSchema(t *testing.T) {
	dir := t.TempDir()

	badJSON := filepath.Join(dir, "bad.json")
	require.NoError(t, ioutil.WriteFile(badJSON, []byte(`{"a": `), 0o644))
	_, err := RegisterStructFromFile("com.x.Bad", badJSON)
	require.Error(t, err)

	notObject := filepath.Join(dir, "arr.json")
	require.NoError(t, ioutil.WriteFile(notObject, []byte(`[1, 2]`), 0o644))
	_, err = RegisterStructFromFile("com.x.Arr", notObject)
	require.Error(t, err)
}
