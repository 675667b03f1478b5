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

package constant

// nolint
const (
	DefaultDubboVersion = "2.4.10"
	DefaultTimeoutMs    = 60000
	MaxTimeoutMs        = 300000

	DubboScheme = "dubbo"

	AttachmentPathKey      = "path"
	AttachmentInterfaceKey = "interface"
	AttachmentVersionKey   = "version"

	// ArrayListPath is the java.util.ArrayList class path. A NamedObject
	// carrying this path and an "elementData" field is recognized by the
	// hessian2 encoder as the special collection shortcut.
	ArrayListPath    = "java.util.ArrayList"
	ElementDataField = "elementData"
	SizeField        = "size"

	// ObjectPath is used as the path for recursively-wrapped nested
	// mappings inside an Object-like declared type.
	ObjectPath = "java.lang.Object"

	// StringPath is the fully qualified remote class name for java.lang.String.
	StringPath = "java.lang.String"
)

// DubboVersionPattern is the regex a caller-supplied dubbo version must
// satisfy: major.minor(.patch|.x)
const DubboVersionPattern = `^\d+\.\d+(\.\d+|\.x)$`

// RegistryURIPattern splits a registry address into (scheme, rest).
const RegistryURIPattern = `^([a-z]+)://(.+)$`
