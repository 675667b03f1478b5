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

// Package dubbo assembles Dubbo request frames (header + Hessian-2
// body) and decodes reply frames, dispatching argument coercion and
// transport delivery for one wire protocol: Dubbo-over-Hessian-2.
package dubbo

import (
	"encoding/binary"

	errs "github.com/dubbogo/dubbo-invoke/common/errors"
)

// Wire header layout, spec.md 3/6. Byte offsets and flag bits are
// grounded on the mesher Dubbo codec (other_examples
// 604d6235_diannaowa-mesher) and the dubbo-go-hessian2 response
// packer referenced by spec.md 4.D.
const (
	HeaderLength = 16

	MagicHigh = byte(0xda)
	MagicLow  = byte(0xbb)

	FlagRequest = byte(0x80)
	FlagTwoWay  = byte(0x40)

	SerializationHessian2 = byte(0x02)

	// RequestFlags is the fixed flags byte for a two-way Hessian-2
	// request: request bit | two-way bit | serialization id 2.
	RequestFlags = FlagRequest | FlagTwoWay | SerializationHessian2
)

// Header is the 16-byte fixed frame header.
type Header struct {
	Flags    byte
	Status   byte
	InvokeID uint64
	BodyLen  uint32
}

// Encode writes the header's 16 bytes in wire order.
func (h Header) Encode() []byte {
	b := make([]byte, HeaderLength)
	b[0] = MagicHigh
	b[1] = MagicLow
	b[2] = h.Flags
	b[3] = h.Status
	binary.BigEndian.PutUint64(b[4:12], h.InvokeID)
	binary.BigEndian.PutUint32(b[12:16], h.BodyLen)
	return b
}

// DecodeHeader parses the first 16 bytes of a frame.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderLength {
		return Header{}, errs.New(errs.KindTransportFailure, "frame shorter than header length %d", HeaderLength)
	}
	if b[0] != MagicHigh || b[1] != MagicLow {
		return Header{}, errs.New(errs.KindTransportFailure, "bad frame magic 0x%02x%02x", b[0], b[1])
	}
	return Header{
		Flags:    b[2],
		Status:   b[3],
		InvokeID: binary.BigEndian.Uint64(b[4:12]),
		BodyLen:  binary.BigEndian.Uint32(b[12:16]),
	}, nil
}
