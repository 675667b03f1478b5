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
	"go.uber.org/atomic"

	"github.com/dubbogo/dubbo-invoke/common/constant"
	errs "github.com/dubbogo/dubbo-invoke/common/errors"
	"github.com/dubbogo/dubbo-invoke/protocol/dubbo/hessian2"
)

// invokeIDSeq is the process-wide monotonic invoke-id counter, per
// spec.md 5: "Atomic fetch-and-add is required." It is the one piece
// of state shared across every in-flight call.
var invokeIDSeq atomic.Uint64

// NextInvokeID returns the next invoke-id in the process-wide
// monotonically increasing sequence.
func NextInvokeID() uint64 {
	return invokeIDSeq.Inc()
}

// FrameParams is everything the framer needs to assemble one request
// body, per spec.md 4.C.
type FrameParams struct {
	DubboVersion  string
	ServicePath   string
	ServiceVer    string
	Method        string
	DeclaredTypes []string // optional; when empty, the descriptor is inferred from Args
	Args          []hessian2.Value
	Attachments   map[string]string // caller-supplied extras, merged with path/interface/version
}

// BuildRequestFrame assembles a complete request frame: the 16-byte
// header followed by the Hessian-2-encoded body, in the fixed order of
// spec.md 4.C. A fresh hessian2.Encoder is constructed here and
// discarded at return - its classDefs/listTypes tables never escape
// this call, honoring the per-request session-state invariant.
func BuildRequestFrame(p FrameParams) ([]byte, uint64, error) {
	descriptor, err := resolveDescriptor(p.DeclaredTypes, p.Args)
	if err != nil {
		return nil, 0, err
	}

	dubboVersion := p.DubboVersion
	if dubboVersion == "" {
		dubboVersion = constant.DefaultDubboVersion
	}

	enc := hessian2.NewEncoder()
	for _, v := range []hessian2.Value{
		hessian2.String(dubboVersion),
		hessian2.String(p.ServicePath),
		hessian2.String(p.ServiceVer),
		hessian2.String(p.Method),
		hessian2.String(descriptor),
	} {
		if err := enc.EncodeValue(v); err != nil {
			return nil, 0, err
		}
	}

	for _, arg := range p.Args {
		if err := enc.EncodeValue(arg); err != nil {
			return nil, 0, err
		}
	}

	if err := encodeAttachments(enc, p); err != nil {
		return nil, 0, err
	}

	invokeID := NextInvokeID()
	body := enc.Bytes()
	header := Header{
		Flags:    RequestFlags,
		Status:   0,
		InvokeID: invokeID,
		BodyLen:  uint32(len(body)),
	}

	frame := make([]byte, 0, HeaderLength+len(body))
	frame = append(frame, header.Encode()...)
	frame = append(frame, body...)
	return frame, invokeID, nil
}

// resolveDescriptor prefers declared types over inference, per
// spec.md 4.C: "from declared types if present, else inferred from values."
func resolveDescriptor(declared []string, args []hessian2.Value) (string, error) {
	if len(declared) > 0 {
		if len(declared) >= 2 && len(declared) != len(args) {
			return "", errs.New(errs.KindTypeCountMismatch,
				"declared type count %d does not match argument count %d", len(declared), len(args))
		}
		return hessian2.CanonicalizeDeclaredList(declared)
	}
	return hessian2.InferDescriptor(args)
}

// encodeAttachments writes the "H" attachments map marker, the
// mandatory path/interface/version keys plus caller-supplied extras,
// then the "Z" terminator, per spec.md 4.C.
func encodeAttachments(enc *hessian2.Encoder, p FrameParams) error {
	enc.Append([]byte{'H'})

	write := func(k, v string) error {
		if err := enc.EncodeValue(hessian2.String(k)); err != nil {
			return err
		}
		return enc.EncodeValue(hessian2.String(v))
	}

	if err := write(constant.AttachmentPathKey, p.ServicePath); err != nil {
		return err
	}
	if err := write(constant.AttachmentInterfaceKey, p.ServicePath); err != nil {
		return err
	}
	if err := write(constant.AttachmentVersionKey, p.ServiceVer); err != nil {
		return err
	}
	for k, v := range p.Attachments {
		if k == constant.AttachmentPathKey || k == constant.AttachmentInterfaceKey || k == constant.AttachmentVersionKey {
			continue
		}
		if err := write(k, v); err != nil {
			return err
		}
	}

	enc.Append([]byte{'Z'})
	return nil
}
