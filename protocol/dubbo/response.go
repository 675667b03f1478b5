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
	errs "github.com/dubbogo/dubbo-invoke/common/errors"
	"github.com/dubbogo/dubbo-invoke/protocol/dubbo/hessian2"
)

// Response status markers, grounded on
// other_examples/80d9cee5_DarrenTai-hessian2__response.go (packResponse /
// unpackResponseBody) and the mesher Dubbo codec's Ok/ServerError/
// ServiceError statuses. DecodeReplyFrame accepts the three base
// markers and their three _WITH_ATTACHMENTS variants; an attachments
// payload is kept only when it decodes as a named object, since the
// hessian2 decoder has no map form. EncodeReplyFrame emits only the
// three base markers.
const (
	responseOK = byte(20)

	respValue           = 1
	respNullValue       = 2
	respWithException   = 3
	respValueAttach     = 4
	respNullValueAttach = 5
	respExceptionAttach = 6
)

// Reply is the decoded body of one response frame.
type Reply struct {
	InvokeID    uint64
	Value       hessian2.Value
	Exception   string
	Attachments map[string]string
}

// DecodeReplyFrame parses a full reply frame (header + body) into a
// Reply, or a *errs.InvokeError with KindRemoteException if the
// remote side reports a failure.
func DecodeReplyFrame(frame []byte) (*Reply, error) {
	hdr, err := DecodeHeader(frame)
	if err != nil {
		return nil, err
	}
	body := frame[HeaderLength:]
	if uint32(len(body)) < hdr.BodyLen {
		return nil, errs.New(errs.KindTransportFailure, "reply frame body shorter than declared length")
	}
	body = body[:hdr.BodyLen]

	reply := &Reply{InvokeID: hdr.InvokeID}

	if hdr.Status != responseOK {
		dec := hessian2.NewDecoder(body)
		msg, _ := dec.DecodeValue()
		reply.Exception = stringOf(msg)
		return reply, errs.New(errs.KindRemoteException, "remote call failed with status %d: %s", hdr.Status, reply.Exception)
	}

	dec := hessian2.NewDecoder(body)
	marker, err := dec.DecodeValue()
	if err != nil {
		return nil, errs.Wrap(errs.KindTransportFailure, err, "decoding reply status marker")
	}
	status, ok := marker.(hessian2.Int32Value)
	if !ok {
		return nil, errs.New(errs.KindTransportFailure, "reply status marker is not an int: %T", marker)
	}

	switch int32(status) {
	case respNullValue, respNullValueAttach:
		reply.Value = hessian2.Null()
	case respValue, respValueAttach:
		v, err := dec.DecodeValue()
		if err != nil {
			return nil, errs.Wrap(errs.KindTransportFailure, err, "decoding reply value")
		}
		reply.Value = v
	case respWithException, respExceptionAttach:
		v, err := dec.DecodeValue()
		if err != nil {
			return nil, errs.Wrap(errs.KindTransportFailure, err, "decoding reply exception")
		}
		reply.Exception = stringOf(v)
		return reply, errs.New(errs.KindRemoteException, "remote method raised an exception: %s", reply.Exception)
	default:
		return nil, errs.New(errs.KindTransportFailure, "unrecognized reply status marker %d", status)
	}

	if int32(status) == respValueAttach || int32(status) == respNullValueAttach || int32(status) == respExceptionAttach {
		atts, err := decodeAttachments(dec)
		if err != nil {
			return nil, err
		}
		reply.Attachments = atts
	}

	return reply, nil
}

func decodeAttachments(dec *hessian2.Decoder) (map[string]string, error) {
	v, err := dec.DecodeValue()
	if err != nil {
		return nil, errs.Wrap(errs.KindTransportFailure, err, "decoding reply attachments")
	}
	obj, ok := v.(*hessian2.NamedObject)
	if !ok {
		return nil, nil
	}
	out := make(map[string]string, len(obj.Fields))
	for _, f := range obj.Fields {
		if sv, ok := f.Value.(hessian2.StringValue); ok {
			out[f.Name] = string(sv)
		}
	}
	return out, nil
}

// EncodeReplyFrame builds a successful reply frame carrying value,
// or (if exception is non-empty) a reply frame carrying a remote
// exception. It is the mirror of DecodeReplyFrame, used by tests and
// by the in-memory fake transport to produce realistic reply bytes
// without a live Dubbo provider.
func EncodeReplyFrame(invokeID uint64, value hessian2.Value, exception string) []byte {
	enc := hessian2.NewEncoder()
	switch {
	case exception != "":
		enc.Append([]byte{byte(0x90 + respWithException)}) // 1-byte int form of respWithException
		_ = enc.EncodeValue(hessian2.String(exception))
	case value == nil:
		enc.Append([]byte{byte(0x90 + respNullValue)})
	default:
		enc.Append([]byte{byte(0x90 + respValue)})
		_ = enc.EncodeValue(value)
	}

	body := enc.Bytes()
	header := Header{
		Flags:    SerializationHessian2,
		Status:   responseOK,
		InvokeID: invokeID,
		BodyLen:  uint32(len(body)),
	}
	frame := make([]byte, 0, HeaderLength+len(body))
	frame = append(frame, header.Encode()...)
	frame = append(frame, body...)
	return frame
}

func stringOf(v hessian2.Value) string {
	if sv, ok := v.(hessian2.StringValue); ok {
		return string(sv)
	}
	if v == nil {
		return ""
	}
	return "<non-string exception payload>"
}
