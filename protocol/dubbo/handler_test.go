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
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/dubbogo/dubbo-invoke/common/errors"
	"github.com/dubbogo/dubbo-invoke/common/types"
	"github.com/dubbogo/dubbo-invoke/protocol/dubbo/hessian2"
)

// fakeTransport is the in-memory frame transport: it records the
// request frame and answers with a canned reply built around the
// request's invoke-id.
type fakeTransport struct {
	lastEndpoint string
	lastFrame    []byte

	replyValue     hessian2.Value
	replyException string
	block          bool
}

func (f *fakeTransport) RoundTrip(ctx context.Context, endpoint string, frame []byte) ([]byte, error) {
	if f.block {
		<-ctx.Done()
		return nil, errs.Wrap(errs.KindTimeout, ctx.Err(), "round trip to %s", endpoint)
	}
	f.lastEndpoint = endpoint
	f.lastFrame = append([]byte(nil), frame...)
	invokeID := binary.BigEndian.Uint64(frame[4:12])
	return EncodeReplyFrame(invokeID, f.replyValue, f.replyException), nil
}

func TestParseEndpoint(t *testing.T) {
	cases := []struct {
		in       string
		want     string
		wantKind errs.Kind
	}{
		{in: "dubbo://127.0.0.1:20880", want: "127.0.0.1:20880"},
		{in: "dubbo://127.0.0.1:20880/com.x.HelloFacade", want: "127.0.0.1:20880"},
		{in: "127.0.0.1:20880", want: "127.0.0.1:20880"},
		{in: "fe80::1:20880", want: "fe80::1:20880"}, // IPv6, last-colon split
		{in: "", wantKind: errs.KindMissingEndpoint},
		{in: "   ", wantKind: errs.KindMissingEndpoint},
		{in: "http://127.0.0.1:8080", wantKind: errs.KindUnsupportedProtocol},
		{in: "127.0.0.1", wantKind: errs.KindMalformedEndpoint},
		{in: "127.0.0.1:", wantKind: errs.KindMalformedEndpoint},
		{in: "127.0.0.1:abc", wantKind: errs.KindMalformedEndpoint},
		{in: "127.0.0.1:0", wantKind: errs.KindMalformedEndpoint},
		{in: "127.0.0.1:65536", wantKind: errs.KindMalformedEndpoint},
	}
	for _, tc := range cases {
		got, err := ParseEndpoint(tc.in)
		if tc.wantKind != "" {
			require.Error(t, err, "in=%q", tc.in)
			kind, ok := errs.KindOf(err)
			require.True(t, ok, "in=%q", tc.in)
			assert.Equal(t, tc.wantKind, kind, "in=%q", tc.in)
			continue
		}
		require.NoError(t, err, "in=%q", tc.in)
		assert.Equal(t, tc.want, got, "in=%q", tc.in)
	}
}

func TestHandlerInvoke_RoundTrip(t *testing.T) {
	ft := &fakeTransport{replyValue: hessian2.String("hello 张三")}
	h := NewHandler(ft)

	reply, err := h.Invoke(context.Background(), InvokeRequest{
		Endpoint:      "dubbo://127.0.0.1:20880",
		Interface:     "com.x.HelloFacade",
		Method:        "sayHello",
		Params:        "张三",
		DeclaredTypes: []string{"java.lang.String"},
		DubboVersion:  "2.4.10",
		Timeout:       time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, hessian2.StringValue("hello 张三"), reply.Value)
	assert.Equal(t, "127.0.0.1:20880", ft.lastEndpoint)

	// The frame that went out is a well-formed request for sayHello.
	body := ft.lastFrame[HeaderLength:]
	dec := hessian2.NewDecoder(body)
	for _, want := range []string{"2.4.10", "com.x.HelloFacade", "", "sayHello", "Ljava/lang/String;"} {
		v, err := dec.DecodeValue()
		require.NoError(t, err)
		assert.Equal(t, hessian2.StringValue(want), v)
	}
}

func TestHandlerInvoke_MultiParamPositionalCoercion(t *testing.T) {
	ft := &fakeTransport{replyValue: hessian2.Null()}
	h := NewHandler(ft)

	_, err := h.Invoke(context.Background(), InvokeRequest{
		Endpoint:      "127.0.0.1:20880",
		Interface:     "com.x.HelloFacade",
		Method:        "sendMessage",
		Params:        []interface{}{"测试用户", int64(25), "多参数测试消息"},
		DeclaredTypes: []string{"java.lang.String", "java.lang.Integer", "java.lang.String"},
		Timeout:       time.Second,
	})
	require.NoError(t, err)

	strs, dec := decodeBodyStrings(t, ft.lastFrame[HeaderLength:])
	assert.Equal(t, "Ljava/lang/String;Ljava/lang/Integer;Ljava/lang/String;", strs[4])
	arg1, err := dec.DecodeValue()
	require.NoError(t, err)
	assert.Equal(t, hessian2.StringValue("测试用户"), arg1)
}

func TestHandlerInvoke_TypeCountMismatch(t *testing.T) {
	h := NewHandler(&fakeTransport{})
	_, err := h.Invoke(context.Background(), InvokeRequest{
		Endpoint:      "127.0.0.1:20880",
		Interface:     "com.x.HelloFacade",
		Method:        "sendMessage",
		Params:        []interface{}{"only one"},
		DeclaredTypes: []string{"java.lang.String", "java.lang.Integer"},
	})
	require.Error(t, err)
	kind, _ := errs.KindOf(err)
	assert.Equal(t, errs.KindTypeCountMismatch, kind)
}

func TestHandlerInvoke_SingleDeclaredTypeTreatsSequenceAsOneArg(t *testing.T) {
	ft := &fakeTransport{replyValue: hessian2.Null()}
	h := NewHandler(ft)

	_, err := h.Invoke(context.Background(), InvokeRequest{
		Endpoint:      "127.0.0.1:20880",
		Interface:     "com.x.HelloFacade",
		Method:        "batch",
		Params:        []interface{}{"lisi", "zhangsan", "wangwu"},
		DeclaredTypes: []string{"java.util.List<java.lang.String>"},
		Timeout:       time.Second,
	})
	require.NoError(t, err)

	strs, dec := decodeBodyStrings(t, ft.lastFrame[HeaderLength:])
	assert.Equal(t, "Ljava/util/List;", strs[4])
	// The single argument went out as a list (the ArrayList shortcut).
	arg, err := dec.DecodeValue()
	require.NoError(t, err)
	lv, ok := arg.(*hessian2.ListValue)
	require.True(t, ok)
	assert.Len(t, lv.Elements, 3)
}

func TestHandlerInvoke_ObjectCoercionOnTheWire(t *testing.T) {
	ft := &fakeTransport{replyValue: hessian2.Null()}
	h := NewHandler(ft)

	params := types.NewOrderedMap().
		Set("name", "lisi").
		Set("age", int64(25)).
		Set("message", "hello")
	_, err := h.Invoke(context.Background(), InvokeRequest{
		Endpoint:      "127.0.0.1:20880",
		Interface:     "com.x.HelloFacade",
		Method:        "hello",
		Params:        params,
		DeclaredTypes: []string{"com.x.HelloRequest"},
		Timeout:       time.Second,
	})
	require.NoError(t, err)

	_, dec := decodeBodyStrings(t, ft.lastFrame[HeaderLength:])
	arg, err := dec.DecodeValue()
	require.NoError(t, err)
	obj, ok := arg.(*hessian2.NamedObject)
	require.True(t, ok)
	assert.Equal(t, "com.x.HelloRequest", obj.Path)
	require.Len(t, obj.Fields, 3)
	assert.Equal(t, "name", obj.Fields[0].Name)
}

func TestHandlerInvoke_RemoteException(t *testing.T) {
	h := NewHandler(&fakeTransport{replyException: "java.lang.IllegalStateException: boom"})
	_, err := h.Invoke(context.Background(), InvokeRequest{
		Endpoint:  "127.0.0.1:20880",
		Interface: "com.x.HelloFacade",
		Method:    "sayHello",
		Timeout:   time.Second,
	})
	require.Error(t, err)
	kind, _ := errs.KindOf(err)
	assert.Equal(t, errs.KindRemoteException, kind)
	assert.Contains(t, err.Error(), "boom")
}

func TestHandlerInvoke_Timeout(t *testing.T) {
	h := NewHandler(&fakeTransport{block: true})
	start := time.Now()
	_, err := h.Invoke(context.Background(), InvokeRequest{
		Endpoint:  "127.0.0.1:20880",
		Interface: "com.x.HelloFacade",
		Method:    "sayHello",
		Timeout:   20 * time.Millisecond,
	})
	require.Error(t, err)
	kind, _ := errs.KindOf(err)
	assert.Equal(t, errs.KindTimeout, kind)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestHandlerInvoke_MalformedEndpointNeverReachesTransport(t *testing.T) {
	ft := &fakeTransport{}
	h := NewHandler(ft)
	_, err := h.Invoke(context.Background(), InvokeRequest{
		Endpoint:  "127.0.0.1:99999",
		Interface: "com.x.HelloFacade",
		Method:    "sayHello",
	})
	require.Error(t, err)
	assert.Nil(t, ft.lastFrame)
}
