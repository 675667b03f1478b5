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

package transport

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/dubbogo/dubbo-invoke/common/errors"
)

// frameWith builds a minimal frame: a 16-byte header whose last four
// bytes carry the body length, followed by the body.
func frameWith(body []byte) []byte {
	frame := make([]byte, headerLength+len(body))
	frame[0], frame[1] = 0xda, 0xbb
	binary.BigEndian.PutUint32(frame[bodyLenOffset:headerLength], uint32(len(body)))
	copy(frame[headerLength:], body)
	return frame
}

// serveOnce accepts one connection, reads one request frame, and
// answers with reply.
func serveOnce(t *testing.T, ln net.Listener, reply []byte) {
	t.Helper()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		header := make([]byte, headerLength)
		if _, err := io.ReadFull(conn, header); err != nil {
			return
		}
		bodyLen := binary.BigEndian.Uint32(header[bodyLenOffset:headerLength])
		if _, err := io.ReadFull(conn, make([]byte, bodyLen)); err != nil {
			return
		}
		_, _ = conn.Write(reply)
	}()
}

func TestTCPRoundTrip(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	reply := frameWith([]byte{'N'})
	serveOnce(t, ln, reply)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	got, err := NewTCP().RoundTrip(ctx, ln.Addr().String(), frameWith([]byte("ping")))
	require.NoError(t, err)
	assert.Equal(t, reply, got)
}

func TestTCPRoundTrip_ConnectionRefused(t *testing.T) {
	// Bind then close immediately to get a port nobody listens on.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = NewTCP().RoundTrip(context.Background(), addr, frameWith(nil))
	require.Error(t, err)
	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindTransportFailure, kind)
}

func TestTCPRoundTrip_DeadlineElapses(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	// Accept but never answer.
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		time.Sleep(2 * time.Second)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = NewTCP().RoundTrip(ctx, ln.Addr().String(), frameWith([]byte("ping")))
	require.Error(t, err)
	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindTimeout, kind)
	assert.Less(t, time.Since(start), time.Second)
}

func TestTCPRoundTrip_TruncatedReply(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	// Claim a 100-byte body but send only 3, then close.
	lying := frameWith(make([]byte, 100))
	serveOnce(t, ln, lying[:headerLength+3])

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err = NewTCP().RoundTrip(ctx, ln.Addr().String(), frameWith([]byte("ping")))
	require.Error(t, err)
}
