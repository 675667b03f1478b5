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

// Package transport is the frame-transport contract: given an endpoint
// and a fully encoded request frame, deliver the bytes and return the
// reply frame within the caller's deadline. One request, one frame,
// one reply; correlation is the invoke-id already stamped into the
// frame header. The protocol handler never blocks outside a RoundTrip
// call.
package transport

import (
	"context"
	"encoding/binary"
	"io"
	"net"

	errs "github.com/dubbogo/dubbo-invoke/common/errors"
	"github.com/dubbogo/dubbo-invoke/common/logger"
)

// Transport sends one encoded request frame to endpoint (host:port)
// and returns the complete reply frame (header + body). The deadline
// is taken from ctx; on elapse the implementation must return an
// error whose kind is Timeout.
type Transport interface {
	RoundTrip(ctx context.Context, endpoint string, frame []byte) ([]byte, error)
}

// Reply frame header geometry. The transport only needs the total
// frame length; the body-length field lives in the last 4 bytes of
// the 16-byte header. Everything else in the header is the protocol
// handler's business.
const (
	headerLength  = 16
	bodyLenOffset = 12
)

// TCP is the production Transport: one short-lived TCP connection per
// call, closed on every exit path. No pooling - provider records are
// ephemeral per resolution, so a pooled connection would mostly go
// stale between calls anyway.
type TCP struct {
	// Dialer is consulted for every connection; the zero value works.
	Dialer net.Dialer
}

// NewTCP returns a TCP transport with default dialing behavior.
func NewTCP() *TCP {
	return &TCP{}
}

// RoundTrip dials endpoint, writes the frame, and reads back exactly
// one reply frame. The context deadline bounds the dial, the write and
// the read together.
func (t *TCP) RoundTrip(ctx context.Context, endpoint string, frame []byte) ([]byte, error) {
	conn, err := t.Dialer.DialContext(ctx, "tcp", endpoint)
	if err != nil {
		return nil, classify(ctx, err, "dialing %s", endpoint)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			logger.Warnf("transport: closing connection to %s: %v", endpoint, cerr)
		}
	}()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return nil, errs.Wrap(errs.KindTransportFailure, err, "setting deadline on connection to %s", endpoint)
		}
	}

	if _, err := conn.Write(frame); err != nil {
		return nil, classify(ctx, err, "writing request frame to %s", endpoint)
	}

	header := make([]byte, headerLength)
	if _, err := io.ReadFull(conn, header); err != nil {
		return nil, classify(ctx, err, "reading reply header from %s", endpoint)
	}

	bodyLen := binary.BigEndian.Uint32(header[bodyLenOffset:headerLength])
	reply := make([]byte, headerLength+int(bodyLen))
	copy(reply, header)
	if _, err := io.ReadFull(conn, reply[headerLength:]); err != nil {
		return nil, classify(ctx, err, "reading reply body from %s", endpoint)
	}

	return reply, nil
}

// classify maps an I/O failure onto the Timeout / TransportFailure
// error kinds. A context deadline shows up either as ctx.Err() or as a
// net timeout on the connection deadline; both mean the same thing to
// the caller.
func classify(ctx context.Context, err error, format string, args ...interface{}) error {
	if ctx.Err() == context.DeadlineExceeded {
		return errs.Wrap(errs.KindTimeout, err, format, args...)
	}
	if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
		return errs.Wrap(errs.KindTimeout, err, format, args...)
	}
	return errs.Wrap(errs.KindTransportFailure, err, format, args...)
}
