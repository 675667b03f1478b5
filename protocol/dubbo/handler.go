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
	"strconv"
	"strings"
	"time"

	"github.com/dubbogo/dubbo-invoke/common/constant"
	errs "github.com/dubbogo/dubbo-invoke/common/errors"
	"github.com/dubbogo/dubbo-invoke/common/logger"
	"github.com/dubbogo/dubbo-invoke/protocol/dubbo/hessian2"
	"github.com/dubbogo/dubbo-invoke/protocol/dubbo/transport"
)

// Handler owns the Dubbo-over-Hessian-2 wire protocol: it validates
// the endpoint, coerces declared types and argument values, frames the
// request and drives the transport. Handlers are stateless and
// long-lived; the client facade caches one per protocol scheme.
type Handler struct {
	transport transport.Transport
}

// NewHandler builds a Handler on the given frame transport.
func NewHandler(t transport.Transport) *Handler {
	return &Handler{transport: t}
}

// InvokeRequest is one remote call as the protocol handler sees it:
// the endpoint is already resolved (directly supplied or picked from a
// registry), the params are raw decoded JSON shapes, not yet coerced.
type InvokeRequest struct {
	Endpoint       string
	Interface      string
	ServiceVersion string
	Method         string

	// Params is the raw argument payload: nil for a zero-arg call, a
	// []interface{} when the caller supplied a JSON array, any other
	// shape for a single argument.
	Params interface{}

	// DeclaredTypes, when non-empty, overrides per-argument type
	// inference and drives the coercion rules.
	DeclaredTypes []string

	DubboVersion string
	Timeout      time.Duration
	Attachments  map[string]string
}

// Invoke performs one remote call end to end: endpoint validation,
// argument coercion, frame assembly, transport round trip and reply
// decoding. The per-call timeout is expressed as a context deadline;
// the handler itself never blocks outside the transport call.
func (h *Handler) Invoke(ctx context.Context, req InvokeRequest) (*Reply, error) {
	endpoint, err := ParseEndpoint(req.Endpoint)
	if err != nil {
		return nil, err
	}

	args, err := coerceParams(req.Params, req.DeclaredTypes)
	if err != nil {
		return nil, err
	}

	frame, invokeID, err := BuildRequestFrame(FrameParams{
		DubboVersion:  req.DubboVersion,
		ServicePath:   req.Interface,
		ServiceVer:    req.ServiceVersion,
		Method:        req.Method,
		DeclaredTypes: req.DeclaredTypes,
		Args:          args,
		Attachments:   req.Attachments,
	})
	if err != nil {
		return nil, err
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	logger.Debugf("dubbo: invoking %s.%s on %s, invoke-id %d, frame %d bytes",
		req.Interface, req.Method, endpoint, invokeID, len(frame))

	replyFrame, err := h.transport.RoundTrip(ctx, endpoint, frame)
	if err != nil {
		return nil, err
	}

	reply, err := DecodeReplyFrame(replyFrame)
	if err != nil {
		return nil, err
	}
	if reply.InvokeID != invokeID {
		return nil, errs.New(errs.KindTransportFailure,
			"reply invoke-id %d does not match request invoke-id %d", reply.InvokeID, invokeID)
	}
	return reply, nil
}

// coerceParams applies the multi-parameter rule: with N >= 2 declared
// types the params must be a sequence of exactly N entries, coerced
// position-wise; with N = 1 the params are one argument regardless of
// shape; with no declared types a sequence is an argument list and
// anything else a single argument, each inferred from its runtime
// shape.
func coerceParams(params interface{}, declared []string) ([]hessian2.Value, error) {
	if params == nil {
		return nil, nil
	}

	switch n := len(declared); {
	case n >= 2:
		seq, ok := params.([]interface{})
		if !ok {
			return nil, errs.New(errs.KindTypeCountMismatch,
				"%d declared types require a sequence of arguments, got %T", n, params)
		}
		if len(seq) != n {
			return nil, errs.New(errs.KindTypeCountMismatch,
				"declared type count %d does not match argument count %d", n, len(seq))
		}
		args := make([]hessian2.Value, n)
		for i, raw := range seq {
			v, err := CoerceArg(raw, declared[i])
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		return args, nil
	case n == 1:
		v, err := CoerceArg(params, declared[0])
		if err != nil {
			return nil, err
		}
		return []hessian2.Value{v}, nil
	default:
		if seq, ok := params.([]interface{}); ok {
			args := make([]hessian2.Value, len(seq))
			for i, raw := range seq {
				v, err := CoerceArg(raw, "")
				if err != nil {
					return nil, err
				}
				args[i] = v
			}
			return args, nil
		}
		v, err := CoerceArg(params, "")
		if err != nil {
			return nil, err
		}
		return []hessian2.Value{v}, nil
	}
}

// ParseEndpoint validates and normalizes an endpoint URI into
// "host:port". The dubbo:// scheme is optional; any other scheme is
// rejected; a path component after host:port is ignored. IPv6 hosts
// are handled by splitting on the last colon.
func ParseEndpoint(endpoint string) (string, error) {
	if strings.TrimSpace(endpoint) == "" {
		return "", errs.New(errs.KindMissingEndpoint, "endpoint must not be empty")
	}

	rest := endpoint
	if idx := strings.Index(rest, "://"); idx >= 0 {
		scheme := rest[:idx]
		if scheme != constant.DubboScheme {
			return "", errs.New(errs.KindUnsupportedProtocol, "unsupported protocol scheme %q in endpoint %s", scheme, endpoint)
		}
		rest = rest[idx+len("://"):]
	}
	if idx := strings.IndexByte(rest, '/'); idx >= 0 {
		rest = rest[:idx]
	}

	colon := strings.LastIndexByte(rest, ':')
	if colon <= 0 || colon == len(rest)-1 {
		return "", errs.New(errs.KindMalformedEndpoint, "endpoint %q is not host:port", endpoint)
	}
	host, portStr := rest[:colon], rest[colon+1:]

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", errs.Wrap(errs.KindMalformedEndpoint, err, "endpoint %q has a non-numeric port", endpoint)
	}
	if port < 1 || port > 65535 {
		return "", errs.New(errs.KindMalformedEndpoint, "endpoint %q port %d out of range [1, 65535]", endpoint, port)
	}

	return host + ":" + portStr, nil
}
