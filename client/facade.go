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

// Package client is the host-facing facade: it accepts a call
// described by strings (interface, method, comma-separated declared
// types, JSON argument values, a direct endpoint or a registry
// address), resolves a provider when needed, and dispatches to the
// protocol handler cached for the endpoint's scheme.
package client

import (
	"context"
	"strings"
	"sync"
	"time"

	uuid "github.com/satori/go.uuid"

	"github.com/dubbogo/dubbo-invoke/common/constant"
	errs "github.com/dubbogo/dubbo-invoke/common/errors"
	"github.com/dubbogo/dubbo-invoke/common/logger"
	"github.com/dubbogo/dubbo-invoke/common/types"
	"github.com/dubbogo/dubbo-invoke/protocol/dubbo"
	"github.com/dubbogo/dubbo-invoke/protocol/dubbo/hessian2"
	"github.com/dubbogo/dubbo-invoke/protocol/dubbo/transport"
	"github.com/dubbogo/dubbo-invoke/registry"

	// Registry adapters register themselves by kind on import. A build
	// that must not carry the blocking zookeeper client can fork this
	// import list; the registry contract is unchanged.
	_ "github.com/dubbogo/dubbo-invoke/registry/nacos"
	_ "github.com/dubbogo/dubbo-invoke/registry/zookeeper"
)

// CallRequest is one remote call as the host supplies it. Exactly one
// of RegistryAddress and ServiceURI is expected; when both are set,
// ServiceURI wins and a warning is logged.
type CallRequest struct {
	Interface       string
	Method          string
	RegistryAddress string // <type>://<address>
	ServiceURI      string // [dubbo://]host:port

	// ParameterTypes is the comma-separated declared type list; a comma
	// inside <...> generics is not a separator. Empty means inference.
	ParameterTypes string
	// ParameterValues is the JSON argument payload: an array for a
	// multi-argument call, any JSON value for a single argument, empty
	// for a zero-argument call.
	ParameterValues string

	ServiceVersion string
	DubboVersion   string // overrides the configured default when set
	TimeoutMs      int    // overrides the configured default when non-zero; a negative value is rejected
	Attachments    map[string]string

	// CorrelationID threads a caller-supplied id through the logs; one
	// is generated when empty. Never transmitted on the wire.
	CorrelationID string
}

// Result is the host-facing outcome record: on success Result holds
// the decoded reply as plain Go data, on failure Message names the
// error kind and describes it.
type Result struct {
	Success bool        `json:"success"`
	Result  interface{} `json:"result"`
	Message string      `json:"message"`
}

// Client dispatches calls to protocol handlers cached by endpoint
// scheme. It is safe for concurrent use; the handler cache is the only
// shared mutable state and a lost racy insert would be harmless.
type Client struct {
	cfg       Config
	transport transport.Transport

	mu       sync.RWMutex
	handlers map[string]*dubbo.Handler
}

// Option customizes a Client at construction.
type Option func(*Client)

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(c *Client) { c.cfg = cfg }
}

// WithTransport replaces the TCP frame transport - tests inject an
// in-memory fake here.
func WithTransport(t transport.Transport) Option {
	return func(c *Client) { c.transport = t }
}

// New builds a Client with the given options.
func New(opts ...Option) *Client {
	c := &Client{
		cfg:       DefaultConfig(),
		transport: transport.NewTCP(),
		handlers:  make(map[string]*dubbo.Handler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Invoke performs one remote call and reports its outcome as a Result
// record. Errors do not escape as Go errors: every failure, from a
// malformed endpoint to a remote exception, becomes a failed Result
// whose message names the error kind, and nothing is retried.
func (c *Client) Invoke(ctx context.Context, call CallRequest) Result {
	correlationID := call.CorrelationID
	if correlationID == "" {
		if id, err := uuid.NewV4(); err == nil {
			correlationID = id.String()
		}
	}

	value, err := c.invoke(ctx, call, correlationID)
	if err != nil {
		logger.Errorf("call %s: %s.%s failed: %v", correlationID, call.Interface, call.Method, err)
		return Result{Success: false, Message: err.Error()}
	}
	logger.Infof("call %s: %s.%s succeeded", correlationID, call.Interface, call.Method)
	return Result{Success: true, Result: value, Message: "invoke successfully"}
}

func (c *Client) invoke(ctx context.Context, call CallRequest, correlationID string) (interface{}, error) {
	if strings.TrimSpace(call.Interface) == "" {
		return nil, errs.New(errs.KindMissingInterface, "interface name is required")
	}
	if strings.TrimSpace(call.Method) == "" {
		return nil, errs.New(errs.KindMissingMethod, "method name is required")
	}
	if call.RegistryAddress == "" && call.ServiceURI == "" {
		return nil, errs.New(errs.KindMissingEndpoint, "either a registry address or a service URI is required")
	}

	dubboVersion := call.DubboVersion
	if dubboVersion == "" {
		dubboVersion = c.cfg.DubboVersion
	}
	if err := validateDubboVersion(dubboVersion); err != nil {
		return nil, err
	}
	timeoutMs := call.TimeoutMs
	if timeoutMs == 0 {
		timeoutMs = c.cfg.TimeoutMs
	}
	if err := validateTimeout(timeoutMs); err != nil {
		return nil, err
	}

	endpoint := call.ServiceURI
	if endpoint != "" && call.RegistryAddress != "" {
		logger.Warnf("call %s: both registry address and service URI supplied, using service URI %s", correlationID, endpoint)
	}
	if endpoint == "" {
		resolved, err := registry.GetProvider(ctx, call.RegistryAddress, call.Interface)
		if err != nil {
			return nil, err
		}
		logger.Debugf("call %s: registry resolved %s to %s", correlationID, call.Interface, resolved)
		endpoint = resolved
	}

	declaredTypes := types.SplitParameterTypes(call.ParameterTypes)

	params, err := parseParameterValues(call.ParameterValues)
	if err != nil {
		return nil, err
	}

	handler, err := c.handlerFor(endpoint)
	if err != nil {
		return nil, err
	}

	reply, err := handler.Invoke(ctx, dubbo.InvokeRequest{
		Endpoint:       endpoint,
		Interface:      call.Interface,
		ServiceVersion: call.ServiceVersion,
		Method:         call.Method,
		Params:         params,
		DeclaredTypes:  declaredTypes,
		DubboVersion:   dubboVersion,
		Timeout:        time.Duration(timeoutMs) * time.Millisecond,
		Attachments:    call.Attachments,
	})
	if err != nil {
		return nil, err
	}
	return hessian2.ToGo(reply.Value), nil
}

// parseParameterValues decodes the JSON argument payload with
// key-order-preserving object decoding, since an object argument's
// field order becomes wire order once coerced into a named object.
func parseParameterValues(raw string) (interface{}, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parsed, err := types.DecodeOrderedJSON([]byte(raw))
	if err != nil {
		return nil, errs.Wrap(errs.KindBadJSONValues, err, "parameter values are not valid JSON")
	}
	return parsed, nil
}

// handlerFor returns the cached protocol handler for the endpoint's
// scheme, building one on first use. Only dubbo:// (or a bare
// host:port, which implies it) is wired in this build.
func (c *Client) handlerFor(endpoint string) (*dubbo.Handler, error) {
	scheme := constant.DubboScheme
	if idx := strings.Index(endpoint, "://"); idx >= 0 {
		scheme = endpoint[:idx]
	}
	if scheme != constant.DubboScheme {
		return nil, errs.New(errs.KindUnsupportedProtocol, "no protocol handler registered for scheme %q", scheme)
	}

	c.mu.RLock()
	h := c.handlers[scheme]
	c.mu.RUnlock()
	if h != nil {
		return h, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if h = c.handlers[scheme]; h == nil {
		h = dubbo.NewHandler(c.transport)
		c.handlers[scheme] = h
	}
	return h, nil
}
