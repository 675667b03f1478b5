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

// Package errors defines the tagged error kinds raised across the
// invoker pipeline: endpoint/registry parsing, hessian2 encoding,
// protocol handling and transport.
package errors

import (
	"fmt"

	perrors "github.com/pkg/errors"
)

// Kind is one of the named error variants a failed call surfaces to the caller.
type Kind string

// nolint
const (
	KindMissingInterface      Kind = "MissingInterface"
	KindMissingMethod         Kind = "MissingMethod"
	KindMissingEndpoint       Kind = "MissingEndpoint"
	KindMalformedEndpoint     Kind = "MalformedEndpoint"
	KindMalformedRegistryURI  Kind = "MalformedRegistryURI"
	KindUnsupportedProtocol   Kind = "UnsupportedProtocol"
	KindUnsupportedRegistry   Kind = "UnsupportedRegistry"
	KindUnresolvableEmptyList Kind = "UnresolvableEmptyList"
	KindUnsupportedType       Kind = "UnsupportedType"
	KindHeterogeneousList     Kind = "HeterogeneousList"
	KindTypeCountMismatch     Kind = "TypeCountMismatch"
	KindBadJSONValues         Kind = "BadJSONValues"
	KindNoProvider            Kind = "NoProvider"
	KindRegistryUnavailable   Kind = "RegistryUnavailable"
	KindTimeout               Kind = "Timeout"
	KindTransportFailure      Kind = "TransportFailure"
	KindRemoteException       Kind = "RemoteException"
)

// InvokeError is the tagged error returned by every component in the
// call path. The wrapped cause is kept in Err and exposed through
// Unwrap, so errors.Is / errors.As (and perrors.As) reach it;
// InvokeError has no Cause method, so perrors.Cause stops at it.
type InvokeError struct {
	Kind Kind
	msg  string
	Err  error
}

func (e *InvokeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.msg)
}

// Unwrap exposes the wrapped cause to errors.Is / errors.As chains.
func (e *InvokeError) Unwrap() error { return e.Err }

// New builds an InvokeError carrying no underlying cause.
func New(kind Kind, format string, args ...interface{}) *InvokeError {
	return &InvokeError{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an InvokeError around an existing error, preserving it as
// the error chain's cause wrapped in perrors.WithStack.
func Wrap(kind Kind, err error, format string, args ...interface{}) *InvokeError {
	if err == nil {
		return New(kind, format, args...)
	}
	return &InvokeError{Kind: kind, msg: fmt.Sprintf(format, args...), Err: perrors.WithStack(err)}
}

// KindOf extracts the Kind from err if it is (or wraps) an *InvokeError.
func KindOf(err error) (Kind, bool) {
	var ie *InvokeError
	if perrors.As(err, &ie) {
		return ie.Kind, true
	}
	return "", false
}
