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

// Package registry defines the provider-discovery contract: one
// adapter per registry technology resolves an interface name to a set
// of weighted endpoints, and a weighted random draw picks one.
// Adapters register themselves by kind (import the subpackage for its
// side effect), so a build can exclude a registry technology by simply
// not importing it.
package registry

import (
	"context"
	"math/rand"
	"regexp"
	"strings"
	"sync"

	"github.com/dubbogo/dubbo-invoke/common/constant"
	errs "github.com/dubbogo/dubbo-invoke/common/errors"
	"github.com/dubbogo/dubbo-invoke/common/logger"
)

// Provider is one endpoint resolved from a registry, with its relative
// load-balancing weight.
type Provider struct {
	URI    string
	Weight float64
}

// Registry resolves an interface name against one registry technology.
// Implementations open transient connections per resolution; nothing is
// cached across calls. The zookeeper adapter closes its session on
// every exit path; the nacos adapter does not close its naming client.
type Registry interface {
	GetProviders(ctx context.Context, address, iface string) ([]Provider, error)
}

var (
	mu        sync.RWMutex
	factories = make(map[string]func() Registry)
)

// Register associates a registry kind ("zookeeper", "nacos") with its
// adapter factory. Called from adapter package init functions.
func Register(kind string, factory func() Registry) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = factory
}

// New builds the adapter for kind, or fails with UnsupportedRegistry
// when no adapter package registered itself under that kind.
func New(kind string) (Registry, error) {
	mu.RLock()
	factory := factories[kind]
	mu.RUnlock()
	if factory == nil {
		return nil, errs.New(errs.KindUnsupportedRegistry,
			"registry kind %q is not available in this build, make sure its package is imported", kind)
	}
	return factory(), nil
}

var registryURIRe = regexp.MustCompile(constant.RegistryURIPattern)

// ParseURI splits a registry address of the form <type>://<address>
// into its kind and address parts.
func ParseURI(registryAddress string) (kind, address string, err error) {
	m := registryURIRe.FindStringSubmatch(registryAddress)
	if m == nil {
		return "", "", errs.New(errs.KindMalformedRegistryURI,
			"registry address %q does not match <type>://<address>", registryAddress)
	}
	return m[1], m[2], nil
}

// GetProvider resolves iface through the registry at registryAddress
// and picks one provider by weighted random draw, returning its
// endpoint URI. This is the full adapter contract of one resolution.
func GetProvider(ctx context.Context, registryAddress, iface string) (string, error) {
	kind, address, err := ParseURI(registryAddress)
	if err != nil {
		return "", err
	}
	reg, err := New(kind)
	if err != nil {
		return "", err
	}
	providers, err := reg.GetProviders(ctx, address, iface)
	if err != nil {
		return "", err
	}
	picked, err := SelectWeighted(providers)
	if err != nil {
		return "", err
	}
	logger.Debugf("registry: selected provider %s (weight %v) for %s", picked.URI, picked.Weight, iface)
	return picked.URI, nil
}

// SelectWeighted picks one provider with probability proportional to
// its weight: draw x in [0, total) and return the first record whose
// cumulative weight exceeds x. With all weights zero the pick is
// uniform. Records whose URI lacks a scheme are invalid and dropped
// before the draw.
func SelectWeighted(providers []Provider) (Provider, error) {
	return selectWeighted(providers, rand.Float64)
}

// selectWeighted takes the random source as a parameter so tests can
// pin the draw.
func selectWeighted(providers []Provider, randFloat func() float64) (Provider, error) {
	valid := providers[:0:0]
	for _, p := range providers {
		if !strings.Contains(p.URI, "://") {
			logger.Warnf("registry: dropping provider record without a scheme: %q", p.URI)
			continue
		}
		valid = append(valid, p)
	}
	if len(valid) == 0 {
		return Provider{}, errs.New(errs.KindNoProvider, "no usable provider record")
	}

	var total float64
	for _, p := range valid {
		total += p.Weight
	}
	if total <= 0 {
		return valid[int(randFloat()*float64(len(valid)))%len(valid)], nil
	}

	hit := randFloat() * total
	var cumulative float64
	for _, p := range valid {
		cumulative += p.Weight
		if hit < cumulative {
			return p, nil
		}
	}
	// Floating-point accumulation can leave hit a hair past the last
	// cumulative bound.
	return valid[len(valid)-1], nil
}
