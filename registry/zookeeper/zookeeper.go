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

// Package zookeeper is the ZooKeeper registry adapter. Importing it
// registers the "zookeeper" kind with the registry package. The zk
// client uses blocking I/O; a host that forbids that can exclude this
// adapter by not importing the package - the registry contract is
// unchanged.
package zookeeper

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dubbogo/go-zookeeper/zk"

	"github.com/dubbogo/dubbo-invoke/common/constant"
	errs "github.com/dubbogo/dubbo-invoke/common/errors"
	"github.com/dubbogo/dubbo-invoke/common/logger"
	"github.com/dubbogo/dubbo-invoke/registry"
)

func init() {
	registry.Register("zookeeper", func() registry.Registry { return &Registry{} })
}

const (
	providersPathTmpl = "/dubbo/%s/providers"
	sessionTimeout    = 10 * time.Second
	defaultWeight     = 100
)

// Registry resolves providers from the ZooKeeper tree Dubbo providers
// publish under /dubbo/<interface>/providers. Each resolution opens
// its own session and closes it on every exit path.
type Registry struct{}

// GetProviders lists the children of the interface's providers node,
// URL-decodes each, keeps only dubbo:// records and reads the weight
// from the provider URL's query string.
func (r *Registry) GetProviders(ctx context.Context, address, iface string) ([]registry.Provider, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(errs.KindRegistryUnavailable, err, "resolution canceled before connecting to zookeeper at %s", address)
	}

	conn, _, err := zk.Connect(strings.Split(address, ","), sessionTimeout)
	if err != nil {
		return nil, errs.Wrap(errs.KindRegistryUnavailable, err, "connecting to zookeeper at %s", address)
	}
	defer conn.Close()

	providersPath := fmt.Sprintf(providersPathTmpl, iface)
	children, _, err := conn.Children(providersPath)
	if err != nil {
		if err == zk.ErrNoNode {
			return nil, errs.New(errs.KindNoProvider, "zookeeper has no providers node for %s", iface)
		}
		return nil, errs.Wrap(errs.KindRegistryUnavailable, err, "listing %s at %s", providersPath, address)
	}
	logger.Debugf("zookeeper: %s has %d child node(s)", providersPath, len(children))

	providers := make([]registry.Provider, 0, len(children))
	for _, child := range children {
		provider, ok := parseProviderNode(child)
		if !ok {
			continue
		}
		providers = append(providers, provider)
	}

	if len(providers) == 0 {
		return nil, errs.New(errs.KindNoProvider, "zookeeper has no usable dubbo providers for %s", iface)
	}
	return providers, nil
}

// parseProviderNode turns one URL-encoded child node name into a
// provider record. Nodes that are not dubbo:// URLs, or whose URL does
// not parse, are skipped.
func parseProviderNode(child string) (registry.Provider, bool) {
	decoded, err := url.QueryUnescape(child)
	if err != nil {
		logger.Warnf("zookeeper: skipping undecodable provider node %q: %v", child, err)
		return registry.Provider{}, false
	}
	if !strings.Contains(decoded, constant.DubboScheme+"://") {
		return registry.Provider{}, false
	}

	u, err := url.Parse(decoded)
	if err != nil || u.Host == "" {
		logger.Warnf("zookeeper: skipping unparsable provider URL %q: %v", decoded, err)
		return registry.Provider{}, false
	}

	weight := float64(defaultWeight)
	if w := u.Query().Get("weight"); w != "" {
		parsed, err := strconv.ParseFloat(w, 64)
		if err != nil {
			logger.Warnf("zookeeper: provider %s has a non-numeric weight %q, using default %d", u.Host, w, defaultWeight)
		} else {
			weight = parsed
		}
	}

	return registry.Provider{
		URI:    constant.DubboScheme + "://" + u.Host,
		Weight: weight,
	}, true
}
