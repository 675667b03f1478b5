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

// Package nacos is the Nacos registry adapter. Importing it registers
// the "nacos" kind with the registry package.
package nacos

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/nacos-group/nacos-sdk-go/clients"
	nacosconstant "github.com/nacos-group/nacos-sdk-go/common/constant"
	"github.com/nacos-group/nacos-sdk-go/vo"

	"github.com/dubbogo/dubbo-invoke/common/constant"
	errs "github.com/dubbogo/dubbo-invoke/common/errors"
	"github.com/dubbogo/dubbo-invoke/common/logger"
	"github.com/dubbogo/dubbo-invoke/registry"
)

func init() {
	registry.Register("nacos", func() registry.Registry { return &Registry{} })
}

const (
	defaultPort     = 8848
	queryTimeoutMs  = 5000
	serviceNameTmpl = "providers:%s::"
	defaultWeight   = 1.0
)

// Registry resolves providers through a Nacos naming service. A fresh
// naming client is built per resolution and abandoned afterwards -
// provider records are ephemeral per call, nothing is cached.
type Registry struct{}

// GetProviders queries Nacos for the Dubbo provider service
// "providers:<interface>::" and maps each instance that has an IP and
// a port to a weighted dubbo:// provider record. Instance health is
// not checked.
func (r *Registry) GetProviders(ctx context.Context, address, iface string) ([]registry.Provider, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(errs.KindRegistryUnavailable, err, "resolution canceled before querying nacos at %s", address)
	}

	host, port, err := splitAddress(address)
	if err != nil {
		return nil, err
	}

	client, err := clients.CreateNamingClient(map[string]interface{}{
		nacosconstant.KEY_SERVER_CONFIGS: []nacosconstant.ServerConfig{
			{IpAddr: host, Port: port},
		},
		nacosconstant.KEY_CLIENT_CONFIG: nacosconstant.ClientConfig{
			TimeoutMs:           queryTimeoutMs,
			NotLoadCacheAtStart: true,
		},
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindRegistryUnavailable, err, "connecting to nacos at %s", address)
	}

	serviceName := fmt.Sprintf(serviceNameTmpl, iface)
	service, err := client.GetService(vo.GetServiceParam{ServiceName: serviceName})
	if err != nil {
		return nil, errs.Wrap(errs.KindRegistryUnavailable, err, "querying nacos service %s at %s", serviceName, address)
	}

	providers := make([]registry.Provider, 0, len(service.Hosts))
	for _, instance := range service.Hosts {
		if instance.Ip == "" || instance.Port == 0 {
			continue
		}
		weight := instance.Weight
		if weight <= 0 {
			weight = defaultWeight
		}
		providers = append(providers, registry.Provider{
			URI:    fmt.Sprintf("%s://%s:%d", constant.DubboScheme, instance.Ip, instance.Port),
			Weight: weight,
		})
	}
	logger.Debugf("nacos: service %s resolved to %d provider(s)", serviceName, len(providers))

	if len(providers) == 0 {
		return nil, errs.New(errs.KindNoProvider, "nacos service %s at %s has no usable instances", serviceName, address)
	}
	return providers, nil
}

// splitAddress splits "host[:port]" into its parts, defaulting the
// standard Nacos port when none is given.
func splitAddress(address string) (string, uint64, error) {
	if strings.TrimSpace(address) == "" {
		return "", 0, errs.New(errs.KindMalformedRegistryURI, "nacos address must not be empty")
	}
	colon := strings.LastIndexByte(address, ':')
	if colon < 0 {
		return address, defaultPort, nil
	}
	port, err := strconv.ParseUint(address[colon+1:], 10, 16)
	if err != nil || port == 0 {
		return "", 0, errs.New(errs.KindMalformedRegistryURI, "nacos address %q has an invalid port", address)
	}
	return address[:colon], port, nil
}
