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

package client

import (
	"io/ioutil"
	"regexp"

	"github.com/creasty/defaults"
	perrors "github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"

	"github.com/dubbogo/dubbo-invoke/common/constant"
)

// Config carries the caller-level defaults injected into every call:
// the dubbo protocol version written into each frame and the per-call
// timeout. LoadConfigFile validates what it loads, and the facade
// validates the effective version and timeout of every call.
type Config struct {
	DubboVersion string `yaml:"dubbo_version" default:"2.4.10"`
	TimeoutMs    int    `yaml:"timeout_ms" default:"60000"`
}

// DefaultConfig returns a Config with all defaults applied.
func DefaultConfig() Config {
	var c Config
	// defaults.Set only fails on a non-pointer or unsupported tag value;
	// both are impossible here.
	_ = defaults.Set(&c)
	return c
}

// LoadConfigFile reads a YAML config file and fills unset fields with
// their defaults.
func LoadConfigFile(path string) (Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return Config{}, perrors.Wrapf(err, "reading config file %s", path)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, perrors.Wrapf(err, "parsing config file %s", path)
	}
	if err := defaults.Set(&c); err != nil {
		return Config{}, perrors.Wrapf(err, "applying config defaults")
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

var dubboVersionRe = regexp.MustCompile(constant.DubboVersionPattern)

// Validate checks the dubbo version format and the timeout range.
func (c Config) Validate() error {
	if err := validateDubboVersion(c.DubboVersion); err != nil {
		return err
	}
	return validateTimeout(c.TimeoutMs)
}

func validateDubboVersion(version string) error {
	if !dubboVersionRe.MatchString(version) {
		return perrors.Errorf("invalid dubbo version format %q, expected e.g. 2.4.10 or 2.6.x", version)
	}
	return nil
}

func validateTimeout(timeoutMs int) error {
	if timeoutMs <= 0 {
		return perrors.Errorf("timeout must be a positive number of milliseconds, got %d", timeoutMs)
	}
	if timeoutMs > constant.MaxTimeoutMs {
		return perrors.Errorf("timeout %dms exceeds the %dms ceiling", timeoutMs, constant.MaxTimeoutMs)
	}
	return nil
}
