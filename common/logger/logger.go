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

// Package logger is the package-level logging facade used throughout
// the invoker. It mirrors dubbo-go's common/logger: a swappable
// zap.SugaredLogger underneath a small set of Debugf/Infof/Warnf/Errorf
// functions, so call sites never import zap directly.
package logger

import (
	"sync"

	"go.uber.org/zap"
)

var (
	mu  sync.RWMutex
	log *zap.SugaredLogger
)

func init() {
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = true
	built, err := cfg.Build()
	if err != nil {
		built = zap.NewNop()
	}
	log = built.Sugar()
}

// SetLogger lets a host application inject its own configured logger.
func SetLogger(l *zap.SugaredLogger) {
	mu.Lock()
	defer mu.Unlock()
	log = l
}

func current() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// Debugf logs at debug level.
func Debugf(format string, args ...interface{}) { current().Debugf(format, args...) }

// Infof logs at info level.
func Infof(format string, args ...interface{}) { current().Infof(format, args...) }

// Warnf logs at warn level.
func Warnf(format string, args ...interface{}) { current().Warnf(format, args...) }

// Errorf logs at error level.
func Errorf(format string, args ...interface{}) { current().Errorf(format, args...) }
