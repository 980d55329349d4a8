/*
Copyright 2026 The Ambry Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package logging

import (
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	uberzap "go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log verbosity levels, from the most to the least important.
const (
	// DEFAULT is the default log level.
	DEFAULT = 1
	// VERBOSE is for logs that are informative but not needed in the steady state.
	VERBOSE = 2
	// DEBUG is for debugging logs.
	DEBUG = 3
	// TRACE is for extremely chatty per-request logs.
	TRACE = 4
)

// NewLogger creates a production zap-backed logger at the given verbosity.
// The verbosity follows the logr convention: higher values enable chattier logs.
func NewLogger(verbosity int) logr.Logger {
	cfg := uberzap.NewProductionConfig()
	cfg.Level = uberzap.NewAtomicLevelAt(zapcore.Level(-verbosity))
	zl, err := cfg.Build(uberzap.AddCaller())
	if err != nil {
		// The production config cannot fail to build; keep the signature simple.
		panic(err)
	}
	return zapr.NewLogger(zl)
}

// NewTestLogger creates a new zap logger using the dev mode.
func NewTestLogger() logr.Logger {
	cfg := uberzap.NewDevelopmentConfig()
	cfg.Level = uberzap.NewAtomicLevelAt(zapcore.Level(-TRACE))
	zl, err := cfg.Build(uberzap.AddCaller())
	if err != nil {
		panic(err)
	}
	return zapr.NewLogger(zl)
}
