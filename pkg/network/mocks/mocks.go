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

// Package mocks provides simple, configurable mock implementations of the network layer's
// collaborator types, intended for use in unit tests.
package mocks

import (
	"bytes"
	"errors"
	"sync"
)

// ErrConnectionClosed is returned by MockConnection writes after the connection has been
// closed.
var ErrConnectionClosed = errors.New("mock connection closed")

// MockConnection provides a mock implementation of the network.Connection interface. It
// records written bytes and counts Close calls. All methods are goroutine-safe.
type MockConnection struct {
	// WriteErrV, when non-nil, is returned by every Write call.
	WriteErrV error
	// CloseErrV, when non-nil, is returned by the first Close call.
	CloseErrV error

	mu         sync.Mutex
	written    bytes.Buffer
	closeCount int
}

// Write records the given bytes, or fails with WriteErrV or ErrConnectionClosed.
func (m *MockConnection) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErrV != nil {
		return 0, m.WriteErrV
	}
	if m.closeCount > 0 {
		return 0, ErrConnectionClosed
	}
	return m.written.Write(p)
}

// Close marks the connection closed. It is safe to call more than once; only the first
// call returns CloseErrV.
func (m *MockConnection) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeCount++
	if m.closeCount == 1 {
		return m.CloseErrV
	}
	return nil
}

// Written returns a copy of all bytes written so far.
func (m *MockConnection) Written() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, m.written.Len())
	copy(out, m.written.Bytes())
	return out
}

// CloseCount returns the number of times Close has been called.
func (m *MockConnection) CloseCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeCount
}

// Closed reports whether Close has been called at least once.
func (m *MockConnection) Closed() bool {
	return m.CloseCount() > 0
}
