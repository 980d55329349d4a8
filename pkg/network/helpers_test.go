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

package network

import (
	"bytes"
	"encoding/binary"
	"time"

	"github.com/Arun-LinkedIn/ambry/pkg/network/mocks"
)

// newTestRequest builds a request whose stream carries a well-formed length prefix
// followed by the given payload, backed by a recording mock connection.
func newTestRequest(id string, payload ...byte) (*Request, *mocks.MockConnection) {
	conn := &mocks.MockConnection{}
	frame := make([]byte, LengthHeaderBytes+len(payload))
	binary.BigEndian.PutUint64(frame, uint64(len(frame)))
	copy(frame[LengthHeaderBytes:], payload)
	return NewRequest(id, time.Now(), bytes.NewReader(frame), conn), conn
}

// newMalformedRequest builds a request whose stream is too short to contain a length
// prefix, so the channel's header drain must fail.
func newMalformedRequest(id string) (*Request, *mocks.MockConnection) {
	conn := &mocks.MockConnection{}
	return NewRequest(id, time.Now(), bytes.NewReader([]byte{0x01, 0x02}), conn), conn
}

// ids extracts the correlation IDs from a slice of requests, preserving order.
func ids(reqs []*Request) []string {
	out := make([]string, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, r.ID())
	}
	return out
}
