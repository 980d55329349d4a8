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

import "io"

// BytesResponse is a response payload backed by an in-memory byte slice. It is owned by
// the producing handler until handed to SendResponse, then by the channel until flushed.
type BytesResponse struct {
	payload []byte
}

// NewBytesResponse wraps the given bytes as a response payload. The slice must not be
// mutated after the call.
func NewBytesResponse(payload []byte) *BytesResponse {
	return &BytesResponse{payload: payload}
}

// WriteTo writes the payload to w in a single call.
func (r *BytesResponse) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(r.payload)
	return int64(n), err
}

// Size returns the payload size in bytes.
func (r *BytesResponse) Size() int64 {
	return int64(len(r.payload))
}
