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
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// LengthHeaderBytes is the size of the fixed length prefix at the head of every request
// stream. The socket layer uses the prefix to size its receive buffer; the channel drains
// it before a request is served or discarded.
const LengthHeaderBytes = 8

// Connection is the subset of a network connection the admission layer touches: writing
// response bytes back and tearing the connection down. The transport layer owns everything
// else about the connection.
type Connection interface {
	io.Writer
	Close() error
}

// Request is a transient value representing one inbound request: a correlation ID, the
// arrival timestamp, the readable byte stream (still carrying its length prefix), and a
// handle to the originating connection. Immutable after creation; only connection-close
// bookkeeping mutates.
type Request struct {
	id        string
	startTime time.Time
	body      io.Reader
	conn      Connection

	// rejected marks a request refused by the queue at offer time. Written by the
	// channel's producer side before the request is published to the overflow list and
	// read by the consumer side after taking it back out; the overflow lock orders the
	// two.
	rejected bool

	closeOnce sync.Once
	closed    atomic.Bool
}

// NewRequest creates a new Request. startTime is the arrival timestamp used as the basis
// for all latency samples and timeout decisions.
func NewRequest(id string, startTime time.Time, body io.Reader, conn Connection) *Request {
	return &Request{
		id:        id,
		startTime: startTime,
		body:      body,
		conn:      conn,
	}
}

// ID returns the request's correlation identifier.
func (r *Request) ID() string { return r.id }

// StartTime returns the request's arrival timestamp.
func (r *Request) StartTime() time.Time { return r.startTime }

// Reader returns the request's byte stream. The first LengthHeaderBytes bytes are the
// length prefix; the channel consumes them before handing the request on.
func (r *Request) Reader() io.Reader { return r.body }

// closeConnection tears the originating connection down exactly once. Subsequent calls
// are no-ops and return nil.
func (r *Request) closeConnection() (err error) {
	r.closeOnce.Do(func() {
		r.closed.Store(true)
		if r.conn != nil {
			err = r.conn.Close()
		}
	})
	return err
}

// connectionClosed reports whether the originating connection has been closed through
// this request. A connection closed out-of-band by the peer is not observable here; writes
// to it simply fail.
func (r *Request) connectionClosed() bool {
	return r.closed.Load()
}
