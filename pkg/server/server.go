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

// Package server contains the TCP front door and the request handler pool sitting on
// either side of the request/response channel: the socket server produces requests from
// inbound connections, the handler pool consumes them and writes responses back.
package server

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"k8s.io/utils/clock"

	"github.com/Arun-LinkedIn/ambry/pkg/config"
	"github.com/Arun-LinkedIn/ambry/pkg/network"
	logutil "github.com/Arun-LinkedIn/ambry/pkg/util/logging"
)

// SocketServer accepts TCP connections and turns length-prefixed request frames into
// network requests submitted to the channel. One goroutine per connection reads frames
// sequentially; responses flow back through the channel's asynchronous flush path.
type SocketServer struct {
	addr           string
	maxRequestSize int64
	channel        *network.RequestResponseChannel
	logger         logr.Logger
	clock          clock.PassiveClock
}

// NewSocketServer creates a socket server listening on the configured port.
func NewSocketServer(
	cfg *config.NetworkConfig,
	channel *network.RequestResponseChannel,
	logger logr.Logger,
	clk clock.PassiveClock,
) *SocketServer {
	return &SocketServer{
		addr:           fmt.Sprintf(":%d", cfg.Port),
		maxRequestSize: cfg.MaxRequestSizeBytes,
		channel:        channel,
		logger:         logger.WithName("socketServer"),
		clock:          clk,
	}
}

// Serve listens and accepts connections until ctx is cancelled, then closes the listener
// and returns nil. Any other listen/accept failure is returned as an error.
func (s *SocketServer) Serve(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("socket server failed to listen on %s: %w", s.addr, err)
	}
	s.logger.V(logutil.DEFAULT).Info("Socket server listening", "addr", s.addr)

	// Close the listener on context cancellation so Accept unblocks; make sure the
	// watcher goroutine does not leak.
	doneCh := make(chan struct{})
	defer close(doneCh)
	go func() {
		select {
		case <-ctx.Done():
			s.logger.V(logutil.DEFAULT).Info("Socket server shutting down")
			_ = lis.Close()
		case <-doneCh:
			_ = lis.Close()
		}
	}()

	for {
		conn, err := lis.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("socket server accept failed: %w", err)
		}
		go s.handleConnection(ctx, conn)
	}
}

// handleConnection reads request frames off one connection until the peer disconnects,
// a frame is malformed, or the server shuts down.
func (s *SocketServer) handleConnection(ctx context.Context, conn net.Conn) {
	logger := s.logger.WithValues("remoteAddr", conn.RemoteAddr().String())
	logger.V(logutil.VERBOSE).Info("Accepted connection")

	// Unblock any in-flight read on shutdown.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	lc := &lockedConnection{conn: conn}
	for {
		frame, err := readFrame(conn, s.maxRequestSize)
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				logger.V(logutil.DEBUG).Info("Closing connection after read failure", "err", err)
			}
			_ = conn.Close()
			return
		}
		req := network.NewRequest(uuid.NewString(), s.clock.Now(), bytes.NewReader(frame), lc)
		s.channel.SendRequest(req)
	}
}

// readFrame reads one length-prefixed request frame. The 8-byte big-endian prefix counts
// the whole frame including itself; the returned slice retains the prefix, since the
// channel drains it before a request is served or discarded.
func readFrame(r io.Reader, maxSize int64) ([]byte, error) {
	var header [network.LengthHeaderBytes]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint64(header[:])
	if size < network.LengthHeaderBytes {
		return nil, fmt.Errorf("invalid frame size %d, below header size", size)
	}
	// Compare in uint64 space: a declared size at or above 2^63 would wrap negative as an
	// int64 and must be rejected before any allocation.
	if size > uint64(maxSize) {
		return nil, fmt.Errorf("frame size %d exceeds limit %d", size, maxSize)
	}
	frame := make([]byte, size)
	copy(frame, header[:])
	if _, err := io.ReadFull(r, frame[network.LengthHeaderBytes:]); err != nil {
		return nil, err
	}
	return frame, nil
}

// lockedConnection serializes writes onto one net.Conn. Responses for requests that
// arrived on the same connection flush from independent goroutines; without this their
// bytes could interleave on the wire.
type lockedConnection struct {
	mu   sync.Mutex
	conn net.Conn
}

var _ network.Connection = &lockedConnection{}

func (lc *lockedConnection) Write(p []byte) (int, error) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.conn.Write(p)
}

func (lc *lockedConnection) Close() error {
	return lc.conn.Close()
}
