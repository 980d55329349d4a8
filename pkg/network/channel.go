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
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/go-logr/logr"
	"k8s.io/utils/clock"

	"github.com/Arun-LinkedIn/ambry/pkg/config"
	"github.com/Arun-LinkedIn/ambry/pkg/metrics"
	logutil "github.com/Arun-LinkedIn/ambry/pkg/util/logging"
)

// RequestResponseChannel bridges the I/O goroutines that accept requests (producers) and
// the request handler goroutines that serve them (consumers). It owns the request queue,
// the overflow list for requests rejected at offer time, response dispatch back onto the
// originating connections, and connection teardown.
type RequestResponseChannel struct {
	logger logr.Logger
	clock  clock.PassiveClock
	queue  RequestQueue

	// overflowMu guards overflow: requests refused by the queue, held until they can be
	// merged into the drop set of the next ReceiveRequest call.
	overflowMu sync.Mutex
	overflow   []*Request

	// flushWG tracks in-flight asynchronous response flushes.
	flushWG sync.WaitGroup
}

// NewRequestResponseChannel constructs the channel and its request queue from
// configuration. An unrecognized queue type is an error; the caller must treat it as
// fatal rather than fall back to a default strategy.
func NewRequestResponseChannel(
	cfg *config.NetworkConfig,
	logger logr.Logger,
	clk clock.PassiveClock,
) (*RequestResponseChannel, error) {
	var queue RequestQueue
	switch cfg.RequestQueueType {
	case config.QueueTypeAdaptiveLifoCoDel:
		queue = newAdaptiveQueue(
			cfg.QueuedMaxRequests,
			cfg.AdaptiveLifoQueueThreshold,
			cfg.AdaptiveLifoQueueCodelTargetDelay(),
			cfg.RequestQueueTimeout(),
			clk,
		)
	case config.QueueTypeBasicFifo:
		queue = newFifoQueue(cfg.QueuedMaxRequests, cfg.RequestQueueTimeout(), clk)
	default:
		return nil, fmt.Errorf("queue type not supported by channel: %q", cfg.RequestQueueType)
	}
	return &RequestResponseChannel{
		logger: logger.WithName("requestResponseChannel"),
		clock:  clk,
		queue:  queue,
	}, nil
}

// SendRequest offers a request to the queue. On rejection the request joins the overflow
// list and will surface in the drop set of a subsequent ReceiveRequest call; rejection
// never blocks and never fails. An enqueue timing sample is recorded regardless of
// acceptance.
func (c *RequestResponseChannel) SendRequest(req *Request) {
	if !c.queue.Offer(req) {
		c.logger.V(logutil.DEBUG).Info("Request queue is full, dropping incoming request", "reqID", req.ID())
		c.overflowMu.Lock()
		req.rejected = true
		c.overflow = append(c.overflow, req)
		c.overflowMu.Unlock()
	}
	metrics.RecordRequestEnqueueTime(c.clock.Now().Sub(req.StartTime()))
	metrics.RecordRequestQueueSize(c.queue.Len())
}

// ReceiveRequest blocks until it can return a request to serve, a non-empty drop set, or
// both. Requests whose length header cannot be drained have their connections closed and
// are silently excluded; the loop repeats until the result is non-empty. It returns an
// error only on context cancellation or channel shutdown.
func (c *RequestResponseChannel) ReceiveRequest(ctx context.Context) (Bundle, error) {
	for {
		bundle, err := c.queue.Take(ctx)
		if err != nil {
			return Bundle{}, err
		}
		toServe := bundle.ToServe
		toDrop := append(bundle.ToDrop, c.drainOverflow()...)

		if toServe != nil {
			metrics.RecordRequestQueueingTime(c.clock.Now().Sub(toServe.StartTime()))
			if !c.consumeLengthHeader(toServe) {
				toServe = nil
			}
		}

		kept := toDrop[:0]
		for _, req := range toDrop {
			metrics.RecordRequestQueueingTime(c.clock.Now().Sub(req.StartTime()))
			if !c.consumeLengthHeader(req) {
				// Already torn down and counted as a connection error.
				continue
			}
			kept = append(kept, req)
			if req.rejected {
				metrics.RecordRequestDropped(metrics.ReasonRejected)
			} else {
				metrics.RecordRequestDropped(metrics.ReasonQueued)
			}
		}

		if toServe != nil || len(kept) > 0 {
			metrics.RecordRequestQueueSize(c.queue.Len())
			return Bundle{ToServe: toServe, ToDrop: kept}, nil
		}
	}
}

// SendResponse writes the response asynchronously to the connection the original request
// arrived on and records a flush-latency sample on completion. If the connection has
// already been closed through this channel the write is skipped; there is no retry at
// this layer. A total-processing-time sample is recorded for the original request.
func (c *RequestResponseChannel) SendResponse(payload io.WriterTo, originalRequest *Request) {
	metrics.RecordRequestProcessingTime(c.clock.Now().Sub(originalRequest.StartTime()))
	sendStart := c.clock.Now()
	c.flushWG.Add(1)
	go func() {
		defer c.flushWG.Done()
		if originalRequest.connectionClosed() {
			c.logger.V(logutil.DEBUG).Info("Connection already closed, skipping response",
				"reqID", originalRequest.ID())
			return
		}
		if _, err := payload.WriteTo(originalRequest.conn); err != nil {
			c.logger.Error(err, "Failed to flush response, closing the connection",
				"reqID", originalRequest.ID())
			c.CloseConnection(originalRequest)
			return
		}
		metrics.RecordResponseFlushTime(c.clock.Now().Sub(sendStart))
	}()
}

// CloseConnection idempotently tears down the request's originating connection without
// sending any response.
func (c *RequestResponseChannel) CloseConnection(req *Request) {
	c.logger.V(logutil.TRACE).Info("Closing connection", "reqID", req.ID())
	if err := req.closeConnection(); err != nil {
		c.logger.V(logutil.DEBUG).Info("Error closing connection", "reqID", req.ID(), "err", err)
	}
}

// Shutdown closes the request queue, waking all blocked receivers, and waits for
// in-flight response flushes. Requests still resident in the queue are abandoned without
// being served or drained; callers that need graceful completion must stop submitting
// before shutting down.
func (c *RequestResponseChannel) Shutdown() {
	c.queue.Close()
	c.flushWG.Wait()
}

// QueueLen returns the request queue's current resident count, best-effort.
func (c *RequestResponseChannel) QueueLen() int {
	return c.queue.Len()
}

// drainOverflow atomically takes the pending overflow requests.
func (c *RequestResponseChannel) drainOverflow() []*Request {
	c.overflowMu.Lock()
	defer c.overflowMu.Unlock()
	reqs := c.overflow
	c.overflow = nil
	return reqs
}

// consumeLengthHeader drains the fixed-size length prefix from the request stream. The
// socket layer sized its receive buffer from this value; here it only needs to be
// consumed so handlers see the payload proper. A drain failure is a connection-level
// fault: the connection is closed and the request is discarded.
func (c *RequestResponseChannel) consumeLengthHeader(req *Request) bool {
	var header [LengthHeaderBytes]byte
	if _, err := io.ReadFull(req.Reader(), header[:]); err != nil {
		c.logger.Error(err, "Encountered an error while draining the length header, closing the connection",
			"reqID", req.ID())
		c.CloseConnection(req)
		metrics.RecordRequestDropped(metrics.ReasonConnectionError)
		return false
	}
	return true
}
