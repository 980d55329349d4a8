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

package server

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/go-logr/logr"

	"github.com/Arun-LinkedIn/ambry/pkg/network"
	logutil "github.com/Arun-LinkedIn/ambry/pkg/util/logging"
)

// RequestProcessor serves one request and produces its response payload. Implementations
// live outside the admission layer; the processor sees the request stream with the length
// header already drained.
type RequestProcessor interface {
	ProcessRequest(ctx context.Context, req *network.Request) (io.WriterTo, error)
}

// RequestHandlerPool runs a fixed set of request handler goroutines, each looping on the
// channel's blocking receive. Served requests go to the processor and their responses
// return through the channel; dropped requests have their connections torn down.
type RequestHandlerPool struct {
	numHandlers int
	channel     *network.RequestResponseChannel
	processor   RequestProcessor
	logger      logr.Logger
}

// NewRequestHandlerPool creates a handler pool with numHandlers workers.
func NewRequestHandlerPool(
	numHandlers int,
	channel *network.RequestResponseChannel,
	processor RequestProcessor,
	logger logr.Logger,
) *RequestHandlerPool {
	return &RequestHandlerPool{
		numHandlers: numHandlers,
		channel:     channel,
		processor:   processor,
		logger:      logger.WithName("requestHandlerPool"),
	}
}

// Run starts the handlers and blocks until all of them have stopped. Handlers stop when
// ctx is cancelled or the channel shuts down.
func (p *RequestHandlerPool) Run(ctx context.Context) error {
	p.logger.V(logutil.DEFAULT).Info("Request handler pool starting", "numHandlers", p.numHandlers)
	defer p.logger.V(logutil.DEFAULT).Info("Request handler pool stopped")

	var wg sync.WaitGroup
	for i := 0; i < p.numHandlers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p.runHandler(ctx, i)
		}(i)
	}
	wg.Wait()
	return nil
}

// runHandler is one handler's receive-serve loop.
func (p *RequestHandlerPool) runHandler(ctx context.Context, id int) {
	logger := p.logger.WithValues("handler", id)
	for {
		bundle, err := p.channel.ReceiveRequest(ctx)
		if err != nil {
			if !errors.Is(err, network.ErrQueueClosed) && !errors.Is(err, context.Canceled) {
				logger.Error(err, "Request handler stopping after receive failure")
			} else {
				logger.V(logutil.DEFAULT).Info("Request handler stopping")
			}
			return
		}
		for _, dropped := range bundle.ToDrop {
			p.dropRequest(dropped, logger)
		}
		if bundle.ToServe != nil {
			p.serveRequest(ctx, bundle.ToServe, logger)
		}
	}
}

// serveRequest hands one request to the processor and dispatches its response. A
// processing failure is a connection-level fault: the connection is closed and no
// response is sent.
func (p *RequestHandlerPool) serveRequest(ctx context.Context, req *network.Request, logger logr.Logger) {
	logger.V(logutil.TRACE).Info("Serving request", "reqID", req.ID())
	payload, err := p.processor.ProcessRequest(ctx, req)
	if err != nil {
		logger.Error(err, "Failed to process request, closing the connection", "reqID", req.ID())
		p.channel.CloseConnection(req)
		return
	}
	p.channel.SendResponse(payload, req)
}

// dropRequest tears down a request that was timed out, shed, or rejected. No response is
// sent; the peer discovers the drop through the closed connection.
func (p *RequestHandlerPool) dropRequest(req *network.Request, logger logr.Logger) {
	logger.V(logutil.VERBOSE).Info("Dropping request", "reqID", req.ID())
	p.channel.CloseConnection(req)
}
