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

// The ambry-server command runs the storage server front door: the TCP socket server, the
// request admission queue, and the request handler pool, with a prometheus metrics
// endpoint on the side.
package main

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"

	"github.com/Arun-LinkedIn/ambry/pkg/config"
	"github.com/Arun-LinkedIn/ambry/pkg/metrics"
	"github.com/Arun-LinkedIn/ambry/pkg/network"
	"github.com/Arun-LinkedIn/ambry/pkg/server"
	logutil "github.com/Arun-LinkedIn/ambry/pkg/util/logging"
)

var (
	configPath = flag.String(
		"config",
		"",
		"Path to a YAML network configuration file; defaults apply when unset")
	verbosity = flag.Int(
		"v",
		logutil.DEFAULT,
		"Log verbosity level")
)

func main() {
	flag.Parse()
	logger := logutil.NewLogger(*verbosity).WithName("ambry-server")

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logutil.Fatal(logger, err, "Failed to load configuration")
	}
	logger.V(logutil.DEFAULT).Info("Configuration loaded",
		"port", cfg.Port,
		"queueType", cfg.RequestQueueType,
		"queuedMaxRequests", cfg.QueuedMaxRequests,
		"numRequestHandlers", cfg.NumRequestHandlers,
	)

	metrics.Register(nil)

	clk := clock.RealClock{}
	channel, err := network.NewRequestResponseChannel(cfg, logger, clk)
	if err != nil {
		// An unrecognized queue strategy must refuse to start, not default silently.
		logutil.Fatal(logger, err, "Failed to construct request response channel")
	}
	socketServer := server.NewSocketServer(cfg, channel, logger, clk)
	handlerPool := server.NewRequestHandlerPool(cfg.NumRequestHandlers, channel, echoProcessor{}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return socketServer.Serve(ctx) })
	g.Go(func() error { return handlerPool.Run(ctx) })
	g.Go(func() error { return serveMetrics(ctx, cfg.MetricsPort) })
	g.Go(func() error {
		<-ctx.Done()
		channel.Shutdown()
		return nil
	})

	if err := g.Wait(); err != nil {
		logutil.Fatal(logger, err, "Server exited with error")
	}
	logger.V(logutil.DEFAULT).Info("Server stopped")
}

// loadConfig reads the YAML config when a path is given, otherwise uses defaults.
func loadConfig(path string) (*config.NetworkConfig, error) {
	if path == "" {
		return config.NewNetworkConfig()
	}
	return config.Load(path)
}

// serveMetrics runs the prometheus endpoint until ctx is cancelled.
func serveMetrics(ctx context.Context, port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics server failed: %w", err)
	}
	return nil
}

// echoProcessor is a stand-in request processor: it frames the request payload back to
// the sender unchanged. Store request handling proper lives outside the admission layer
// and plugs in through the server.RequestProcessor interface.
type echoProcessor struct{}

func (echoProcessor) ProcessRequest(_ context.Context, req *network.Request) (io.WriterTo, error) {
	payload, err := io.ReadAll(req.Reader())
	if err != nil {
		return nil, err
	}
	frame := make([]byte, network.LengthHeaderBytes+len(payload))
	binary.BigEndian.PutUint64(frame, uint64(len(frame)))
	copy(frame[network.LengthHeaderBytes:], payload)
	return network.NewBytesResponse(frame), nil
}
