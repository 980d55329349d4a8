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

// Package metrics exposes the timing samples emitted by the network admission layer.
// The sample set mirrors the front door's observable lifecycle: how long a request waited
// to be enqueued, how long it sat in the queue, how long the full round trip took, and how
// long the response flush took.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// NetworkSubsystem is the subsystem label shared by all front-door metrics.
	NetworkSubsystem = "network"
)

// Drop reasons used as the "reason" label on the dropped-request counter.
const (
	ReasonRejected        = "rejected"         // refused at offer time, queue at capacity
	ReasonQueued          = "queued"           // expired or shed while resident in the queue
	ReasonConnectionError = "connection_error" // length header could not be drained
)

// QueueLatencyBuckets covers queueing and flush latencies from 1ms to 30s.
var QueueLatencyBuckets = []float64{
	0.001, 0.002, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

var (
	requestEnqueueDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Subsystem: NetworkSubsystem,
			Name:      "request_enqueue_duration_seconds",
			Help:      "Time from request arrival until the offer to the request queue completed, accepted or not.",
			Buckets:   QueueLatencyBuckets,
		},
	)

	requestQueueingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Subsystem: NetworkSubsystem,
			Name:      "request_queueing_duration_seconds",
			Help:      "Time a request spent resident in the request queue before being served or dropped.",
			Buckets:   QueueLatencyBuckets,
		},
	)

	requestProcessingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Subsystem: NetworkSubsystem,
			Name:      "request_total_processing_duration_seconds",
			Help:      "Time from request arrival until its response was handed to the channel for transmission.",
			Buckets:   QueueLatencyBuckets,
		},
	)

	responseFlushDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Subsystem: NetworkSubsystem,
			Name:      "response_flush_duration_seconds",
			Help:      "Time taken to flush a response onto the originating connection.",
			Buckets:   QueueLatencyBuckets,
		},
	)

	requestsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: NetworkSubsystem,
			Name:      "requests_dropped_total",
			Help:      "Counter of requests terminated without being served, broken out by reason.",
		},
		[]string{"reason"},
	)

	requestQueueSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Subsystem: NetworkSubsystem,
			Name:      "request_queue_size",
			Help:      "Best-effort count of requests currently resident in the request queue.",
		},
	)
)

var registerOnce sync.Once

// Register registers all front-door metrics with the given registerer. If registerer is
// nil, the default prometheus registerer is used. Subsequent calls are no-ops.
func Register(registerer prometheus.Registerer) {
	registerOnce.Do(func() {
		if registerer == nil {
			registerer = prometheus.DefaultRegisterer
		}
		registerer.MustRegister(
			requestEnqueueDuration,
			requestQueueingDuration,
			requestProcessingDuration,
			responseFlushDuration,
			requestsDropped,
			requestQueueSize,
		)
	})
}

// RecordRequestEnqueueTime records the latency of one SendRequest call.
func RecordRequestEnqueueTime(d time.Duration) {
	requestEnqueueDuration.Observe(d.Seconds())
}

// RecordRequestQueueingTime records the queue residency time of one request.
func RecordRequestQueueingTime(d time.Duration) {
	requestQueueingDuration.Observe(d.Seconds())
}

// RecordRequestProcessingTime records the arrival-to-response latency of one request.
func RecordRequestProcessingTime(d time.Duration) {
	requestProcessingDuration.Observe(d.Seconds())
}

// RecordResponseFlushTime records the flush latency of one response.
func RecordResponseFlushTime(d time.Duration) {
	responseFlushDuration.Observe(d.Seconds())
}

// RecordRequestDropped bumps the dropped-request counter for the given reason.
func RecordRequestDropped(reason string) {
	requestsDropped.WithLabelValues(reason).Inc()
}

// RecordRequestQueueSize records the current resident count of the request queue.
func RecordRequestQueueSize(size int) {
	requestQueueSize.Set(float64(size))
}
