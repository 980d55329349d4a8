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

// Package config holds the tunable configuration consumed by the front door.
package config

import (
	"fmt"
	"os"
	"time"

	"sigs.k8s.io/yaml"
)

// QueueType selects the request queue strategy. The strategy is chosen once at
// construction; an unrecognized value is fatal, the process must refuse to start rather
// than default silently.
type QueueType string

const (
	// QueueTypeBasicFifo selects the bounded, arrival-ordered queue.
	QueueTypeBasicFifo QueueType = "BASIC_FIFO"
	// QueueTypeAdaptiveLifoCoDel selects the adaptive-LIFO queue with CoDel-style
	// latency-based shedding.
	QueueTypeAdaptiveLifoCoDel QueueType = "ADAPTIVE_LIFO_CO_DEL"
)

const (
	defaultPort                                = 6667
	defaultMetricsPort                         = 8889
	defaultNumRequestHandlers                  = 7
	defaultMaxRequestSizeBytes                 = 100 * 1024 * 1024
	defaultQueuedMaxRequests                   = 500
	defaultRequestQueueTimeoutMs               = 1000
	defaultAdaptiveLifoQueueThreshold          = 100
	defaultAdaptiveLifoQueueCodelTargetDelayMs = 5
)

// NetworkConfig is the configuration of the request admission and scheduling layer.
// Durations are carried as integral milliseconds so the YAML surface stays flat.
type NetworkConfig struct {
	// Port is the TCP port the socket server listens on.
	Port int `json:"port"`

	// MetricsPort is the HTTP port serving the prometheus metrics endpoint.
	MetricsPort int `json:"metricsPort"`

	// NumRequestHandlers is the number of request handler goroutines consuming from the
	// request queue.
	NumRequestHandlers int `json:"numRequestHandlers"`

	// MaxRequestSizeBytes bounds the size of a single request frame, as declared by its
	// length header.
	MaxRequestSizeBytes int64 `json:"maxRequestSizeBytes"`

	// QueuedMaxRequests is the request queue capacity.
	QueuedMaxRequests int `json:"queuedMaxRequests"`

	// RequestQueueTimeoutMs is the hard age ceiling: a request that has waited this long
	// is dropped, never served.
	RequestQueueTimeoutMs int64 `json:"requestQueueTimeoutMs"`

	// AdaptiveLifoQueueThreshold is the backlog length at or above which the adaptive
	// queue flips to most-recent-first selection.
	AdaptiveLifoQueueThreshold int `json:"adaptiveLifoQueueThreshold"`

	// AdaptiveLifoQueueCodelTargetDelayMs is the maximum tolerable sojourn delay before
	// CoDel shedding arms.
	AdaptiveLifoQueueCodelTargetDelayMs int64 `json:"adaptiveLifoQueueCodelTargetDelayMs"`

	// RequestQueueType selects the queue strategy.
	RequestQueueType QueueType `json:"requestQueueType"`
}

// Option is a functional option for constructing a NetworkConfig.
type Option func(*NetworkConfig)

// NewNetworkConfig creates a NetworkConfig with defaults applied, the given options
// layered on top, and the result validated.
func NewNetworkConfig(opts ...Option) (*NetworkConfig, error) {
	c := defaults()
	for _, opt := range opts {
		opt(c)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func defaults() *NetworkConfig {
	return &NetworkConfig{
		Port:                                defaultPort,
		MetricsPort:                         defaultMetricsPort,
		NumRequestHandlers:                  defaultNumRequestHandlers,
		MaxRequestSizeBytes:                 defaultMaxRequestSizeBytes,
		QueuedMaxRequests:                   defaultQueuedMaxRequests,
		RequestQueueTimeoutMs:               defaultRequestQueueTimeoutMs,
		AdaptiveLifoQueueThreshold:          defaultAdaptiveLifoQueueThreshold,
		AdaptiveLifoQueueCodelTargetDelayMs: defaultAdaptiveLifoQueueCodelTargetDelayMs,
		RequestQueueType:                    QueueTypeAdaptiveLifoCoDel,
	}
}

// Load reads a YAML file into a NetworkConfig. Fields absent from the file keep their
// defaults; the merged result is validated.
func Load(path string) (*NetworkConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
	}
	c := defaults()
	if err := yaml.UnmarshalStrict(raw, c); err != nil {
		return nil, fmt.Errorf("failed to parse config file %q: %w", path, err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// WithPort sets the socket server port.
func WithPort(port int) Option {
	return func(c *NetworkConfig) { c.Port = port }
}

// WithMetricsPort sets the metrics endpoint port.
func WithMetricsPort(port int) Option {
	return func(c *NetworkConfig) { c.MetricsPort = port }
}

// WithNumRequestHandlers sets the request handler goroutine count.
func WithNumRequestHandlers(n int) Option {
	return func(c *NetworkConfig) { c.NumRequestHandlers = n }
}

// WithMaxRequestSizeBytes sets the per-request frame size bound.
func WithMaxRequestSizeBytes(n int64) Option {
	return func(c *NetworkConfig) { c.MaxRequestSizeBytes = n }
}

// WithQueuedMaxRequests sets the request queue capacity.
func WithQueuedMaxRequests(n int) Option {
	return func(c *NetworkConfig) { c.QueuedMaxRequests = n }
}

// WithRequestQueueTimeout sets the hard age ceiling.
func WithRequestQueueTimeout(d time.Duration) Option {
	return func(c *NetworkConfig) { c.RequestQueueTimeoutMs = d.Milliseconds() }
}

// WithAdaptiveLifoQueueThreshold sets the LIFO flip threshold.
func WithAdaptiveLifoQueueThreshold(n int) Option {
	return func(c *NetworkConfig) { c.AdaptiveLifoQueueThreshold = n }
}

// WithAdaptiveLifoQueueCodelTargetDelay sets the CoDel target sojourn delay.
func WithAdaptiveLifoQueueCodelTargetDelay(d time.Duration) Option {
	return func(c *NetworkConfig) { c.AdaptiveLifoQueueCodelTargetDelayMs = d.Milliseconds() }
}

// WithRequestQueueType sets the queue strategy.
func WithRequestQueueType(t QueueType) Option {
	return func(c *NetworkConfig) { c.RequestQueueType = t }
}

// RequestQueueTimeout returns the hard age ceiling as a duration.
func (c *NetworkConfig) RequestQueueTimeout() time.Duration {
	return time.Duration(c.RequestQueueTimeoutMs) * time.Millisecond
}

// AdaptiveLifoQueueCodelTargetDelay returns the CoDel target sojourn delay as a duration.
func (c *NetworkConfig) AdaptiveLifoQueueCodelTargetDelay() time.Duration {
	return time.Duration(c.AdaptiveLifoQueueCodelTargetDelayMs) * time.Millisecond
}

// validate checks the configuration for validity.
func (c *NetworkConfig) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be in (0, 65535], but got %d", c.Port)
	}
	if c.MetricsPort <= 0 || c.MetricsPort > 65535 {
		return fmt.Errorf("metricsPort must be in (0, 65535], but got %d", c.MetricsPort)
	}
	if c.NumRequestHandlers <= 0 {
		return fmt.Errorf("numRequestHandlers must be positive, but got %d", c.NumRequestHandlers)
	}
	if c.MaxRequestSizeBytes <= 0 {
		return fmt.Errorf("maxRequestSizeBytes must be positive, but got %d", c.MaxRequestSizeBytes)
	}
	if c.QueuedMaxRequests <= 0 {
		return fmt.Errorf("queuedMaxRequests must be positive, but got %d", c.QueuedMaxRequests)
	}
	if c.RequestQueueTimeoutMs <= 0 {
		return fmt.Errorf("requestQueueTimeoutMs must be positive, but got %d", c.RequestQueueTimeoutMs)
	}
	if c.AdaptiveLifoQueueThreshold <= 0 {
		return fmt.Errorf("adaptiveLifoQueueThreshold must be positive, but got %d", c.AdaptiveLifoQueueThreshold)
	}
	if c.AdaptiveLifoQueueThreshold > c.QueuedMaxRequests {
		return fmt.Errorf("adaptiveLifoQueueThreshold (%d) cannot exceed queuedMaxRequests (%d)",
			c.AdaptiveLifoQueueThreshold, c.QueuedMaxRequests)
	}
	if c.AdaptiveLifoQueueCodelTargetDelayMs <= 0 {
		return fmt.Errorf("adaptiveLifoQueueCodelTargetDelayMs must be positive, but got %d",
			c.AdaptiveLifoQueueCodelTargetDelayMs)
	}
	switch c.RequestQueueType {
	case QueueTypeBasicFifo, QueueTypeAdaptiveLifoCoDel:
	default:
		return fmt.Errorf("unrecognized requestQueueType %q", c.RequestQueueType)
	}
	return nil
}
