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
	"errors"
	"time"
)

// ErrQueueClosed is returned by Take once the queue has been closed. Requests still
// resident at close time are abandoned without being served or drained; callers that need
// graceful completion must stop offering before closing.
var ErrQueueClosed = errors.New("request queue is closed")

// RequestQueue is the admission queue between I/O goroutines and request handlers. All
// implementations are goroutine-safe.
type RequestQueue interface {
	// Offer attempts to enqueue the request without blocking. It returns false when the
	// queue is at capacity or closed; rejection is a normal, expected outcome with no side
	// effect beyond the boolean, and the caller is responsible for surfacing the rejected
	// request as a drop candidate later.
	Offer(req *Request) bool

	// Take blocks until there is a request ready to serve or a non-empty set of expired
	// or shed requests to return; it never returns an empty Bundle with a nil error.
	// Every request it ever returns is delivered exactly once, either to serve or to
	// drop. A request returned to serve has waited strictly less than the configured
	// hard timeout. Take unblocks with an error when ctx is cancelled or the queue is
	// closed.
	Take(ctx context.Context) (Bundle, error)

	// Len returns the current resident count, best-effort under concurrency.
	Len() int

	// Close wakes all blocked Take callers with ErrQueueClosed and causes subsequent
	// offers to be rejected. Resident requests are abandoned.
	Close()
}

// queueEntry wraps a request with its enqueue timestamp. Entries are ordered by arrival;
// the adaptive queue reads them from either end depending on the current regime.
type queueEntry struct {
	req        *Request
	enqueuedAt time.Time
}
