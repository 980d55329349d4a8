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
	"container/list"
	"context"
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// codelInterval is the fixed CoDel measurement interval: the minimum observed sojourn
// delay must stay above target for this long before the queue enters dropping mode.
const codelInterval = 100 * time.Millisecond

// adaptiveQueue is the adaptive-LIFO/CoDel request queue.
//
// Selection policy: while the backlog is below lifoThreshold the queue behaves as a FIFO.
// At or above the threshold, dequeue order flips to most-recent-first so that fresh
// arrivals see bounded latency during congestion; starved older entries are reclaimed by
// the hard timeout or by CoDel shedding rather than served stale.
//
// CoDel shedding: each served entry's sojourn delay is sampled. Once the sampled delay has
// stayed above codelTarget for a full codelInterval, the queue transitions into dropping
// mode and subsequent dequeues shed the oldest resident entries into the drop set until
// the backlog falls below lifoThreshold or a fresh sample recovers below target. This
// bounds worst-case queueing delay by controlled shedding instead of letting the backlog
// grow without bound.
type adaptiveQueue struct {
	capacity       int
	lifoThreshold  int
	codelTarget    time.Duration
	requestTimeout time.Duration
	clock          clock.PassiveClock

	mu       sync.Mutex
	notEmpty *sync.Cond
	entries  *list.List // of queueEntry, arrival order front-to-back
	closed   bool

	// CoDel state, guarded by mu and owned exclusively by this queue instance.
	//
	// overloadedSince is the time at which the observed sojourn delay first exceeded
	// codelTarget; it is zeroed by any sample at or below target.
	overloadedSince time.Time
	dropping        bool
}

var _ RequestQueue = &adaptiveQueue{}

// newAdaptiveQueue creates an adaptive-LIFO/CoDel queue.
func newAdaptiveQueue(
	capacity int,
	lifoThreshold int,
	codelTarget time.Duration,
	requestTimeout time.Duration,
	clk clock.PassiveClock,
) *adaptiveQueue {
	q := &adaptiveQueue{
		capacity:       capacity,
		lifoThreshold:  lifoThreshold,
		codelTarget:    codelTarget,
		requestTimeout: requestTimeout,
		clock:          clk,
		entries:        list.New(),
	}
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// Offer enqueues the request at the tail, or returns false when the queue is at capacity
// or closed.
func (q *adaptiveQueue) Offer(req *Request) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed || q.entries.Len() >= q.capacity {
		return false
	}
	q.entries.PushBack(queueEntry{req: req, enqueuedAt: q.clock.Now()})
	q.notEmpty.Signal()
	return true
}

// Take blocks until it can return a request to serve, a non-empty drop set, or an error
// from cancellation or close.
func (q *adaptiveQueue) Take(ctx context.Context) (Bundle, error) {
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.notEmpty.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	var drops []*Request
	for {
		if q.closed || ctx.Err() != nil {
			// Entries already reclassified as drops left the queue during this call and
			// must still reach the caller for connection teardown; the error surfaces on
			// the next call.
			if len(drops) > 0 {
				return Bundle{ToDrop: drops}, nil
			}
			if q.closed {
				return Bundle{}, ErrQueueClosed
			}
			return Bundle{}, ctx.Err()
		}

		if q.entries.Len() == 0 {
			if len(drops) > 0 {
				return Bundle{ToDrop: drops}, nil
			}
			q.notEmpty.Wait()
			continue
		}

		now := q.clock.Now()
		if q.dropping {
			// Shed the oldest resident entries until the backlog falls below the LIFO
			// threshold, then resume normal selection.
			for q.entries.Len() >= q.lifoThreshold {
				front := q.entries.Front()
				q.entries.Remove(front)
				drops = append(drops, front.Value.(queueEntry).req)
			}
			q.dropping = false
			continue
		}

		// Selection policy: most-recent-first under congestion, oldest-first otherwise.
		var el *list.Element
		if q.entries.Len() >= q.lifoThreshold {
			el = q.entries.Back()
		} else {
			el = q.entries.Front()
		}
		e := el.Value.(queueEntry)
		q.entries.Remove(el)

		delay := now.Sub(e.enqueuedAt)
		if delay >= q.requestTimeout {
			// The age ceiling applies irrespective of selection policy. An entry never
			// ages below the ceiling for the remainder of the queue, so this terminates
			// within Len() iterations.
			drops = append(drops, e.req)
			continue
		}

		q.observeDelay(delay, now)
		return Bundle{ToServe: e.req, ToDrop: drops}, nil
	}
}

// observeDelay feeds one served entry's sojourn delay into the CoDel state. A sample at
// or below target resets the overload tracking and exits dropping mode; samples above
// target for a full codelInterval arm dropping mode. Callers hold q.mu.
func (q *adaptiveQueue) observeDelay(delay time.Duration, now time.Time) {
	if delay <= q.codelTarget {
		q.overloadedSince = time.Time{}
		q.dropping = false
		return
	}
	if q.overloadedSince.IsZero() {
		q.overloadedSince = now
		return
	}
	if now.Sub(q.overloadedSince) >= codelInterval {
		q.dropping = true
	}
}

// Len returns the current resident count.
func (q *adaptiveQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.entries.Len()
}

// Close wakes all blocked Take callers and rejects subsequent offers. Resident entries
// are abandoned.
func (q *adaptiveQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.notEmpty.Broadcast()
}
