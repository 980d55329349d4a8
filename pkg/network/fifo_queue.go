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

// fifoQueue is a bounded, blocking, arrival-ordered request queue. On each dequeue it
// scans from the oldest entry: entries whose age has reached the hard timeout move into
// the drop set, and the first entry still within the age bound is returned to serve.
type fifoQueue struct {
	capacity int
	timeout  time.Duration
	clock    clock.PassiveClock

	mu       sync.Mutex
	notEmpty *sync.Cond
	entries  *list.List // of queueEntry
	closed   bool
}

var _ RequestQueue = &fifoQueue{}

// newFifoQueue creates a bounded FIFO queue with the given capacity and hard age ceiling.
func newFifoQueue(capacity int, timeout time.Duration, clk clock.PassiveClock) *fifoQueue {
	q := &fifoQueue{
		capacity: capacity,
		timeout:  timeout,
		clock:    clk,
		entries:  list.New(),
	}
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// Offer enqueues the request at the tail, or returns false when the queue is at capacity
// or closed.
func (q *fifoQueue) Offer(req *Request) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed || q.entries.Len() >= q.capacity {
		return false
	}
	q.entries.PushBack(queueEntry{req: req, enqueuedAt: q.clock.Now()})
	q.notEmpty.Signal()
	return true
}

// Take blocks until it can return a request to serve, a non-empty set of expired
// requests, or an error from cancellation or close.
func (q *fifoQueue) Take(ctx context.Context) (Bundle, error) {
	stop := context.AfterFunc(ctx, func() {
		// Wake every waiter; each re-checks ctx under the lock.
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

		now := q.clock.Now()
		for q.entries.Len() > 0 {
			front := q.entries.Front()
			e := front.Value.(queueEntry)
			q.entries.Remove(front)
			if now.Sub(e.enqueuedAt) >= q.timeout {
				drops = append(drops, e.req)
				continue
			}
			return Bundle{ToServe: e.req, ToDrop: drops}, nil
		}
		if len(drops) > 0 {
			// Everything resident had expired; hand the drops back rather than
			// carrying them across a blocking wait.
			return Bundle{ToDrop: drops}, nil
		}
		q.notEmpty.Wait()
	}
}

// Len returns the current resident count.
func (q *fifoQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.entries.Len()
}

// Close wakes all blocked Take callers and rejects subsequent offers. Resident entries
// are abandoned.
func (q *fifoQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.notEmpty.Broadcast()
}
