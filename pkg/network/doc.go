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

// Package network implements the request admission and scheduling layer of the storage
// server's front door: a bounded, concurrent request queue with overload protection, and
// the request/response channel that bridges I/O goroutines (producers) and request handler
// goroutines (consumers).
//
// # Queue Strategies
//
// Two interchangeable queue strategies are provided, selected once at construction from
// configuration:
//
//   - A bounded FIFO queue: arrival-ordered, with a hard age ceiling applied on dequeue.
//   - An adaptive LIFO queue with CoDel-style shedding: under congestion (backlog at or
//     above a configured threshold) dequeue order flips to most-recent-first, bounding the
//     latency experienced by fresh arrivals at the deliberate cost of starving older
//     entries, which are reclaimed by the hard timeout or by CoDel shedding rather than
//     served stale. When the minimum observed sojourn delay stays above the CoDel target
//     for a full measurement interval, the queue enters dropping mode and sheds its oldest
//     resident entries instead of serving them, until the backlog falls below the LIFO
//     threshold or a fresh sample recovers below target.
//
// # Ownership and Lifecycle
//
// A request is owned by the queue between Offer and Take; ownership transfers to the
// serving handler (or to drop teardown) exactly once. The per-request state machine is
// Created -> Queued -> {Served | Dropped | Rejected->Dropped} -> Closed; no request
// re-enters the queue once it leaves the Queued state. Offers never block; rejection at
// capacity is a normal outcome signaled by a boolean, and rejected requests surface in the
// drop set of a subsequent ReceiveRequest call.
//
// Cancellation is lazy: closing a connection while its request is still queued does not
// proactively evict it. The stale entry is discovered when it is dequeued and its length
// header drain fails, which folds into the ordinary drop bookkeeping.
package network
