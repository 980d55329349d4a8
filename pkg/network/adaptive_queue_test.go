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
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testclock "k8s.io/utils/clock/testing"
)

const (
	testCodelTarget    = 50 * time.Millisecond
	testRequestTimeout = 10 * time.Second
)

func TestAdaptiveQueueCapacity(t *testing.T) {
	t.Parallel()
	clk := testclock.NewFakeClock(time.Now())
	q := newAdaptiveQueue(2, 2, testCodelTarget, testRequestTimeout, clk)

	r1, _ := newTestRequest("r1")
	r2, _ := newTestRequest("r2")
	r3, _ := newTestRequest("r3")

	assert.True(t, q.Offer(r1))
	assert.True(t, q.Offer(r2))
	assert.False(t, q.Offer(r3), "offer at capacity must be rejected")
	assert.Equal(t, 2, q.Len(), "a rejected offer must not alter the resident count")
}

func TestAdaptiveQueueServesFifoBelowThreshold(t *testing.T) {
	t.Parallel()
	clk := testclock.NewFakeClock(time.Now())
	q := newAdaptiveQueue(5, 3, testCodelTarget, testRequestTimeout, clk)

	r1, _ := newTestRequest("r1")
	r2, _ := newTestRequest("r2")
	require.True(t, q.Offer(r1))
	require.True(t, q.Offer(r2))

	bundle, err := q.Take(context.Background())
	require.NoError(t, err)
	require.NotNil(t, bundle.ToServe)
	assert.Equal(t, "r1", bundle.ToServe.ID(), "below the threshold the oldest entry must be served")
	assert.Empty(t, bundle.ToDrop)
}

func TestAdaptiveQueueFlipsToLifoAtThreshold(t *testing.T) {
	t.Parallel()
	clk := testclock.NewFakeClock(time.Now())
	q := newAdaptiveQueue(5, 3, testCodelTarget, testRequestTimeout, clk)

	for _, id := range []string{"r1", "r2", "r3", "r4"} {
		r, _ := newTestRequest(id)
		require.True(t, q.Offer(r))
	}

	bundle, err := q.Take(context.Background())
	require.NoError(t, err)
	require.NotNil(t, bundle.ToServe)
	assert.Equal(t, "r4", bundle.ToServe.ID(),
		"at or above the threshold the most recently enqueued entry must be served")
	assert.Empty(t, bundle.ToDrop)
}

func TestAdaptiveQueueHardTimeout(t *testing.T) {
	t.Parallel()
	clk := testclock.NewFakeClock(time.Now())
	q := newAdaptiveQueue(5, 3, testCodelTarget, 500*time.Millisecond, clk)

	r1, _ := newTestRequest("r1")
	require.True(t, q.Offer(r1))
	clk.Step(501 * time.Millisecond)

	bundle, err := q.Take(context.Background())
	require.NoError(t, err)
	assert.Nil(t, bundle.ToServe, "an entry past the age ceiling must never be served")
	assert.Equal(t, []string{"r1"}, ids(bundle.ToDrop))
}

func TestAdaptiveQueueHardTimeoutAppliesUnderLifo(t *testing.T) {
	t.Parallel()
	clk := testclock.NewFakeClock(time.Now())
	q := newAdaptiveQueue(5, 2, testCodelTarget, 500*time.Millisecond, clk)

	// Two stale entries, then a fresh one after time passes. LIFO selection picks the
	// fresh entry; the stale ones surface as drops on later takes.
	rOld1, _ := newTestRequest("old1")
	rOld2, _ := newTestRequest("old2")
	require.True(t, q.Offer(rOld1))
	require.True(t, q.Offer(rOld2))
	clk.Step(600 * time.Millisecond)
	rNew, _ := newTestRequest("new")
	require.True(t, q.Offer(rNew))

	bundle, err := q.Take(context.Background())
	require.NoError(t, err)
	require.NotNil(t, bundle.ToServe)
	assert.Equal(t, "new", bundle.ToServe.ID())

	bundle, err = q.Take(context.Background())
	require.NoError(t, err)
	assert.Nil(t, bundle.ToServe)
	assert.ElementsMatch(t, []string{"old1", "old2"}, ids(bundle.ToDrop),
		"starved entries past the ceiling must be reclaimed as drops")
}

func TestAdaptiveQueueCodelShedding(t *testing.T) {
	t.Parallel()
	clk := testclock.NewFakeClock(time.Now())
	q := newAdaptiveQueue(10, 2, testCodelTarget, testRequestTimeout, clk)

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		r, _ := newTestRequest(id)
		require.True(t, q.Offer(r))
	}

	// Every served entry's sojourn delay stays above the 50ms target across a full
	// 100ms measurement interval, so dropping mode must arm.
	clk.Step(60 * time.Millisecond)
	bundle, err := q.Take(context.Background())
	require.NoError(t, err)
	require.NotNil(t, bundle.ToServe)
	assert.Equal(t, "e", bundle.ToServe.ID())
	assert.Empty(t, bundle.ToDrop)

	clk.Step(50 * time.Millisecond)
	bundle, err = q.Take(context.Background())
	require.NoError(t, err)
	require.NotNil(t, bundle.ToServe)
	assert.Equal(t, "d", bundle.ToServe.ID())
	assert.Empty(t, bundle.ToDrop)

	clk.Step(60 * time.Millisecond)
	bundle, err = q.Take(context.Background())
	require.NoError(t, err)
	require.NotNil(t, bundle.ToServe)
	assert.Equal(t, "c", bundle.ToServe.ID())
	assert.Empty(t, bundle.ToDrop, "the dequeue that arms dropping mode still serves normally")

	// Dropping mode is armed: the next take must shed the oldest entries until the
	// backlog falls below the LIFO threshold, then resume selection.
	bundle, err = q.Take(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(bundle.ToDrop), "dropping mode must shed the oldest resident entry")
	require.NotNil(t, bundle.ToServe)
	assert.Equal(t, "b", bundle.ToServe.ID())
	assert.Equal(t, 0, q.Len())
}

func TestAdaptiveQueueCodelRecovery(t *testing.T) {
	t.Parallel()
	clk := testclock.NewFakeClock(time.Now())
	q := newAdaptiveQueue(10, 2, testCodelTarget, testRequestTimeout, clk)

	// Arm dropping mode with sustained over-target delays.
	for _, id := range []string{"a", "b", "c"} {
		r, _ := newTestRequest(id)
		require.True(t, q.Offer(r))
	}
	clk.Step(60 * time.Millisecond)
	_, err := q.Take(context.Background())
	require.NoError(t, err)
	clk.Step(110 * time.Millisecond)
	_, err = q.Take(context.Background())
	require.NoError(t, err)

	// A fresh entry served with a sojourn delay under target must reset the overload
	// tracking; no shedding follows.
	rFast, _ := newTestRequest("fast")
	require.True(t, q.Offer(rFast))
	bundle, err := q.Take(context.Background())
	require.NoError(t, err)

	// Collect everything delivered; "fast" must be served, not shed.
	served := map[string]bool{}
	if bundle.ToServe != nil {
		served[bundle.ToServe.ID()] = true
	}
	for q.Len() > 0 {
		b, takeErr := q.Take(context.Background())
		require.NoError(t, takeErr)
		if b.ToServe != nil {
			served[b.ToServe.ID()] = true
		}
	}
	assert.True(t, served["fast"], "a fresh under-target sample must exit dropping mode and be served")
}

// cancelOnNowClock cancels a context from inside Now once armed, so a test can trigger
// cancellation at a precise point inside a Take call.
type cancelOnNowClock struct {
	*testclock.FakeClock
	cancel context.CancelFunc
	armed  atomic.Bool
}

func (c *cancelOnNowClock) Now() time.Time {
	if c.armed.Load() {
		c.cancel()
	}
	return c.FakeClock.Now()
}

func TestAdaptiveQueueReturnsDropsWhenCancelledMidTake(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	clk := &cancelOnNowClock{FakeClock: testclock.NewFakeClock(time.Now()), cancel: cancel}
	q := newAdaptiveQueue(5, 3, testCodelTarget, 500*time.Millisecond, clk)

	r1, _ := newTestRequest("r1")
	require.True(t, q.Offer(r1))
	clk.Step(501 * time.Millisecond)
	clk.armed.Store(true)

	// The entry is past the age ceiling, so this Take reclassifies it as a drop and then
	// observes the cancellation. The drop must still be handed back; losing it would leave
	// its connection without an owner.
	bundle, err := q.Take(ctx)
	require.NoError(t, err)
	assert.Nil(t, bundle.ToServe)
	assert.Equal(t, []string{"r1"}, ids(bundle.ToDrop))

	_, err = q.Take(ctx)
	assert.ErrorIs(t, err, context.Canceled, "the cancellation surfaces on the next call")
}

func TestAdaptiveQueueCloseUnblocksTake(t *testing.T) {
	t.Parallel()
	clk := testclock.NewFakeClock(time.Now())
	q := newAdaptiveQueue(5, 3, testCodelTarget, testRequestTimeout, clk)

	errCh := make(chan error, 1)
	go func() {
		_, err := q.Take(context.Background())
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrQueueClosed)
	case <-time.After(time.Second):
		t.Fatal("Take must unblock when the queue is closed")
	}
}

func TestAdaptiveQueueConservationAndExactlyOnceDelivery(t *testing.T) {
	t.Parallel()
	clk := testclock.NewFakeClock(time.Now())
	q := newAdaptiveQueue(4, 2, testCodelTarget, 500*time.Millisecond, clk)

	offered := 0
	seen := map[string]int{}

	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		r, _ := newTestRequest(id)
		if q.Offer(r) {
			offered++
		}
		clk.Step(40 * time.Millisecond)
	}
	// Some entries are now past the ceiling, some are not; drain everything.
	clk.Step(400 * time.Millisecond)

	delivered := 0
	for delivered < offered {
		bundle, err := q.Take(context.Background())
		require.NoError(t, err)
		require.False(t, bundle.Empty(), "Take must never return an empty bundle")
		if bundle.ToServe != nil {
			seen[bundle.ToServe.ID()]++
			delivered++
		}
		for _, r := range bundle.ToDrop {
			seen[r.ID()]++
			delivered++
		}
		assert.Equal(t, offered, delivered+q.Len(), "offered must equal delivered plus resident")
	}

	for id, count := range seen {
		assert.Equalf(t, 1, count, "request %q must be delivered exactly once", id)
	}
	assert.Equal(t, 0, q.Len())
}
