package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"event-checkout-platform/internal/clock"
	"event-checkout-platform/internal/models"
)

var epoch = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

// scriptedFetcher returns one scripted response per call and repeats the last one.
type scriptedFetcher struct {
	mu        sync.Mutex
	responses []response
	calls     int
	hook      func(call int)
}

type response struct {
	status models.OrderStatus
	err    error
}

func (f *scriptedFetcher) GetOrderStatus(_ context.Context, orderID string) (*models.OrderStatusView, error) {
	f.mu.Lock()
	idx := f.calls
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	f.calls++
	call := f.calls
	r := f.responses[idx]
	hook := f.hook
	f.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	if r.err != nil {
		return nil, r.err
	}
	return &models.OrderStatusView{ID: orderID, Status: r.status}, nil
}

func (f *scriptedFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func statuses(list ...models.OrderStatus) []response {
	out := make([]response, len(list))
	for i, s := range list {
		out[i] = response{status: s}
	}
	return out
}

func newTestPoller(f *scriptedFetcher, returned bool) (*Poller, *clock.Fake) {
	c := clock.NewFake(epoch)
	return New(f, "order-1", returned, Config{Clock: c}), c
}

func TestPoller_PaidOnThirdTick(t *testing.T) {
	f := &scriptedFetcher{responses: statuses(models.OrderPending, models.OrderPending, models.OrderPending, models.OrderPaid)}
	p, c := newTestPoller(f, true)

	snap := p.Start(context.Background())
	assert.Equal(t, StateVerifying, snap.State)
	assert.Equal(t, models.OrderPending, snap.Status.Status)
	assert.Equal(t, 2, c.Pending(), "tick and timeout timers are armed")

	c.Advance(DefaultInterval)
	c.Advance(DefaultInterval)
	assert.Equal(t, StateVerifying, p.Snapshot().State)
	assert.Equal(t, 3, f.Calls())

	c.Advance(DefaultInterval)
	snap = p.Snapshot()
	assert.Equal(t, StateTerminal, snap.State)
	assert.Equal(t, models.OrderPaid, snap.Status.Status)
	assert.Equal(t, 4, f.Calls())
	assert.Equal(t, 0, c.Pending(), "both timers are released")

	c.Advance(time.Minute)
	assert.Equal(t, 4, f.Calls(), "no fetch after a terminal status")

	select {
	case <-p.Done():
	default:
		t.Fatal("done channel not closed")
	}
}

func TestPoller_TimeoutKeepsLastStatus(t *testing.T) {
	f := &scriptedFetcher{responses: statuses(models.OrderPending)}
	p, c := newTestPoller(f, true)

	p.Start(context.Background())
	c.Advance(DefaultTimeout - time.Millisecond)
	assert.Equal(t, StateVerifying, p.Snapshot().State)

	c.Advance(time.Millisecond)
	snap := p.Snapshot()
	assert.Equal(t, StateStopped, snap.State)
	assert.Equal(t, ReasonTimeout, snap.Reason)
	require.NotNil(t, snap.Status)
	assert.Equal(t, models.OrderPending, snap.Status.Status)
	assert.Empty(t, snap.LastError)
	assert.Equal(t, 20, f.Calls(), "initial fetch plus 19 ticks before the deadline")
	assert.Equal(t, 0, c.Pending())

	c.Advance(time.Minute)
	assert.Equal(t, 20, f.Calls())
}

func TestPoller_WithoutReturnMarker(t *testing.T) {
	tests := []struct {
		name       string
		status     models.OrderStatus
		wantState  State
		wantReason StopReason
	}{
		{"pending is displayed", models.OrderPending, StateStopped, ReasonNoReturnMarker},
		{"paid is terminal", models.OrderPaid, StateTerminal, ReasonNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &scriptedFetcher{responses: statuses(tt.status)}
			p, c := newTestPoller(f, false)

			snap := p.Start(context.Background())
			assert.Equal(t, tt.wantState, snap.State)
			assert.Equal(t, tt.wantReason, snap.Reason)
			assert.Equal(t, tt.status, snap.Status.Status)
			assert.Equal(t, 0, c.Pending())

			c.Advance(time.Minute)
			assert.Equal(t, 1, f.Calls())
		})
	}
}

func TestPoller_TerminalOnFirstFetch(t *testing.T) {
	f := &scriptedFetcher{responses: statuses(models.OrderFailed)}
	p, c := newTestPoller(f, true)

	snap := p.Start(context.Background())
	assert.Equal(t, StateTerminal, snap.State)
	assert.Equal(t, 0, c.Pending())
}

func TestPoller_StopInvalidatesTimers(t *testing.T) {
	f := &scriptedFetcher{responses: statuses(models.OrderPending)}
	p, c := newTestPoller(f, true)

	p.Start(context.Background())
	c.Advance(DefaultInterval)
	p.Stop()
	p.Stop()

	snap := p.Snapshot()
	assert.Equal(t, StateStopped, snap.State)
	assert.Equal(t, ReasonCancelled, snap.Reason)
	assert.Equal(t, 0, c.Pending())

	c.Advance(time.Minute)
	assert.Equal(t, 2, f.Calls())
}

func TestPoller_LateResultIsDiscarded(t *testing.T) {
	f := &scriptedFetcher{responses: statuses(models.OrderPending, models.OrderPaid)}
	p, c := newTestPoller(f, true)
	f.hook = func(call int) {
		if call == 2 {
			p.Stop()
		}
	}

	p.Start(context.Background())
	c.Advance(DefaultInterval)

	snap := p.Snapshot()
	assert.Equal(t, StateStopped, snap.State)
	assert.Equal(t, ReasonCancelled, snap.Reason)
	assert.Equal(t, models.OrderPending, snap.Status.Status, "a result arriving after stop is not applied")
}

func TestPoller_TickErrorsAreTolerated(t *testing.T) {
	f := &scriptedFetcher{responses: []response{
		{status: models.OrderPending},
		{err: errors.New("connection reset")},
		{err: errors.New("connection reset")},
		{status: models.OrderPaid},
	}}
	p, c := newTestPoller(f, true)

	p.Start(context.Background())
	c.Advance(DefaultInterval)

	snap := p.Snapshot()
	assert.Equal(t, StateVerifying, snap.State)
	assert.Equal(t, models.OrderPending, snap.Status.Status)
	assert.Equal(t, "connection reset", snap.LastError)

	c.Advance(2 * DefaultInterval)
	snap = p.Snapshot()
	assert.Equal(t, StateTerminal, snap.State)
	assert.Empty(t, snap.LastError)
}

func TestPoller_StopBeforeStart(t *testing.T) {
	f := &scriptedFetcher{responses: statuses(models.OrderPending)}
	p, _ := newTestPoller(f, true)

	p.Stop()
	snap := p.Start(context.Background())
	assert.Equal(t, StateStopped, snap.State)
	assert.Equal(t, 0, f.Calls())
}

func TestPoller_UpdatesEndWithFinalSnapshot(t *testing.T) {
	f := &scriptedFetcher{responses: statuses(models.OrderPending, models.OrderPaid)}
	p, c := newTestPoller(f, true)

	p.Start(context.Background())
	c.Advance(DefaultInterval)

	var states []State
	for snap := range p.Updates() {
		states = append(states, snap.State)
	}
	assert.Equal(t, []State{StateLoading, StateVerifying, StateTerminal}, states)
}

func TestPoller_WaitStopsOnContextDone(t *testing.T) {
	f := &scriptedFetcher{responses: statuses(models.OrderPending)}
	p, _ := newTestPoller(f, true)
	p.Start(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	snap := p.Wait(ctx)
	assert.Equal(t, StateStopped, snap.State)
	assert.Equal(t, ReasonCancelled, snap.Reason)
}

func TestPoller_CancelledContextStopsPolling(t *testing.T) {
	f := &scriptedFetcher{responses: statuses(models.OrderPending)}
	p, c := newTestPoller(f, true)

	ctx, cancel := context.WithCancel(context.Background())
	snap := p.Start(ctx)
	require.Equal(t, StateVerifying, snap.State)
	c.Advance(DefaultInterval)
	require.Equal(t, 2, f.Calls())

	cancel()
	select {
	case <-p.Done():
	case <-time.After(time.Second):
		t.Fatal("poller kept running after its context was cancelled")
	}

	snap = p.Snapshot()
	assert.Equal(t, StateStopped, snap.State)
	assert.Equal(t, ReasonCancelled, snap.Reason)
	assert.Equal(t, 0, c.Pending(), "both timers are cleared")

	c.Advance(15 * time.Second)
	assert.Equal(t, 2, f.Calls())
}
