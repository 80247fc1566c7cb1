// Package poller tracks an order after the buyer returns from an external
// payment provider, polling its status until it settles or a deadline passes.
package poller

import (
	"context"
	"log"
	"sync"
	"time"

	"event-checkout-platform/internal/clock"
	"event-checkout-platform/internal/models"
)

// Default polling cadence
const (
	DefaultInterval = 1500 * time.Millisecond
	DefaultTimeout  = 30 * time.Second
)

// State is the poller's lifecycle tag
type State string

const (
	StateInitial   State = "INITIAL"
	StateLoading   State = "LOADING"
	StateVerifying State = "VERIFYING"
	StateTerminal  State = "TERMINAL"
	StateStopped   State = "STOPPED"
)

// StopReason explains why a poller ended in StateStopped
type StopReason string

const (
	ReasonNone           StopReason = ""
	ReasonNoReturnMarker StopReason = "no_return_marker"
	ReasonTimeout        StopReason = "timeout"
	ReasonCancelled      StopReason = "cancelled"
)

// StatusFetcher reads an order's current status
type StatusFetcher interface {
	GetOrderStatus(ctx context.Context, orderID string) (*models.OrderStatusView, error)
}

// Config controls polling cadence. Zero values use the defaults.
type Config struct {
	Interval time.Duration
	Timeout  time.Duration
	Clock    clock.Clock
}

// Snapshot is a point-in-time view of a poller
type Snapshot struct {
	OrderID   string                  `json:"orderId"`
	State     State                   `json:"state"`
	Reason    StopReason              `json:"reason,omitempty"`
	Status    *models.OrderStatusView `json:"status,omitempty"`
	Fetches   int                     `json:"fetches"`
	LastError string                  `json:"lastError,omitempty"`
}

// Done reports whether the poller has reached a final state
func (s Snapshot) Done() bool {
	return s.State == StateTerminal || s.State == StateStopped
}

// Poller is a cancellable status-polling task for one order
type Poller struct {
	fetcher  StatusFetcher
	orderID  string
	returned bool
	interval time.Duration
	timeout  time.Duration
	clock    clock.Clock

	mu       sync.Mutex
	state    State
	reason   StopReason
	status   *models.OrderStatusView
	fetches  int
	lastErr  error
	finished bool
	tick     clock.Timer
	deadline clock.Timer
	ctx      context.Context
	cancel   context.CancelFunc
	unwatch  func() bool

	updates chan Snapshot
	done    chan struct{}
}

// New creates a poller for orderID. returned is the return marker: only a
// buyer coming back from the payment provider gets polled.
func New(fetcher StatusFetcher, orderID string, returned bool, cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	return &Poller{
		fetcher:  fetcher,
		orderID:  orderID,
		returned: returned,
		interval: cfg.Interval,
		timeout:  cfg.Timeout,
		clock:    cfg.Clock,
		state:    StateInitial,
		updates:  make(chan Snapshot, 8),
		done:     make(chan struct{}),
	}
}

// Start performs the first fetch and, when the buyer has returned from
// payment and the order is not yet settled, schedules the polling timers.
// Cancelling ctx stops the poller. It returns the snapshot after the first
// fetch.
func (p *Poller) Start(ctx context.Context) Snapshot {
	p.mu.Lock()
	if p.finished || p.state != StateInitial {
		defer p.mu.Unlock()
		return p.snapshotLocked()
	}
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.state = StateLoading
	p.fetches++
	p.publishLocked()
	fetchCtx := p.ctx
	p.mu.Unlock()

	status, err := p.fetcher.GetOrderStatus(fetchCtx, p.orderID)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finished {
		return p.snapshotLocked()
	}
	p.record(status, err)

	switch {
	case p.status.IsTerminal():
		p.finishLocked(StateTerminal, ReasonNone)
	case !p.returned:
		p.finishLocked(StateStopped, ReasonNoReturnMarker)
	default:
		p.state = StateVerifying
		p.deadline = p.clock.AfterFunc(p.timeout, p.onTimeout)
		p.tick = p.clock.AfterFunc(p.interval, p.onTick)
		p.unwatch = context.AfterFunc(p.ctx, p.Stop)
		p.publishLocked()
	}
	return p.snapshotLocked()
}

// Stop cancels polling. Timers are invalidated and any result still in
// flight is discarded.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finished {
		return
	}
	p.finishLocked(StateStopped, ReasonCancelled)
}

// Wait blocks until the poller finishes or ctx is done, in which case the
// poller is stopped. It returns the final snapshot.
func (p *Poller) Wait(ctx context.Context) Snapshot {
	select {
	case <-p.done:
	case <-ctx.Done():
		p.Stop()
	}
	return p.Snapshot()
}

// Snapshot returns the current view
func (p *Poller) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// Updates delivers snapshots as the poller changes. Slow readers see only the
// most recent changes. The channel is closed after the final snapshot.
func (p *Poller) Updates() <-chan Snapshot {
	return p.updates
}

// Done is closed when the poller reaches TERMINAL or STOPPED
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

func (p *Poller) onTick() {
	p.mu.Lock()
	if p.finished {
		p.mu.Unlock()
		return
	}
	p.fetches++
	fetchCtx := p.ctx
	p.mu.Unlock()

	status, err := p.fetcher.GetOrderStatus(fetchCtx, p.orderID)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finished {
		return
	}
	p.record(status, err)

	if p.status.IsTerminal() {
		p.finishLocked(StateTerminal, ReasonNone)
		return
	}
	p.publishLocked()
	p.tick = p.clock.AfterFunc(p.interval, p.onTick)
}

func (p *Poller) onTimeout() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finished {
		return
	}
	p.finishLocked(StateStopped, ReasonTimeout)
}

// record keeps the last known status; a failed fetch leaves it in place.
func (p *Poller) record(status *models.OrderStatusView, err error) {
	if err != nil || status == nil {
		if err != nil {
			p.lastErr = err
			log.Printf("Order %s status check failed: %v", p.orderID, err)
		}
		return
	}
	p.status = status
	p.lastErr = nil
}

func (p *Poller) finishLocked(state State, reason StopReason) {
	p.finished = true
	p.state = state
	p.reason = reason
	if p.tick != nil {
		p.tick.Stop()
	}
	if p.deadline != nil {
		p.deadline.Stop()
	}
	if p.unwatch != nil {
		p.unwatch()
	}
	if p.cancel != nil {
		p.cancel()
	}
	p.publishLocked()
	close(p.updates)
	close(p.done)
}

// publishLocked never blocks: when the buffer is full the oldest snapshot is
// dropped so the newest is always delivered.
func (p *Poller) publishLocked() {
	snap := p.snapshotLocked()
	for {
		select {
		case p.updates <- snap:
			return
		default:
		}
		select {
		case <-p.updates:
		default:
		}
	}
}

func (p *Poller) snapshotLocked() Snapshot {
	snap := Snapshot{
		OrderID: p.orderID,
		State:   p.state,
		Reason:  p.reason,
		Fetches: p.fetches,
	}
	if p.status != nil {
		status := *p.status
		snap.Status = &status
	}
	if p.lastErr != nil {
		snap.LastError = p.lastErr.Error()
	}
	return snap
}
