// Package channel implements the control channel: the per-configuration
// aggregator that tracks all pending requests sharing one transport, drives
// the polling loop that resubmits requests whose retry interval elapsed, and
// maintains the aggregate load snapshot used as a cheap backpressure signal.
package channel

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/itwin-go/gateway/model/rpc"
	"github.com/itwin-go/gateway/module"
	"github.com/itwin-go/gateway/module/component"
	"github.com/itwin-go/gateway/module/counters"
	"github.com/itwin-go/gateway/module/irrecoverable"
)

// ControlChannel owns the ordered collection of pending requests for one
// gateway configuration. Requests are visited in enqueue order on each
// polling tick, but resubmission across ticks is governed by each request's
// own retry timer, so completion order is not FIFO.
//
// The pending collection is guarded by a mutex for cross-goroutine access and
// by the pendingLock counter for reentrancy: while a tick iterates the
// collection, dequeues triggered from within the tick (e.g. a resubmission
// that resolves synchronously) only mark the slot for removal; the marked
// slots are swept in a cleanup pass once the lock count returns to zero.
//
// The polling ticker exists if and only if the pending collection is
// non-empty.
type ControlChannel struct {
	component.Component

	log     zerolog.Logger
	metrics module.GatewayMetrics
	cfg     Config
	clock   clock.Clock

	notifier module.Notifier

	mu          sync.Mutex
	pending     []*item
	index       map[uuid.UUID]*item
	pendingLock uint
	ticker      *clock.Ticker

	lastRequestTime  counters.StrictMonotonicCounter
	lastResponseTime counters.StrictMonotonicCounter
}

var _ rpc.Consumer = (*ControlChannel)(nil)

// New creates a control channel. The channel is inert until started; enqueued
// requests are only polled once the component is running.
func New(log zerolog.Logger, metrics module.GatewayMetrics, clk clock.Clock, opts ...OptionFunc) *ControlChannel {

	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	c := &ControlChannel{
		log:              log.With().Str("component", "control_channel").Logger(),
		metrics:          metrics,
		cfg:              cfg,
		clock:            clk,
		notifier:         module.NewNotifier(),
		index:            make(map[uuid.UUID]*item),
		lastRequestTime:  counters.NewMonotonicCounter(0),
		lastResponseTime: counters.NewMonotonicCounter(0),
	}

	c.Component = component.NewComponentManagerBuilder().
		AddWorker(c.pollLoop).
		Build()

	return c
}

// RetryInitial returns the retry interval assigned to new requests on this
// channel.
func (c *ControlChannel) RetryInitial() time.Duration {
	return c.cfg.RetryInitial
}

// Enqueue adds a submitted request to the pending collection and makes sure
// the polling loop is running. Enqueueing is idempotent: a request already in
// the collection, or one that already reached a terminal status, is ignored.
func (c *ControlChannel) Enqueue(req *rpc.Request) {
	// a terminal request is never resubmitted
	if req.Terminal() {
		return
	}

	c.mu.Lock()
	if _, exists := c.index[req.ID()]; exists {
		c.mu.Unlock()
		return
	}
	it := &item{req: req, pending: true}
	c.pending = append(c.pending, it)
	c.index[req.ID()] = it
	size := uint(len(c.pending))
	c.mu.Unlock()

	c.metrics.PendingRequests(size)
	c.notifier.Notify()
}

// Dequeue removes a completed request from the pending collection. If the
// collection is currently being iterated, the removal is deferred: the slot
// is marked and swept during the cleanup pass that follows the iteration.
// The polling loop stops once the collection becomes empty.
func (c *ControlChannel) Dequeue(req *rpc.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	it, exists := c.index[req.ID()]
	if !exists {
		return
	}
	it.pending = false
	if c.pendingLock == 0 {
		c.cleanupPending()
	}
}

// Contains checks whether the request is currently tracked as pending.
func (c *ControlChannel) Contains(req *rpc.Request) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, exists := c.index[req.ID()]
	return exists && it.pending
}

// Size returns the size of the backing pending collection, including slots
// marked for removal but not yet swept.
func (c *ControlChannel) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// PollingActive reports whether the polling ticker currently exists.
func (c *ControlChannel) PollingActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticker != nil
}

// LoadSnapshot returns the aggregate load of the channel: the timestamps of
// the most recent submission and the most recent response activity across all
// requests. External callers use this to estimate whether the channel is busy
// without inspecting individual requests.
func (c *ControlChannel) LoadSnapshot() (lastRequest time.Time, lastResponse time.Time) {
	if v := c.lastRequestTime.Value(); v > 0 {
		lastRequest = time.Unix(0, int64(v))
	}
	if v := c.lastResponseTime.Value(); v > 0 {
		lastResponse = time.Unix(0, int64(v))
	}
	return
}

// HandleRequestEvent consumes protocol lifecycle events, keeping the load
// snapshot current and dequeueing requests that reached a terminal status.
func (c *ControlChannel) HandleRequestEvent(event rpc.Event) {
	switch event.Kind {
	case rpc.EventRequestCreated:
		c.noteRequest()
	case rpc.EventResponseLoaded:
		c.noteResponse()
		c.Dequeue(event.Request)
		c.metrics.RequestResolved(event.Descriptor.Interface, event.Descriptor.Operation, event.Elapsed)
	case rpc.EventBackendError, rpc.EventConnectionAborted:
		c.noteResponse()
		c.Dequeue(event.Request)
		c.metrics.RequestRejected(event.Descriptor.Interface, event.Descriptor.Operation, event.Elapsed)
	case rpc.EventConnectionError, rpc.EventBackendResponseCreated:
		// recoverable outcomes still count as response activity; the request
		// stays pending and will be resubmitted by the polling loop
		c.noteResponse()
	}
}

// pollLoop runs the polling ticker while there are pending requests.
func (c *ControlChannel) pollLoop(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
	ready()

	for {
		select {
		case <-ctx.Done():
			c.mu.Lock()
			c.stopTicker()
			c.mu.Unlock()
			return

		case <-c.notifier.Channel():
			c.mu.Lock()
			if c.ticker == nil && len(c.pending) > 0 {
				c.ticker = c.clock.Ticker(c.cfg.PollInterval)
			}
			c.mu.Unlock()

		case <-c.tickerChan():
			c.poll(ctx)
		}
	}
}

// tickerChan returns the active ticker's channel, or nil while polling is
// stopped (receiving from a nil channel blocks forever).
func (c *ControlChannel) tickerChan() <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ticker == nil {
		return nil
	}
	return c.ticker.C
}

// poll visits all pending requests in enqueue order and resubmits every one
// whose retry interval has elapsed and which does not currently own an
// outstanding exchange. The iteration holds the reentrancy lock, so dequeues
// raised by synchronous resolutions are deferred until the cleanup pass.
func (c *ControlChannel) poll(ctx context.Context) {
	now := c.clock.Now()

	c.mu.Lock()
	c.pendingLock++
	due := make([]*rpc.Request, 0, len(c.pending))
	for _, it := range c.pending {
		if !it.pending {
			continue
		}
		if it.req.Terminal() {
			// completed without a dequeue; swept below
			it.pending = false
			continue
		}
		if it.req.DueForRetry(now) {
			due = append(due, it.req)
		}
	}
	c.mu.Unlock()

	for _, req := range due {
		c.resubmit(ctx, req)
	}

	c.mu.Lock()
	c.pendingLock--
	if c.pendingLock == 0 {
		c.cleanupPending()
	}
	c.mu.Unlock()
}

// resubmit hands one due request back to its protocol, growing its retry
// interval first. Requests that hit the configured retry ceiling are rejected
// instead.
func (c *ControlChannel) resubmit(ctx context.Context, req *rpc.Request) {

	descriptor := req.Descriptor()
	attempts := req.Attempts()

	if c.cfg.RetryAttempts > 0 && attempts >= c.cfg.RetryAttempts {
		err := req.Reject(rpc.RetryExhaustedError{Descriptor: descriptor, Attempts: attempts})
		if err != nil {
			// lost the race against a concurrent terminal transition
			c.Dequeue(req)
			return
		}
		c.log.Warn().
			Str("descriptor", descriptor.String()).
			Str("request_id", req.ID().String()).
			Uint("attempts", attempts).
			Msg("request exhausted retry ceiling")
		c.noteResponse()
		c.Dequeue(req)
		c.metrics.RequestRejected(descriptor.Interface, descriptor.Operation, req.Elapsed())
		return
	}

	// with an unbounded ceiling a stuck request polls forever; the log below
	// is the diagnostic aid for finding those
	if c.cfg.ResubmitWarningThreshold > 0 &&
		attempts >= c.cfg.ResubmitWarningThreshold &&
		attempts%c.cfg.ResubmitWarningThreshold == 0 {
		c.log.Warn().
			Str("descriptor", descriptor.String()).
			Str("request_id", req.ID().String()).
			Uint("attempts", attempts).
			Msg("request resubmitted beyond diagnostic threshold")
	}

	next := c.cfg.RetryFunction(req.RetryInterval())
	if next > c.cfg.RetryMaximum {
		next = c.cfg.RetryMaximum
	}
	if err := req.SetRetryInterval(next); err != nil {
		c.log.Debug().Err(err).
			Str("descriptor", descriptor.String()).
			Msg("could not grow retry interval")
	}

	c.noteRequest()
	c.metrics.RequestSubmitted(descriptor.Interface, descriptor.Operation)
	c.metrics.RequestResubmitted(descriptor.Interface, descriptor.Operation)

	err := req.Resubmit(ctx)
	if err != nil {
		c.log.Debug().Err(err).
			Str("descriptor", descriptor.String()).
			Str("request_id", req.ID().String()).
			Msg("resubmission attempt failed")
	}
}

// cleanupPending sweeps all slots marked for removal and stops the ticker if
// the collection is now empty. The caller must hold the mutex and the
// reentrancy lock count must be zero.
func (c *ControlChannel) cleanupPending() {
	kept := c.pending[:0]
	for _, it := range c.pending {
		if it.pending {
			kept = append(kept, it)
			continue
		}
		delete(c.index, it.req.ID())
	}
	for i := len(kept); i < len(c.pending); i++ {
		c.pending[i] = nil
	}
	c.pending = kept
	c.metrics.PendingRequests(uint(len(c.pending)))
	if len(c.pending) == 0 {
		c.stopTicker()
	}
}

// stopTicker stops and clears the polling ticker. The caller must hold the
// mutex.
func (c *ControlChannel) stopTicker() {
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
}

func (c *ControlChannel) noteRequest() {
	c.lastRequestTime.Set(uint64(c.clock.Now().UnixNano()))
	lastRequest, lastResponse := c.LoadSnapshot()
	c.metrics.ChannelLoad(lastRequest, lastResponse)
}

func (c *ControlChannel) noteResponse() {
	c.lastResponseTime.Set(uint64(c.clock.Now().UnixNano()))
	lastRequest, lastResponse := c.LoadSnapshot()
	c.metrics.ChannelLoad(lastRequest, lastResponse)
}
