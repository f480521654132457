package rpc

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/atomic"
)

// DefaultRetryInterval is the retry interval a request starts out with when
// its configuration does not override it.
const DefaultRetryInterval = 500 * time.Millisecond

// Sender transmits a request over a concrete transport. It is the narrow view
// of a protocol that a request needs in order to be resubmitted.
type Sender interface {
	// Send transmits the request, transitioning it to the submitted state and
	// eventually to a provisional or terminal state. The returned error
	// reflects the transmission outcome and is also recorded on the request
	// for terminal failures.
	Send(ctx context.Context, req *Request) error
}

// Request is a single pending or completed remote call. It owns its status,
// timestamps, retry interval and eventual result, and is associated with
// exactly one sender (protocol) for its entire lifetime.
//
// All state transitions are concurrency safe. The status moves monotonically
// along the machine described on Status; transitions outside the machine are
// refused with InvalidTransitionError, which in particular enforces that a
// request resolves or rejects exactly once.
type Request struct {
	id         uuid.UUID
	descriptor Descriptor
	params     []interface{}
	sender     Sender
	clock      clock.Clock

	mu            sync.Mutex
	status        Status
	createdAt     time.Time
	lastSubmitted time.Time
	lastUpdated   time.Time
	retryInterval time.Duration
	attempts      uint

	connecting *atomic.Bool

	done   chan struct{}
	result interface{}
	err    error
}

// RequestOption customizes request construction.
type RequestOption func(*Request)

// WithClock sets the clock used for the request's lifecycle timestamps. Tests
// inject a mock clock to drive virtual time.
func WithClock(c clock.Clock) RequestOption {
	return func(r *Request) {
		r.clock = c
	}
}

// WithRetryInterval sets the initial retry interval. The interval must be
// strictly positive; non-positive values are ignored.
func WithRetryInterval(interval time.Duration) RequestOption {
	return func(r *Request) {
		if interval > 0 {
			r.retryInterval = interval
		}
	}
}

// NewRequest creates a request for one invocation of the operation identified
// by the descriptor, bound to the given sender for its entire lifetime.
func NewRequest(sender Sender, descriptor Descriptor, params []interface{}, opts ...RequestOption) *Request {
	r := &Request{
		id:            uuid.New(),
		descriptor:    descriptor,
		params:        params,
		sender:        sender,
		clock:         clock.New(),
		status:        StatusCreated,
		retryInterval: DefaultRetryInterval,
		connecting:    atomic.NewBool(false),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.createdAt = r.clock.Now()
	return r
}

// ID returns the unique identifier of this request.
func (r *Request) ID() uuid.UUID {
	return r.id
}

// Descriptor returns the interface/operation pair this request invokes.
func (r *Request) Descriptor() Descriptor {
	return r.descriptor
}

// Parameters returns the ordered call parameters.
func (r *Request) Parameters() []interface{} {
	return r.params
}

// Status returns the current lifecycle status.
func (r *Request) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Terminal checks whether the request has reached a terminal status.
func (r *Request) Terminal() bool {
	return r.Status().Terminal()
}

// CreatedAt returns the creation time of the request.
func (r *Request) CreatedAt() time.Time {
	return r.createdAt
}

// LastSubmitted returns the time of the most recent submission attempt.
func (r *Request) LastSubmitted() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastSubmitted
}

// LastUpdated returns the time the request reached its terminal status, or
// the zero time while it is still in flight.
func (r *Request) LastUpdated() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastUpdated
}

// RetryInterval returns the current retry interval.
func (r *Request) RetryInterval() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.retryInterval
}

// Attempts returns the number of submission attempts so far.
func (r *Request) Attempts() uint {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts
}

// Elapsed returns the time elapsed since the request was created.
func (r *Request) Elapsed() time.Duration {
	return r.clock.Now().Sub(r.createdAt)
}

// Connecting reports whether the request currently owns an outstanding
// transport exchange. While connecting is true, the polling loop skips
// resubmission to avoid duplicate in-flight calls.
func (r *Request) Connecting() bool {
	return r.connecting.Load()
}

// SetConnecting marks or clears the connecting flag. Clearing it externally
// allows the polling loop to retry a request whose exchange went silent.
func (r *Request) SetConnecting(connecting bool) {
	r.connecting.Store(connecting)
}

// MarkSubmitted transitions the request to the submitted state, stamping
// lastSubmitted and counting the attempt. It is called exactly once per
// submission attempt, by the protocol transmitting the request.
func (r *Request) MarkSubmitted() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.status.CanTransitionTo(StatusSubmitted) {
		return InvalidTransitionError{Descriptor: r.descriptor, From: r.status, To: StatusSubmitted}
	}
	r.status = StatusSubmitted
	r.lastSubmitted = r.clock.Now()
	r.attempts++
	return nil
}

// MarkProvisional transitions a submitted request to the provisional state,
// handing it back to the control channel for resubmission once the retry
// interval elapses.
func (r *Request) MarkProvisional() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.status.CanTransitionTo(StatusProvisional) {
		return InvalidTransitionError{Descriptor: r.descriptor, From: r.status, To: StatusProvisional}
	}
	r.status = StatusProvisional
	return nil
}

// SetRetryInterval updates the retry interval. Across consecutive failed
// attempts the interval must be strictly positive and non-decreasing; use
// ResetRetryInterval for an explicit reset.
func (r *Request) SetRetryInterval(interval time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if interval <= 0 || interval < r.retryInterval {
		return InvalidRetryIntervalError{Current: r.retryInterval, Next: interval}
	}
	r.retryInterval = interval
	return nil
}

// ResetRetryInterval explicitly resets the retry interval, e.g. when the
// backend provided its own retry-after hint. The interval must still be
// strictly positive.
func (r *Request) ResetRetryInterval(interval time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if interval <= 0 {
		return InvalidRetryIntervalError{Current: r.retryInterval, Next: interval}
	}
	r.retryInterval = interval
	return nil
}

// DueForRetry checks whether the request should be resubmitted at the given
// time: it must be provisional, must not own an outstanding exchange, and its
// retry interval must have elapsed since the last submission.
func (r *Request) DueForRetry(now time.Time) bool {
	if r.Connecting() {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StatusProvisional {
		return false
	}
	return !now.Before(r.lastSubmitted.Add(r.retryInterval))
}

// Resolve completes the request successfully with the given result value.
// A request resolves exactly once; any further terminal transition fails.
func (r *Request) Resolve(result interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.status.CanTransitionTo(StatusResolved) {
		return InvalidTransitionError{Descriptor: r.descriptor, From: r.status, To: StatusResolved}
	}
	r.status = StatusResolved
	r.lastUpdated = r.clock.Now()
	r.result = result
	close(r.done)
	return nil
}

// Reject completes the request with the given error.
func (r *Request) Reject(err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.status.CanTransitionTo(StatusRejected) {
		return InvalidTransitionError{Descriptor: r.descriptor, From: r.status, To: StatusRejected}
	}
	r.status = StatusRejected
	r.lastUpdated = r.clock.Now()
	r.err = err
	close(r.done)
	return nil
}

// Resubmit hands the request back to its protocol for another transmission
// attempt. Retries are the control channel's responsibility; this is the hook
// it uses.
func (r *Request) Resubmit(ctx context.Context) error {
	return r.sender.Send(ctx, r)
}

// Await blocks until the request reaches a terminal status or the context is
// cancelled, returning the result value or the terminal error.
func (r *Request) Await(ctx context.Context) (interface{}, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-r.done:
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.result, r.err
	}
}

// Done returns a channel that closes once the request reaches a terminal
// status.
func (r *Request) Done() <-chan struct{} {
	return r.done
}
