package irrecoverable

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"go.uber.org/atomic"
)

// Signaler sends the error out.
type Signaler struct {
	errors  chan error
	errored *atomic.Bool
}

func NewSignaler() (*Signaler, <-chan error) {
	errors := make(chan error, 1)
	signaler := &Signaler{
		errors:  errors,
		errored: atomic.NewBool(false),
	}
	return signaler, errors
}

// Throw is a narrow drop-in replacement for panic, log.Fatal, log.Panic, etc.
// anywhere there's something connected to the error channel. It only sends
// the first error it is called with to the error channel and logs any
// subsequent errors as unhandled.
func (s *Signaler) Throw(err error) {
	defer runtime.Goexit()
	if s.errored.CompareAndSwap(false, true) {
		s.errors <- err
		close(s.errors)
	} else {
		fmt.Fprintf(os.Stderr, "unhandled irrecoverable error: %v\n", err)
	}
}

// SignalerContext is a constrained interface to provide a drop-in replacement
// for context.Context, including in interfaces that compose it.
type SignalerContext interface {
	context.Context
	Throw(err error) // delegates to the signaler
	sealed()         // private, to constrain builder to using WithSignaler
}

// private, to force context derivation / WithSignaler
type signalerCtx struct {
	context.Context
	*Signaler
}

func (sc *signalerCtx) sealed() {}

// WithSignaler is the One True Way of getting a SignalerContext.
func WithSignaler(parent context.Context) (SignalerContext, <-chan error) {
	sig, errChan := NewSignaler()
	return &signalerCtx{parent, sig}, errChan
}

// Throw enables throwing an irrecoverable error using any context.Context.
//
// If we have a SignalerContext we can directly ctx.Throw. But a lot of
// library methods expect a plain context.Context, and we want to pass the
// same context down without boilerplate. In that case we can still
// type-assert and recover the ability to throw.
func Throw(ctx context.Context, err error) {
	signalerAbleContext, ok := ctx.(SignalerContext)
	if ok {
		signalerAbleContext.Throw(err)
		return
	}
	// Be spectacular on how this does not -but should- handle irrecoverables:
	panic(fmt.Sprintf("irrecoverable error signaler not found for context, please implement! Unhandled irrecoverable error: %v", err))
}
