package protocol

import (
	"github.com/itwin-go/gateway/model/rpc"
)

// Protocol is the transport abstraction that turns a request into bytes and
// back. Every request is associated with exactly one protocol for its entire
// lifetime. A protocol emits lifecycle events through its distributor; it has
// no knowledge of the control channel — the two are decoupled via the shared
// event stream.
type Protocol interface {
	rpc.Sender

	// Synchronous reports whether Send resolves requests inline by invoking
	// the paired implementation within the calling goroutine. For synchronous
	// protocols the control channel's polling path is never exercised.
	Synchronous() bool

	// Events returns the distributor for this protocol's lifecycle events.
	Events() *Distributor
}

// ConsumerFunc adapts a plain function to the rpc.Consumer interface.
type ConsumerFunc func(event rpc.Event)

func (f ConsumerFunc) HandleRequestEvent(event rpc.Event) {
	f(event)
}
