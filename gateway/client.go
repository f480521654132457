package gateway

import (
	"context"

	"github.com/itwin-go/gateway/model/rpc"
)

// Client invokes the operations of one initialized interface definition
// through a configuration. It is cheap to create and safe for concurrent use.
type Client struct {
	cfg *Configuration
	def rpc.Definition
}

// Client creates a client for the given interface definition.
func (c *Configuration) Client(def rpc.Definition) *Client {
	return &Client{
		cfg: c,
		def: def,
	}
}

// Invoke creates and submits a request for the named operation. An operation
// name that is not part of the interface definition fails fast with a
// descriptor-carrying error before any request is created.
//
// On a synchronous protocol the returned request is already terminal. On an
// asynchronous protocol submission proceeds in the background: if the first
// exchange does not complete the request, it is handed to the control channel
// for retry, and the caller observes completion through Await or Done.
func (cl *Client) Invoke(ctx context.Context, operation string, params ...interface{}) (*rpc.Request, error) {

	if !cl.def.HasOperation(operation) {
		return nil, rpc.NewOperationNotFoundError(cl.def.Descriptor(operation))
	}
	descriptor := cl.def.Descriptor(operation)

	req := rpc.NewRequest(cl.cfg.proto, descriptor, params,
		rpc.WithClock(cl.cfg.clock),
		rpc.WithRetryInterval(cl.cfg.channel.RetryInitial()),
	)

	cl.cfg.metrics.RequestSubmitted(descriptor.Interface, descriptor.Operation)

	if cl.cfg.proto.Synchronous() {
		if err := cl.cfg.proto.Send(ctx, req); err != nil {
			return req, err
		}
		return req, nil
	}

	go func() {
		_ = cl.cfg.proto.Send(ctx, req)
		if !req.Terminal() {
			cl.cfg.channel.Enqueue(req)
		}
	}()

	return req, nil
}

// Call invokes the operation and blocks until the request reaches a terminal
// status or the context is cancelled.
func (cl *Client) Call(ctx context.Context, operation string, params ...interface{}) (interface{}, error) {
	req, err := cl.Invoke(ctx, operation, params...)
	if err != nil {
		return nil, err
	}
	return req.Await(ctx)
}
