// Package direct implements the in-process protocol: requests are dispatched
// straight to the registered implementation on the calling goroutine, with no
// wire format and no retries.
package direct

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/itwin-go/gateway/model/rpc"
	"github.com/itwin-go/gateway/protocol"
	"github.com/itwin-go/gateway/registry"
)

const transportPath = "direct"

// Protocol invokes operations in-process through a registry. Every send
// reaches a terminal state before returning, so requests on this protocol
// never enter the polling path.
type Protocol struct {
	log      zerolog.Logger
	registry *registry.Registry
	events   *protocol.Distributor
}

var _ protocol.Protocol = (*Protocol)(nil)

// New creates a direct protocol backed by the given registry.
func New(log zerolog.Logger, reg *registry.Registry) *Protocol {
	return &Protocol{
		log:      log.With().Str("component", "direct_protocol").Logger(),
		registry: reg,
		events:   protocol.NewDistributor(),
	}
}

// Synchronous always reports true for the direct protocol.
func (p *Protocol) Synchronous() bool {
	return true
}

// Events returns the distributor for this protocol's lifecycle events.
func (p *Protocol) Events() *protocol.Distributor {
	return p.events
}

// Send dispatches the request to the registered implementation and completes
// it inline. Application errors reject the request and are not returned;
// programming errors (unregistered interface, unknown operation) reject the
// request and are also returned to the caller.
func (p *Protocol) Send(ctx context.Context, req *rpc.Request) error {

	descriptor := req.Descriptor()

	if err := req.MarkSubmitted(); err != nil {
		return err
	}
	p.publish(rpc.EventRequestCreated, req, 0, nil)

	dispatcher, err := p.registry.Dispatcher(descriptor.Interface)
	if err != nil {
		p.reject(req, err)
		return err
	}

	result, err := dispatcher.Invoke(ctx, descriptor.Operation, req.Parameters())
	if err != nil {
		p.reject(req, err)
		if rpc.IsOperationNotFoundError(err) {
			return err
		}
		return nil
	}

	if err := req.Resolve(result); err != nil {
		p.log.Debug().Err(err).
			Str("descriptor", descriptor.String()).
			Msg("could not resolve request")
		return nil
	}
	p.publish(rpc.EventResponseLoaded, req, 0, nil)

	return nil
}

func (p *Protocol) reject(req *rpc.Request, cause error) {
	if err := req.Reject(cause); err != nil {
		p.log.Debug().Err(err).
			Str("descriptor", req.Descriptor().String()).
			Msg("could not reject request")
		return
	}
	p.publish(rpc.EventBackendError, req, 0, cause)
}

func (p *Protocol) publish(kind rpc.EventKind, req *rpc.Request, status int, err error) {
	p.events.Publish(rpc.Event{
		Kind:       kind,
		Request:    req,
		Descriptor: req.Descriptor(),
		Path:       transportPath,
		Status:     status,
		Elapsed:    req.Elapsed(),
		Err:        err,
	})
}
