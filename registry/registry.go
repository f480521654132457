// Package registry holds the implementations that back registered RPC
// interfaces. The registry is an explicit object owned by the process
// bootstrap; there is deliberately no module-level state.
package registry

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/itwin-go/gateway/model/rpc"
)

// HandlerFunc executes one operation of an implementation with the given
// positional parameters.
type HandlerFunc func(ctx context.Context, params []interface{}) (interface{}, error)

// Implementation is a concrete backing object for a registered interface. It
// exposes its operations as a name-to-handler table; the registry copies the
// table at registration time so that invocation is a plain lookup.
type Implementation interface {
	Routes() map[string]HandlerFunc
}

// Registry tracks initialized interface definitions and their registered
// implementations. Registration happens once per process per interface during
// bootstrap; dispatch is concurrency safe afterwards.
type Registry struct {
	log zerolog.Logger

	mu          sync.Mutex
	initialized map[string]rpc.Definition
	dispatchers map[string]*Dispatcher
	impls       map[string]Implementation
}

// New creates an empty registry.
func New(log zerolog.Logger) *Registry {
	return &Registry{
		log:         log.With().Str("component", "rpc_registry").Logger(),
		initialized: make(map[string]rpc.Definition),
		dispatchers: make(map[string]*Dispatcher),
		impls:       make(map[string]Implementation),
	}
}

// Initialize records the interface definition, making its operations known to
// the process. Initializing the same interface twice is a misconfiguration
// and fails fast.
func (r *Registry) Initialize(def rpc.Definition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.initialized[def.Interface]; exists {
		return rpc.AlreadyInitializedError{Interface: def.Interface}
	}
	r.initialized[def.Interface] = def

	r.log.Debug().
		Str("interface", def.Interface).
		Int("operations", len(def.Operations)).
		Msg("interface initialized")

	return nil
}

// Definition returns the initialized definition for the named interface.
func (r *Registry) Definition(iface string) (rpc.Definition, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	def, ok := r.initialized[iface]
	return def, ok
}

// RegisterImplementation binds the implementation to the interface and builds
// its dispatch table. Every operation of the definition must be covered by
// the implementation's routes; a missing route is a misconfiguration and
// fails fast with a descriptor-carrying error.
func (r *Registry) RegisterImplementation(def rpc.Definition, impl Implementation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.dispatchers[def.Interface]; exists {
		return rpc.AlreadyRegisteredError{Interface: def.Interface}
	}

	routes := impl.Routes()
	table := make(map[string]HandlerFunc, len(def.Operations))
	for _, op := range def.Operations {
		handler, ok := routes[op]
		if !ok {
			return rpc.NewOperationNotFoundError(def.Descriptor(op))
		}
		table[op] = handler
	}

	r.dispatchers[def.Interface] = &Dispatcher{
		def:    def,
		routes: table,
	}
	r.impls[def.Interface] = impl

	// an implementation registration implies the definition is known
	if _, exists := r.initialized[def.Interface]; !exists {
		r.initialized[def.Interface] = def
	}

	r.log.Debug().
		Str("interface", def.Interface).
		Int("operations", len(table)).
		Msg("implementation registered")

	return nil
}

// Dispatcher returns the dispatcher for the named interface, failing with
// UnregisteredInterfaceError if no implementation has been registered.
func (r *Registry) Dispatcher(iface string) (*Dispatcher, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dispatcher, ok := r.dispatchers[iface]
	if !ok {
		return nil, rpc.NewUnregisteredInterfaceError(iface)
	}
	return dispatcher, nil
}

// Close tears the registry down, closing any implementations that hold
// resources. The registry is unusable afterwards.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result *multierror.Error
	for iface, impl := range r.impls {
		closer, ok := impl.(io.Closer)
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("could not close implementation of %q: %w", iface, err))
		}
	}

	r.initialized = make(map[string]rpc.Definition)
	r.dispatchers = make(map[string]*Dispatcher)
	r.impls = make(map[string]Implementation)

	return result.ErrorOrNil()
}

// Dispatcher forwards invocations to the handlers of one registered
// implementation. It is a name-to-function lookup built at registration time
// and carries no retry or queueing logic of its own.
type Dispatcher struct {
	def    rpc.Definition
	routes map[string]HandlerFunc
}

// Definition returns the interface definition this dispatcher serves.
func (d *Dispatcher) Definition() rpc.Definition {
	return d.def
}

// Invoke locates the handler bound to the named operation and applies it to
// the positional parameter list. Invoking an operation that does not exist on
// the implementation surfaces a descriptor-carrying fatal error.
func (d *Dispatcher) Invoke(ctx context.Context, operation string, params []interface{}) (interface{}, error) {
	handler, ok := d.routes[operation]
	if !ok {
		return nil, rpc.NewOperationNotFoundError(d.def.Descriptor(operation))
	}
	return handler(ctx, params)
}

// Routes is a convenience Implementation built from a plain handler table.
type Routes map[string]HandlerFunc

func (r Routes) Routes() map[string]HandlerFunc {
	return r
}
