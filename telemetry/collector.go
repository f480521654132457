// Package telemetry provides an observability collaborator that consumes
// protocol lifecycle events without participating in the request lifecycle.
package telemetry

import (
	"fmt"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/itwin-go/gateway/engine/fifoqueue"
	"github.com/itwin-go/gateway/model/rpc"
	"github.com/itwin-go/gateway/module"
	"github.com/itwin-go/gateway/module/component"
	"github.com/itwin-go/gateway/module/irrecoverable"
	"github.com/itwin-go/gateway/protocol"
)

// DefaultQueueCapacity bounds the event backlog; events past it are dropped
// and counted, never blocking the publishing protocol.
const DefaultQueueCapacity = 1024

// Collector subscribes to protocol lifecycle events and logs them on its own
// worker. Consumption is decoupled from publication through a bounded queue,
// so a slow log sink cannot stall a transport.
type Collector struct {
	component.Component

	log      zerolog.Logger
	queue    *fifoqueue.FifoQueue
	notifier module.Notifier
	dropped  *atomic.Uint64

	unsubscribe []func()
}

var _ rpc.Consumer = (*Collector)(nil)

// New creates an event collector with the given backlog capacity.
func New(log zerolog.Logger, queueCapacity int) (*Collector, error) {

	queue, err := fifoqueue.NewFifoQueue(queueCapacity)
	if err != nil {
		return nil, fmt.Errorf("could not create event queue: %w", err)
	}

	c := &Collector{
		log:      log.With().Str("component", "telemetry_collector").Logger(),
		queue:    queue,
		notifier: module.NewNotifier(),
		dropped:  atomic.NewUint64(0),
	}

	c.Component = component.NewComponentManagerBuilder().
		AddWorker(c.processLoop).
		Build()

	return c, nil
}

// Subscribe attaches the collector to the distributor. The subscription is
// released when the collector shuts down.
func (c *Collector) Subscribe(dist *protocol.Distributor) {
	c.unsubscribe = append(c.unsubscribe, dist.Subscribe(c))
}

// HandleRequestEvent enqueues the event for asynchronous processing. Events
// are dropped, not blocked on, when the backlog is full.
func (c *Collector) HandleRequestEvent(event rpc.Event) {
	if !c.queue.Push(event) {
		c.dropped.Inc()
		return
	}
	c.notifier.Notify()
}

// Dropped returns the number of events dropped due to a full backlog.
func (c *Collector) Dropped() uint64 {
	return c.dropped.Load()
}

func (c *Collector) processLoop(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
	ready()

	for {
		select {
		case <-ctx.Done():
			c.drain()
			for _, unsubscribe := range c.unsubscribe {
				unsubscribe()
			}
			return
		case <-c.notifier.Channel():
			c.drain()
		}
	}
}

func (c *Collector) drain() {
	for {
		element, ok := c.queue.Pop()
		if !ok {
			return
		}
		c.record(element.(rpc.Event))
	}
}

func (c *Collector) record(event rpc.Event) {

	entry := c.log.Debug().
		Str("event", event.Kind.String()).
		Str("descriptor", event.Descriptor.String()).
		Str("path", event.Path).
		Int("status", event.Status).
		Dur("elapsed", event.Elapsed)

	if event.Request != nil {
		entry = entry.
			Str("request_id", event.Request.ID().String()).
			Uint("attempts", event.Request.Attempts())
	}
	if event.Err != nil {
		entry = entry.Err(event.Err)
	}

	entry.Msg("request lifecycle event")
}
