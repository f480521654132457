package protocol

import (
	"sync"

	"github.com/itwin-go/gateway/model/rpc"
)

// Distributor fans protocol lifecycle events out to subscribed consumers.
// It is the integration point for the control channel and for external
// observability collaborators.
type Distributor struct {
	mu        sync.RWMutex
	nextID    uint64
	consumers map[uint64]rpc.Consumer
}

// NewDistributor creates an event distributor with no subscribers.
func NewDistributor() *Distributor {
	return &Distributor{
		consumers: make(map[uint64]rpc.Consumer),
	}
}

// Subscribe registers a consumer for all future events and returns the
// matching unsubscribe function. Unsubscribing more than once is a no-op.
func (d *Distributor) Subscribe(consumer rpc.Consumer) func() {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := d.nextID
	d.nextID++
	d.consumers[id] = consumer

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			delete(d.consumers, id)
		})
	}
}

// Publish delivers the event to all current subscribers. Delivery happens on
// the publisher's goroutine; consumers must be non-blocking.
func (d *Distributor) Publish(event rpc.Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, consumer := range d.consumers {
		consumer.HandleRequestEvent(event)
	}
}
