package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/itwin-go/gateway/model/rpc"
)

func TestDistributorPublishesToAllSubscribers(t *testing.T) {
	d := NewDistributor()

	var first, second []rpc.Event
	d.Subscribe(ConsumerFunc(func(event rpc.Event) {
		first = append(first, event)
	}))
	d.Subscribe(ConsumerFunc(func(event rpc.Event) {
		second = append(second, event)
	}))

	d.Publish(rpc.Event{Kind: rpc.EventRequestCreated})
	d.Publish(rpc.Event{Kind: rpc.EventResponseLoaded})

	require.Len(t, first, 2)
	require.Len(t, second, 2)
}

func TestDistributorUnsubscribe(t *testing.T) {
	d := NewDistributor()

	var received []rpc.Event
	unsubscribe := d.Subscribe(ConsumerFunc(func(event rpc.Event) {
		received = append(received, event)
	}))

	d.Publish(rpc.Event{Kind: rpc.EventRequestCreated})
	unsubscribe()
	d.Publish(rpc.Event{Kind: rpc.EventResponseLoaded})

	require.Len(t, received, 1)

	// unsubscribing again is a no-op
	unsubscribe()
}

func TestDistributorPublishWithoutSubscribers(t *testing.T) {
	d := NewDistributor()
	d.Publish(rpc.Event{Kind: rpc.EventRequestCreated})
}
