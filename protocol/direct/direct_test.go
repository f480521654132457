package direct

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/itwin-go/gateway/model/rpc"
	"github.com/itwin-go/gateway/protocol"
	"github.com/itwin-go/gateway/registry"
	"github.com/itwin-go/gateway/utils/unittest"
)

func setupRegistry(t *testing.T) *registry.Registry {
	reg := registry.New(unittest.Logger())
	def := rpc.NewDefinition("inventory", "getItems", "failItems")
	err := reg.RegisterImplementation(def, registry.Routes{
		"getItems": func(ctx context.Context, params []interface{}) (interface{}, error) {
			return params, nil
		},
		"failItems": func(ctx context.Context, params []interface{}) (interface{}, error) {
			return nil, errors.New("backend exploded")
		},
	})
	require.NoError(t, err)
	return reg
}

func collectEvents(p *Protocol) *[]rpc.Event {
	events := &[]rpc.Event{}
	p.Events().Subscribe(protocol.ConsumerFunc(func(event rpc.Event) {
		*events = append(*events, event)
	}))
	return events
}

func TestDirectSendResolvesInline(t *testing.T) {
	p := New(unittest.Logger(), setupRegistry(t))
	require.True(t, p.Synchronous())
	events := collectEvents(p)

	req := rpc.NewRequest(p, rpc.Descriptor{Interface: "inventory", Operation: "getItems"},
		[]interface{}{"a", "b"})

	require.NoError(t, p.Send(context.Background(), req))

	// the request is terminal before Send returns
	require.Equal(t, rpc.StatusResolved, req.Status())
	result, err := req.Await(context.Background())
	require.NoError(t, err)
	require.Equal(t, []interface{}{"a", "b"}, result)

	require.Len(t, *events, 2)
	require.Equal(t, rpc.EventRequestCreated, (*events)[0].Kind)
	require.Equal(t, rpc.EventResponseLoaded, (*events)[1].Kind)
	require.Equal(t, "direct", (*events)[1].Path)
}

func TestDirectSendApplicationError(t *testing.T) {
	p := New(unittest.Logger(), setupRegistry(t))
	events := collectEvents(p)

	req := rpc.NewRequest(p, rpc.Descriptor{Interface: "inventory", Operation: "failItems"}, nil)

	// an application error rejects the request but is not a Send failure
	require.NoError(t, p.Send(context.Background(), req))
	require.Equal(t, rpc.StatusRejected, req.Status())

	_, err := req.Await(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "backend exploded")

	require.Len(t, *events, 2)
	require.Equal(t, rpc.EventBackendError, (*events)[1].Kind)
}

func TestDirectSendUnknownOperation(t *testing.T) {
	p := New(unittest.Logger(), setupRegistry(t))

	req := rpc.NewRequest(p, rpc.Descriptor{Interface: "inventory", Operation: "dropItems"}, nil)

	// a programming error surfaces to the caller and rejects the request
	err := p.Send(context.Background(), req)
	require.Error(t, err)
	require.True(t, rpc.IsOperationNotFoundError(err))
	require.Equal(t, rpc.StatusRejected, req.Status())
}

func TestDirectSendUnregisteredInterface(t *testing.T) {
	p := New(unittest.Logger(), registry.New(unittest.Logger()))

	req := rpc.NewRequest(p, rpc.Descriptor{Interface: "inventory", Operation: "getItems"}, nil)

	err := p.Send(context.Background(), req)
	require.Error(t, err)
	require.True(t, rpc.IsUnregisteredInterfaceError(err))
	require.Equal(t, rpc.StatusRejected, req.Status())
}

func TestDirectSendTerminalRequest(t *testing.T) {
	p := New(unittest.Logger(), setupRegistry(t))

	req := rpc.NewRequest(p, rpc.Descriptor{Interface: "inventory", Operation: "getItems"}, nil)
	require.NoError(t, p.Send(context.Background(), req))

	// a terminal request cannot be sent again
	err := p.Send(context.Background(), req)
	require.Error(t, err)
	require.True(t, rpc.IsInvalidTransitionError(err))
}
