package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/itwin-go/gateway/model/rpc"
	"github.com/itwin-go/gateway/registry"
	"github.com/itwin-go/gateway/utils/unittest"
)

func testServer(t *testing.T, routes registry.Routes) *httptest.Server {
	reg := registry.New(unittest.Logger())
	operations := make([]string, 0, len(routes))
	for op := range routes {
		operations = append(operations, op)
	}
	def := rpc.NewDefinition("inventory", operations...)
	require.NoError(t, reg.RegisterImplementation(def, routes))

	server := NewServer(unittest.Logger(), reg, DefaultServerConfig())
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func echoRoutes() registry.Routes {
	return registry.Routes{
		"echo": func(ctx context.Context, params []interface{}) (interface{}, error) {
			if len(params) == 0 {
				return nil, nil
			}
			return params[0], nil
		},
	}
}

func TestWebSendResolves(t *testing.T) {
	ts := testServer(t, echoRoutes())
	p := NewClient(unittest.Logger(), ts.URL)
	require.False(t, p.Synchronous())

	req := rpc.NewRequest(p, rpc.Descriptor{Interface: "inventory", Operation: "echo"},
		[]interface{}{"hello"})

	require.NoError(t, p.Send(context.Background(), req))
	require.Equal(t, rpc.StatusResolved, req.Status())

	result, err := req.Await(context.Background())
	require.NoError(t, err)
	require.Equal(t, "hello", result)

	// the exchange released the connecting flag
	require.False(t, req.Connecting())
}

func TestWebSendBackendError(t *testing.T) {
	ts := testServer(t, registry.Routes{
		"fail": func(ctx context.Context, params []interface{}) (interface{}, error) {
			return nil, rpc.BackendError{
				Descriptor: rpc.Descriptor{Interface: "inventory", Operation: "fail"},
				Message:    "backend exploded",
			}
		},
	})
	p := NewClient(unittest.Logger(), ts.URL)

	req := rpc.NewRequest(p, rpc.Descriptor{Interface: "inventory", Operation: "fail"}, nil)

	// the application error rejects the request but is not a Send failure
	require.NoError(t, p.Send(context.Background(), req))
	require.Equal(t, rpc.StatusRejected, req.Status())

	_, err := req.Await(context.Background())
	require.True(t, rpc.IsBackendError(err))
	require.Contains(t, err.Error(), "backend exploded")
}

func TestWebSendPendingResult(t *testing.T) {
	ts := testServer(t, registry.Routes{
		"slow": func(ctx context.Context, params []interface{}) (interface{}, error) {
			return nil, rpc.PendingError{
				Descriptor: rpc.Descriptor{Interface: "inventory", Operation: "slow"},
				RetryAfter: 250 * time.Millisecond,
			}
		},
	})
	p := NewClient(unittest.Logger(), ts.URL)

	req := rpc.NewRequest(p, rpc.Descriptor{Interface: "inventory", Operation: "slow"}, nil,
		rpc.WithRetryInterval(time.Second))

	err := p.Send(context.Background(), req)
	require.Error(t, err)
	require.True(t, rpc.IsRecoverableError(err))

	// the request is handed back for retry with the backend's hint applied
	require.Equal(t, rpc.StatusProvisional, req.Status())
	require.Equal(t, 250*time.Millisecond, req.RetryInterval())
}

func TestWebSendGatewayStatusIsRecoverable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(ts.Close)

	p := NewClient(unittest.Logger(), ts.URL)
	req := rpc.NewRequest(p, rpc.Descriptor{Interface: "inventory", Operation: "echo"}, nil)

	err := p.Send(context.Background(), req)
	require.Error(t, err)
	require.True(t, rpc.IsRecoverableError(err))
	require.Equal(t, rpc.StatusProvisional, req.Status())
	require.Equal(t, 2*time.Second, req.RetryInterval())
}

func TestWebSendUnexpectedStatusIsFatal(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(ts.Close)

	p := NewClient(unittest.Logger(), ts.URL)
	req := rpc.NewRequest(p, rpc.Descriptor{Interface: "inventory", Operation: "echo"}, nil)

	err := p.Send(context.Background(), req)
	require.Error(t, err)
	require.True(t, rpc.IsConnectionAbortedError(err))
	require.Equal(t, rpc.StatusRejected, req.Status())
}

func TestWebSendMalformedResponseIsFatal(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", ContentType)
		_, _ = w.Write([]byte("not msgpack at all"))
	}))
	t.Cleanup(ts.Close)

	p := NewClient(unittest.Logger(), ts.URL)
	req := rpc.NewRequest(p, rpc.Descriptor{Interface: "inventory", Operation: "echo"}, nil)

	err := p.Send(context.Background(), req)
	require.Error(t, err)
	require.True(t, rpc.IsConnectionAbortedError(err))
	require.Equal(t, rpc.StatusRejected, req.Status())
}

func TestWebSendTransportFailureIsRecoverable(t *testing.T) {
	// a server that is already gone yields a dial failure
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close()

	p := NewClient(unittest.Logger(), ts.URL)
	req := rpc.NewRequest(p, rpc.Descriptor{Interface: "inventory", Operation: "echo"}, nil)

	err := p.Send(context.Background(), req)
	require.Error(t, err)
	require.True(t, rpc.IsRecoverableError(err))
	require.Equal(t, rpc.StatusProvisional, req.Status())
}

func TestWebSendCancelledContextIsFatal(t *testing.T) {
	ts := testServer(t, echoRoutes())
	p := NewClient(unittest.Logger(), ts.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := rpc.NewRequest(p, rpc.Descriptor{Interface: "inventory", Operation: "echo"}, nil)

	err := p.Send(ctx, req)
	require.Error(t, err)
	require.True(t, rpc.IsConnectionAbortedError(err))
	require.Equal(t, rpc.StatusRejected, req.Status())
}

func TestWebServerUnknownOperation(t *testing.T) {
	ts := testServer(t, echoRoutes())
	p := NewClient(unittest.Logger(), ts.URL)

	req := rpc.NewRequest(p, rpc.Descriptor{Interface: "inventory", Operation: "dropItems"}, nil)

	// the server reports the unknown operation as a backend error carrying
	// the descriptor
	require.NoError(t, p.Send(context.Background(), req))
	require.Equal(t, rpc.StatusRejected, req.Status())

	_, err := req.Await(context.Background())
	require.True(t, rpc.IsBackendError(err))
	require.Contains(t, err.Error(), "inventory.dropItems")
}

func TestWebSendEmitsLifecycleEvents(t *testing.T) {
	ts := testServer(t, echoRoutes())
	p := NewClient(unittest.Logger(), ts.URL)

	var events []rpc.Event
	p.Events().Subscribe(consumerFunc(func(event rpc.Event) {
		events = append(events, event)
	}))

	req := rpc.NewRequest(p, rpc.Descriptor{Interface: "inventory", Operation: "echo"},
		[]interface{}{"hello"})
	require.NoError(t, p.Send(context.Background(), req))

	require.Len(t, events, 2)
	require.Equal(t, rpc.EventRequestCreated, events[0].Kind)
	require.Equal(t, rpc.EventResponseLoaded, events[1].Kind)
	require.Equal(t, http.StatusOK, events[1].Status)
	require.Contains(t, events[1].Path, "/rpc/inventory/echo")
}

func TestParseRetryAfter(t *testing.T) {
	require.Equal(t, time.Duration(0), parseRetryAfter(""))
	require.Equal(t, time.Duration(0), parseRetryAfter("soon"))
	require.Equal(t, time.Duration(0), parseRetryAfter("-1"))
	require.Equal(t, 3*time.Second, parseRetryAfter("3"))
}

// consumerFunc adapts a function to the rpc.Consumer interface for tests.
type consumerFunc func(event rpc.Event)

func (f consumerFunc) HandleRequestEvent(event rpc.Event) {
	f(event)
}
