package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itwin-go/gateway/model/rpc"
	"github.com/itwin-go/gateway/utils/unittest"
)

func inventoryDefinition() rpc.Definition {
	return rpc.NewDefinition("inventory", "getItems", "countItems")
}

func inventoryImpl() Routes {
	return Routes{
		"getItems": func(ctx context.Context, params []interface{}) (interface{}, error) {
			items := make([]interface{}, 0, len(params))
			for _, p := range params {
				items = append(items, p)
			}
			return items, nil
		},
		"countItems": func(ctx context.Context, params []interface{}) (interface{}, error) {
			return len(params), nil
		},
	}
}

func TestRegistryDispatch(t *testing.T) {
	reg := New(unittest.Logger())
	def := inventoryDefinition()
	require.NoError(t, reg.RegisterImplementation(def, inventoryImpl()))

	dispatcher, err := reg.Dispatcher("inventory")
	require.NoError(t, err)

	// each operation resolves through its own handler with the exact
	// parameters of the invocation
	result, err := dispatcher.Invoke(context.Background(), "getItems", []interface{}{"a", "b"})
	require.NoError(t, err)
	require.Equal(t, []interface{}{"a", "b"}, result)

	result, err = dispatcher.Invoke(context.Background(), "countItems", []interface{}{"a", "b", "c"})
	require.NoError(t, err)
	require.Equal(t, 3, result)
}

func TestRegistryUnknownOperation(t *testing.T) {
	reg := New(unittest.Logger())
	def := inventoryDefinition()
	require.NoError(t, reg.RegisterImplementation(def, inventoryImpl()))

	dispatcher, err := reg.Dispatcher("inventory")
	require.NoError(t, err)

	_, err = dispatcher.Invoke(context.Background(), "dropItems", nil)
	require.Error(t, err)
	require.True(t, rpc.IsOperationNotFoundError(err))
	assert.Contains(t, err.Error(), "inventory.dropItems")
}

func TestRegistryUnregisteredInterface(t *testing.T) {
	reg := New(unittest.Logger())

	_, err := reg.Dispatcher("inventory")
	require.Error(t, err)
	require.True(t, rpc.IsUnregisteredInterfaceError(err))
}

func TestRegistryDoubleInitialize(t *testing.T) {
	reg := New(unittest.Logger())
	def := inventoryDefinition()

	require.NoError(t, reg.Initialize(def))
	err := reg.Initialize(def)
	require.Error(t, err)
	require.True(t, rpc.IsAlreadyInitializedError(err))
}

func TestRegistryDoubleRegister(t *testing.T) {
	reg := New(unittest.Logger())
	def := inventoryDefinition()

	require.NoError(t, reg.RegisterImplementation(def, inventoryImpl()))
	err := reg.RegisterImplementation(def, inventoryImpl())
	require.Error(t, err)
	require.True(t, rpc.IsAlreadyRegisteredError(err))
}

func TestRegistryMissingRoute(t *testing.T) {
	reg := New(unittest.Logger())
	def := inventoryDefinition()

	incomplete := Routes{
		"getItems": func(ctx context.Context, params []interface{}) (interface{}, error) {
			return nil, nil
		},
	}

	err := reg.RegisterImplementation(def, incomplete)
	require.Error(t, err)
	require.True(t, rpc.IsOperationNotFoundError(err))

	// a failed registration leaves the interface unregistered
	_, err = reg.Dispatcher("inventory")
	require.True(t, rpc.IsUnregisteredInterfaceError(err))
}

type closingImpl struct {
	routes Routes
	closed bool
}

func (c *closingImpl) Routes() map[string]HandlerFunc {
	return c.routes.Routes()
}

func (c *closingImpl) Close() error {
	c.closed = true
	return nil
}

func TestRegistryCloseReleasesImplementations(t *testing.T) {
	reg := New(unittest.Logger())
	def := inventoryDefinition()

	impl := &closingImpl{routes: inventoryImpl()}
	require.NoError(t, reg.RegisterImplementation(def, impl))

	require.NoError(t, reg.Close())
	require.True(t, impl.closed)

	// the registry is empty afterwards
	_, err := reg.Dispatcher("inventory")
	require.True(t, rpc.IsUnregisteredInterfaceError(err))
}
