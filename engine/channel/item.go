package channel

import (
	"github.com/itwin-go/gateway/model/rpc"
)

// item is one slot of the pending collection. The pending flag is cleared
// when a dequeue is requested; if that happens while the collection is being
// iterated, the slot stays in place until the next cleanup sweep removes it.
type item struct {
	req     *rpc.Request
	pending bool
}
