package metrics

import (
	"time"

	"github.com/itwin-go/gateway/module"
)

type NoopCollector struct{}

func NewNoopCollector() *NoopCollector {
	nc := &NoopCollector{}
	return nc
}

var _ module.GatewayMetrics = (*NoopCollector)(nil)

func (nc *NoopCollector) RequestSubmitted(iface string, operation string)                      {}
func (nc *NoopCollector) RequestResubmitted(iface string, operation string)                    {}
func (nc *NoopCollector) RequestResolved(iface string, operation string, d time.Duration)      {}
func (nc *NoopCollector) RequestRejected(iface string, operation string, d time.Duration)      {}
func (nc *NoopCollector) PendingRequests(pending uint)                                         {}
func (nc *NoopCollector) ChannelLoad(lastRequest time.Time, lastResponse time.Time)            {}
