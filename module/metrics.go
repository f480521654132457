package module

import (
	"time"
)

// GatewayMetrics exposes the request lifecycle counters of a gateway
// configuration to the metrics layer.
type GatewayMetrics interface {
	// RequestSubmitted is called on every submission attempt, including
	// resubmissions driven by the control channel.
	RequestSubmitted(iface string, operation string)

	// RequestResubmitted is called when the control channel resubmits a
	// provisional request whose retry interval elapsed.
	RequestResubmitted(iface string, operation string)

	// RequestResolved is called when a request reaches the resolved state.
	RequestResolved(iface string, operation string, duration time.Duration)

	// RequestRejected is called when a request reaches the rejected state.
	RequestRejected(iface string, operation string, duration time.Duration)

	// PendingRequests reports the current size of the control channel's
	// pending collection.
	PendingRequests(pending uint)

	// ChannelLoad reports the aggregate load snapshot of the control channel:
	// the timestamps of the most recent request and response activity.
	ChannelLoad(lastRequest time.Time, lastResponse time.Time)
}
