package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// the collector registers against the default registerer, so it is
// constructed once for the whole test binary
var collector = NewGatewayCollector()

func counterValue(t *testing.T, vec *prometheus.CounterVec, iface, operation string) float64 {
	counter, err := vec.GetMetricWith(prometheus.Labels{LabelInterface: iface, LabelOperation: operation})
	require.NoError(t, err)
	return testutil.ToFloat64(counter)
}

func TestGatewayCollector(t *testing.T) {
	collector.RequestSubmitted("inventory", "getItems")
	collector.RequestSubmitted("inventory", "getItems")
	collector.RequestResubmitted("inventory", "getItems")
	collector.RequestResolved("inventory", "getItems", 100*time.Millisecond)
	collector.RequestRejected("inventory", "countItems", time.Second)

	require.Equal(t, 2.0, counterValue(t, collector.submitted, "inventory", "getItems"))
	require.Equal(t, 1.0, counterValue(t, collector.resubmitted, "inventory", "getItems"))
	require.Equal(t, 1.0, counterValue(t, collector.resolved, "inventory", "getItems"))
	require.Equal(t, 1.0, counterValue(t, collector.rejected, "inventory", "countItems"))

	collector.PendingRequests(7)
	require.Equal(t, 7.0, testutil.ToFloat64(collector.pending))

	now := time.Now()
	collector.ChannelLoad(now, now)
	require.Equal(t, float64(now.Unix()), testutil.ToFloat64(collector.lastRequest))
	require.Equal(t, float64(now.Unix()), testutil.ToFloat64(collector.lastResponse))

	// zero timestamps leave the gauges untouched
	collector.ChannelLoad(time.Time{}, time.Time{})
	require.Equal(t, float64(now.Unix()), testutil.ToFloat64(collector.lastRequest))
}
