package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/itwin-go/gateway/module"
)

const (
	namespaceGateway = "gateway"

	subsystemRequests = "requests"
	subsystemChannel  = "channel"
)

const (
	LabelInterface = "interface"
	LabelOperation = "operation"
)

// GatewayCollector is the prometheus implementation of module.GatewayMetrics.
type GatewayCollector struct {
	submitted       *prometheus.CounterVec
	resubmitted     *prometheus.CounterVec
	resolved        *prometheus.CounterVec
	rejected        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	pending         prometheus.Gauge
	lastRequest     prometheus.Gauge
	lastResponse    prometheus.Gauge
}

var _ module.GatewayMetrics = (*GatewayCollector)(nil)

func NewGatewayCollector() *GatewayCollector {

	gc := &GatewayCollector{

		submitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name:      "submitted_total",
			Namespace: namespaceGateway,
			Subsystem: subsystemRequests,
			Help:      "the number of request submission attempts, including resubmissions",
		}, []string{LabelInterface, LabelOperation}),

		resubmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name:      "resubmitted_total",
			Namespace: namespaceGateway,
			Subsystem: subsystemRequests,
			Help:      "the number of resubmissions driven by the control channel's polling loop",
		}, []string{LabelInterface, LabelOperation}),

		resolved: promauto.NewCounterVec(prometheus.CounterOpts{
			Name:      "resolved_total",
			Namespace: namespaceGateway,
			Subsystem: subsystemRequests,
			Help:      "the number of requests that reached the resolved state",
		}, []string{LabelInterface, LabelOperation}),

		rejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name:      "rejected_total",
			Namespace: namespaceGateway,
			Subsystem: subsystemRequests,
			Help:      "the number of requests that reached the rejected state",
		}, []string{LabelInterface, LabelOperation}),

		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:      "duration_seconds",
			Namespace: namespaceGateway,
			Subsystem: subsystemRequests,
			Help:      "the time from request creation to its terminal state",
			Buckets:   []float64{.005, .025, .1, .5, 1, 2.5, 10, 60},
		}, []string{LabelInterface, LabelOperation}),

		pending: promauto.NewGauge(prometheus.GaugeOpts{
			Name:      "pending_requests",
			Namespace: namespaceGateway,
			Subsystem: subsystemChannel,
			Help:      "the current size of the control channel's pending collection",
		}),

		lastRequest: promauto.NewGauge(prometheus.GaugeOpts{
			Name:      "last_request_unix_seconds",
			Namespace: namespaceGateway,
			Subsystem: subsystemChannel,
			Help:      "the timestamp of the most recent request submission on the channel",
		}),

		lastResponse: promauto.NewGauge(prometheus.GaugeOpts{
			Name:      "last_response_unix_seconds",
			Namespace: namespaceGateway,
			Subsystem: subsystemChannel,
			Help:      "the timestamp of the most recent response activity on the channel",
		}),
	}

	return gc
}

func (gc *GatewayCollector) RequestSubmitted(iface string, operation string) {
	gc.submitted.With(prometheus.Labels{LabelInterface: iface, LabelOperation: operation}).Inc()
}

func (gc *GatewayCollector) RequestResubmitted(iface string, operation string) {
	gc.resubmitted.With(prometheus.Labels{LabelInterface: iface, LabelOperation: operation}).Inc()
}

func (gc *GatewayCollector) RequestResolved(iface string, operation string, duration time.Duration) {
	gc.resolved.With(prometheus.Labels{LabelInterface: iface, LabelOperation: operation}).Inc()
	gc.requestDuration.With(prometheus.Labels{LabelInterface: iface, LabelOperation: operation}).Observe(duration.Seconds())
}

func (gc *GatewayCollector) RequestRejected(iface string, operation string, duration time.Duration) {
	gc.rejected.With(prometheus.Labels{LabelInterface: iface, LabelOperation: operation}).Inc()
	gc.requestDuration.With(prometheus.Labels{LabelInterface: iface, LabelOperation: operation}).Observe(duration.Seconds())
}

func (gc *GatewayCollector) PendingRequests(pending uint) {
	gc.pending.Set(float64(pending))
}

func (gc *GatewayCollector) ChannelLoad(lastRequest time.Time, lastResponse time.Time) {
	if !lastRequest.IsZero() {
		gc.lastRequest.Set(float64(lastRequest.Unix()))
	}
	if !lastResponse.IsZero() {
		gc.lastResponse.Set(float64(lastResponse.Unix()))
	}
}
