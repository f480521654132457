// Package gateway binds the pieces of an RPC deployment together: a
// configuration pairs one protocol with one control channel, and clients
// created from it mint requests against initialized interface definitions.
package gateway

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/itwin-go/gateway/engine/channel"
	"github.com/itwin-go/gateway/module"
	"github.com/itwin-go/gateway/module/component"
	"github.com/itwin-go/gateway/module/irrecoverable"
	"github.com/itwin-go/gateway/protocol"
)

// Configuration binds a protocol to its control channel. Every request minted
// through the configuration is associated with that protocol for its entire
// lifetime; the channel consumes the protocol's lifecycle events to track
// pending requests and aggregate load.
//
// For a synchronous protocol the channel's polling path is never exercised.
// Its event subscription is still available behind the load-tracking option,
// so deployments that want direct calls reflected in the load snapshot can
// opt in.
type Configuration struct {
	component.Component

	log     zerolog.Logger
	metrics module.GatewayMetrics
	proto   protocol.Protocol
	channel *channel.ControlChannel
	clock   clock.Clock

	trackDirectLoad bool
	unsubscribe     func()
}

// Option customizes a configuration.
type Option func(*options)

type options struct {
	clock           clock.Clock
	channelOpts     []channel.OptionFunc
	trackDirectLoad bool
}

// WithClock sets the clock used by the configuration's channel and requests.
// Tests inject a mock clock to drive virtual time.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithChannelOptions forwards options to the control channel.
func WithChannelOptions(opts ...channel.OptionFunc) Option {
	return func(o *options) {
		o.channelOpts = append(o.channelOpts, opts...)
	}
}

// WithDirectLoadTracking subscribes the control channel to a synchronous
// protocol's events, so that direct in-process calls show up in the load
// snapshot. Asynchronous protocols are always tracked; this option has no
// further effect on them.
func WithDirectLoadTracking() Option {
	return func(o *options) {
		o.trackDirectLoad = true
	}
}

// NewConfiguration binds the protocol to a freshly created control channel.
func NewConfiguration(log zerolog.Logger, metrics module.GatewayMetrics, proto protocol.Protocol, opts ...Option) *Configuration {

	o := options{
		clock: clock.New(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Configuration{
		log:             log.With().Str("component", "gateway_configuration").Logger(),
		metrics:         metrics,
		proto:           proto,
		channel:         channel.New(log, metrics, o.clock, o.channelOpts...),
		clock:           o.clock,
		trackDirectLoad: o.trackDirectLoad,
	}

	if !proto.Synchronous() || c.trackDirectLoad {
		c.unsubscribe = proto.Events().Subscribe(c.channel)
	}

	c.Component = component.NewComponentManagerBuilder().
		AddWorker(func(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
			c.channel.Start(ctx)
			<-c.channel.Ready()
			ready()
			<-ctx.Done()
			<-c.channel.Done()
			if c.unsubscribe != nil {
				c.unsubscribe()
			}
		}).
		Build()

	return c
}

// Protocol returns the protocol this configuration is bound to.
func (c *Configuration) Protocol() protocol.Protocol {
	return c.proto
}

// Channel returns the control channel of this configuration.
func (c *Configuration) Channel() *channel.ControlChannel {
	return c.channel
}

// LoadSnapshot returns the aggregate load of the bound channel.
func (c *Configuration) LoadSnapshot() (lastRequest time.Time, lastResponse time.Time) {
	return c.channel.LoadSnapshot()
}
