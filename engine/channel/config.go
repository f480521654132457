package channel

import (
	"time"
)

// RetryFunc computes the next retry interval from the current one. The
// returned interval must never be smaller than the input; backoff growth is
// capped by the channel's RetryMaximum.
type RetryFunc func(time.Duration) time.Duration

// RetryConstant keeps the retry interval unchanged between attempts.
func RetryConstant() RetryFunc {
	return func(interval time.Duration) time.Duration {
		return interval
	}
}

// RetryGeometric grows the retry interval geometrically with the given base.
func RetryGeometric(base uint) RetryFunc {
	return func(interval time.Duration) time.Duration {
		return interval * time.Duration(base)
	}
}

// Config holds the tuning knobs of a control channel.
type Config struct {
	// PollInterval is the cadence of the polling loop while requests are
	// pending. It should be small relative to retry intervals; the loop only
	// runs while the pending collection is non-empty, so a short interval
	// does not translate into busy-spinning on an idle channel.
	PollInterval time.Duration

	// RetryInitial is the retry interval assigned to freshly created requests.
	RetryInitial time.Duration

	// RetryFunction computes backoff between consecutive failed attempts.
	RetryFunction RetryFunc

	// RetryMaximum caps the retry interval.
	RetryMaximum time.Duration

	// RetryAttempts is the retry ceiling; once a request has been submitted
	// this many times, the channel rejects it. Zero means retry forever,
	// which matches the upstream behavior and leaves overall timeouts to the
	// caller.
	RetryAttempts uint

	// ResubmitWarningThreshold is the attempt count past which the channel
	// logs a diagnostic warning for a request that keeps being resubmitted.
	ResubmitWarningThreshold uint
}

// DefaultConfig returns the control channel defaults.
func DefaultConfig() Config {
	return Config{
		PollInterval:             10 * time.Millisecond,
		RetryInitial:             500 * time.Millisecond,
		RetryFunction:            RetryGeometric(2),
		RetryMaximum:             time.Minute,
		RetryAttempts:            0,
		ResubmitWarningThreshold: 100,
	}
}

type OptionFunc func(*Config)

// WithPollInterval sets a custom cadence for the polling loop.
func WithPollInterval(interval time.Duration) OptionFunc {
	return func(cfg *Config) {
		cfg.PollInterval = interval
	}
}

// WithRetryInitial sets the initial retry interval for new requests.
func WithRetryInitial(interval time.Duration) OptionFunc {
	return func(cfg *Config) {
		cfg.RetryInitial = interval
	}
}

// WithRetryFunction sets the backoff function applied between attempts.
func WithRetryFunction(retry RetryFunc) OptionFunc {
	return func(cfg *Config) {
		cfg.RetryFunction = retry
	}
}

// WithRetryMaximum caps the retry interval.
func WithRetryMaximum(maximum time.Duration) OptionFunc {
	return func(cfg *Config) {
		cfg.RetryMaximum = maximum
	}
}

// WithRetryAttempts sets the retry ceiling; zero retries forever.
func WithRetryAttempts(attempts uint) OptionFunc {
	return func(cfg *Config) {
		cfg.RetryAttempts = attempts
	}
}

// WithResubmitWarningThreshold sets the attempt count that triggers the
// stuck-request diagnostic log.
func WithResubmitWarningThreshold(threshold uint) OptionFunc {
	return func(cfg *Config) {
		cfg.ResubmitWarningThreshold = threshold
	}
}
