// Package web implements the HTTP protocol: requests travel as msgpack
// envelopes over POST, and the server side executes operations on a bounded
// worker pool. Recoverable failures (gateway statuses, pending results) hand
// the request back to the polling path; fatal failures reject it immediately.
package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/itwin-go/gateway/model/rpc"
	"github.com/itwin-go/gateway/protocol"
)

// DefaultRequestTimeout bounds a single exchange, not the request lifecycle:
// a timed-out exchange leaves a provisional request for the polling loop.
const DefaultRequestTimeout = 30 * time.Second

// Protocol sends requests to a remote gateway endpoint over HTTP. Send never
// resolves inline from the caller's point of view of the state machine — a
// request may come back provisional and be resubmitted by the control channel
// any number of times before reaching a terminal state.
type Protocol struct {
	log     zerolog.Logger
	client  *http.Client
	baseURL string
	events  *protocol.Distributor
}

var _ protocol.Protocol = (*Protocol)(nil)

// ClientOption customizes the web protocol client.
type ClientOption func(*Protocol)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(p *Protocol) {
		p.client = client
	}
}

// NewClient creates a web protocol targeting the gateway at the given base
// URL.
func NewClient(log zerolog.Logger, baseURL string, opts ...ClientOption) *Protocol {
	p := &Protocol{
		log:     log.With().Str("component", "web_protocol").Logger(),
		client:  &http.Client{Timeout: DefaultRequestTimeout},
		baseURL: baseURL,
		events:  protocol.NewDistributor(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Synchronous always reports false for the web protocol.
func (p *Protocol) Synchronous() bool {
	return false
}

// Events returns the distributor for this protocol's lifecycle events.
func (p *Protocol) Events() *protocol.Distributor {
	return p.events
}

// Send performs one HTTP exchange for the request. The request owns the
// exchange for its duration (the connecting flag suppresses concurrent
// resubmission) and ends up in exactly one of three places: resolved or
// rejected on a definitive response, or provisional on a recoverable failure.
func (p *Protocol) Send(ctx context.Context, req *rpc.Request) error {

	descriptor := req.Descriptor()
	path := p.operationPath(descriptor)
	first := req.Attempts() == 0

	if err := req.MarkSubmitted(); err != nil {
		return err
	}
	req.SetConnecting(true)
	defer req.SetConnecting(false)

	if first {
		p.publish(rpc.EventRequestCreated, req, path, 0, nil)
	}

	var body bytes.Buffer
	err := encodeRequest(&body, RequestEnvelope{
		ID:         req.ID().String(),
		Interface:  descriptor.Interface,
		Operation:  descriptor.Operation,
		Parameters: req.Parameters(),
	})
	if err != nil {
		return p.abort(req, path, 0, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, path, &body)
	if err != nil {
		return p.abort(req, path, 0, err)
	}
	httpReq.Header.Set("Content-Type", ContentType)
	httpReq.Header.Set("Accept", ContentType)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		// a cancelled or expired context aborts the request for good; other
		// transport failures are treated as transient
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return p.abort(req, path, 0, err)
		}
		return p.recover(req, path, 0, 0, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// handled below

	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		return p.recover(req, path, resp.StatusCode, retryAfter,
			fmt.Errorf("gateway returned status %d", resp.StatusCode))

	default:
		return p.abort(req, path, resp.StatusCode,
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	env, err := decodeResponse(resp.Body)
	if err != nil {
		return p.abort(req, path, resp.StatusCode, err)
	}

	switch env.Outcome {
	case OutcomeResolved:
		if err := req.Resolve(env.Value); err != nil {
			p.log.Debug().Err(err).
				Str("descriptor", descriptor.String()).
				Msg("could not resolve request")
			return nil
		}
		p.publish(rpc.EventResponseLoaded, req, path, resp.StatusCode, nil)
		return nil

	case OutcomePending:
		var retryAfter time.Duration
		if env.RetryAfterMS > 0 {
			retryAfter = time.Duration(env.RetryAfterMS) * time.Millisecond
		}
		if err := req.MarkProvisional(); err != nil {
			return err
		}
		if retryAfter > 0 {
			if err := req.ResetRetryInterval(retryAfter); err != nil {
				p.log.Debug().Err(err).
					Str("descriptor", descriptor.String()).
					Msg("could not apply backend retry hint")
			}
		}
		recoverable := rpc.RecoverableError{
			Descriptor: descriptor,
			Status:     resp.StatusCode,
			RetryAfter: retryAfter,
			Err:        rpc.PendingError{Descriptor: descriptor, RetryAfter: retryAfter},
		}
		p.publish(rpc.EventBackendResponseCreated, req, path, resp.StatusCode, recoverable)
		return recoverable

	case OutcomeError:
		cause := rpc.BackendError{Descriptor: descriptor, Message: env.Error}
		if err := req.Reject(cause); err != nil {
			p.log.Debug().Err(err).
				Str("descriptor", descriptor.String()).
				Msg("could not reject request")
			return nil
		}
		p.publish(rpc.EventBackendError, req, path, resp.StatusCode, cause)
		return nil

	default:
		return p.abort(req, path, resp.StatusCode,
			fmt.Errorf("malformed response outcome %q", env.Outcome))
	}
}

// recover moves the request to the provisional state after a transient
// failure, applying the server's retry hint if one was provided.
func (p *Protocol) recover(req *rpc.Request, path string, status int, retryAfter time.Duration, cause error) error {

	descriptor := req.Descriptor()

	if err := req.MarkProvisional(); err != nil {
		return err
	}
	if retryAfter > 0 {
		if err := req.ResetRetryInterval(retryAfter); err != nil {
			p.log.Debug().Err(err).
				Str("descriptor", descriptor.String()).
				Msg("could not apply retry-after hint")
		}
	}

	recoverable := rpc.RecoverableError{
		Descriptor: descriptor,
		Status:     status,
		RetryAfter: retryAfter,
		Err:        cause,
	}
	p.publish(rpc.EventConnectionError, req, path, status, recoverable)
	return recoverable
}

// abort rejects the request after a fatal transport failure.
func (p *Protocol) abort(req *rpc.Request, path string, status int, cause error) error {

	descriptor := req.Descriptor()
	aborted := rpc.ConnectionAbortedError{Descriptor: descriptor, Err: cause}

	if err := req.Reject(aborted); err != nil {
		p.log.Debug().Err(err).
			Str("descriptor", descriptor.String()).
			Msg("could not reject request")
		return aborted
	}
	p.publish(rpc.EventConnectionAborted, req, path, status, aborted)
	return aborted
}

func (p *Protocol) operationPath(descriptor rpc.Descriptor) string {
	return fmt.Sprintf("%s/rpc/%s/%s", p.baseURL, descriptor.Interface, descriptor.Operation)
}

func (p *Protocol) publish(kind rpc.EventKind, req *rpc.Request, path string, status int, err error) {
	p.events.Publish(rpc.Event{
		Kind:       kind,
		Request:    req,
		Descriptor: req.Descriptor(),
		Path:       path,
		Status:     status,
		Elapsed:    req.Elapsed(),
		Err:        err,
	})
}

// parseRetryAfter interprets a Retry-After header given in seconds. HTTP-date
// values are not supported and yield zero.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
