package rpc

import (
	"time"
)

// EventKind enumerates the lifecycle signals emitted by a protocol.
type EventKind int

const (
	// EventRequestCreated is emitted when a request is first handed to the
	// protocol for transmission.
	EventRequestCreated EventKind = iota
	// EventResponseLoaded is emitted when a response payload has been decoded
	// and the request resolved.
	EventResponseLoaded
	// EventConnectionError is emitted on a recoverable transport failure; the
	// request moves to the provisional state and will be retried.
	EventConnectionError
	// EventConnectionAborted is emitted on a fatal transport failure; the
	// request is rejected without retry.
	EventConnectionAborted
	// EventBackendError is emitted when the remote operation itself returned
	// an error; the request is rejected with the original payload.
	EventBackendError
	// EventBackendResponseCreated is emitted when the backend acknowledged the
	// request but flagged the result as not yet available (the application
	// "pending" signal); the request will be retried.
	EventBackendResponseCreated
)

func (k EventKind) String() string {
	switch k {
	case EventRequestCreated:
		return "request_created"
	case EventResponseLoaded:
		return "response_loaded"
	case EventConnectionError:
		return "connection_error"
	case EventConnectionAborted:
		return "connection_aborted"
	case EventBackendError:
		return "backend_error"
	case EventBackendResponseCreated:
		return "backend_response_created"
	default:
		return "unknown"
	}
}

// Event is one protocol lifecycle signal, tagged with the operation
// descriptor, transport path, elapsed time since the request was created and
// the transport status code. Events are the integration point for the control
// channel and for any external observability collaborator.
type Event struct {
	Kind       EventKind
	Request    *Request
	Descriptor Descriptor
	Path       string
	Status     int
	Elapsed    time.Duration
	Err        error
}

// Consumer receives protocol lifecycle events. Implementations must be
// non-blocking and concurrency safe; events for distinct requests may be
// delivered concurrently.
type Consumer interface {
	HandleRequestEvent(event Event)
}
