package rpc

import (
	"errors"
	"fmt"
	"time"
)

// UnregisteredInterfaceError indicates an attempt to dispatch to an interface
// for which no implementation has been registered. This is a programming
// error: it is surfaced at call time, not deferred into the request lifecycle.
type UnregisteredInterfaceError struct {
	Interface string
}

func (e UnregisteredInterfaceError) Error() string {
	return fmt.Sprintf("no implementation registered for interface %q", e.Interface)
}

// NewUnregisteredInterfaceError returns a new UnregisteredInterfaceError.
func NewUnregisteredInterfaceError(iface string) UnregisteredInterfaceError {
	return UnregisteredInterfaceError{Interface: iface}
}

// IsUnregisteredInterfaceError returns whether an error is UnregisteredInterfaceError.
func IsUnregisteredInterfaceError(err error) bool {
	var e UnregisteredInterfaceError
	return errors.As(err, &e)
}

// OperationNotFoundError indicates that a named operation does not exist on
// the targeted implementation. The descriptor identifies the offending call.
type OperationNotFoundError struct {
	Descriptor Descriptor
}

func (e OperationNotFoundError) Error() string {
	return fmt.Sprintf("operation %s is not implemented", e.Descriptor)
}

// NewOperationNotFoundError returns a new OperationNotFoundError.
func NewOperationNotFoundError(descriptor Descriptor) OperationNotFoundError {
	return OperationNotFoundError{Descriptor: descriptor}
}

// IsOperationNotFoundError returns whether an error is OperationNotFoundError.
func IsOperationNotFoundError(err error) bool {
	var e OperationNotFoundError
	return errors.As(err, &e)
}

// AlreadyInitializedError indicates a double initialization of an interface
// definition, which is a misconfiguration rather than a transient condition.
type AlreadyInitializedError struct {
	Interface string
}

func (e AlreadyInitializedError) Error() string {
	return fmt.Sprintf("interface %q is already initialized", e.Interface)
}

// IsAlreadyInitializedError returns whether an error is AlreadyInitializedError.
func IsAlreadyInitializedError(err error) bool {
	var e AlreadyInitializedError
	return errors.As(err, &e)
}

// AlreadyRegisteredError indicates that an implementation has already been
// registered for the interface.
type AlreadyRegisteredError struct {
	Interface string
}

func (e AlreadyRegisteredError) Error() string {
	return fmt.Sprintf("implementation for interface %q is already registered", e.Interface)
}

// IsAlreadyRegisteredError returns whether an error is AlreadyRegisteredError.
func IsAlreadyRegisteredError(err error) bool {
	var e AlreadyRegisteredError
	return errors.As(err, &e)
}

// RecoverableError signals a transport-recoverable failure (e.g. an HTTP
// 502/503/504 equivalent, or an application-level "pending" response). It is
// handled locally by scheduling a retry and is never surfaced to the caller.
// RetryAfter, if positive, carries an explicit server-provided retry interval.
type RecoverableError struct {
	Descriptor Descriptor
	Status     int
	RetryAfter time.Duration
	Err        error
}

func (e RecoverableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("recoverable failure for %s (status %d): %v", e.Descriptor, e.Status, e.Err)
	}
	return fmt.Sprintf("recoverable failure for %s (status %d)", e.Descriptor, e.Status)
}

func (e RecoverableError) Unwrap() error {
	return e.Err
}

// IsRecoverableError returns whether an error is RecoverableError.
func IsRecoverableError(err error) bool {
	var e RecoverableError
	return errors.As(err, &e)
}

// ConnectionAbortedError signals a transport-fatal failure (connection
// aborted, malformed response). The request is rejected immediately and is
// not retried.
type ConnectionAbortedError struct {
	Descriptor Descriptor
	Err        error
}

func (e ConnectionAbortedError) Error() string {
	return fmt.Sprintf("connection aborted for %s: %v", e.Descriptor, e.Err)
}

func (e ConnectionAbortedError) Unwrap() error {
	return e.Err
}

// IsConnectionAbortedError returns whether an error is ConnectionAbortedError.
func IsConnectionAbortedError(err error) bool {
	var e ConnectionAbortedError
	return errors.As(err, &e)
}

// BackendError carries an application-level error returned by the remote
// operation itself. It is surfaced to the caller unchanged and is not retried
// by the request lifecycle.
type BackendError struct {
	Descriptor Descriptor
	Message    string
}

func (e BackendError) Error() string {
	return fmt.Sprintf("operation %s failed: %s", e.Descriptor, e.Message)
}

// IsBackendError returns whether an error is BackendError.
func IsBackendError(err error) bool {
	var e BackendError
	return errors.As(err, &e)
}

// PendingError is returned by an operation handler to signal that the result
// is not available yet. The transport reports it to the caller as a
// recoverable "pending" response; the request will be retried after
// RetryAfter if set, or after its current retry interval otherwise.
type PendingError struct {
	Descriptor Descriptor
	RetryAfter time.Duration
}

func (e PendingError) Error() string {
	return fmt.Sprintf("result for %s is not available yet", e.Descriptor)
}

// IsPendingError returns whether an error is PendingError.
func IsPendingError(err error) bool {
	var e PendingError
	return errors.As(err, &e)
}

// RetryExhaustedError indicates that a request hit the configured retry
// ceiling before reaching a terminal state.
type RetryExhaustedError struct {
	Descriptor Descriptor
	Attempts   uint
}

func (e RetryExhaustedError) Error() string {
	return fmt.Sprintf("request for %s exhausted retries after %d attempts", e.Descriptor, e.Attempts)
}

// IsRetryExhaustedError returns whether an error is RetryExhaustedError.
func IsRetryExhaustedError(err error) bool {
	var e RetryExhaustedError
	return errors.As(err, &e)
}

// InvalidTransitionError indicates a request state transition that the state
// machine does not permit, such as resolving an already-terminal request.
type InvalidTransitionError struct {
	Descriptor Descriptor
	From       Status
	To         Status
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s for request of %s", e.From, e.To, e.Descriptor)
}

// IsInvalidTransitionError returns whether an error is InvalidTransitionError.
func IsInvalidTransitionError(err error) bool {
	var e InvalidTransitionError
	return errors.As(err, &e)
}

// InvalidRetryIntervalError indicates an attempt to set a retry interval that
// violates the strictly-positive, non-decreasing invariant.
type InvalidRetryIntervalError struct {
	Current time.Duration
	Next    time.Duration
}

func (e InvalidRetryIntervalError) Error() string {
	return fmt.Sprintf("invalid retry interval %v (current %v)", e.Next, e.Current)
}

// IsInvalidRetryIntervalError returns whether an error is InvalidRetryIntervalError.
func IsInvalidRetryIntervalError(err error) bool {
	var e InvalidRetryIntervalError
	return errors.As(err, &e)
}
