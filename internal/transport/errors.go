package transport

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrAlreadyOpened = errors.New("transport: already opened")
	ErrDisposed      = errors.New("transport: disposed")
)

// Terminal errors below close the transport exactly once; exactly one of
// them is observable per transport lifetime. Each is a distinct type so
// callers can branch on the failure kind with errors.As.

// ConnectTimeoutError reports that the stream factory did not complete
// within ConnectTimeout.
type ConnectTimeoutError struct {
	Timeout time.Duration
}

func (e *ConnectTimeoutError) Error() string {
	return fmt.Sprintf("transport: connect timed out after %s", e.Timeout)
}

// HeaderTimeoutError reports that the protocol preamble did not arrive
// within HeaderReadTimeout.
type HeaderTimeoutError struct {
	Timeout time.Duration
}

func (e *HeaderTimeoutError) Error() string {
	return fmt.Sprintf("transport: protocol header read timed out after %s", e.Timeout)
}

// ReadTimeoutError reports a single packet read exceeding ReadTimeout.
type ReadTimeoutError struct {
	Timeout time.Duration
}

func (e *ReadTimeoutError) Error() string {
	return fmt.Sprintf("transport: read timed out after %s", e.Timeout)
}

// WriteTimeoutError reports a single packet write exceeding WriteTimeout.
type WriteTimeoutError struct {
	Timeout time.Duration
}

func (e *WriteTimeoutError) Error() string {
	return fmt.Sprintf("transport: write timed out after %s", e.Timeout)
}

// EnqueuedCloseError is the cooperative shutdown signal: not a fault.
// It carries the payload given to EnqueueClose so the caller can
// correlate the close with their own request.
type EnqueuedCloseError struct {
	Payload any
}

func (e *EnqueuedCloseError) Error() string {
	return "transport: closed by enqueued close request"
}

// ProtocolViolationError reports an unexpected packet or a handshake
// decode failure.
type ProtocolViolationError struct {
	Reason string
	Cause  error
}

func (e *ProtocolViolationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("transport: protocol violation: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("transport: protocol violation: %s", e.Reason)
}

func (e *ProtocolViolationError) Unwrap() error {
	return e.Cause
}

// StreamClosedError reports the underlying stream failing or reaching EOF.
type StreamClosedError struct {
	Cause error
}

func (e *StreamClosedError) Error() string {
	return fmt.Sprintf("transport: stream closed: %v", e.Cause)
}

func (e *StreamClosedError) Unwrap() error {
	return e.Cause
}
