package stream

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectCalledMultipleTimes is returned when Connect has been called multiple times on a single client
	ErrConnectCalledMultipleTimes = errors.New("tried to call Connect multiple times")
	// ErrConnectTimeout is returned when a transport attempt exceeded its
	// time budget
	ErrConnectTimeout = errors.New("connection attempt timed out")
	// ErrHandshakeFailed is returned when the server did not complete the
	// event protocol's connection establishment exchange
	ErrHandshakeFailed = errors.New("event protocol handshake failed")

	// errConnClosed is returned by a transport when the server has closed
	// the session
	errConnClosed = errors.New("connection closed by server")
)

// ConnectError reports that both transport attempts failed. It is the single
// user-visible error for a failed negotiation and names both underlying
// outcomes.
type ConnectError struct {
	// Events is the outcome of the event protocol attempt
	Events error
	// Raw is the outcome of the raw websocket attempt
	Raw error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect failed: event protocol: %v; raw websocket: %v", e.Events, e.Raw)
}

func (e *ConnectError) Unwrap() []error {
	return []error{e.Events, e.Raw}
}
