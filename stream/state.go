package stream

import "sync"

// State is the connection lifecycle state of a Client.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	// StateError means the client never got connected: every transport
	// attempt failed. A connection that was established and later closed
	// ends up in StateDisconnected instead.
	StateError
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	}
	return "unknown"
}

// TransportKind identifies which transport won the negotiation.
type TransportKind int

const (
	TransportNone TransportKind = iota
	TransportEvents
	TransportRaw
)

func (k TransportKind) String() string {
	switch k {
	case TransportEvents:
		return "event protocol"
	case TransportRaw:
		return "raw websocket"
	}
	return "none"
}

// connEvent is a lifecycle event. State transitions happen only through
// these; nothing mutates the state directly.
type connEvent int

const (
	eventDial   connEvent = iota // a connect attempt started
	eventOpen                    // a transport was established
	eventFailed                  // every transport attempt failed
	eventClose                   // the transport closed, server- or user-initiated
)

// stateMachine tracks the lifecycle state and the active transport kind.
type stateMachine struct {
	mu     sync.Mutex
	state  State
	kind   TransportKind
	notify func(State)
}

// apply transitions the machine and invokes the notify callback when the
// state changed. kind is only meaningful for eventOpen.
func (m *stateMachine) apply(ev connEvent, kind TransportKind) {
	m.mu.Lock()
	prev := m.state
	switch ev {
	case eventDial:
		m.state = StateConnecting
		m.kind = TransportNone
	case eventOpen:
		m.state = StateConnected
		m.kind = kind
	case eventFailed:
		m.state = StateError
		m.kind = TransportNone
	case eventClose:
		m.state = StateDisconnected
		m.kind = TransportNone
	}
	state := m.state
	notify := m.notify
	m.mu.Unlock()

	if notify != nil && state != prev {
		notify(state)
	}
}

// current returns the state and the active transport kind.
func (m *stateMachine) current() (State, TransportKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.kind
}
