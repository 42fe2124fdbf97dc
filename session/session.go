// Package session ties a feed connection to a trade store and exposes the
// control surface a consuming UI works with: connect, disconnect, clear,
// filters, and read-only access to the connection state and the filtered
// trades.
package session

import (
	"context"
	"sync"

	"github.com/aayush-kapoor/trading-feed-N1/feed"
	"github.com/aayush-kapoor/trading-feed-N1/stream"
)

// Session owns the feed store; the connection layer never touches it
// directly, it only hands the session normalized trades to push. Connection
// clients are single-use, so the session creates a fresh one per Connect.
type Session struct {
	clientOpts []stream.Option

	mu     sync.Mutex
	client *stream.Client
	filter feed.Filter

	store *feed.Store
}

// New returns an idle session. opts are handed to every connection client
// the session creates; the trade handler is owned by the session and cannot
// be overridden.
func New(opts ...stream.Option) *Session {
	return &Session{
		clientOpts: opts,
		store:      feed.NewStore(),
	}
}

// Connect negotiates a connection to rawURL and starts filling the store.
//
// Connect must not be called while a previous connection is active; the
// caller (a UI that disables its connect control) is expected to uphold
// that, it is not enforced here.
func (s *Session) Connect(ctx context.Context, rawURL string) error {
	opts := make([]stream.Option, 0, len(s.clientOpts)+1)
	opts = append(opts, s.clientOpts...)
	opts = append(opts, stream.WithTradeHandler(s.push))
	client := stream.NewClient(opts...)

	s.mu.Lock()
	s.client = client
	s.mu.Unlock()

	return client.Connect(ctx, rawURL)
}

// Disconnect closes the active connection, if any. Idempotent. The store is
// left intact.
func (s *Session) Disconnect() {
	if c := s.currentClient(); c != nil {
		c.Disconnect()
	}
}

// Clear empties the trade store without affecting the connection.
func (s *Session) Clear() {
	s.store.Clear()
}

// SetFilters replaces the read-time filter criteria.
func (s *Session) SetFilters(f feed.Filter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = f
}

// Filters returns the active filter criteria.
func (s *Session) Filters() feed.Filter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

// Trades returns the stored trades that match the active filters, newest
// first.
func (s *Session) Trades() []feed.Trade {
	return s.store.Trades(s.Filters())
}

// ConnectionState returns the state of the current connection, or
// StateDisconnected when none was attempted yet.
func (s *Session) ConnectionState() stream.State {
	c := s.currentClient()
	if c == nil {
		return stream.StateDisconnected
	}
	return c.State()
}

// Transport returns the transport kind of the current connection.
func (s *Session) Transport() stream.TransportKind {
	c := s.currentClient()
	if c == nil {
		return stream.TransportNone
	}
	return c.Transport()
}

// Done returns the termination channel of the current connection, or nil
// when none was attempted yet.
func (s *Session) Done() <-chan struct{} {
	c := s.currentClient()
	if c == nil {
		return nil
	}
	return c.Done()
}

func (s *Session) push(t feed.Trade) {
	s.store.Push(t)
}

func (s *Session) currentClient() *stream.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client
}
