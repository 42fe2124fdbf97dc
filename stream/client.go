package stream

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/aayush-kapoor/trading-feed-N1/feed"
)

// Client negotiates and owns a single feed connection.
//
// Connect tries the event protocol first and falls back to a raw websocket
// against the same URL; whichever transport wins is the one active
// transport, exclusively owned by the client. Incoming messages are
// normalized and handed to the trade handler in delivery order; messages
// that fail to normalize are dropped silently.
//
// There is no automatic reconnect: when the connection ends, however it
// ends, the client transitions to StateDisconnected and stays there. A
// Client is single-use; create a new one for every connection attempt.
type Client struct {
	logger       Logger
	dialTimeout  time.Duration
	tradeHandler func(feed.Trade)
	eventsDialer dialer
	rawDialer    dialer

	machine stateMachine

	connectOnce sync.Once
	done        chan struct{}

	mu         sync.Mutex
	conn       conn
	userClosed bool
}

// NewClient returns a Client whose default configuration is modified by opts.
func NewClient(opts ...Option) *Client {
	o := defaultOptions()
	for _, opt := range opts {
		opt.apply(o)
	}
	c := &Client{
		logger:       o.logger,
		dialTimeout:  o.dialTimeout,
		tradeHandler: o.tradeHandler,
		eventsDialer: o.eventsDialer,
		rawDialer:    o.rawDialer,
		done:         make(chan struct{}),
	}
	c.machine.notify = o.stateHandler
	return c
}

// Connect negotiates a transport for rawURL and starts delivering trades.
// It returns nil once a transport is established, or a *ConnectError when
// both attempts failed.
//
// Connect must not be called while another client's connection to the same
// feed is still active; the caller (typically a UI that disables its connect
// control) is expected to uphold that, it is not enforced here. Calling
// Connect twice on the same client returns ErrConnectCalledMultipleTimes.
func (c *Client) Connect(ctx context.Context, rawURL string) error {
	err := ErrConnectCalledMultipleTimes
	c.connectOnce.Do(func() {
		err = c.connect(ctx, rawURL)
	})
	return err
}

func (c *Client) connect(ctx context.Context, rawURL string) error {
	c.machine.apply(eventDial, TransportNone)

	u, err := parseURL(rawURL)
	if err != nil {
		c.machine.apply(eventFailed, TransportNone)
		return err
	}

	c.logger.Infof("feedstream: connecting to %s via the event protocol", u.String())
	tc, eventsErr := c.attempt(ctx, c.eventsDialer, u)
	if eventsErr == nil {
		c.activate(ctx, tc, TransportEvents)
		return nil
	}
	c.logger.Warnf("feedstream: event protocol attempt failed: %v", eventsErr)

	c.logger.Infof("feedstream: falling back to a raw websocket")
	tc, rawErr := c.attempt(ctx, c.rawDialer, u)
	if rawErr == nil {
		c.activate(ctx, tc, TransportRaw)
		return nil
	}
	c.logger.Errorf("feedstream: raw websocket attempt failed: %v", rawErr)

	c.machine.apply(eventFailed, TransportNone)
	return &ConnectError{Events: eventsErr, Raw: rawErr}
}

// attempt runs one dialer under the per-attempt time budget. When the budget
// runs out the attempt's context is cancelled, so a transport that resolves
// late is closed by its dialer rather than promoted.
func (c *Client) attempt(ctx context.Context, d dialer, u url.URL) (conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.dialTimeout)
	defer cancel()

	tc, err := d(dialCtx, u)
	if err != nil {
		if errors.Is(dialCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s: %v", ErrConnectTimeout, c.dialTimeout, err)
		}
		return nil, err
	}
	return tc, nil
}

// activate registers tc as the active transport and starts the read loop.
func (c *Client) activate(ctx context.Context, tc conn, kind TransportKind) {
	c.mu.Lock()
	c.conn = tc
	c.mu.Unlock()

	c.machine.apply(eventOpen, kind)
	c.logger.Infof("feedstream: connected via %s", kind)

	go c.readLoop(ctx, tc)
}

// readLoop delivers messages in transport order until the connection ends.
// An unsolicited server-side closure drives the same teardown as a user
// disconnect: handle cleared, state Disconnected.
func (c *Client) readLoop(ctx context.Context, tc conn) {
	defer close(c.done)

	for {
		msg, err := tc.readMessage(ctx)
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, errConnClosed) && !c.closedByUser() {
				c.logger.Warnf("feedstream: reading from conn failed: %v", err)
			}
			c.teardown()
			return
		}
		if t, ok := feed.Normalize(msg); ok {
			c.tradeHandler(t)
		}
	}
}

// Disconnect closes the active transport, if any, and leaves the client
// Disconnected. It is idempotent and is the only cancellation primitive:
// there is no mid-handshake cancel distinct from the attempt timeout.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.userClosed = true
	c.mu.Unlock()
	c.teardown()
}

// teardown clears the transport handle and transitions to Disconnected.
func (c *Client) teardown() {
	c.mu.Lock()
	tc := c.conn
	c.conn = nil
	c.mu.Unlock()

	if tc != nil {
		tc.close()
	}
	c.machine.apply(eventClose, TransportNone)
}

func (c *Client) closedByUser() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userClosed
}

// State returns the current connection state.
func (c *Client) State() State {
	s, _ := c.machine.current()
	return s
}

// Transport returns the kind of the active transport, or TransportNone.
func (c *Client) Transport() TransportKind {
	_, k := c.machine.current()
	return k
}

// Done returns a channel that is closed once a successfully established
// connection has terminated.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// parseURL normalizes rawURL into the websocket URL both transports dial.
func parseURL(rawURL string) (url.URL, error) {
	scheme := "wss"
	u, err := url.Parse(rawURL)
	if err != nil {
		return url.URL{}, err
	}
	switch u.Scheme {
	case "http", "ws":
		scheme = "ws"
	}

	return url.URL{Scheme: scheme, Host: u.Host, Path: u.Path}, nil
}
