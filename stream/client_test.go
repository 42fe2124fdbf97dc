package stream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aayush-kapoor/trading-feed-N1/feed"
)

func waitDone(t *testing.T, c *Client) {
	t.Helper()
	select {
	case <-c.Done():
	case <-time.After(time.Second):
		require.Fail(t, "connection did not terminate")
	}
}

func TestConnectEventsTransport(t *testing.T) {
	mc := newMockConn()
	var states []State
	c := NewClient(
		withDialers(dialerFor(mc), failingDialer(errors.New("should not be dialed"))),
		WithStateHandler(func(s State) { states = append(states, s) }),
	)

	err := c.Connect(context.Background(), "http://localhost:4000")

	require.NoError(t, err)
	assert.Equal(t, StateConnected, c.State())
	assert.Equal(t, TransportEvents, c.Transport())
	assert.Equal(t, []State{StateConnecting, StateConnected}, states)

	c.Disconnect()
	waitDone(t, c)
}

func TestConnectFallsBackToRaw(t *testing.T) {
	mc := newMockConn()
	c := NewClient(withDialers(failingDialer(errors.New("no event endpoint")), dialerFor(mc)))

	err := c.Connect(context.Background(), "http://localhost:4000")

	require.NoError(t, err)
	assert.Equal(t, StateConnected, c.State())
	assert.Equal(t, TransportRaw, c.Transport())

	c.Disconnect()
	waitDone(t, c)
}

func TestConnectBothAttemptsFail(t *testing.T) {
	eventsErr := errors.New("handshake refused")
	rawErr := errors.New("connection refused")
	var states []State
	c := NewClient(
		withDialers(failingDialer(eventsErr), failingDialer(rawErr)),
		WithStateHandler(func(s State) { states = append(states, s) }),
	)

	err := c.Connect(context.Background(), "http://localhost:4000")

	require.Error(t, err)
	var ce *ConnectError
	require.ErrorAs(t, err, &ce)
	assert.ErrorIs(t, err, eventsErr)
	assert.ErrorIs(t, err, rawErr)
	assert.Equal(t, StateError, c.State())
	assert.Equal(t, TransportNone, c.Transport())
	assert.Equal(t, []State{StateConnecting, StateError}, states)
}

func TestConnectAttemptTimeout(t *testing.T) {
	c := NewClient(
		withDialers(hangingDialer(), hangingDialer()),
		WithConnectTimeout(10*time.Millisecond),
	)

	err := c.Connect(context.Background(), "http://localhost:4000")

	require.Error(t, err)
	var ce *ConnectError
	require.ErrorAs(t, err, &ce)
	assert.ErrorIs(t, ce.Events, ErrConnectTimeout)
	assert.ErrorIs(t, ce.Raw, ErrConnectTimeout)
	assert.Equal(t, StateError, c.State())
}

func TestConnectInvalidURL(t *testing.T) {
	c := NewClient(withDialers(dialerFor(newMockConn()), dialerFor(newMockConn())))

	err := c.Connect(context.Background(), "http://192.168.0.%31/")

	require.Error(t, err)
	assert.Equal(t, StateError, c.State())
}

func TestConnectCalledTwice(t *testing.T) {
	mc := newMockConn()
	c := NewClient(withDialers(dialerFor(mc), dialerFor(mc)))

	require.NoError(t, c.Connect(context.Background(), "http://localhost:4000"))
	err := c.Connect(context.Background(), "http://localhost:4000")

	assert.ErrorIs(t, err, ErrConnectCalledMultipleTimes)

	c.Disconnect()
	waitDone(t, c)
}

func TestTradesDeliveredInOrder(t *testing.T) {
	mc := newMockConn()
	trades := make(chan feed.Trade, 10)
	c := NewClient(
		withDialers(dialerFor(mc), failingDialer(errors.New("unused"))),
		WithTradeHandler(func(tr feed.Trade) { trades <- tr }),
	)
	require.NoError(t, c.Connect(context.Background(), "http://localhost:4000"))

	mc.readCh <- []byte(`{"id":"t-1","timestamp":1000,"symbol":"BTC/USD","price":64000,"size":0.5,"side":"buy","exchange":"demo"}`)
	mc.readCh <- []byte(`not json at all`)
	mc.readCh <- []byte(`42["tradeCreated",{"id":"t-2","timestamp":2000,"symbol":"ETH/USD","price":3200,"size":1,"side":"sell","exchange":"demo"}]`)

	first := <-trades
	assert.Equal(t, "t-1", first.ID)
	second := <-trades
	assert.Equal(t, "t-2", second.ID)
	assert.Equal(t, feed.Sell, second.Side)
	assert.Empty(t, trades, "undecodable messages are dropped")

	c.Disconnect()
	waitDone(t, c)
}

func TestServerClosedConnection(t *testing.T) {
	mc := newMockConn()
	var states []State
	done := make(chan struct{})
	c := NewClient(
		withDialers(dialerFor(mc), failingDialer(errors.New("unused"))),
		WithStateHandler(func(s State) {
			states = append(states, s)
			if s == StateDisconnected {
				close(done)
			}
		}),
	)
	require.NoError(t, c.Connect(context.Background(), "http://localhost:4000"))

	// The server drops the connection without the user asking for it.
	mc.close()

	waitDone(t, c)
	select {
	case <-done:
	case <-time.After(time.Second):
		require.Fail(t, "no disconnect notification")
	}
	assert.Equal(t, StateDisconnected, c.State(), "an established connection ending is not an error")
	assert.Equal(t, TransportNone, c.Transport())
	assert.Equal(t, []State{StateConnecting, StateConnected, StateDisconnected}, states)
}

func TestDisconnectIdempotent(t *testing.T) {
	mc := newMockConn()
	c := NewClient(withDialers(dialerFor(mc), failingDialer(errors.New("unused"))))
	require.NoError(t, c.Connect(context.Background(), "http://localhost:4000"))

	c.Disconnect()
	waitDone(t, c)
	c.Disconnect()

	assert.Equal(t, StateDisconnected, c.State())
}

func TestParseURL(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{raw: "http://localhost:4000", want: "ws://localhost:4000"},
		{raw: "https://feed.example.com/ws", want: "wss://feed.example.com/ws"},
		{raw: "ws://localhost:4000", want: "ws://localhost:4000"},
		{raw: "wss://feed.example.com", want: "wss://feed.example.com"},
	}
	for _, tc := range cases {
		u, err := parseURL(tc.raw)
		require.NoError(t, err)
		assert.Equal(t, tc.want, u.String())
	}
}
