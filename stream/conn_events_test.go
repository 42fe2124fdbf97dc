package stream

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockFrameConn struct {
	closeCh   chan struct{}
	closeOnce sync.Once
	readCh    chan []byte
	writeCh   chan []byte
}

var _ frameConn = (*mockFrameConn)(nil)

func newMockFrameConn() *mockFrameConn {
	return &mockFrameConn{
		closeCh: make(chan struct{}),
		readCh:  make(chan []byte, 10),
		writeCh: make(chan []byte, 10),
	}
}

func (c *mockFrameConn) read(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case data := <-c.readCh:
		return data, nil
	case <-c.closeCh:
		return nil, errClose
	}
}

func (c *mockFrameConn) write(_ context.Context, data []byte) error {
	select {
	case <-c.closeCh:
		return errClose
	default:
	}
	c.writeCh <- data
	return nil
}

func (c *mockFrameConn) close() error {
	c.closeOnce.Do(func() {
		close(c.closeCh)
	})
	return nil
}

func (c *mockFrameConn) closed() bool {
	select {
	case <-c.closeCh:
		return true
	default:
		return false
	}
}

func TestEventHandshake(t *testing.T) {
	fc := newMockFrameConn()
	fc.readCh <- []byte(`0{"sid":"abc","upgrades":[],"pingInterval":25000,"pingTimeout":20000}`)
	fc.readCh <- []byte(`40{"sid":"abc"}`)

	c, err := newEventConn(context.Background(), fc)

	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, []byte("40"), <-fc.writeCh, "client requests the default namespace")
}

func TestEventHandshakeNoOpenPacket(t *testing.T) {
	fc := newMockFrameConn()
	fc.readCh <- []byte(`{"hello":"world"}`)

	_, err := newEventConn(context.Background(), fc)

	require.Error(t, err)
	require.ErrorIs(t, err, ErrHandshakeFailed)
	assert.True(t, fc.closed(), "failed handshake closes the transport")
}

func TestEventHandshakeConnectRejected(t *testing.T) {
	fc := newMockFrameConn()
	fc.readCh <- []byte(`0{"sid":"abc"}`)
	fc.readCh <- []byte(`44{"message":"namespace unavailable"}`)

	_, err := newEventConn(context.Background(), fc)

	require.ErrorIs(t, err, ErrHandshakeFailed)
	assert.True(t, fc.closed())
}

func TestEventReadMessage(t *testing.T) {
	fc := newMockFrameConn()
	fc.readCh <- []byte(`0{"sid":"abc"}`)
	fc.readCh <- []byte(`40{"sid":"abc"}`)
	c, err := newEventConn(context.Background(), fc)
	require.NoError(t, err)
	<-fc.writeCh // namespace request

	// Protocol frames before the event are handled transparently.
	fc.readCh <- []byte(`3`)
	fc.readCh <- []byte(`2`)
	fc.readCh <- []byte(`42["tradeCreated",{"id":"x"}]`)

	msg, err := c.readMessage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte(`42["tradeCreated",{"id":"x"}]`), msg, "the envelope is kept for the normalizer")
	assert.Equal(t, []byte("3"), <-fc.writeCh, "pings are answered with pongs")
}

func TestEventReadMessageServerClose(t *testing.T) {
	fc := newMockFrameConn()
	fc.readCh <- []byte(`0{"sid":"abc"}`)
	fc.readCh <- []byte(`40{"sid":"abc"}`)
	c, err := newEventConn(context.Background(), fc)
	require.NoError(t, err)

	fc.readCh <- []byte(`1`)

	_, err = c.readMessage(context.Background())
	require.ErrorIs(t, err, errConnClosed)
}

func TestEventReadMessageNamespaceDisconnect(t *testing.T) {
	fc := newMockFrameConn()
	fc.readCh <- []byte(`0{"sid":"abc"}`)
	fc.readCh <- []byte(`40{"sid":"abc"}`)
	c, err := newEventConn(context.Background(), fc)
	require.NoError(t, err)

	fc.readCh <- []byte(`41`)

	_, err = c.readMessage(context.Background())
	require.ErrorIs(t, err, errConnClosed)
}
