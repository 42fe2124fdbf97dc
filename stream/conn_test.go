package stream

import (
	"context"
	"errors"
	"net/url"
	"sync"
)

var errClose = errors.New("closed")

type mockConn struct {
	closeCh   chan struct{}
	closeOnce sync.Once
	readCh    chan []byte
	writeCh   chan []byte
}

var _ conn = (*mockConn)(nil)

func newMockConn() *mockConn {
	return &mockConn{
		closeCh: make(chan struct{}),
		readCh:  make(chan []byte, 10),
		writeCh: make(chan []byte, 10),
	}
}

func (c *mockConn) close() error {
	c.closeOnce.Do(func() {
		close(c.closeCh)
	})
	return nil
}

func (c *mockConn) readMessage(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case data := <-c.readCh:
		return data, nil
	case <-c.closeCh:
		return nil, errClose
	}
}

func (c *mockConn) writeMessage(_ context.Context, data []byte) error {
	select {
	case <-c.closeCh:
		return errClose
	default:
	}
	c.writeCh <- data
	return nil
}

// dialerFor returns a dialer handing out the given conn.
func dialerFor(c conn) dialer {
	return func(_ context.Context, _ url.URL) (conn, error) {
		return c, nil
	}
}

// failingDialer returns a dialer that always fails with err.
func failingDialer(err error) dialer {
	return func(_ context.Context, _ url.URL) (conn, error) {
		return nil, err
	}
}

// hangingDialer returns a dialer that blocks until its context runs out.
func hangingDialer() dialer {
	return func(ctx context.Context, _ url.URL) (conn, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
}
