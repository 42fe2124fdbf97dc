package stream

import (
	"context"
	"fmt"
	"net/url"

	"nhooyr.io/websocket"
)

// rawConn is a plain websocket transport: every message is a bare JSON
// payload with no higher-level framing.
type rawConn struct {
	conn *websocket.Conn
}

var _ conn = (*rawConn)(nil)

// dialRaw opens a raw websocket against u. There is no handshake beyond the
// websocket upgrade itself.
func dialRaw(ctx context.Context, u url.URL) (conn, error) {
	//nolint:bodyclose // According to its docs: you never need to close resp.Body yourself
	c, _, err := websocket.Dial(ctx, u.String(), &websocket.DialOptions{
		CompressionMode: websocket.CompressionContextTakeover,
	})
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	return &rawConn{conn: c}, nil
}

// close closes the websocket connection
func (c *rawConn) close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "")
}

// readMessage blocks until it reads a single message
func (c *rawConn) readMessage(ctx context.Context) ([]byte, error) {
	_, data, err := c.conn.Read(ctx)
	return data, err
}

// writeMessage writes a single message
func (c *rawConn) writeMessage(ctx context.Context, data []byte) error {
	writeCtx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()

	return c.conn.Write(writeCtx, websocket.MessageText, data)
}
