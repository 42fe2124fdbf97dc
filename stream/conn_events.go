package stream

import (
	"context"
	"fmt"
	"net/url"

	"nhooyr.io/websocket"
)

// Packet type bytes of the event protocol framing. A session starts with an
// open packet from the server, after which the client requests the default
// namespace and waits for the acknowledgment. Events then arrive as message
// packets carrying a JSON array of event name and payload, e.g.
// 42["tradeCreated",{...}].
const (
	packetOpen    = '0'
	packetClose   = '1'
	packetPing    = '2'
	packetPong    = '3'
	packetMessage = '4'
)

// Message packet sub-types.
const (
	messageConnect    = '0'
	messageDisconnect = '1'
	messageEvent      = '2'
)

const eventEndpointPath = "/socket.io/"

// frameConn carries the raw text frames of an event protocol session.
type frameConn interface {
	read(ctx context.Context) ([]byte, error)
	write(ctx context.Context, data []byte) error
	close() error
}

// wsFrameConn is the nhooyr websocket implementation of frameConn.
type wsFrameConn struct {
	conn *websocket.Conn
}

var _ frameConn = (*wsFrameConn)(nil)

func (c *wsFrameConn) read(ctx context.Context) ([]byte, error) {
	_, data, err := c.conn.Read(ctx)
	return data, err
}

func (c *wsFrameConn) write(ctx context.Context, data []byte) error {
	writeCtx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()

	return c.conn.Write(writeCtx, websocket.MessageText, data)
}

func (c *wsFrameConn) close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "")
}

// eventConn is an event protocol transport. It is preferred over the raw
// transport because it layers structured event names over the channel.
type eventConn struct {
	fc frameConn
}

var _ conn = (*eventConn)(nil)

// dialEvents establishes an event protocol session against u's host: it
// dials the event endpoint, waits for the open packet, requests the default
// namespace and waits for the connect acknowledgment. ctx bounds the whole
// exchange.
func dialEvents(ctx context.Context, u url.URL) (conn, error) {
	eu := u
	eu.Path = eventEndpointPath
	eu.RawQuery = "EIO=4&transport=websocket"
	//nolint:bodyclose // According to its docs: you never need to close resp.Body yourself
	c, _, err := websocket.Dial(ctx, eu.String(), &websocket.DialOptions{
		CompressionMode: websocket.CompressionContextTakeover,
	})
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	return newEventConn(ctx, &wsFrameConn{conn: c})
}

// newEventConn runs the client side of the connection establishment
// exchange on fc and returns the ready transport. fc is closed on failure.
func newEventConn(ctx context.Context, fc frameConn) (conn, error) {
	ec := &eventConn{fc: fc}
	if err := ec.handshake(ctx); err != nil {
		fc.close()
		return nil, err
	}
	return ec, nil
}

// handshake waits for the open packet, requests the default namespace and
// waits for the connect acknowledgment.
func (c *eventConn) handshake(ctx context.Context) error {
	frame, err := c.fc.read(ctx)
	if err != nil {
		return fmt.Errorf("%w: reading open packet: %v", ErrHandshakeFailed, err)
	}
	if len(frame) == 0 || frame[0] != packetOpen {
		return fmt.Errorf("%w: expected open packet, got %q", ErrHandshakeFailed, preview(frame))
	}

	if err := c.fc.write(ctx, []byte{packetMessage, messageConnect}); err != nil {
		return fmt.Errorf("%w: requesting namespace: %v", ErrHandshakeFailed, err)
	}

	frame, err = c.fc.read(ctx)
	if err != nil {
		return fmt.Errorf("%w: reading connect acknowledgment: %v", ErrHandshakeFailed, err)
	}
	if len(frame) < 2 || frame[0] != packetMessage || frame[1] != messageConnect {
		return fmt.Errorf("%w: expected connect acknowledgment, got %q", ErrHandshakeFailed, preview(frame))
	}
	return nil
}

// close closes the underlying connection
func (c *eventConn) close() error {
	return c.fc.close()
}

// readMessage blocks until it reads a single event message. Protocol-level
// frames are handled transparently: pings are answered with pongs, close
// packets surface as an error, anything else is skipped. The returned data
// still carries the event envelope prefix; the normalizer strips it.
func (c *eventConn) readMessage(ctx context.Context) ([]byte, error) {
	for {
		frame, err := c.fc.read(ctx)
		if err != nil {
			return nil, err
		}
		if len(frame) == 0 {
			continue
		}
		switch frame[0] {
		case packetPing:
			if err := c.fc.write(ctx, []byte{packetPong}); err != nil {
				return nil, err
			}
		case packetClose:
			return nil, errConnClosed
		case packetMessage:
			if len(frame) < 2 {
				continue
			}
			switch frame[1] {
			case messageEvent:
				return frame, nil
			case messageDisconnect:
				return nil, errConnClosed
			}
		}
	}
}

// writeMessage writes a single raw frame
func (c *eventConn) writeMessage(ctx context.Context, data []byte) error {
	return c.fc.write(ctx, data)
}

// preview truncates a frame for use in error messages.
func preview(frame []byte) string {
	const max = 32
	if len(frame) > max {
		return string(frame[:max]) + "..."
	}
	return string(frame)
}
