package stream

import (
	"context"
	"net/url"
	"time"
)

// conn is one established transport between the client and a feed server.
type conn interface {
	// close closes the transport
	close() error
	// readMessage blocks until it reads a single message
	readMessage(ctx context.Context) (data []byte, err error)
	// writeMessage writes a single message
	writeMessage(ctx context.Context, data []byte) error
}

// dialer establishes a transport against u. The supplied context carries the
// whole budget for the attempt: dial plus any protocol handshake.
type dialer func(ctx context.Context, u url.URL) (conn, error)

var (
	connectTimeout = 5 * time.Second // budget for each transport attempt
	writeWait      = 5 * time.Second // time allowed to write a message to the peer
)
