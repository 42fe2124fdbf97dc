package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const eventEndpointPath = "/socket.io/"

// handshakeWait bounds how long an event protocol client may take to request
// the namespace after the open packet.
const handshakeWait = 5 * time.Second

// Server serves the demo trade feed over websocket. Every accepted
// connection gets one welcome message followed by a new trade every one to
// three seconds (configurable) until the connection closes.
//
// Two protocols are spoken: the raw protocol (bare JSON messages) on any
// path, and the event protocol (open packet, namespace connect, then
// 42["tradeCreated",{...}] frames) on /socket.io/, so clients that prefer
// the event transport can negotiate it.
type Server struct {
	log           logrus.FieldLogger
	schema        Schema
	minDelay      time.Duration
	maxDelay      time.Duration
	eventsEnabled bool
	upgrader      websocket.Upgrader
}

// Option configures a Server.
type Option func(*Server)

// WithLogger configures the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Server) { s.log = log }
}

// WithSchema selects the payload schema emitted to every connection.
func WithSchema(schema Schema) Option {
	return func(s *Server) { s.schema = schema }
}

// WithEmitDelays configures the random delay range between trades.
func WithEmitDelays(min, max time.Duration) Option {
	return func(s *Server) {
		s.minDelay = min
		s.maxDelay = max
	}
}

// WithoutEventProtocol disables the event endpoint; clients negotiating
// against this server end up on the raw transport.
func WithoutEventProtocol() Option {
	return func(s *Server) { s.eventsEnabled = false }
}

// NewServer returns a feed server whose defaults are modified by opts.
func NewServer(opts ...Option) *Server {
	s := &Server{
		log:           logrus.StandardLogger(),
		schema:        SchemaNative,
		minDelay:      time.Second,
		maxDelay:      3 * time.Second,
		eventsEnabled: true,
		upgrader: websocket.Upgrader{
			// The demo feed is open to any origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, eventEndpointPath) {
		if !s.eventsEnabled {
			http.NotFound(w, r)
			return
		}
		s.serveEvents(w, r)
		return
	}
	s.serveRaw(w, r)
}

// serveRaw runs one raw protocol session: welcome, then trades until the
// peer goes away.
func (s *Server) serveRaw(w http.ResponseWriter, r *http.Request) {
	c, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer c.Close()
	log := s.log.WithField("remote", c.RemoteAddr().String())
	log.Info("raw feed connection accepted")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go watchClose(c, cancel)

	g := NewGenerator(s.schema, time.Now().UnixNano())
	welcome, err := g.Welcome()
	if err != nil {
		log.WithError(err).Error("building welcome message")
		return
	}
	if err := c.WriteMessage(websocket.TextMessage, welcome); err != nil {
		log.WithError(err).Warn("writing welcome message")
		return
	}

	err = s.emitTrades(ctx, g, func(payload []byte) error {
		return c.WriteMessage(websocket.TextMessage, payload)
	})
	log.WithError(err).Info("raw feed connection closed")
}

// serveEvents runs one event protocol session: open packet, namespace
// connect, welcome event, then tradeCreated events until the peer goes away.
func (s *Server) serveEvents(w http.ResponseWriter, r *http.Request) {
	c, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer c.Close()
	log := s.log.WithField("remote", c.RemoteAddr().String())
	log.Info("event feed connection accepted")

	if err := s.eventHandshake(c); err != nil {
		log.WithError(err).Warn("event protocol handshake failed")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go watchClose(c, cancel)

	g := NewGenerator(s.schema, time.Now().UnixNano())
	welcome, err := g.Welcome()
	if err != nil {
		log.WithError(err).Error("building welcome message")
		return
	}
	if err := c.WriteMessage(websocket.TextMessage, eventFrame("welcome", welcome)); err != nil {
		log.WithError(err).Warn("writing welcome event")
		return
	}

	err = s.emitTrades(ctx, g, func(payload []byte) error {
		return c.WriteMessage(websocket.TextMessage, eventFrame("tradeCreated", payload))
	})
	log.WithError(err).Info("event feed connection closed")
}

// eventHandshake performs the server side of the connection establishment
// exchange: send the open packet, wait for the namespace request,
// acknowledge it.
func (s *Server) eventHandshake(c *websocket.Conn) error {
	sid := uuid.NewString()
	open := fmt.Sprintf(`0{"sid":%q,"upgrades":[],"pingInterval":25000,"pingTimeout":20000}`, sid)
	if err := c.WriteMessage(websocket.TextMessage, []byte(open)); err != nil {
		return fmt.Errorf("writing open packet: %w", err)
	}

	if err := c.SetReadDeadline(time.Now().Add(handshakeWait)); err != nil {
		return err
	}
	_, frame, err := c.ReadMessage()
	if err != nil {
		return fmt.Errorf("reading namespace request: %w", err)
	}
	if len(frame) < 2 || frame[0] != '4' || frame[1] != '0' {
		return fmt.Errorf("expected namespace request, got %q", frame)
	}
	if err := c.SetReadDeadline(time.Time{}); err != nil {
		return err
	}

	ack := fmt.Sprintf(`40{"sid":%q}`, sid)
	return c.WriteMessage(websocket.TextMessage, []byte(ack))
}

// emitTrades generates and writes trades on a random schedule until ctx is
// cancelled or a write fails.
func (s *Server) emitTrades(ctx context.Context, g *Generator, write func([]byte) error) error {
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	return runPeriodic(ctx, jitter(rnd, s.minDelay, s.maxDelay), func() error {
		payload, err := g.Next()
		if err != nil {
			return err
		}
		return write(payload)
	})
}

// eventFrame wraps payload in an event message frame: 42["name",payload].
func eventFrame(name string, payload []byte) []byte {
	nameJSON, _ := json.Marshal(name)
	frame := make([]byte, 0, len(nameJSON)+len(payload)+5)
	frame = append(frame, '4', '2', '[')
	frame = append(frame, nameJSON...)
	frame = append(frame, ',')
	frame = append(frame, payload...)
	frame = append(frame, ']')
	return frame
}

// watchClose drains incoming frames so close and control frames get
// processed, cancelling the session once the peer goes away.
func watchClose(c *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
	}
}
