package stream

import (
	"time"

	"github.com/aayush-kapoor/trading-feed-N1/feed"
)

// Option is a configuration option for the Client
type Option interface {
	apply(*options)
}

type options struct {
	logger       Logger
	dialTimeout  time.Duration
	tradeHandler func(feed.Trade)
	stateHandler func(State)

	// for testing only
	eventsDialer dialer
	rawDialer    dialer
}

type funcOption struct {
	f func(*options)
}

func (fo *funcOption) apply(o *options) {
	fo.f(o)
}

func newFuncOption(f func(*options)) *funcOption {
	return &funcOption{
		f: f,
	}
}

// defaultOptions are the default options for a client.
// Don't change this in a backward incompatible way!
func defaultOptions() *options {
	return &options{
		logger:       DefaultLogger(),
		dialTimeout:  connectTimeout,
		tradeHandler: func(_ feed.Trade) {},
		stateHandler: func(_ State) {},
		eventsDialer: dialEvents,
		rawDialer:    dialRaw,
	}
}

// WithLogger configures the logger
func WithLogger(logger Logger) Option {
	return newFuncOption(func(o *options) {
		o.logger = logger
	})
}

// WithConnectTimeout configures the time budget of each transport attempt.
// The event protocol attempt and the raw websocket fallback each get their
// own budget of this size.
func WithConnectTimeout(d time.Duration) Option {
	return newFuncOption(func(o *options) {
		o.dialTimeout = d
	})
}

// WithTradeHandler configures the handler invoked for every normalized
// trade, in the order the transport delivered the source messages. The
// handler runs on the delivery goroutine and should not block.
func WithTradeHandler(handler func(feed.Trade)) Option {
	return newFuncOption(func(o *options) {
		o.tradeHandler = handler
	})
}

// WithStateHandler configures the handler invoked on every connection state
// change. The handler should not block.
func WithStateHandler(handler func(State)) Option {
	return newFuncOption(func(o *options) {
		o.stateHandler = handler
	})
}

func withDialers(events, raw dialer) Option {
	return newFuncOption(func(o *options) {
		o.eventsDialer = events
		o.rawDialer = raw
	})
}
