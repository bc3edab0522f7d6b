package services

import (
	"time"

	"github.com/preetsinghmakkar/groupcall/internal/metrics"
	"github.com/preetsinghmakkar/groupcall/internal/websocket"
	"github.com/rs/zerolog"
)

// Publisher fans a payload out to a broadcast topic.
type Publisher interface {
	Publish(topic string, payload any) (websocket.PublishResult, error)
}

// Dispatcher runs post-commit work off the caller's path.
type Dispatcher func(func())

// Go is the production dispatcher.
func Go(fn func()) { go fn() }

// Inline runs work on the calling goroutine, for tests and one-shot commands.
func Inline(fn func()) { fn() }

type options struct {
	logger   zerolog.Logger
	metrics  *metrics.Metrics
	dispatch Dispatcher
	now      func() time.Time
}

type Option func(*options)

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func WithDispatcher(d Dispatcher) Option {
	return func(o *options) { o.dispatch = d }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(component string, opts []Option) options {
	o := options{
		logger:   zerolog.Nop(),
		dispatch: Go,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.With().Str("component", component).Logger()
	return o
}
