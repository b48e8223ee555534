package limiter

import (
	"io"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/manenim/storefront/pkg/metrics"
)

const (
	defaultPrefix  = "limiter:"
	defaultTimeout = 5 * time.Second
)

type options struct {
	prefix   string
	timeout  time.Duration
	recorder metrics.Recorder
	clock    clockwork.Clock
	logger   *slog.Logger
}

func defaultOptions() options {
	return options{
		prefix:   defaultPrefix,
		timeout:  defaultTimeout,
		recorder: metrics.NoOp{},
		clock:    clockwork.NewRealClock(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// Option configures a MemoryLimiter or a RedisLimiter.
type Option func(*options)

// WithPrefix sets the Redis key prefix (default "limiter:"). Ignored by MemoryLimiter.
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

// WithTimeout bounds every Redis round trip (default 5s). Ignored by MemoryLimiter.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithRecorder injects a metrics backend.
func WithRecorder(r metrics.Recorder) Option {
	return func(o *options) {
		o.recorder = metrics.OrNoOp(r)
	}
}

// WithClock replaces the wall clock, mostly for tests.
func WithClock(c clockwork.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithLogger sets the logger used for degraded paths.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
