package search

import (
	"io"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/manenim/storefront/pkg/metrics"
)

const (
	DefaultMaxResults     = 50
	DefaultMinQueryLength = 2
	DefaultResultTTL      = 5 * time.Minute
	DefaultSuggestions    = 10
)

type options struct {
	clock    clockwork.Clock
	logger   *slog.Logger
	recorder metrics.Recorder
}

func defaultOptions() options {
	return options{
		clock:    clockwork.NewRealClock(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		recorder: metrics.NoOp{},
	}
}

// Option configures an Indexer.
type Option func(*options)

// WithClock replaces the clock used for timings and debouncing.
func WithClock(c clockwork.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func WithRecorder(r metrics.Recorder) Option {
	return func(o *options) {
		o.recorder = metrics.OrNoOp(r)
	}
}

type searchConfig struct {
	maxResults     int
	minQueryLength int
	resultTTL      time.Duration
}

func defaultSearchConfig() searchConfig {
	return searchConfig{
		maxResults:     DefaultMaxResults,
		minQueryLength: DefaultMinQueryLength,
		resultTTL:      DefaultResultTTL,
	}
}

// SearchOption tunes a single query.
type SearchOption func(*searchConfig)

// WithMaxResults caps the returned matches. Non-positive values are ignored.
func WithMaxResults(n int) SearchOption {
	return func(c *searchConfig) {
		if n > 0 {
			c.maxResults = n
		}
	}
}

// WithMinQueryLength sets the shortest query, in characters, that is searched.
func WithMinQueryLength(n int) SearchOption {
	return func(c *searchConfig) {
		if n >= 0 {
			c.minQueryLength = n
		}
	}
}

// WithResultTTL sets how long a result stays in the query cache.
func WithResultTTL(ttl time.Duration) SearchOption {
	return func(c *searchConfig) {
		if ttl > 0 {
			c.resultTTL = ttl
		}
	}
}

func buildSearchConfig(opts []SearchOption) searchConfig {
	c := defaultSearchConfig()
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
