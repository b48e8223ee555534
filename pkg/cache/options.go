package cache

import (
	"io"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/manenim/storefront/pkg/metrics"
)

const (
	defaultPrefix = "cache:"
	defaultTTL    = 5 * time.Minute
)

// Class selects which store an entry lives in.
type Class int

const (
	// ClassDurable is the store the cache was built with.
	ClassDurable Class = iota
	// ClassSession is a process-local store for short-lived per-session data.
	ClassSession
)

type config struct {
	prefix     string
	defaultTTL time.Duration
	compress   bool
	session    Store
	clock      clockwork.Clock
	logger     *slog.Logger
	recorder   metrics.Recorder
	name       string
}

func defaultConfig() config {
	return config{
		prefix:     defaultPrefix,
		defaultTTL: defaultTTL,
		clock:      clockwork.NewRealClock(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		recorder:   metrics.NoOp{},
	}
}

// Option configures a Cache.
type Option func(*config)

// WithPrefix namespaces every key of the cache, so several caches can share
// one store. Clear only removes keys under this prefix.
func WithPrefix(prefix string) Option {
	return func(c *config) {
		c.prefix = prefix
	}
}

// WithDefaultTTL is used by Set when called with a non-positive ttl.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *config) {
		c.defaultTTL = ttl
	}
}

// WithDefaultCompression compresses entries unless Set overrides it.
func WithDefaultCompression(on bool) Option {
	return func(c *config) {
		c.compress = on
	}
}

// WithSessionStore replaces the in-memory store used for ClassSession.
func WithSessionStore(s Store) Option {
	return func(c *config) {
		c.session = s
	}
}

func WithClock(clock clockwork.Clock) Option {
	return func(c *config) {
		if clock != nil {
			c.clock = clock
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRecorder reports hit/miss/expiry counters tagged with the cache name.
func WithRecorder(r metrics.Recorder, name string) Option {
	return func(c *config) {
		c.recorder = metrics.OrNoOp(r)
		c.name = name
	}
}

type setConfig struct {
	compress bool
	class    Class
}

// SetOption tunes a single Set.
type SetOption func(*setConfig)

// WithCompression stores the value as base64 of gzipped JSON.
func WithCompression(on bool) SetOption {
	return func(c *setConfig) {
		c.compress = on
	}
}

func WithStorageClass(class Class) SetOption {
	return func(c *setConfig) {
		c.class = class
	}
}

type getConfig struct {
	class Class
}

// GetOption tunes a single Get.
type GetOption func(*getConfig)

// FromClass reads from the store of the given class.
func FromClass(class Class) GetOption {
	return func(c *getConfig) {
		c.class = class
	}
}
