package cache

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"go.trai.ch/zerr"
	"golang.org/x/sync/singleflight"

	"github.com/manenim/storefront/pkg/metrics"
)

// Cache is a TTL cache of T values over a byte Store.
//
// Entries are visible while now-CreatedAt <= TTL. Expired entries are
// removed when read and by Cleanup. Store and decoding failures never reach
// the caller of Get: they are logged and reported as a miss.
type Cache[T any] struct {
	durable Store
	session Store

	prefix     string
	defaultTTL time.Duration
	compress   bool

	clock    clockwork.Clock
	logger   *slog.Logger
	recorder metrics.Recorder
	tags     map[string]string

	sf     singleflight.Group
	hits   atomic.Uint64
	misses atomic.Uint64
}

// New builds a cache over store.
func New[T any](store Store, opts ...Option) (*Cache[T], error) {
	if store == nil {
		return nil, ErrNilStore
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.defaultTTL <= 0 {
		return nil, zerr.With(ErrInvalidTTL, "ttl", cfg.defaultTTL.String())
	}
	if cfg.session == nil {
		cfg.session = NewMemoryStore(0)
	}

	return &Cache[T]{
		durable:    store,
		session:    cfg.session,
		prefix:     cfg.prefix,
		defaultTTL: cfg.defaultTTL,
		compress:   cfg.compress,
		clock:      cfg.clock,
		logger:     cfg.logger,
		recorder:   cfg.recorder,
		tags:       map[string]string{"cache": cfg.name},
	}, nil
}

func (c *Cache[T]) storeFor(class Class) Store {
	if class == ClassSession {
		return c.session
	}
	return c.durable
}

func (c *Cache[T]) key(k string) string {
	return c.prefix + k
}

// Set stores value under key, replacing any previous entry. A non-positive
// ttl uses the default TTL.
func (c *Cache[T]) Set(ctx context.Context, key string, value T, ttl time.Duration, opts ...SetOption) error {
	if key == "" {
		return ErrEmptyKey
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	sc := setConfig{compress: c.compress, class: ClassDurable}
	for _, opt := range opts {
		opt(&sc)
	}

	b, err := encode(key, value, c.clock.Now(), ttl, sc.compress)
	if err != nil {
		return zerr.With(err, "key", key)
	}
	if err := c.storeFor(sc.class).Set(ctx, c.key(key), b, ttl); err != nil {
		return zerr.With(zerr.Wrap(err, ErrStore.Error()), "key", key)
	}
	return nil
}

// Get returns the value under key if it is present and unexpired.
func (c *Cache[T]) Get(ctx context.Context, key string, opts ...GetOption) (T, bool) {
	var zero T

	gc := getConfig{class: ClassDurable}
	for _, opt := range opts {
		opt(&gc)
	}
	store := c.storeFor(gc.class)
	full := c.key(key)

	raw, ok, err := store.Get(ctx, full)
	if err != nil {
		c.logger.Warn("cache store read failed", "key", key, "error", err)
		return zero, c.miss()
	}
	if !ok {
		return zero, c.miss()
	}

	env, err := decodeEnvelope(raw)
	if err == nil && env.expired(c.clock.Now()) {
		c.recorder.Add("cache.expired", 1, c.tags)
		c.removeQuietly(ctx, store, full)
		return zero, c.miss()
	}

	var value T
	if err == nil {
		err = decodeValue(env, &value)
	}
	if err != nil {
		c.logger.Warn("dropping undecodable cache entry", "key", key, "error", err)
		c.recorder.Add("cache.decode_error", 1, c.tags)
		c.removeQuietly(ctx, store, full)
		return zero, c.miss()
	}

	c.hits.Add(1)
	c.recorder.Add("cache.hit", 1, c.tags)
	return value, true
}

func (c *Cache[T]) miss() bool {
	c.misses.Add(1)
	c.recorder.Add("cache.miss", 1, c.tags)
	return false
}

func (c *Cache[T]) removeQuietly(ctx context.Context, store Store, fullKey string) {
	if err := store.Remove(ctx, fullKey); err != nil {
		c.logger.Warn("cache store remove failed", "key", strings.TrimPrefix(fullKey, c.prefix), "error", err)
	}
}

// Has reports whether Get would return a value, with the same side effects.
func (c *Cache[T]) Has(ctx context.Context, key string, opts ...GetOption) bool {
	_, ok := c.Get(ctx, key, opts...)
	return ok
}

// Remove deletes key from both storage classes.
func (c *Cache[T]) Remove(ctx context.Context, key string) {
	full := c.key(key)
	c.removeQuietly(ctx, c.durable, full)
	c.removeQuietly(ctx, c.session, full)
}

// Clear removes every entry under the cache prefix. Keys of other caches
// sharing the store are left alone.
func (c *Cache[T]) Clear(ctx context.Context) error {
	for _, store := range c.stores() {
		keys, err := store.Keys(ctx, c.prefix)
		if err != nil {
			return zerr.Wrap(err, ErrStore.Error())
		}
		for _, k := range keys {
			if err := store.Remove(ctx, k); err != nil {
				return zerr.With(zerr.Wrap(err, ErrStore.Error()), "key", k)
			}
		}
	}
	return nil
}

func (c *Cache[T]) stores() []Store {
	if c.session == c.durable {
		return []Store{c.durable}
	}
	return []Store{c.durable, c.session}
}

// Cleanup removes expired and undecodable entries and returns how many were
// removed.
func (c *Cache[T]) Cleanup(ctx context.Context) int {
	now := c.clock.Now()
	removed := 0
	for _, store := range c.stores() {
		keys, err := store.Keys(ctx, c.prefix)
		if err != nil {
			c.logger.Warn("cache cleanup could not list keys", "error", err)
			continue
		}
		for _, k := range keys {
			raw, ok, err := store.Get(ctx, k)
			if err != nil || !ok {
				continue
			}
			env, err := decodeEnvelope(raw)
			if err == nil && !env.expired(now) {
				continue
			}
			if err := store.Remove(ctx, k); err != nil {
				c.logger.Warn("cache cleanup remove failed", "key", k, "error", err)
				continue
			}
			removed++
		}
	}
	if removed > 0 {
		c.recorder.Add("cache.expired", float64(removed), c.tags)
		c.logger.Debug("cache cleanup", "removed", removed)
	}
	return removed
}

// Stats are cumulative since the cache was created; ItemCount and TotalBytes
// are measured at call time over live entries, so expired entries not yet
// cleaned up are left out.
type Stats struct {
	ItemCount  int
	TotalBytes int64
	Hits       uint64
	Misses     uint64
	HitRate    float64
}

func (c *Cache[T]) Stats(ctx context.Context) Stats {
	s := Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}

	now := c.clock.Now()
	for _, store := range c.stores() {
		keys, err := store.Keys(ctx, c.prefix)
		if err != nil {
			c.logger.Warn("cache stats could not list keys", "error", err)
			continue
		}
		for _, k := range keys {
			raw, ok, err := store.Get(ctx, k)
			if err != nil || !ok {
				continue
			}
			if env, err := decodeEnvelope(raw); err != nil || env.expired(now) {
				continue
			}
			s.ItemCount++
			s.TotalBytes += int64(len(raw))
		}
	}
	return s
}

// GetOrLoad returns the cached value for key, or calls load, stores its
// result with ttl and returns it. Concurrent callers missing the same key
// share one load. The bool reports a cache hit.
func (c *Cache[T]) GetOrLoad(ctx context.Context, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, bool, error) {
	if v, ok := c.Get(ctx, key); ok {
		return v, true, nil
	}

	res, err, _ := c.sf.Do(key, func() (any, error) {
		v, err := load(ctx)
		if err != nil {
			return v, err
		}
		if err := c.Set(ctx, key, v, ttl); err != nil {
			c.logger.Warn("cache write-back failed", "key", key, "error", err)
		}
		return v, nil
	})

	v, _ := res.(T)
	return v, false, err
}

// Run calls Cleanup every interval until ctx is done.
func (c *Cache[T]) Run(ctx context.Context, interval time.Duration) {
	ticker := c.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			c.Cleanup(ctx)
		}
	}
}

// Close runs a final Cleanup. The cache stays usable afterwards.
func (c *Cache[T]) Close(ctx context.Context) {
	c.Cleanup(ctx)
}
