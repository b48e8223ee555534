// Package catalog holds the live listing collection of the storefront and
// keeps its search index in step with the listing source.
package catalog

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/manenim/storefront/internal/listing"
	"github.com/manenim/storefront/pkg/search"
)

type options struct {
	clock  clockwork.Clock
	logger *slog.Logger
}

type Option func(*options)

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

// Catalog is safe for concurrent use. Readers always see a complete
// collection; Reload swaps it in one step.
type Catalog struct {
	src    listing.Source
	ix     *search.Indexer[listing.Listing]
	clock  clockwork.Clock
	logger *slog.Logger

	mu       sync.RWMutex
	listings []listing.Listing
	byID     map[string]int
	loadedAt time.Time
}

func New(src listing.Source, ix *search.Indexer[listing.Listing], opts ...Option) *Catalog {
	o := options{
		clock:  clockwork.NewRealClock(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Catalog{
		src:    src,
		ix:     ix,
		clock:  o.clock,
		logger: o.logger,
		byID:   map[string]int{},
	}
}

// Reload reads the source and rebuilds the index. On error the current
// collection is kept.
func (c *Catalog) Reload(ctx context.Context) error {
	listings, err := c.src.Load(ctx)
	if err != nil {
		return err
	}

	byID := make(map[string]int, len(listings))
	for i, l := range listings {
		byID[l.ID] = i
	}

	c.mu.Lock()
	c.listings = listings
	c.byID = byID
	c.loadedAt = c.clock.Now()
	c.mu.Unlock()

	c.ix.BuildIndex(ctx, listings)
	c.logger.Info("catalog reloaded", "listings", len(listings))
	return nil
}

// Listings returns the current collection. Callers must not modify it.
func (c *Catalog) Listings() []listing.Listing {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.listings
}

func (c *Catalog) Get(id string) (listing.Listing, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.byID[id]
	if !ok {
		return listing.Listing{}, false
	}
	return c.listings[i], true
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.listings)
}

func (c *Catalog) LoadedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadedAt
}

func (c *Catalog) Indexer() *search.Indexer[listing.Listing] {
	return c.ix
}

func (c *Catalog) Search(ctx context.Context, query string, opts ...search.SearchOption) search.Result[listing.Listing] {
	return c.ix.Search(ctx, query, c.Listings(), opts...)
}

func (c *Catalog) Filter(ctx context.Context, query string, filters search.FilterSet, opts ...search.SearchOption) search.Result[listing.Listing] {
	return c.ix.AdvancedSearch(ctx, query, c.Listings(), filters, opts...)
}

func (c *Catalog) Suggest(query string, limit int) []string {
	return c.ix.Suggestions(query, c.Listings(), limit)
}

// Poll reloads every interval until ctx is done. Failed reloads are logged.
func (c *Catalog) Poll(ctx context.Context, interval time.Duration) {
	ticker := c.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if err := c.Reload(ctx); err != nil {
				c.logger.Warn("catalog reload failed", "error", err)
			}
		}
	}
}
