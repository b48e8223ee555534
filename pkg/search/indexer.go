package search

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/manenim/storefront/pkg/cache"
	"github.com/manenim/storefront/pkg/metrics"
)

// IndexEntry lists the records registered under one search key.
type IndexEntry struct {
	RecordIDs map[string]struct{}
	Count     int
}

// IndexStats describes the current index.
type IndexStats struct {
	Keys    int
	Records int
	BuiltAt time.Time
}

// Indexer keeps an inverted index over a record collection and answers
// substring queries against it. Queries fall back to a linear scan while no
// index is built.
//
// The index is a snapshot: records added after BuildIndex are only found once
// the index is rebuilt. Records removed since are never returned, because
// matches are resolved against the collection passed to each query.
type Indexer[R Record] struct {
	schema Schema
	cache  *cache.Cache[[]string]

	clock    clockwork.Clock
	logger   *slog.Logger
	recorder metrics.Recorder

	mu      sync.RWMutex
	index   map[string]*IndexEntry
	records int
	builtAt time.Time
	// gen changes on every BuildIndex and Reset and scopes cached results.
	gen uint64

	debounce debouncer
}

// NewIndexer returns an Indexer for records described by schema. queryCache
// may be nil, in which case every query goes to the index.
func NewIndexer[R Record](schema Schema, queryCache *cache.Cache[[]string], opts ...Option) (*Indexer[R], error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	return &Indexer[R]{
		schema:   schema,
		cache:    queryCache,
		clock:    o.clock,
		logger:   o.logger,
		recorder: o.recorder,
		debounce: debouncer{pending: make(map[string]*pendingCall)},
	}, nil
}

// Schema returns the schema the indexer was built with.
func (ix *Indexer[R]) Schema() Schema {
	return ix.schema
}

// BuildIndex replaces the index with one built from records and drops cached
// query results, which refer to the previous index.
func (ix *Indexer[R]) BuildIndex(ctx context.Context, records []R) {
	start := ix.clock.Now()

	index := make(map[string]*IndexEntry)
	for _, r := range records {
		id := r.RecordID()
		for _, k := range ix.schema.keys(r) {
			e, ok := index[k]
			if !ok {
				e = &IndexEntry{RecordIDs: make(map[string]struct{})}
				index[k] = e
			}
			if _, dup := e.RecordIDs[id]; !dup {
				e.RecordIDs[id] = struct{}{}
				e.Count++
			}
		}
	}

	ix.mu.Lock()
	ix.index = index
	ix.records = len(records)
	ix.builtAt = start
	ix.gen++
	ix.mu.Unlock()

	ix.clearCache(ctx)
	ix.logger.Info("search index built", "records", len(records), "keys", len(index), "took", ix.clock.Since(start))
}

func (ix *Indexer[R]) generation() uint64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.gen
}

// Reset drops the index. Queries use a linear scan until the next BuildIndex.
func (ix *Indexer[R]) Reset(ctx context.Context) {
	ix.mu.Lock()
	ix.index = nil
	ix.records = 0
	ix.builtAt = time.Time{}
	ix.gen++
	ix.mu.Unlock()

	ix.clearCache(ctx)
}

func (ix *Indexer[R]) clearCache(ctx context.Context) {
	if ix.cache == nil {
		return
	}
	if err := ix.cache.Clear(ctx); err != nil {
		ix.logger.Warn("could not clear search result cache", "error", err)
	}
}

func (ix *Indexer[R]) Stats() IndexStats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return IndexStats{
		Keys:    len(ix.index),
		Records: ix.records,
		BuiltAt: ix.builtAt,
	}
}

// Entry returns the index entry for a normalized key.
func (ix *Indexer[R]) Entry(key string) (IndexEntry, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	e, ok := ix.index[normalize(key)]
	if !ok {
		return IndexEntry{}, false
	}
	return *e, true
}
