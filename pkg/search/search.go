package search

import (
	"context"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
)

// Result is the answer to one query.
type Result[R Record] struct {
	Matches []R
	// Total counts every match before truncation to the max result count.
	Total     int
	Took      time.Duration
	FromCache bool
}

func cacheKey(gen uint64, query string) string {
	return "q:" + strconv.FormatUint(gen, 10) + ":" + strconv.FormatUint(xxhash.Sum64String(query), 16)
}

// Search returns the records with a search key containing query, ignoring
// case, in collection order. Queries shorter than the minimum length return
// an empty result without touching the cache.
func (ix *Indexer[R]) Search(ctx context.Context, query string, records []R, opts ...SearchOption) Result[R] {
	cfg := buildSearchConfig(opts)
	start := ix.clock.Now()

	matches, fromCache, ok := ix.lookup(ctx, query, records, cfg)
	if !ok {
		return Result[R]{}
	}

	res := Result[R]{
		Matches:   truncate(matches, cfg.maxResults),
		Total:     len(matches),
		FromCache: fromCache,
	}
	res.Took = ix.clock.Since(start)
	ix.recorder.Observe("search.latency", res.Took.Seconds(), map[string]string{"kind": "simple"})
	return res
}

// lookup returns every match for query. ok is false for a query below the
// minimum length.
func (ix *Indexer[R]) lookup(ctx context.Context, query string, records []R, cfg searchConfig) (matches []R, fromCache bool, ok bool) {
	q := normalize(query)
	if utf8.RuneCountInString(q) < cfg.minQueryLength {
		return nil, false, false
	}

	if ix.cache != nil {
		if ids, hit := ix.cache.Get(ctx, cacheKey(ix.generation(), q)); hit {
			ix.recorder.Add("search.query", 1, map[string]string{"path": "cache"})
			return resolve(records, toSet(ids)), true, true
		}
	}

	ids, path, gen := ix.matchIDs(q, records)
	ix.recorder.Add("search.query", 1, map[string]string{"path": path})
	matches = resolve(records, ids)

	// A result computed against a replaced index is not written back.
	if ix.cache != nil && gen == ix.generation() {
		all := make([]string, len(matches))
		for i, r := range matches {
			all[i] = r.RecordID()
		}
		if err := ix.cache.Set(ctx, cacheKey(gen, q), all, cfg.resultTTL); err != nil {
			ix.logger.Warn("could not cache search result", "query", q, "error", err)
		}
	}
	return matches, false, true
}

// matchIDs collects the IDs of records matching q from the index, or from a
// linear scan over the same keys when no index is built. It also returns the
// index generation the match was computed against.
func (ix *Indexer[R]) matchIDs(q string, records []R) (map[string]struct{}, string, uint64) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	ids := make(map[string]struct{})
	if ix.index == nil {
		for _, r := range records {
			for _, k := range ix.schema.keys(r) {
				if strings.Contains(k, q) {
					ids[r.RecordID()] = struct{}{}
					break
				}
			}
		}
		return ids, "linear", ix.gen
	}

	for k, e := range ix.index {
		if !strings.Contains(k, q) {
			continue
		}
		for id := range e.RecordIDs {
			ids[id] = struct{}{}
		}
	}
	return ids, "index", ix.gen
}

func resolve[R Record](records []R, ids map[string]struct{}) []R {
	if len(ids) == 0 {
		return nil
	}
	out := make([]R, 0, len(ids))
	for _, r := range records {
		if _, ok := ids[r.RecordID()]; ok {
			out = append(out, r)
		}
	}
	return out
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func truncate[R any](s []R, n int) []R {
	if n > 0 && len(s) > n {
		return s[:n]
	}
	return s
}

// AdvancedSearch runs Search without truncation, keeps the matches accepted
// by filters, then truncates. An empty query selects the whole collection, so
// filters alone can browse it.
func (ix *Indexer[R]) AdvancedSearch(ctx context.Context, query string, records []R, filters FilterSet, opts ...SearchOption) Result[R] {
	cfg := buildSearchConfig(opts)
	start := ix.clock.Now()

	var (
		candidates []R
		fromCache  bool
	)
	if normalize(query) == "" {
		candidates = records
	} else {
		var ok bool
		candidates, fromCache, ok = ix.lookup(ctx, query, records, cfg)
		if !ok {
			return Result[R]{}
		}
	}

	var matches []R
	for _, r := range candidates {
		if filters.Match(r) {
			matches = append(matches, r)
		}
	}

	res := Result[R]{
		Matches:   truncate(matches, cfg.maxResults),
		Total:     len(matches),
		FromCache: fromCache,
	}
	res.Took = ix.clock.Since(start)
	ix.recorder.Observe("search.latency", res.Took.Seconds(), map[string]string{"kind": "advanced"})
	return res
}
