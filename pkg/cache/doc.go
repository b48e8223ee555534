// Package cache is a best-effort TTL lookaside cache.
//
// A Cache[T] serializes values to JSON and keeps them in a Store: a bounded
// in-memory LRU (MemoryStore) or Redis (RedisStore). Keys are namespaced by a
// prefix so several caches can share one store.
//
//	c, _ := cache.New[[]string](cache.NewMemoryStore(1024), cache.WithPrefix("search:"))
//	_ = c.Set(ctx, "civic", ids, time.Minute)
//	ids, ok := c.Get(ctx, "civic")
//
// The cache is an optimization, not a system of record: a broken or
// unreachable store degrades the cache to always-miss instead of failing the
// caller.
package cache
