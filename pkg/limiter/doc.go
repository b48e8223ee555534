// Package limiter provides local and distributed rate limiting based on
// fixed-window counters.
//
// The primary entry point is the RateLimiter interface:
//
//	dec, err := limiter.Allow(ctx, id, limit)
//
// The returned Decision contains whether the request is allowed, how many
// requests remain in the window, and timing hints for callers that want to set
// rate-limit headers (for example, Retry-After).
//
// # Overview
//
// Time is cut into consecutive windows of Limit.Window. The window containing
// now has index floor(now / Window). Each identity owns one counter per window:
//
//   - The first request in a window creates the counter.
//   - While the counter is below MaxRequests, a request is allowed and counted.
//   - Once it reaches MaxRequests, further requests are denied and are not
//     counted. The counter never decrements.
//   - When the window ends the counter is discarded; the next request starts a
//     fresh window.
//
// Windows are fixed, not sliding: a burst that straddles a boundary can see up
// to 2*MaxRequests allowed in a short interval. Callers needing a strict bound
// should pick a smaller window.
//
// # Core Types
//
// Limit defines the policy:
//
//   - Window: the length of one counting window
//   - MaxRequests: requests allowed per window
//
// Identity defines "who" is being rate-limited. It is split into:
//
//   - Namespace: a logical grouping (for example, "search", "auth")
//   - Key: the identifier within that namespace (for example, "ip:10.0.0.1")
//
// IdentityFunc strategies (ByAddress, ByUser, BySession, Composite) derive the
// Key from a RequestInfo. Guard binds a RateLimiter to one Limit per Category
// and uses the category as the namespace.
//
// # Backends
//
// The package provides two implementations with the same API:
//
//   - MemoryLimiter: an in-process limiter backed by a Go map. Elapsed windows
//     are swept on every Allow call, and Run/Sweep allow a periodic sweep of
//     idle limiters. It does not enforce a global limit across replicas.
//
//   - RedisLimiter: a distributed limiter backed by Redis. It uses a Lua script
//     to perform the read/compare/increment cycle atomically. Counter keys
//     expire with their window.
//
// # Concurrency
//
// MemoryLimiter is safe for concurrent use by multiple goroutines (it uses a
// mutex to protect its internal map). RedisLimiter delegates concurrency
// safety to Redis and the go-redis client.
//
// # Context and Error Policy
//
// This package does not impose a "fail open" vs "fail closed" policy. If Redis
// is unavailable or the context expires, Allow returns a non-nil error and the
// caller decides whether to deny traffic or allow it.
//
// A denied request is not an error: it is a Decision with Allow == false.
// Invalid limits and empty identity keys are errors.
//
// # Decision Semantics
//
//   - Allow reports whether the current request is permitted.
//   - Limit is the configured MaxRequests.
//   - Remaining is the number of requests left in the window after this one.
//   - RetryAfter is 0 when allowed; when denied it is the time until the
//     window ends.
//   - ResetTime is the end of the current window.
//
// # Storage Details
//
// MemoryLimiter keys counters by "{namespace}:{key}|{window ms}|{window index}".
// RedisLimiter stores a plain integer under
// "{prefix}{namespace}:{key}:{window ms}:{window index}".
//
// # Configuration
//
// Both limiters take functional options:
//
//	limiter, _ := NewRedisLimiter(client,
//		WithPrefix("myapp:rate:"),
//		WithTimeout(2*time.Second),
//		WithRecorder(myMetrics),
//	)
//
//   - WithPrefix(string): Sets the Redis key prefix (default "limiter:").
//   - WithTimeout(time.Duration): Sets the context timeout for Redis operations
//     (default 5s).
//   - WithRecorder(metrics.Recorder): Injects a custom metrics backend.
//   - WithClock(clockwork.Clock): Replaces the wall clock.
//   - WithLogger(*slog.Logger): Receives script reloads and janitor sweeps.
package limiter
