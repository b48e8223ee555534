package limiter

import (
	"context"
	_ "embed"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"go.trai.ch/zerr"

	"github.com/manenim/storefront/pkg/metrics"
)

//go:embed fixed_window.lua
var fixedWindowScript string

type RedisLimiter struct {
	client   redis.UniversalClient
	prefix   string
	timeout  time.Duration
	recorder metrics.Recorder
	clock    clockwork.Clock
	logger   *slog.Logger

	mu        sync.RWMutex
	scriptSHA string
}

func NewRedisLimiter(client redis.UniversalClient, opts ...Option) (*RedisLimiter, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	sha, err := client.ScriptLoad(ctx, fixedWindowScript).Result()
	if err != nil {
		return nil, err
	}

	return &RedisLimiter{
		client:    client,
		prefix:    o.prefix,
		timeout:   o.timeout,
		recorder:  o.recorder,
		clock:     o.clock,
		logger:    o.logger,
		scriptSHA: sha,
	}, nil
}

// key scopes a counter to the identity, the window size and the window index,
// so policies with different windows never share a counter.
func (r *RedisLimiter) key(id Identity, limit Limit, idx int64) string {
	return r.prefix + id.String() + ":" + strconv.FormatInt(limit.Window.Milliseconds(), 10) + ":" + strconv.FormatInt(idx, 10)
}

func (r *RedisLimiter) Allow(ctx context.Context, id Identity, limit Limit) (Decision, error) {
	if err := limit.Validate(); err != nil {
		return Decision{}, err
	}
	if err := id.validate(); err != nil {
		return Decision{}, err
	}

	start := time.Now()
	tags := map[string]string{"namespace": string(id.Namespace)}
	defer func() {
		r.recorder.Add("ratelimit.call", 1, tags)
		r.recorder.Observe("ratelimit.latency", time.Since(start).Seconds(), tags)
	}()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	now := r.clock.Now()
	idx, _, end := limit.bounds(now)
	ttl := end.Sub(now).Milliseconds() + 1

	result, err := r.eval(ctx, []string{r.key(id, limit, idx)}, limit.MaxRequests, ttl)
	if err != nil {
		return Decision{}, err
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 2 {
		return Decision{}, ErrInvalidResponse
	}

	allowed := toInt64(values[0]) == 1
	if !allowed {
		r.recorder.Add("ratelimit.denied", 1, tags)
		return Decision{
			Allow:      false,
			Limit:      limit.MaxRequests,
			Remaining:  0,
			RetryAfter: end.Sub(now),
			ResetTime:  end,
		}, nil
	}

	return Decision{
		Allow:     true,
		Limit:     limit.MaxRequests,
		Remaining: toInt64(values[1]),
		ResetTime: end,
	}, nil
}

// eval runs the loaded script, reloading it once if Redis lost its script
// cache (for example after a restart).
func (r *RedisLimiter) eval(ctx context.Context, keys []string, args ...interface{}) (interface{}, error) {
	r.mu.RLock()
	sha := r.scriptSHA
	r.mu.RUnlock()

	result, err := r.client.EvalSha(ctx, sha, keys, args...).Result()
	if err == nil || !strings.HasPrefix(err.Error(), "NOSCRIPT") {
		return result, err
	}

	r.logger.Warn("rate limit script missing from redis, reloading")
	sha, err = r.client.ScriptLoad(ctx, fixedWindowScript).Result()
	if err != nil {
		r.logger.Error("rate limit script reload failed", "error", err)
		return nil, zerr.Wrap(err, "reload rate limit script")
	}
	r.mu.Lock()
	r.scriptSHA = sha
	r.mu.Unlock()

	return r.client.EvalSha(ctx, sha, keys, args...).Result()
}

func (r *RedisLimiter) Reset(ctx context.Context, id Identity, limit Limit) error {
	if err := limit.Validate(); err != nil {
		return err
	}
	if err := id.validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	idx, _, _ := limit.bounds(r.clock.Now())
	return r.client.Del(ctx, r.key(id, limit, idx)).Err()
}

func (r *RedisLimiter) Info(ctx context.Context, id Identity, limit Limit) (Decision, error) {
	if err := limit.Validate(); err != nil {
		return Decision{}, err
	}
	if err := id.validate(); err != nil {
		return Decision{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	now := r.clock.Now()
	idx, _, end := limit.bounds(now)
	used, err := r.client.Get(ctx, r.key(id, limit, idx)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Decision{}, err
	}
	return infoDecision(limit, used, now, end), nil
}

func toInt64(val interface{}) int64 {
	switch v := val.(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	default:
		return 0
	}
}

var _ RateLimiter = (*RedisLimiter)(nil)
