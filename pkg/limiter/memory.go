package limiter

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/manenim/storefront/pkg/metrics"
)

type counter struct {
	identity string
	start    time.Time
	end      time.Time
	count    int64
}

// MemoryLimiter is an in-process fixed-window rate limiter.
//
// It is safe for concurrent use by multiple goroutines, but its state is local
// to the process and is not shared across replicas. Use RedisLimiter when you
// need a single global limit across multiple instances.
type MemoryLimiter struct {
	mu       sync.Mutex
	windows  map[string]*counter
	clock    clockwork.Clock
	recorder metrics.Recorder
	logger   *slog.Logger
}

// NewMemoryLimiter constructs a MemoryLimiter with empty state.
func NewMemoryLimiter(opts ...Option) *MemoryLimiter {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &MemoryLimiter{
		windows:  make(map[string]*counter),
		clock:    o.clock,
		recorder: o.recorder,
		logger:   o.logger,
	}
}

func windowKey(id Identity, limit Limit, idx int64) string {
	return id.String() + "|" + strconv.FormatInt(limit.Window.Milliseconds(), 10) + "|" + strconv.FormatInt(idx, 10)
}

// Allow counts one request for id in the current window. A denied request is
// not counted.
func (m *MemoryLimiter) Allow(ctx context.Context, id Identity, limit Limit) (Decision, error) {
	if err := limit.Validate(); err != nil {
		return Decision{}, err
	}
	if err := id.validate(); err != nil {
		return Decision{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	m.sweepLocked(now)

	idx, start, end := limit.bounds(now)
	key := windowKey(id, limit, idx)
	c, exists := m.windows[key]
	if !exists {
		c = &counter{identity: id.String(), start: start, end: end}
		m.windows[key] = c
	}

	tags := map[string]string{"namespace": string(id.Namespace)}
	m.recorder.Add("ratelimit.call", 1, tags)

	if c.count < limit.MaxRequests {
		c.count++
		return Decision{
			Allow:     true,
			Limit:     limit.MaxRequests,
			Remaining: limit.MaxRequests - c.count,
			ResetTime: end,
		}, nil
	}

	m.recorder.Add("ratelimit.denied", 1, tags)
	return Decision{
		Allow:      false,
		Limit:      limit.MaxRequests,
		Remaining:  0,
		RetryAfter: end.Sub(now),
		ResetTime:  end,
	}, nil
}

// Reset drops the current window of id.
func (m *MemoryLimiter) Reset(ctx context.Context, id Identity, limit Limit) error {
	if err := limit.Validate(); err != nil {
		return err
	}
	if err := id.validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	idx, _, _ := limit.bounds(m.clock.Now())
	delete(m.windows, windowKey(id, limit, idx))
	return nil
}

// Info reports the state of the current window of id without counting a
// request. An unseen identity gets the full quota.
func (m *MemoryLimiter) Info(ctx context.Context, id Identity, limit Limit) (Decision, error) {
	if err := limit.Validate(); err != nil {
		return Decision{}, err
	}
	if err := id.validate(); err != nil {
		return Decision{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	idx, _, end := limit.bounds(now)
	var used int64
	if c, ok := m.windows[windowKey(id, limit, idx)]; ok {
		used = c.count
	}
	return infoDecision(limit, used, now, end), nil
}

func infoDecision(limit Limit, used int64, now, end time.Time) Decision {
	d := Decision{
		Allow:     used < limit.MaxRequests,
		Limit:     limit.MaxRequests,
		Remaining: limit.MaxRequests - used,
		ResetTime: end,
	}
	if d.Remaining <= 0 {
		d.Remaining = 0
		d.RetryAfter = end.Sub(now)
	}
	return d
}

// Sweep removes every window that has fully elapsed and returns how many were
// removed. Allow already sweeps on each call; Sweep is for periodic cleanup of
// idle limiters.
func (m *MemoryLimiter) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweepLocked(m.clock.Now())
}

func (m *MemoryLimiter) sweepLocked(now time.Time) int {
	removed := 0
	for key, c := range m.windows {
		if !c.end.After(now) {
			delete(m.windows, key)
			removed++
		}
	}
	return removed
}

// Stats is a diagnostic snapshot across all tracked identities.
type Stats struct {
	TotalKeys     int
	TotalRequests int64
	ActiveWindows int
}

func (m *MemoryLimiter) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	identities := make(map[string]struct{}, len(m.windows))
	var s Stats
	for _, c := range m.windows {
		identities[c.identity] = struct{}{}
		s.TotalRequests += c.count
		if c.end.After(now) {
			s.ActiveWindows++
		}
	}
	s.TotalKeys = len(identities)
	return s
}

// Run sweeps every interval until ctx is done.
func (m *MemoryLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := m.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if removed := m.Sweep(); removed > 0 {
				m.logger.Debug("rate limit windows swept", "removed", removed)
			}
		}
	}
}

var _ RateLimiter = (*MemoryLimiter)(nil)
