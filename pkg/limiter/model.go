package limiter

import (
	"context"
	"strconv"
	"time"

	"go.trai.ch/zerr"
)

type Namespace string

// Limit is a fixed-window policy: at most MaxRequests per Window.
type Limit struct {
	Window      time.Duration
	MaxRequests int64
}

// Validate rejects non-positive windows and quotas.
func (l Limit) Validate() error {
	if l.Window <= 0 {
		return zerr.With(ErrInvalidLimit, "window", l.Window.String())
	}
	if l.MaxRequests <= 0 {
		return zerr.With(ErrInvalidLimit, "max_requests", strconv.FormatInt(l.MaxRequests, 10))
	}
	return nil
}

// bounds returns the start and end of the window containing now.
func (l Limit) bounds(now time.Time) (int64, time.Time, time.Time) {
	size := l.Window.Milliseconds()
	if size <= 0 {
		size = 1
	}
	idx := now.UnixMilli() / size
	start := time.UnixMilli(idx * size)
	return idx, start, start.Add(time.Duration(size) * time.Millisecond)
}

type Decision struct {
	Allow      bool
	Limit      int64
	Remaining  int64
	RetryAfter time.Duration
	ResetTime  time.Time
}

type Identity struct {
	Namespace Namespace
	Key       string
}

func (id Identity) String() string {
	return string(id.Namespace) + ":" + id.Key
}

func (id Identity) validate() error {
	if id.Key == "" {
		return zerr.With(ErrEmptyIdentity, "namespace", string(id.Namespace))
	}
	return nil
}

type RateLimiter interface {
	// Allow counts one request against the current window of id.
	Allow(ctx context.Context, id Identity, limit Limit) (Decision, error)
	// Reset clears the current window of id, restoring the full quota.
	Reset(ctx context.Context, id Identity, limit Limit) error
	// Info reports what the next Allow would see, without counting.
	Info(ctx context.Context, id Identity, limit Limit) (Decision, error)
}
