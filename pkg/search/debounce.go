package search

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type pendingCall struct {
	timer clockwork.Timer
}

// debouncer holds at most one pending call per signature.
type debouncer struct {
	mu      sync.Mutex
	pending map[string]*pendingCall
}

// schedule replaces the pending call for sig with fn, to run after delay. The
// returned func cancels fn if it has not started.
func (d *debouncer) schedule(clock clockwork.Clock, sig string, delay time.Duration, fn func()) func() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if prev, ok := d.pending[sig]; ok {
		prev.timer.Stop()
	}

	call := &pendingCall{}
	call.timer = clock.AfterFunc(delay, func() {
		d.mu.Lock()
		if d.pending[sig] != call {
			d.mu.Unlock()
			return
		}
		delete(d.pending, sig)
		d.mu.Unlock()

		fn()
	})
	d.pending[sig] = call

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.pending[sig] == call {
			call.timer.Stop()
			delete(d.pending, sig)
		}
	}
}

func (d *debouncer) len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

func signature(query string, cfg searchConfig) string {
	return normalize(query) + "|" + strconv.Itoa(cfg.maxResults) + "|" + strconv.Itoa(cfg.minQueryLength)
}

// SearchDebounced runs Search after delay and passes the result to callback.
// A later call with the same query and options within delay replaces the
// pending one, which then never calls callback. Calls with different
// signatures are independent. The callback is skipped when ctx is done by the
// time the delay elapses.
//
// The returned func cancels the call if it has not fired yet.
func (ix *Indexer[R]) SearchDebounced(ctx context.Context, query string, records []R, callback func(Result[R]), delay time.Duration, opts ...SearchOption) func() {
	sig := signature(query, buildSearchConfig(opts))
	return ix.debounce.schedule(ix.clock, sig, delay, func() {
		if ctx.Err() != nil {
			return
		}
		callback(ix.Search(ctx, query, records, opts...))
	})
}

// Pending reports how many debounced searches are waiting to fire.
func (ix *Indexer[R]) Pending() int {
	return ix.debounce.len()
}
