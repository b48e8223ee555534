// Package metrics defines the small recording interface shared by the cache,
// search and limiter packages, together with a no-op and a Prometheus
// implementation.
package metrics

// Recorder receives counter increments and observations (latencies, sizes).
//
// Names are dotted ("ratelimit.call"); tags become labels in backends that
// support them.
type Recorder interface {
	Add(name string, value float64, tags map[string]string)
	Observe(name string, value float64, tags map[string]string)
}

// NoOp is a placeholder that does nothing.
// It ensures we never have to check 'if r.recorder != nil' in our hot path.
type NoOp struct{}

func (NoOp) Add(name string, value float64, tags map[string]string)     {}
func (NoOp) Observe(name string, value float64, tags map[string]string) {}

// OrNoOp returns r, or NoOp when r is nil.
func OrNoOp(r Recorder) Recorder {
	if r == nil {
		return NoOp{}
	}
	return r
}
