package metrics

import (
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus is a Recorder that lazily registers one CounterVec per Add name
// and one HistogramVec per Observe name.
//
// The label set of a metric is fixed by its first use: later calls fill
// missing labels with "" and drop unknown ones.
type Prometheus struct {
	namespace string
	reg       prometheus.Registerer

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
	labels     map[string][]string
}

// NewPrometheus returns a recorder registering its collectors on reg, or on
// prometheus.DefaultRegisterer when reg is nil.
func NewPrometheus(namespace string, reg prometheus.Registerer) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &Prometheus{
		namespace:  namespace,
		reg:        reg,
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		labels:     make(map[string][]string),
	}
}

func (p *Prometheus) Add(name string, value float64, tags map[string]string) {
	p.mu.Lock()
	vec, ok := p.counters[name]
	if !ok {
		keys := labelKeys(tags)
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Name:      metricName(name) + "_total",
			Help:      "Counter for " + name + ".",
		}, keys)
		vec = registerOrExisting(p.reg, vec)
		p.counters[name] = vec
		p.labels[name] = keys
	}
	keys := p.labels[name]
	p.mu.Unlock()

	vec.WithLabelValues(labelValues(keys, tags)...).Add(value)
}

func (p *Prometheus) Observe(name string, value float64, tags map[string]string) {
	p.mu.Lock()
	vec, ok := p.histograms[name]
	if !ok {
		keys := labelKeys(tags)
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Name:      metricName(name),
			Help:      "Observations of " + name + ".",
			Buckets:   prometheus.DefBuckets,
		}, keys)
		vec = registerOrExisting(p.reg, vec)
		p.histograms[name] = vec
		p.labels["h:"+name] = keys
	}
	keys := p.labels["h:"+name]
	p.mu.Unlock()

	vec.WithLabelValues(labelValues(keys, tags)...).Observe(value)
}

func registerOrExisting[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

func metricName(name string) string {
	return strings.NewReplacer(".", "_", "-", "_").Replace(name)
}

func labelKeys(tags map[string]string) []string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func labelValues(keys []string, tags map[string]string) []string {
	values := make([]string, len(keys))
	for i, k := range keys {
		values[i] = tags[k]
	}
	return values
}
