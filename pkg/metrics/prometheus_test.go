package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheus_Add(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus("storefront", reg)

	p.Add("cache.hit", 1, map[string]string{"cache": "listings"})
	p.Add("cache.hit", 2, map[string]string{"cache": "listings"})
	p.Add("cache.hit", 1, map[string]string{"cache": "sessions", "extra": "dropped"})

	vec := p.counters["cache.hit"]
	require.NotNil(t, vec)
	assert.Equal(t, 3.0, testutil.ToFloat64(vec.WithLabelValues("listings")))
	assert.Equal(t, 1.0, testutil.ToFloat64(vec.WithLabelValues("sessions")))
}

func TestPrometheus_Observe(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus("storefront", reg)

	p.Observe("ratelimit.latency", 0.002, nil)
	p.Observe("ratelimit.latency", 0.004, nil)

	count, err := testutil.GatherAndCount(reg, "storefront_ratelimit_latency")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPrometheus_SharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := NewPrometheus("storefront", reg)
	b := NewPrometheus("storefront", reg)

	a.Add("ratelimit.call", 1, nil)
	b.Add("ratelimit.call", 1, nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(b.counters["ratelimit.call"].WithLabelValues()))
}

func TestOrNoOp(t *testing.T) {
	assert.IsType(t, NoOp{}, OrNoOp(nil))

	p := NewPrometheus("x", prometheus.NewRegistry())
	assert.Same(t, p, OrNoOp(p))
}
