package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheus(reg, "pathfinder")

	c := m.Counter("security_warnings")
	c.Inc()
	c.Inc()

	// Same name must resolve to the same instrument.
	m.Counter("security_warnings").Inc()

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.Equal(t, "pathfinder_security_warnings", families[0].GetName())

	got := testutil.ToFloat64(m.Counter("security_warnings").(prometheus.Counter))
	assert.Equal(t, 3.0, got)
}

func TestPrometheusHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheus(reg, "pathfinder")

	h := m.Histogram("find.duration")
	h.Observe(0.25)
	m.Histogram("find.duration").Observe(1.5)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.Equal(t, "pathfinder_find_duration", families[0].GetName())
	assert.Equal(t, uint64(2), families[0].GetMetric()[0].GetHistogram().GetSampleCount())
}

func TestNopSink(t *testing.T) {
	m := Nop()

	// Must be callable without side effects or panics.
	m.Counter("anything").Inc()
	m.Histogram("anything").Observe(1.0)
}
