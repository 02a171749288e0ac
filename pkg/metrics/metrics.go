// Package metrics provides the telemetry sink consumed by pathfinder
// operations. Counters and histograms are resolved by name so callers can
// plug in Prometheus, or nothing at all.
package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counter is a monotonically increasing counter.
type Counter interface {
	Inc()
}

// Histogram records observed durations in seconds.
type Histogram interface {
	Observe(seconds float64)
}

// Metrics resolves named counters and histograms. Implementations must be
// safe for concurrent use.
type Metrics interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// Prometheus implements Metrics on top of a prometheus.Registerer.
// Instruments are created on first use and cached by name.
type Prometheus struct {
	factory    promauto.Factory
	namespace  string
	mu         sync.Mutex
	counters   map[string]prometheus.Counter
	histograms map[string]prometheus.Histogram
}

// NewPrometheus creates a Prometheus-backed Metrics registering instruments
// against the given registerer. A nil registerer uses the default registry.
func NewPrometheus(reg prometheus.Registerer, namespace string) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	return &Prometheus{
		factory:    promauto.With(reg),
		namespace:  namespace,
		counters:   make(map[string]prometheus.Counter),
		histograms: make(map[string]prometheus.Histogram),
	}
}

// Counter returns the counter registered under name, creating it on first use.
func (p *Prometheus) Counter(name string) Counter {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.counters[name]; ok {
		return c
	}

	c := p.factory.NewCounter(prometheus.CounterOpts{
		Namespace: p.namespace,
		Name:      sanitize(name),
		Help:      "Counter " + name,
	})
	p.counters[name] = c

	return c
}

// Histogram returns the histogram registered under name, creating it on
// first use with the default buckets.
func (p *Prometheus) Histogram(name string) Histogram {
	p.mu.Lock()
	defer p.mu.Unlock()

	if h, ok := p.histograms[name]; ok {
		return h
	}

	h := p.factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: p.namespace,
		Name:      sanitize(name),
		Help:      "Histogram " + name,
		Buckets:   prometheus.DefBuckets,
	})
	p.histograms[name] = h

	return h
}

// sanitize maps sink names like "pathfinder.security_warnings" onto valid
// Prometheus metric names.
func sanitize(name string) string {
	return strings.NewReplacer(".", "_", "-", "_", " ", "_").Replace(name)
}

type nopCounter struct{}

func (nopCounter) Inc() {}

type nopHistogram struct{}

func (nopHistogram) Observe(float64) {}

type nop struct{}

func (nop) Counter(string) Counter     { return nopCounter{} }
func (nop) Histogram(string) Histogram { return nopHistogram{} }

// Nop returns a Metrics that records nothing. It is the default sink.
func Nop() Metrics {
	return nop{}
}
