package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusProvider registers instruments with a Prometheus registerer.
// Up/down counters map to gauges.
type PrometheusProvider struct {
	reg       prometheus.Registerer
	namespace string
	buckets   []float64

	counters   registry[Counter]
	gauges     registry[UpDownCounter]
	histograms registry[Histogram]
}

// PrometheusOption configures a PrometheusProvider.
type PrometheusOption func(*PrometheusProvider)

// WithNamespace prefixes every metric name with ns.
func WithNamespace(ns string) PrometheusOption {
	return func(p *PrometheusProvider) { p.namespace = ns }
}

// WithBuckets sets histogram buckets (default prometheus.DefBuckets).
func WithBuckets(b []float64) PrometheusOption {
	return func(p *PrometheusProvider) { p.buckets = b }
}

// NewPrometheusProvider returns a provider registering with reg, or with
// prometheus.DefaultRegisterer when reg is nil.
func NewPrometheusProvider(reg prometheus.Registerer, opts ...PrometheusOption) *PrometheusProvider {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	p := &PrometheusProvider{reg: reg, buckets: prometheus.DefBuckets}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

func (p *PrometheusProvider) Counter(name string, opts ...InstrumentOption) Counter {
	return p.counters.get(name, func() Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Name:      name,
			Help:      help(name, opts),
		})
		return promCounter{register(p.reg, c)}
	})
}

func (p *PrometheusProvider) UpDownCounter(name string, opts ...InstrumentOption) UpDownCounter {
	return p.gauges.get(name, func() UpDownCounter {
		g := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Name:      name,
			Help:      help(name, opts),
		})
		return promGauge{register(p.reg, g)}
	})
}

func (p *PrometheusProvider) Histogram(name string, opts ...InstrumentOption) Histogram {
	return p.histograms.get(name, func() Histogram {
		h := prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Name:      name,
			Help:      help(name, opts),
			Buckets:   p.buckets,
		})
		return promHistogram{register(p.reg, h)}
	})
}

// register registers c, reusing an identical collector registered earlier
// (e.g. by another provider sharing the registerer).
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	err := reg.Register(c)
	if err == nil {
		return c
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing
		}
	}
	// Unregistrable collectors still accept measurements; they are just not exported.
	return c
}

func help(name string, opts []InstrumentOption) string {
	cfg := buildConfig(opts)
	if cfg.Description != "" {
		return cfg.Description
	}
	return name
}

type promCounter struct{ c prometheus.Counter }

// Add ignores negative deltas: Prometheus counters are monotonic.
func (c promCounter) Add(n int64) {
	if n > 0 {
		c.c.Add(float64(n))
	}
}

type promGauge struct{ g prometheus.Gauge }

func (g promGauge) Add(n int64) { g.g.Add(float64(n)) }

type promHistogram struct{ h prometheus.Histogram }

func (h promHistogram) Record(v float64) { h.h.Observe(v) }
