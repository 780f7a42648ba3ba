package prometrics

import (
	"sync"

	"github.com/Zhima-Mochi/sweetshop/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
)

// Registry exposes the subset of Prometheus registry functionality needed by the application.
type Registry interface {
	Counter(name string, help string, labelKeys ...string) observability.Counter
	Histogram(name string, help string, buckets []float64, labelKeys ...string) observability.Histogram
}

type registry struct {
	reg        prometheus.Registerer
	counters   sync.Map // name -> *prometheus.CounterVec
	histograms sync.Map // name -> *prometheus.HistogramVec
	namespace  string
	subsystem  string
}

// New builds a Registry on reg; a nil reg falls back to the default registerer.
func New(reg prometheus.Registerer, namespace, subsystem string) Registry {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &registry{reg: reg, namespace: namespace, subsystem: subsystem}
}

type counter struct{ v *prometheus.CounterVec }

func (c *counter) Add(d float64, labels ...observability.Label) {
	c.v.With(labelMap(labels)).Add(d)
}

type histogram struct{ v *prometheus.HistogramVec }

func (h *histogram) Observe(v float64, labels ...observability.Label) {
	h.v.With(labelMap(labels)).Observe(v)
}

func labelMap(ls []observability.Label) prometheus.Labels {
	m := make(prometheus.Labels, len(ls))
	for _, l := range ls {
		m[l.Key] = l.Value
	}
	return m
}

func (r *registry) Counter(name string, help string, labelKeys ...string) observability.Counter {
	// ensure only registered once
	if v, ok := r.counters.Load(name); ok {
		return &counter{v: v.(*prometheus.CounterVec)}
	}
	cv := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace, Subsystem: r.subsystem, Name: name, Help: help,
	}, labelKeys)
	r.reg.MustRegister(cv)
	r.counters.Store(name, cv)
	return &counter{v: cv}
}

func (r *registry) Histogram(name string, help string, buckets []float64, labelKeys ...string) observability.Histogram {
	if v, ok := r.histograms.Load(name); ok {
		return &histogram{v: v.(*prometheus.HistogramVec)}
	}
	hv := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: r.namespace, Subsystem: r.subsystem, Name: name, Help: help, Buckets: buckets,
	}, labelKeys)
	r.reg.MustRegister(hv)
	r.histograms.Store(name, hv)
	return &histogram{v: hv}
}

// Instruments is the service's instrument set keyed by MetricKey. Keys it does
// not carry resolve to no-ops.
type Instruments struct {
	counters   map[observability.MetricKey]observability.Counter
	histograms map[observability.MetricKey]observability.Histogram
}

func (in *Instruments) Counter(name observability.MetricKey) observability.Counter {
	if c, ok := in.counters[name]; ok {
		return c
	}
	return observability.NopCounter()
}

func (in *Instruments) Histogram(name observability.MetricKey) observability.Histogram {
	if h, ok := in.histograms[name]; ok {
		return h
	}
	return observability.NopHistogram()
}

// Standard registers every instrument the service reports.
func Standard(r Registry) *Instruments {
	return &Instruments{
		counters: map[observability.MetricKey]observability.Counter{
			observability.MUsecaseRequests: r.Counter(string(observability.MUsecaseRequests),
				"Total number of use case invocations.", "use_case", "outcome"),
			observability.MHTTPRequests: r.Counter(string(observability.MHTTPRequests),
				"Total number of HTTP requests.", "method", "route", "status"),
			observability.MExternalRequests: r.Counter(string(observability.MExternalRequests),
				"Calls made to external peers (gateway, outbox).", "peer", "endpoint", "outcome"),
			observability.MStockDepleted: r.Counter(string(observability.MStockDepleted),
				"Number of times a sweet ran out of stock.", "category"),
			observability.MEventHandlerFailures: r.Counter(string(observability.MEventHandlerFailures),
				"Event handlers that returned an error or panicked.", "event"),
		},
		histograms: map[observability.MetricKey]observability.Histogram{
			observability.MUsecaseDuration: r.Histogram(string(observability.MUsecaseDuration),
				"Duration of use case execution in seconds.", prometheus.DefBuckets, "use_case"),
			observability.MHTTPRequestDuration: r.Histogram(string(observability.MHTTPRequestDuration),
				"Duration of HTTP requests in seconds.", prometheus.DefBuckets, "method", "route", "status"),
			observability.MExternalRequestDuration: r.Histogram(string(observability.MExternalRequestDuration),
				"Duration of external calls in seconds.", prometheus.DefBuckets, "peer", "endpoint"),
		},
	}
}
