package rma

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/spud93/rma/internal/engine"
)

// PrometheusObserver implements engine.Observer on top of
// github.com/prometheus/client_golang, generalizing the teacher's
// atomic-counter MetricsObserver into metric families registered with a
// caller-supplied prometheus.Registerer, the way kuiwang02-bmc exposes its
// own operational counters.
type PrometheusObserver struct {
	fragments *prometheus.CounterVec
	fragBytes *prometheus.CounterVec
	completed *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	selfPath  *prometheus.CounterVec
}

// NewPrometheusObserver creates and registers a PrometheusObserver's metric
// families on reg. Pass prometheus.DefaultRegisterer to use the global
// registry.
func NewPrometheusObserver(reg prometheus.Registerer) *PrometheusObserver {
	o := &PrometheusObserver{
		fragments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rma", Name: "fragments_total", Help: "RMA wire fragments sent or received.",
		}, []string{"kind"}),
		fragBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rma", Name: "fragment_bytes_total", Help: "Bytes carried by RMA wire fragments.",
		}, []string{"kind"}),
		completed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rma", Name: "requests_completed_total", Help: "RMA requests reaching a terminal state.",
		}, []string{"kind"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rma", Name: "requests_failed_total", Help: "RMA requests completing with an error.",
		}, []string{"kind"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rma", Name: "request_latency_seconds", Help: "RMA request completion latency.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 12),
		}, []string{"kind"}),
		selfPath: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rma", Name: "self_path_total", Help: "RMA requests satisfied via the in-process self path.",
		}, []string{"kind"}),
	}
	reg.MustRegister(o.fragments, o.fragBytes, o.completed, o.errors, o.latency, o.selfPath)
	return o
}

func (o *PrometheusObserver) OnFragment(kind CompletionKind, bytes int) {
	label := kind.String()
	o.fragments.WithLabelValues(label).Inc()
	o.fragBytes.WithLabelValues(label).Add(float64(bytes))
}

func (o *PrometheusObserver) OnComplete(kind CompletionKind, bytes int, latencyNanos int64, err error) {
	label := kind.String()
	o.completed.WithLabelValues(label).Inc()
	if err != nil {
		o.errors.WithLabelValues(label).Inc()
	}
	o.latency.WithLabelValues(label).Observe(float64(latencyNanos) / 1e9)
}

func (o *PrometheusObserver) OnSelfPath(kind CompletionKind, bytes int) {
	o.selfPath.WithLabelValues(kind.String()).Inc()
}

var _ engine.Observer = (*PrometheusObserver)(nil)
