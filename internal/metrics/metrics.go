// Package metrics exposes Prometheus collectors for roadmap generation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Generation outcomes used as the "outcome" label.
const (
	OutcomeStructured = "structured"
	OutcomeFallback   = "fallback"
	OutcomeError      = "error"
)

// Recorder owns a private registry with the service's collectors.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry      *prometheus.Registry
	generated     *prometheus.CounterVec
	modelDuration *prometheus.HistogramVec
	deleted       prometheus.Counter
}

// New creates a Recorder with Go runtime and process collectors registered.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		// Labels:
		//   - outcome: structured, fallback or error
		generated: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mentor_roadmaps_generated_total",
				Help: "Total number of roadmap generation attempts by outcome",
			},
			[]string{"outcome"},
		),
		// Buckets: 0.5s to 120s, the model request timeout.
		modelDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mentor_model_request_duration_seconds",
				Help:    "Duration of model requests in seconds",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
			},
			[]string{"status"},
		),
		deleted: f.NewCounter(prometheus.CounterOpts{
			Name: "mentor_roadmaps_deleted_total",
			Help: "Total number of deleted roadmaps",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// RecordGenerated counts one generation attempt.
func (r *Recorder) RecordGenerated(outcome string) {
	if r == nil {
		return
	}
	r.generated.WithLabelValues(outcome).Inc()
}

// ObserveModelCall records how long a model request took and whether it failed.
func (r *Recorder) ObserveModelCall(d time.Duration, err error) {
	if r == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.modelDuration.WithLabelValues(status).Observe(d.Seconds())
}

// RecordDeleted counts one deleted roadmap.
func (r *Recorder) RecordDeleted() {
	if r == nil {
		return
	}
	r.deleted.Inc()
}
