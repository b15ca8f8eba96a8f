// Package metrics exposes portal counters in Prometheus format.
//
// A Registry owns its own prometheus.Registry rather than the global default
// so tests can create independent instances.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/iot-portal/internal/syncjob"
)

const namespace = "portal"

// Record outcome label values.
const (
	OutcomeInserted  = "inserted"
	OutcomeUpdated   = "updated"
	OutcomeUnchanged = "unchanged"
)

// Registry holds the portal collectors.
type Registry struct {
	reg *prometheus.Registry

	syncRuns     *prometheus.CounterVec
	syncRecords  *prometheus.CounterVec
	syncDuration *prometheus.HistogramVec
	imageOps     *prometheus.CounterVec
}

// New creates a registry with the portal collectors plus the Go runtime
// and process collectors.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		syncRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_total",
			Help:      "Number of sync job executions by result status.",
		}, []string{"job", "status"}),
		syncRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_records_total",
			Help:      "Number of mirrored records by upsert outcome.",
		}, []string{"job", "outcome"}),
		syncDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_run_duration_seconds",
			Help:      "Duration of sync job executions.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		}, []string{"job"}),
		imageOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_image_operations_total",
			Help:      "Number of model image storage operations by provider and status.",
		}, []string{"provider", "operation", "status"}),
	}

	r.reg.MustRegister(
		r.syncRuns,
		r.syncRecords,
		r.syncDuration,
		r.imageOps,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// RecordRun implements syncjob.Recorder.
func (r *Registry) RecordRun(_ context.Context, res syncjob.Result) {
	r.syncRuns.WithLabelValues(res.Job, res.Status).Inc()
	r.syncDuration.WithLabelValues(res.Job).Observe(res.Duration.Seconds())

	if res.Status != syncjob.StatusSuccess {
		return
	}
	r.syncRecords.WithLabelValues(res.Job, OutcomeInserted).Add(float64(res.Inserted))
	r.syncRecords.WithLabelValues(res.Job, OutcomeUpdated).Add(float64(res.Updated))
	r.syncRecords.WithLabelValues(res.Job, OutcomeUnchanged).Add(float64(res.Unchanged))
}

// RecordImageOperation implements modelimage.OperationRecorder.
func (r *Registry) RecordImageOperation(provider, operation, status string) {
	r.imageOps.WithLabelValues(provider, operation, status).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}
