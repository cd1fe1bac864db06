// Package telemetry はパイプラインと推論 API のメトリクス（Prometheus）と
// トレース（OpenTelemetry）を提供します。
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns a private Prometheus registry so that several pipelines
// (and tests) can coexist in one process.
type Recorder struct {
	registry *prometheus.Registry

	stageDuration   *prometheus.HistogramVec
	pipelineRuns    *prometheus.CounterVec
	candidateScore  *prometheus.GaugeVec
	errorCounter    *prometheus.CounterVec
	predictions     prometheus.Counter
	requestDuration *prometheus.HistogramVec
	requestCounter  *prometheus.CounterVec
	activeRequests  prometheus.Gauge
}

// NewRecorder registers every scitrain metric on a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scitrain_stage_duration_seconds",
				Help:    "Duration of pipeline stages in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
			},
			[]string{"stage", "status"},
		),
		pipelineRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scitrain_pipeline_runs_total",
				Help: "Total number of training pipeline runs by final status",
			},
			[]string{"status"},
		),
		candidateScore: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "scitrain_candidate_test_r2",
				Help: "Held-out R2 of each candidate in the latest run",
			},
			[]string{"model"},
		),
		errorCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scitrain_errors_total",
				Help: "Total number of errors by kind and component",
			},
			[]string{"kind", "component"},
		),
		predictions: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "scitrain_predictions_total",
				Help: "Total number of rows predicted",
			},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scitrain_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		requestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scitrain_http_request_count_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		activeRequests: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "scitrain_http_request_active",
				Help: "Number of active HTTP requests",
			},
		),
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// ObserveStage records the duration of one pipeline stage.
func (r *Recorder) ObserveStage(stage, status string, d time.Duration) {
	r.stageDuration.WithLabelValues(stage, status).Observe(d.Seconds())
}

// RecordRun counts a finished pipeline run.
func (r *Recorder) RecordRun(status string) {
	r.pipelineRuns.WithLabelValues(status).Inc()
}

// SetCandidateScore publishes a candidate's held-out score.
func (r *Recorder) SetCandidateScore(name string, score float64) {
	r.candidateScore.WithLabelValues(name).Set(score)
}

// RecordError counts an error by its taxonomy kind.
func (r *Recorder) RecordError(kind, component string) {
	r.errorCounter.WithLabelValues(kind, component).Inc()
}

// RecordPredictions counts predicted rows.
func (r *Recorder) RecordPredictions(n int) {
	r.predictions.Add(float64(n))
}

// Middleware records request metrics. Paths are labelled with the mux
// route template when one matched.
func (r *Recorder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}

		r.activeRequests.Inc()
		defer r.activeRequests.Dec()

		next.ServeHTTP(sw, req)

		path := req.URL.Path
		if route := mux.CurrentRoute(req); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				path = tmpl
			}
		}
		if sw.status == 0 {
			sw.status = http.StatusOK
		}
		labels := prometheus.Labels{
			"method": req.Method,
			"path":   path,
			"status": strconv.Itoa(sw.status),
		}
		r.requestDuration.With(labels).Observe(time.Since(start).Seconds())
		r.requestCounter.With(labels).Inc()
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}
