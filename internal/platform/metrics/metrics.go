package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus collectors for the session console.
type Metrics struct {
	registry       *prometheus.Registry
	requestsTotal  *prometheus.CounterVec
	errorsTotal    prometheus.Counter
	pipelineRuns   *prometheus.CounterVec
	stageFailures  *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
	playbackEvents *prometheus.CounterVec
	activeSegments prometheus.Gauge
}

// New creates and registers the console's metrics on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "neurovoice_requests_total",
		Help: "HTTP requests by method and status class",
	}, []string{"method", "class"})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "neurovoice_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	pipelineRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "neurovoice_pipeline_runs_total",
		Help: "Pipeline runs by outcome (ready, error, superseded)",
	}, []string{"outcome"})
	stageFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "neurovoice_stage_failures_total",
		Help: "Pipeline failures by the stage that failed",
	}, []string{"stage"})
	stageDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "neurovoice_stage_duration_seconds",
		Help:    "Time spent in each pipeline stage",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
	}, []string{"stage"})
	playbackEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "neurovoice_playback_events_total",
		Help: "Playback notifications applied, by kind",
	}, []string{"kind"})
	activeSegments := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "neurovoice_active_segments",
		Help: "Transcript segments active at the current playback position",
	})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		pipelineRuns,
		stageFailures,
		stageDuration,
		playbackEvents,
		activeSegments,
	)

	return &Metrics{
		registry:       registry,
		requestsTotal:  requestsTotal,
		errorsTotal:    errorsTotal,
		pipelineRuns:   pipelineRuns,
		stageFailures:  stageFailures,
		stageDuration:  stageDuration,
		playbackEvents: playbackEvents,
		activeSegments: activeSegments,
	}
}

// ObserveRequest counts a served request; statuses >= 400 also count as errors.
func (m *Metrics) ObserveRequest(method string, status int) {
	m.requestsTotal.WithLabelValues(method, strconv.Itoa(status/100)+"xx").Inc()
	if status >= 400 {
		m.errorsTotal.Inc()
	}
}

// IncPipelineRun counts a finished run with the given outcome.
func (m *Metrics) IncPipelineRun(outcome string) {
	m.pipelineRuns.WithLabelValues(outcome).Inc()
}

// IncStageFailure counts a failure in the given stage.
func (m *Metrics) IncStageFailure(stage string) {
	m.stageFailures.WithLabelValues(stage).Inc()
}

// ObserveStage records how long a stage took.
func (m *Metrics) ObserveStage(stage string, seconds float64) {
	m.stageDuration.WithLabelValues(stage).Observe(seconds)
}

// IncPlaybackEvent counts an applied playback notification.
func (m *Metrics) IncPlaybackEvent(kind string) {
	m.playbackEvents.WithLabelValues(kind).Inc()
}

// SetActiveSegments sets the active segment gauge.
func (m *Metrics) SetActiveSegments(n int) {
	m.activeSegments.Set(float64(n))
}

// Handler returns an http.Handler that serves Prometheus metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
