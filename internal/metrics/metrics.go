package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the pipeline service.
type Metrics struct {
	gatherer prometheus.Gatherer

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	pipelineRuns      *prometheus.CounterVec
	sourceDuration    *prometheus.HistogramVec
	sourceFailures    *prometheus.CounterVec
	qualityVerdicts   *prometheus.CounterVec
	imputedFeatures   *prometheus.CounterVec
	predictions       *prometheus.CounterVec
	modelTrainedAt    prometheus.Gauge
	modelTrainingRuns *prometheus.CounterVec
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in tests.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		gatherer: reg,
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentimentpipe_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sentimentpipe_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		pipelineRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentimentpipe_pipeline_runs_total",
			Help: "Pipeline runs by outcome",
		}, []string{"outcome"}),
		sourceDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sentimentpipe_source_analysis_duration_seconds",
			Help:    "Per-source analysis duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
		sourceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentimentpipe_source_failures_total",
			Help: "Per-source analysis failures by error code",
		}, []string{"source", "code"}),
		qualityVerdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentimentpipe_quality_verdicts_total",
			Help: "Quality verdicts by source and pass flag",
		}, []string{"source", "pass"}),
		imputedFeatures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentimentpipe_imputed_features_total",
			Help: "Joint features filled with their configured default",
		}, []string{"feature"}),
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentimentpipe_predictions_total",
			Help: "Predictions by outcome",
		}, []string{"outcome"}),
		modelTrainedAt: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sentimentpipe_model_trained_timestamp_seconds",
			Help: "Training time of the serving model",
		}),
		modelTrainingRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentimentpipe_model_training_runs_total",
			Help: "Model training runs by outcome",
		}, []string{"outcome"}),
	}
	reg.MustRegister(
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.pipelineRuns,
		m.sourceDuration,
		m.sourceFailures,
		m.qualityVerdicts,
		m.imputedFeatures,
		m.predictions,
		m.modelTrainedAt,
		m.modelTrainingRuns,
	)
	return m
}

// The nil receiver is a valid no-op so callers need not guard every call.

func (m *Metrics) ObserveHTTP(method, endpoint string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(d.Seconds())
}

func (m *Metrics) PipelineRun(outcome string) {
	if m == nil {
		return
	}
	m.pipelineRuns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SourceAnalyzed(source string, d time.Duration) {
	if m == nil {
		return
	}
	m.sourceDuration.WithLabelValues(source).Observe(d.Seconds())
}

func (m *Metrics) SourceFailed(source, code string) {
	if m == nil {
		return
	}
	m.sourceFailures.WithLabelValues(source, code).Inc()
}

func (m *Metrics) QualityVerdict(source string, pass bool) {
	if m == nil {
		return
	}
	m.qualityVerdicts.WithLabelValues(source, strconv.FormatBool(pass)).Inc()
}

func (m *Metrics) FeatureImputed(feature string) {
	if m == nil {
		return
	}
	m.imputedFeatures.WithLabelValues(feature).Inc()
}

func (m *Metrics) Prediction(outcome string) {
	if m == nil {
		return
	}
	m.predictions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ModelTraining(outcome string) {
	if m == nil {
		return
	}
	m.modelTrainingRuns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ModelServing(trainedAt time.Time) {
	if m == nil {
		return
	}
	m.modelTrainedAt.Set(float64(trainedAt.Unix()))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
