package http

import (
	"net/http"

	"sentimentpipe/backend-go/internal/config"
	"sentimentpipe/backend-go/internal/handlers"
	"sentimentpipe/backend-go/internal/logging"
	"sentimentpipe/backend-go/internal/metrics"
)

func NewRouter(cfg config.Config, api *handlers.API, m *metrics.Metrics, log logging.Logger) http.Handler {
	auth := withAuth(cfg.JWTSecret)

	mux := http.NewServeMux()
	route := func(path string, h http.Handler) {
		mux.Handle(path, withMetrics(m, path)(h))
	}
	route("/api/v1/health", http.HandlerFunc(api.Health))
	route("/api/v1/analysis/latest", http.HandlerFunc(api.AnalysisLatest))
	route("/api/v1/analysis/run", auth(http.HandlerFunc(api.AnalysisRun)))
	route("/api/v1/analysis/history", http.HandlerFunc(api.AnalysisHistory))
	route("/api/v1/analysis/stream", http.HandlerFunc(api.StreamAnalysis))
	route("/api/v1/predict", auth(http.HandlerFunc(api.Predict)))
	route("/api/v1/model", http.HandlerFunc(api.ModelInfo))
	route("/api/v1/model/train", auth(http.HandlerFunc(api.ModelTrain)))
	route("/api/v1/model/reload", auth(http.HandlerFunc(api.ModelReload)))
	mux.Handle("/metrics", m.Handler())

	h := http.Handler(mux)
	h = withRecovery(log)(h)
	h = withLogging(log)(h)
	h = withRateLimit(cfg.RateLimitPerMin)(h)
	h = withCORS(h)
	return h
}
