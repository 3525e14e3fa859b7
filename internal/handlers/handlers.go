package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"sentimentpipe/backend-go/internal/config"
	"sentimentpipe/backend-go/internal/logging"
	"sentimentpipe/backend-go/internal/models"
	"sentimentpipe/backend-go/internal/predictor"
	"sentimentpipe/backend-go/internal/services"
)

type Analysis interface {
	GetSnapshot(ctx context.Context) (models.AnalysisResult, services.SnapshotMeta, error)
	Run(ctx context.Context) (models.AnalysisResult, services.SnapshotMeta, error)
	Subscribe(ctx context.Context) (<-chan services.AnalysisSnapshot, func())
}

type Models interface {
	Predict(features map[string]float64) (float64, *predictor.Artifact, error)
	Info() (models.ModelInfo, error)
	State() predictor.State
	Retrain(ctx context.Context) (*predictor.Artifact, error)
	Reload(ctx context.Context) (*predictor.Artifact, error)
}

type History interface {
	SourceHistory(ctx context.Context, source string, limit int) ([]models.SourceFeatureSummary, error)
	JointHistory(ctx context.Context, limit int) ([]models.JointFeatureVector, error)
	Ping(ctx context.Context) error
}

type API struct {
	cfg      config.Config
	cache    services.Cache
	analysis Analysis
	models   Models
	history  History
	log      logging.Logger
}

func New(cfg config.Config, cache services.Cache, analysis Analysis, m Models, history History, log logging.Logger) *API {
	if log == nil {
		log = logging.Discard()
	}
	return &API{
		cfg:      cfg,
		cache:    cache,
		analysis: analysis,
		models:   m,
		history:  history,
		log:      log,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	writeJSON(w, http.StatusMethodNotAllowed, models.ErrorResponse{Error: "method_not_allowed", Message: "use " + method})
	return false
}

func appendUniqueString(items []string, v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return items
	}
	for _, it := range items {
		if strings.EqualFold(it, v) {
			return items
		}
	}
	return append(items, v)
}

func parseIntParam(v string, def int, min int, max int) int {
	if v == "" {
		return def
	}
	var out int
	_, err := fmt.Sscanf(v, "%d", &out)
	if err != nil {
		return def
	}
	if out < min {
		return min
	}
	if out > max {
		return max
	}
	return out
}

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func timeboxed(r *http.Request, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), d)
}
