package handlers

import (
	"context"
	"errors"
	"net/http"

	"sentimentpipe/backend-go/internal/models"
	"sentimentpipe/backend-go/internal/pipeline"
	"sentimentpipe/backend-go/internal/predictor"
)

var trainingMessages = map[string]string{
	predictor.ReasonInsufficientSamples: "not enough history to train a model",
	predictor.ReasonSchemaMismatch:      "training history does not match the feature schema",
	predictor.ReasonInvalidInput:        "training data is invalid",
}

// writeError maps err to a status and a curated body. The raw error is logged,
// never returned.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := classifyError(err)
	entry := a.log.WithError(err).WithField("path", r.URL.Path).WithField("code", body.Error)
	if status >= 500 {
		entry.Error("request failed")
	} else {
		entry.Warn("request rejected")
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "30")
	}
	writeJSON(w, status, body)
}

func classifyError(err error) (int, models.ErrorResponse) {
	var mm *predictor.SchemaMismatchError
	if errors.As(err, &mm) {
		return http.StatusBadRequest, models.ErrorResponse{
			Error:   "schema_mismatch",
			Message: "feature set does not match the model schema",
			Missing: mm.Missing,
			Extra:   mm.Extra,
		}
	}
	var te *predictor.TrainingError
	if errors.As(err, &te) {
		msg, ok := trainingMessages[te.Reason]
		if !ok {
			msg = "model training failed"
		}
		return http.StatusUnprocessableEntity, models.ErrorResponse{Error: "training_failed", Message: msg}
	}
	switch {
	case errors.Is(err, predictor.ErrNoModel):
		return http.StatusServiceUnavailable, models.ErrorResponse{Error: "model_unavailable", Message: "no model is serving"}
	case errors.Is(err, predictor.ErrInvalidArtifact):
		return http.StatusServiceUnavailable, models.ErrorResponse{Error: "model_unavailable", Message: "stored model artifact is invalid"}
	case errors.Is(err, pipeline.ErrNoUsableSources):
		return http.StatusServiceUnavailable, models.ErrorResponse{Error: "analysis_unavailable", Message: "no source produced usable data"}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, models.ErrorResponse{Error: "timeout", Message: "request timed out"}
	}
	return http.StatusInternalServerError, models.ErrorResponse{Error: "internal", Message: "internal error"}
}
