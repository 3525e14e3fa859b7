package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"sentimentpipe/backend-go/internal/models"
)

const maxPredictBody = 64 << 10

// Predict accepts either {"features": {...}} or the feature map itself.
func (a *API) Predict(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	features, ok := decodeFeatures(w, r)
	if !ok {
		return
	}

	v, artifact, err := a.models.Predict(features)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.PredictResponse{
		TsISO:      nowISO(),
		Prediction: v,
		Model:      artifact.Info(),
	})
}

func (a *API) ModelInfo(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	info, err := a.models.Info()
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"state": a.models.State(), "model": info})
}

func (a *API) ModelTrain(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	ctx, cancel := timeboxed(r, a.cfg.PipelineTimeout)
	defer cancel()

	artifact, err := a.models.Retrain(ctx)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"state": a.models.State(), "model": artifact.Info()})
}

func (a *API) ModelReload(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	ctx, cancel := timeboxed(r, a.cfg.RequestTimeout)
	defer cancel()

	artifact, err := a.models.Reload(ctx)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"state": a.models.State(), "model": artifact.Info()})
}

func decodeFeatures(w http.ResponseWriter, r *http.Request) (map[string]float64, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPredictBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "invalid_request", Message: "request body could not be read"})
		return nil, false
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "invalid_request", Message: "body must be a JSON object of numeric features"})
		return nil, false
	}
	if nested, ok := raw["features"]; ok && len(raw) == 1 {
		raw = nil
		if err := json.Unmarshal(nested, &raw); err != nil {
			writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "invalid_request", Message: "features must be a JSON object of numeric features"})
			return nil, false
		}
	}

	features := make(map[string]float64, len(raw))
	for name, v := range raw {
		var f *float64
		if err := json.Unmarshal(v, &f); err != nil || f == nil {
			writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "invalid_request", Message: "feature " + name + " must be a number"})
			return nil, false
		}
		features[name] = *f
	}
	return features, true
}
