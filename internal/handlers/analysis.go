package handlers

import (
	"net/http"
	"strings"

	"sentimentpipe/backend-go/internal/models"
	"sentimentpipe/backend-go/internal/services"
)

// AnalysisLatest serves the cached snapshot. Degraded results are still 200;
// the caller reads warnings.
func (a *API) AnalysisLatest(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	ctx, cancel := timeboxed(r, a.cfg.PipelineTimeout)
	defer cancel()

	res, meta, err := a.analysis.GetSnapshot(ctx)
	if err != nil {
		a.writeUnavailable(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analysisResponse(res, meta))
}

func (a *API) AnalysisRun(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	ctx, cancel := timeboxed(r, a.cfg.PipelineTimeout)
	defer cancel()

	res, meta, err := a.analysis.Run(ctx)
	if err != nil {
		a.writeUnavailable(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analysisResponse(res, meta))
}

// AnalysisHistory lists stored summaries for ?source=, or joint vectors without it.
func (a *API) AnalysisHistory(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	limit := parseIntParam(q.Get("limit"), 50, 1, 500)
	source := strings.TrimSpace(q.Get("source"))

	ctx, cancel := timeboxed(r, a.cfg.RequestTimeout)
	defer cancel()

	if source == "" {
		vectors, err := a.history.JointHistory(ctx, limit)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"tsISO": nowISO(), "source": models.JointKey, "items": vectors})
		return
	}
	summaries, err := a.history.SourceHistory(ctx, source, limit)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tsISO": nowISO(), "source": source, "items": summaries})
}

// writeUnavailable keeps analysis failures on the 503 analysis_unavailable
// code unless the error maps to something more specific.
func (a *API) writeUnavailable(w http.ResponseWriter, r *http.Request, err error) {
	status, _ := classifyError(err)
	if status == http.StatusInternalServerError {
		a.log.WithError(err).WithField("path", r.URL.Path).Error("analysis unavailable")
		w.Header().Set("Retry-After", "30")
		writeJSON(w, http.StatusServiceUnavailable, models.ErrorResponse{Error: "analysis_unavailable", Message: "analysis result is not available"})
		return
	}
	a.writeError(w, r, err)
}

func analysisResponse(res models.AnalysisResult, meta services.SnapshotMeta) models.AnalysisResponse {
	warnings := []string{}
	for _, wn := range res.Warnings {
		warnings = appendUniqueString(warnings, wn)
	}
	if meta.Stale {
		warnings = appendUniqueString(warnings, "stale_result")
	}
	if meta.Err != "" {
		warnings = appendUniqueString(warnings, "refresh_failed")
	}
	return models.AnalysisResponse{
		Result:   res,
		Source:   meta.Source,
		Stale:    meta.Stale,
		Warnings: warnings,
	}
}
