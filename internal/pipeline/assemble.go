package pipeline

import (
	"sort"
	"time"

	"sentimentpipe/backend-go/internal/analysis"
	"sentimentpipe/backend-go/internal/models"
)

// AssembleInput is everything a run produced; Assemble does no recomputation.
type AssembleInput struct {
	RunID       string
	GeneratedAt time.Time
	Policy      string
	Outcomes    map[string]analysis.Outcome
	Features    models.JointFeatureVector
	Correlation models.CorrelationMatrix
	Prediction  *models.PredictionOutcome
	Warnings    []string
}

// Assemble builds a self-describing result: each source gets a provenance
// entry tying its verdict to whether its features were used or imputed.
func Assemble(in AssembleInput) models.AnalysisResult {
	res := models.AnalysisResult{
		RunID:       in.RunID,
		GeneratedAt: in.GeneratedAt,
		Policy:      in.Policy,
		Verdicts:    []models.QualityVerdict{},
		Summaries:   []models.SourceFeatureSummary{},
		Failures:    []models.SourceFailure{},
		Provenance:  []models.SourceProvenance{},
		Features:    in.Features,
		Correlation: in.Correlation,
		Prediction:  in.Prediction,
		Warnings:    []string{},
	}

	imputedBySource := map[string][]string{}
	for _, f := range in.Features.Features {
		if f.Imputed {
			imputedBySource[f.Source] = append(imputedBySource[f.Source], f.Name)
		}
	}

	sources := make([]string, 0, len(in.Outcomes))
	for src := range in.Outcomes {
		sources = append(sources, src)
	}
	sort.Strings(sources)

	for _, src := range sources {
		oc := in.Outcomes[src]
		prov := models.SourceProvenance{Source: src, Imputed: imputedBySource[src]}
		if prov.Imputed == nil {
			prov.Imputed = []string{}
		}

		if !oc.OK() {
			res.Failures = append(res.Failures, oc.Err.Failure())
			prov.Status = models.StatusFailed
			res.Warnings = append(res.Warnings, "source_failed:"+src+":"+oc.Err.Code)
			res.Provenance = append(res.Provenance, prov)
			continue
		}

		v, s := oc.Result.Verdict, oc.Result.Summary
		pass := v.Pass
		prov.QualityPass = &pass
		res.Verdicts = append(res.Verdicts, v)
		res.Summaries = append(res.Summaries, s)

		switch {
		case s.Degraded:
			prov.Status = models.StatusDegraded
			res.Warnings = append(res.Warnings, "source_degraded:"+src)
		case !v.Pass:
			prov.Status = models.StatusWarning
			prov.Included = true
			res.Warnings = append(res.Warnings, "quality_warning:"+src)
		default:
			prov.Status = models.StatusOK
			prov.Included = true
		}
		res.Provenance = append(res.Provenance, prov)
	}

	for _, name := range in.Features.ImputedNames() {
		res.Warnings = append(res.Warnings, "feature_imputed:"+name)
	}
	res.Warnings = append(res.Warnings, in.Warnings...)
	res.Degraded = len(res.Warnings) > 0
	return res
}
