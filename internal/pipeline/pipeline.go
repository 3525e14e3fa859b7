package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"sentimentpipe/backend-go/internal/analysis"
	"sentimentpipe/backend-go/internal/config"
	"sentimentpipe/backend-go/internal/correlate"
	"sentimentpipe/backend-go/internal/loader"
	"sentimentpipe/backend-go/internal/logging"
	"sentimentpipe/backend-go/internal/metrics"
	"sentimentpipe/backend-go/internal/models"
	"sentimentpipe/backend-go/internal/predictor"
	"sentimentpipe/backend-go/internal/quality"
	"sentimentpipe/backend-go/internal/sentiment"
)

// ErrNoUsableSources means every enabled source failed; the returned result
// still describes the failures.
var ErrNoUsableSources = errors.New("no source produced a summary")

// History supplies stored joint vectors, oldest first.
type History interface {
	JointHistory(ctx context.Context, limit int) ([]models.JointFeatureVector, error)
}

// Models supplies the serving artifact, or nil.
type Models interface {
	Current() *predictor.Artifact
}

type Deps struct {
	Loader  loader.Loader
	History History
	Models  Models
	Metrics *metrics.Metrics
	Log     logging.Logger
	Now     func() time.Time
}

type Pipeline struct {
	cfg          config.Pipeline
	loader       loader.Loader
	gate         *quality.Gate
	analyzer     *analysis.Analyzer
	orchestrator *analysis.Orchestrator
	correlator   *correlate.Correlator
	history      History
	models       Models
	metrics      *metrics.Metrics
	log          logging.Logger
	now          func() time.Time
}

func New(cfg config.Pipeline, d Deps) *Pipeline {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	log := d.Log
	if log == nil {
		log = logging.Discard()
	}
	return &Pipeline{
		cfg:          cfg,
		loader:       d.Loader,
		gate:         quality.NewGateAt(now),
		analyzer:     analysis.NewAnalyzer(sentiment.NewScorer(), cfg.Strict()),
		orchestrator: analysis.NewOrchestrator(cfg.Parallel),
		correlator:   correlate.New(cfg.Features),
		history:      d.History,
		models:       d.Models,
		metrics:      d.Metrics,
		log:          log,
		now:          now,
	}
}

func (p *Pipeline) Config() config.Pipeline {
	return p.cfg
}

// Run executes one analysis pass. Source-level problems degrade the result
// instead of failing it; only a run where every source failed returns an error.
func (p *Pipeline) Run(ctx context.Context) (models.AnalysisResult, error) {
	runID := uuid.NewString()
	asOf := p.now().UTC()
	log := p.log.WithField("run_id", runID)

	outcomes := p.orchestrator.RunAll(ctx, p.cfg.EnabledSources(), p.analyzeSource)

	summaries := map[string]models.SourceFeatureSummary{}
	for src, oc := range outcomes {
		p.metrics.SourceAnalyzed(src, oc.Duration)
		if !oc.OK() {
			p.metrics.SourceFailed(src, oc.Err.Code)
			log.WithFields(logging.Fields{"source": src, "code": oc.Err.Code, "error": oc.Err.Error()}).Warn("source analysis failed")
			continue
		}
		v := oc.Result.Verdict
		p.metrics.QualityVerdict(src, v.Pass)
		if !v.Pass {
			log.WithFields(logging.Fields{"source": src, "issues": v.Issues, "details": v.Details}).Warn("quality check failed")
		}
		summaries[src] = oc.Result.Summary
	}

	features := p.correlator.Combine(asOf, summaries)
	for _, name := range features.ImputedNames() {
		p.metrics.FeatureImputed(name)
	}

	var warnings []string
	corr, err := p.correlation(ctx, features)
	if err != nil {
		log.WithError(err).Warn("correlation history unavailable")
		warnings = append(warnings, "correlation_history_unavailable")
	}

	prediction, warn := p.predict(features)
	if warn != "" {
		warnings = append(warnings, warn)
	}

	res := Assemble(AssembleInput{
		RunID:       runID,
		GeneratedAt: asOf,
		Policy:      p.cfg.Quality.Policy,
		Outcomes:    outcomes,
		Features:    features,
		Correlation: corr,
		Prediction:  prediction,
		Warnings:    warnings,
	})

	outcome := "ok"
	switch {
	case len(summaries) == 0:
		outcome = "failed"
	case res.Degraded:
		outcome = "partial"
	}
	p.metrics.PipelineRun(outcome)
	log.WithFields(logging.Fields{
		"outcome":  outcome,
		"failures": len(res.Failures),
		"imputed":  features.ImputedNames(),
		"duration": time.Since(asOf).String(),
	}).Info("analysis run finished")

	if len(summaries) == 0 {
		return res, ErrNoUsableSources
	}
	return res, nil
}

func (p *Pipeline) analyzeSource(ctx context.Context, source string) (analysis.TaskResult, error) {
	cfg := p.cfg.Sources[source]
	records, err := p.loader.Load(ctx, source, cfg)
	if err != nil {
		return analysis.TaskResult{}, &analysis.SourceError{Source: source, Code: analysis.CodeLoadFailed, Err: err}
	}
	verdict := p.gate.Evaluate(source, records, cfg)
	return analysis.TaskResult{
		Verdict: verdict,
		Summary: p.analyzer.Analyze(source, records, verdict, cfg),
	}, nil
}

// correlation never blocks the live vector: on history errors the matrix
// covers the current vector only.
func (p *Pipeline) correlation(ctx context.Context, current models.JointFeatureVector) (models.CorrelationMatrix, error) {
	if p.history == nil {
		return p.correlator.Matrix([]models.JointFeatureVector{current}), nil
	}
	hist, err := p.history.JointHistory(ctx, p.cfg.Correlation.HistoryWindow)
	if err != nil {
		return p.correlator.Matrix([]models.JointFeatureVector{current}), err
	}
	return p.correlator.Matrix(append(hist, current)), nil
}

func (p *Pipeline) predict(features models.JointFeatureVector) (*models.PredictionOutcome, string) {
	if p.models == nil {
		return nil, "model_unavailable"
	}
	a := p.models.Current()
	if a == nil {
		p.metrics.Prediction("no_model")
		return nil, "model_unavailable"
	}
	v, err := predictor.Predict(features.Map(), a)
	if err != nil {
		p.metrics.Prediction("schema_mismatch")
		p.log.WithError(err).Warn("serving model does not match the feature schema")
		return nil, "prediction_schema_mismatch"
	}
	p.metrics.Prediction("ok")
	return &models.PredictionOutcome{
		Value:        v,
		ModelVersion: a.Version,
		TrainedAt:    a.TrainedAt,
		UsesImputed:  len(features.ImputedNames()) > 0,
	}, ""
}
