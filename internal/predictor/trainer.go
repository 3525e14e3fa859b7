package predictor

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"sentimentpipe/backend-go/internal/config"
	"sentimentpipe/backend-go/internal/models"
)

// Train fits a forest on chronologically ordered vectors. The newest
// TestFraction of samples is held out for evaluation; nothing is shuffled.
func Train(vectors []models.JointFeatureVector, targets []float64, schema []string, cfg config.ModelConfig) (*Artifact, error) {
	if len(vectors) != len(targets) {
		return nil, &TrainingError{Reason: ReasonInvalidInput, Err: fmt.Errorf("%d vectors, %d targets", len(vectors), len(targets))}
	}
	if len(vectors) < cfg.MinSamples || len(vectors) < 2 {
		return nil, &TrainingError{Reason: ReasonInsufficientSamples, Err: fmt.Errorf("%d samples, need %d", len(vectors), cfg.MinSamples)}
	}

	X := make([][]float64, len(vectors))
	for i, v := range vectors {
		if mm := compareOrdered(v.Names(), schema); mm != nil {
			return nil, &TrainingError{Reason: ReasonSchemaMismatch, Err: mm}
		}
		row := make([]float64, len(schema))
		for j, f := range v.Features {
			row[j] = f.Value
		}
		X[i] = row
	}
	for _, y := range targets {
		if math.IsNaN(y) || math.IsInf(y, 0) {
			return nil, &TrainingError{Reason: ReasonInvalidInput, Err: fmt.Errorf("non-finite target")}
		}
	}

	nTest := int(math.Round(float64(len(X)) * cfg.TestFraction))
	if nTest < 1 {
		nTest = 1
	}
	if nTest > len(X)-1 {
		nTest = len(X) - 1
	}
	nTrain := len(X) - nTest

	forest, importance := fitForest(X[:nTrain], targets[:nTrain], forestParams{
		trees:    cfg.Trees,
		maxDepth: cfg.MaxDepth,
		minLeaf:  cfg.MinSamplesLeaf,
		mtry:     featureCount(cfg.FeatureFraction, len(schema)),
		seed:     cfg.Seed,
	})

	preds := make([]float64, nTest)
	for i := range preds {
		preds[i] = forest.Predict(X[nTrain+i])
	}

	imp := make(map[string]float64, len(schema))
	for i, name := range schema {
		imp[name] = importance[i]
	}

	return &Artifact{
		Version:           uuid.NewString(),
		TrainedAt:         time.Now().UTC(),
		Target:            cfg.TargetFeature,
		FeatureSchema:     append([]string(nil), schema...),
		Metrics:           evaluate(targets[nTrain:], preds),
		FeatureImportance: imp,
		TrainSamples:      nTrain,
		TestSamples:       nTest,
		Forest:            forest,
	}, nil
}

func evaluate(actual, pred []float64) models.EvalMetrics {
	n := float64(len(actual))
	var mean float64
	for _, y := range actual {
		mean += y
	}
	mean /= n

	var sse, sae, sst float64
	for i, y := range actual {
		d := y - pred[i]
		sse += d * d
		sae += math.Abs(d)
		sst += (y - mean) * (y - mean)
	}
	m := models.EvalMetrics{MSE: sse / n, MAE: sae / n}
	m.RMSE = math.Sqrt(m.MSE)
	if sst > 0 {
		m.R2 = 1 - sse/sst
	}
	return m
}

// BuildTrainingSet pairs each vector with the target feature observed horizon
// steps later. Rows whose future target was imputed are skipped.
func BuildTrainingSet(history []models.JointFeatureVector, target string, horizon int) ([]models.JointFeatureVector, []float64) {
	if horizon < 1 {
		horizon = 1
	}
	var rows []models.JointFeatureVector
	var targets []float64
	for i := 0; i+horizon < len(history); i++ {
		future := history[i+horizon]
		for _, f := range future.Features {
			if f.Name == target && !f.Imputed {
				rows = append(rows, history[i])
				targets = append(targets, f.Value)
				break
			}
		}
	}
	return rows, targets
}

// Predict scores features with a. The key set must equal the artifact schema.
func Predict(features map[string]float64, a *Artifact) (float64, error) {
	if a == nil {
		return 0, ErrNoModel
	}
	if mm := compareKeys(features, a.FeatureSchema); mm != nil {
		return 0, mm
	}
	x := make([]float64, len(a.FeatureSchema))
	for i, name := range a.FeatureSchema {
		x[i] = features[name]
	}
	return a.Forest.Predict(x), nil
}
