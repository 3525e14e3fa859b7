package predictor

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"
	"time"

	"sentimentpipe/backend-go/internal/models"
)

// Artifact is an immutable trained model. Never modify one after it has been
// handed to a Registry.
type Artifact struct {
	Version           string
	TrainedAt         time.Time
	Target            string
	FeatureSchema     []string
	Metrics           models.EvalMetrics
	FeatureImportance map[string]float64
	TrainSamples      int
	TestSamples       int
	Forest            Forest
}

func (a *Artifact) Info() models.ModelInfo {
	imp := make(map[string]float64, len(a.FeatureImportance))
	for k, v := range a.FeatureImportance {
		imp[k] = v
	}
	return models.ModelInfo{
		Version:           a.Version,
		TrainedAt:         a.TrainedAt,
		Target:            a.Target,
		FeatureSchema:     append([]string(nil), a.FeatureSchema...),
		Metrics:           a.Metrics,
		FeatureImportance: imp,
		TrainSamples:      a.TrainSamples,
		TestSamples:       a.TestSamples,
	}
}

// Encode serialises the artifact as an opaque blob.
func (a *Artifact) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(a); err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}
	return buf.Bytes(), nil
}

func Decode(blob []byte) (*Artifact, error) {
	var a Artifact
	if err := gob.NewDecoder(bytes.NewReader(blob)).Decode(&a); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return &a, nil
}

// Validate checks structural integrity and that the forest can score an all-zero row.
func (a *Artifact) Validate() error {
	if a == nil {
		return fmt.Errorf("%w: nil", ErrInvalidArtifact)
	}
	p := len(a.FeatureSchema)
	if p == 0 {
		return fmt.Errorf("%w: empty feature schema", ErrInvalidArtifact)
	}
	if len(a.Forest.Trees) == 0 {
		return fmt.Errorf("%w: no trees", ErrInvalidArtifact)
	}
	for ti, t := range a.Forest.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("%w: tree %d is empty", ErrInvalidArtifact, ti)
		}
		for ni, n := range t.Nodes {
			if n.Leaf {
				continue
			}
			// children always follow their parent, so Predict cannot cycle
			if n.Feature < 0 || n.Feature >= p || n.Left <= ni || n.Right <= ni ||
				n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
				return fmt.Errorf("%w: tree %d has a dangling split", ErrInvalidArtifact, ti)
			}
		}
	}
	for _, m := range []float64{a.Metrics.MSE, a.Metrics.RMSE, a.Metrics.MAE, a.Metrics.R2} {
		if math.IsNaN(m) || math.IsInf(m, 0) {
			return fmt.Errorf("%w: non-finite metrics", ErrInvalidArtifact)
		}
	}
	if v := a.Forest.Predict(make([]float64, p)); math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: zero-row prediction is not finite", ErrInvalidArtifact)
	}
	return nil
}
