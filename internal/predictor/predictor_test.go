package predictor

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentimentpipe/backend-go/internal/config"
	"sentimentpipe/backend-go/internal/models"
)

var schema = []string{"reddit_sentiment", "news_sentiment", "market_change"}

func modelConfig() config.ModelConfig {
	cfg := config.DefaultPipeline().Model
	cfg.Trees = 20
	return cfg
}

func vector(r, n, m float64) models.JointFeatureVector {
	return models.JointFeatureVector{Features: []models.Feature{
		{Name: "reddit_sentiment", Value: r},
		{Name: "news_sentiment", Value: n},
		{Name: "market_change", Value: m},
	}}
}

// synthetic history where the target follows reddit sentiment
func history(n int) ([]models.JointFeatureVector, []float64) {
	var vs []models.JointFeatureVector
	var ys []float64
	for i := 0; i < n; i++ {
		r := math.Sin(float64(i) / 3)
		vs = append(vs, vector(r, 0.1*float64(i%5), float64(i%7)-3))
		ys = append(ys, 2*r+0.1)
	}
	return vs, ys
}

func trained(t *testing.T) *Artifact {
	t.Helper()
	vs, ys := history(40)
	a, err := Train(vs, ys, schema, modelConfig())
	require.NoError(t, err)
	return a
}

func TestTrainProducesArtifact(t *testing.T) {
	a := trained(t)
	assert.Equal(t, schema, a.FeatureSchema)
	assert.Equal(t, "market_change", a.Target)
	assert.Equal(t, 32, a.TrainSamples)
	assert.Equal(t, 8, a.TestSamples)
	assert.Len(t, a.Forest.Trees, 20)
	assert.NotEmpty(t, a.Version)
	assert.InDelta(t, math.Sqrt(a.Metrics.MSE), a.Metrics.RMSE, 1e-12)

	var total float64
	for _, v := range a.FeatureImportance {
		total += v
	}
	assert.InDelta(t, 1.0, total, 1e-9)
	assert.Greater(t, a.FeatureImportance["reddit_sentiment"], a.FeatureImportance["news_sentiment"])
	require.NoError(t, a.Validate())
}

func TestTrainIsDeterministicForSeed(t *testing.T) {
	vs, ys := history(30)
	a, err := Train(vs, ys, schema, modelConfig())
	require.NoError(t, err)
	b, err := Train(vs, ys, schema, modelConfig())
	require.NoError(t, err)
	assert.Equal(t, a.Forest, b.Forest)
	assert.Equal(t, a.Metrics, b.Metrics)
}

func TestTrainInsufficientSamples(t *testing.T) {
	vs, ys := history(5)
	_, err := Train(vs, ys, schema, modelConfig())
	var te *TrainingError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, ReasonInsufficientSamples, te.Reason)
}

func TestTrainSchemaMismatch(t *testing.T) {
	vs, ys := history(20)
	vs[3] = models.JointFeatureVector{Features: []models.Feature{
		{Name: "news_sentiment"}, {Name: "reddit_sentiment"}, {Name: "market_change"},
	}}
	_, err := Train(vs, ys, schema, modelConfig())
	var te *TrainingError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, ReasonSchemaMismatch, te.Reason)
	var mm *SchemaMismatchError
	require.ErrorAs(t, err, &mm)
	assert.True(t, mm.Reordered)

	_, err = Train(vs[:10], ys, schema, modelConfig())
	require.ErrorAs(t, err, &te)
	assert.Equal(t, ReasonInvalidInput, te.Reason)
}

func TestPredictExactSchema(t *testing.T) {
	a := trained(t)
	v, err := Predict(map[string]float64{"reddit_sentiment": 0.5, "news_sentiment": 0.3, "market_change": 0.1}, a)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(v))

	cases := map[string]map[string]float64{
		"missing": {"reddit_sentiment": 0.5, "news_sentiment": 0.3},
		"added":   {"reddit_sentiment": 0.5, "news_sentiment": 0.3, "market_change": 0.1, "volume": 1},
		"renamed": {"reddit_sentiment": 0.5, "news_sent": 0.3, "market_change": 0.1},
	}
	for name, features := range cases {
		_, err := Predict(features, a)
		var mm *SchemaMismatchError
		require.ErrorAs(t, err, &mm, name)
	}

	_, err = Predict(map[string]float64{"reddit_sentiment": 1, "news_sent": 1, "market_change": 1}, a)
	var mm *SchemaMismatchError
	require.ErrorAs(t, err, &mm)
	assert.Equal(t, []string{"news_sentiment"}, mm.Missing)
	assert.Equal(t, []string{"news_sent"}, mm.Extra)

	_, err = Predict(map[string]float64{}, nil)
	assert.ErrorIs(t, err, ErrNoModel)
}

func TestArtifactRoundTripsAsBlob(t *testing.T) {
	a := trained(t)
	blob, err := a.Encode()
	require.NoError(t, err)
	b, err := Decode(blob)
	require.NoError(t, err)

	in := map[string]float64{"reddit_sentiment": -0.2, "news_sentiment": 0.3, "market_change": 1}
	want, _ := Predict(in, a)
	got, err := Predict(in, b)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.True(t, a.TrainedAt.Equal(b.TrainedAt))

	_, err = Decode([]byte("not gob"))
	assert.Error(t, err)
}

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, StateUntrained, r.State())
	_, _, err := r.Predict(map[string]float64{})
	assert.ErrorIs(t, err, ErrNoModel)

	a := trained(t)
	r.Stage(a)
	assert.Equal(t, StateTrained, r.State())
	require.NoError(t, r.Promote(a))
	assert.Equal(t, StateServing, r.State())
	assert.Same(t, a, r.Current())

	older := *a
	older.TrainedAt = a.TrainedAt.Add(-time.Hour)
	assert.ErrorIs(t, r.Promote(&older), ErrStaleArtifact)
	assert.Same(t, a, r.Current())

	broken := *a
	broken.Forest = Forest{}
	assert.ErrorIs(t, r.Promote(&broken), ErrInvalidArtifact)
	assert.Same(t, a, r.Current())
}

func TestValidateRejectsBackEdges(t *testing.T) {
	a := trained(t)
	require.NoError(t, a.Validate())

	cyclic := func(left int) *Artifact {
		c := *a
		c.TrainedAt = a.TrainedAt.Add(time.Hour)
		c.Forest = Forest{Trees: []Tree{{Nodes: []Node{
			{Feature: 0, Threshold: 0.5, Left: 1, Right: 2},
			{Feature: 1, Threshold: 0.5, Left: left, Right: 3},
			{Leaf: true, Value: 1},
			{Leaf: true, Value: 2},
		}}}}
		return &c
	}

	require.NoError(t, cyclic(3).Validate())
	for _, left := range []int{0, 1} {
		bad := cyclic(left)
		assert.ErrorIs(t, bad.Validate(), ErrInvalidArtifact, "left=%d", left)

		blob, err := bad.Encode()
		require.NoError(t, err)
		_, err = Decode(blob)
		assert.ErrorIs(t, err, ErrInvalidArtifact)

		r := NewRegistry()
		require.NoError(t, r.Promote(a))
		assert.ErrorIs(t, r.Promote(bad), ErrInvalidArtifact)
		assert.Same(t, a, r.Current())
	}
}

func TestFailedTrainingLeavesServingArtifact(t *testing.T) {
	r := NewRegistry()
	a := trained(t)
	require.NoError(t, r.Promote(a))

	vs, ys := history(3)
	_, err := Train(vs, ys, schema, modelConfig())
	require.Error(t, err)
	assert.Same(t, a, r.Current())
}

func TestConcurrentPredictDuringPromote(t *testing.T) {
	r := NewRegistry()
	first := trained(t)
	require.NoError(t, r.Promote(first))

	in := map[string]float64{"reddit_sentiment": 0.5, "news_sentiment": 0.3, "market_change": 0.1}
	var wg sync.WaitGroup
	errs := make(chan error, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, a, err := r.Predict(in)
			if err != nil {
				errs <- err
				return
			}
			// the value must come from the artifact that was returned
			want, _ := Predict(in, a)
			if want != v {
				errs <- errors.New("inconsistent snapshot")
			}
		}()
	}
	for i := 0; i < 3; i++ {
		next := *first
		next.TrainedAt = first.TrainedAt.Add(time.Duration(i+1) * time.Second)
		require.NoError(t, r.Promote(&next))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}

func TestBuildTrainingSet(t *testing.T) {
	h := []models.JointFeatureVector{
		vector(0.1, 0, 1),
		vector(0.2, 0, 2),
		{Features: []models.Feature{{Name: "reddit_sentiment"}, {Name: "news_sentiment"}, {Name: "market_change", Imputed: true}}},
		vector(0.4, 0, 4),
	}
	rows, targets := BuildTrainingSet(h, "market_change", 1)
	require.Len(t, rows, 2)
	assert.Equal(t, []float64{2, 4}, targets)
	assert.Equal(t, 0.1, rows[0].Features[0].Value)
	assert.Equal(t, 0.0, rows[1].Features[0].Value)
}
