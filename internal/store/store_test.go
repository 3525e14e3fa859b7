package store

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentimentpipe/backend-go/internal/config"
	"sentimentpipe/backend-go/internal/models"
	"sentimentpipe/backend-go/internal/predictor"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func result(runID string, at time.Time, reddit float64) models.AnalysisResult {
	return models.AnalysisResult{
		RunID:       runID,
		GeneratedAt: at,
		Summaries:   []models.SourceFeatureSummary{{Source: "reddit", Sentiment: models.Aggregate{Mean: reddit, Count: 1}}},
		Features: models.JointFeatureVector{AsOf: at, Features: []models.Feature{
			{Name: "reddit_sentiment", Source: "reddit", Value: reddit},
		}},
		Warnings: []string{},
	}
}

func TestResultsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)

	_, err := s.LatestResult(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.SaveResult(ctx, result("run-"+string(rune('a'+i)), base.Add(time.Duration(i)*time.Hour), float64(i))))
	}

	latest, err := s.LatestResult(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-e", latest.RunID)

	hist, err := s.JointHistory(ctx, 3)
	require.NoError(t, err)
	require.Len(t, hist, 3)
	assert.Equal(t, 2.0, hist[0].Features[0].Value)
	assert.Equal(t, 4.0, hist[2].Features[0].Value)
	assert.True(t, hist[0].AsOf.Before(hist[2].AsOf))

	all, err := s.JointHistory(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	sums, err := s.SourceHistory(ctx, "reddit", 2)
	require.NoError(t, err)
	require.Len(t, sums, 2)
	assert.Equal(t, 4.0, sums[1].Sentiment.Mean)

	require.NoError(t, s.Ping(ctx))
}

func TestArtifactsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)

	_, err := s.LatestArtifact(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	schema := []string{"a", "b"}
	var vs []models.JointFeatureVector
	var ys []float64
	for i := 0; i < 20; i++ {
		x := math.Cos(float64(i))
		vs = append(vs, models.JointFeatureVector{Features: []models.Feature{{Name: "a", Value: x}, {Name: "b", Value: float64(i)}}})
		ys = append(ys, x*3)
	}
	cfg := config.DefaultPipeline().Model
	cfg.Trees = 5
	cfg.TargetFeature = "a"

	older, err := predictor.Train(vs, ys, schema, cfg)
	require.NoError(t, err)
	newer, err := predictor.Train(vs, ys, schema, cfg)
	require.NoError(t, err)
	newer.TrainedAt = older.TrainedAt.Add(time.Minute)

	require.NoError(t, s.SaveArtifact(ctx, newer))
	require.NoError(t, s.SaveArtifact(ctx, older))

	got, err := s.LatestArtifact(ctx)
	require.NoError(t, err)
	assert.Equal(t, newer.Version, got.Version)
	assert.Equal(t, schema, got.FeatureSchema)
}
