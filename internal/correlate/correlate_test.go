package correlate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentimentpipe/backend-go/internal/config"
	"sentimentpipe/backend-go/internal/models"
)

var asOf = time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

func schema() []config.FeatureSpec {
	return []config.FeatureSpec{
		{Name: "reddit_sentiment", Source: "reddit", Metric: "sentiment_mean"},
		{Name: "news_sentiment", Source: "news", Metric: "sentiment_mean", Default: -0.5},
		{Name: "market_change", Source: "market", Metric: "change_pct"},
	}
}

func TestCombineImputesMissingSource(t *testing.T) {
	c := New(schema())
	summaries := map[string]models.SourceFeatureSummary{
		"reddit": {Source: "reddit", Sentiment: models.Aggregate{Mean: 0.4, Count: 3}},
		"market": {Source: "market", Stats: map[string]float64{"change_pct": 1.2}},
	}

	v := c.Combine(asOf, summaries)
	assert.Equal(t, []string{"reddit_sentiment", "news_sentiment", "market_change"}, v.Names())
	assert.Equal(t, models.Feature{Name: "news_sentiment", Source: "news", Value: -0.5, Imputed: true}, v.Features[1])
	assert.Equal(t, 0.4, v.Features[0].Value)
	assert.False(t, v.Features[0].Imputed)
	assert.Equal(t, 1.2, v.Features[2].Value)
	assert.Equal(t, []string{"news_sentiment"}, v.ImputedNames())
	assert.Equal(t, asOf, v.AsOf)
}

func TestCombineImputesDegradedAndMissingMetric(t *testing.T) {
	c := New(schema())
	summaries := map[string]models.SourceFeatureSummary{
		"reddit": {Source: "reddit", Degraded: true, Sentiment: models.Aggregate{Mean: 0.9, Count: 5}},
		"news":   {Source: "news"},
		"market": {Source: "market", Stats: map[string]float64{}},
	}
	v := c.Combine(asOf, summaries)
	assert.ElementsMatch(t, []string{"reddit_sentiment", "news_sentiment", "market_change"}, v.ImputedNames())
	assert.Equal(t, 0.0, v.Features[0].Value)
}

func vec(r, n, m float64) models.JointFeatureVector {
	return models.JointFeatureVector{Features: []models.Feature{
		{Name: "reddit_sentiment", Value: r},
		{Name: "news_sentiment", Value: n},
		{Name: "market_change", Value: m},
	}}
}

func TestMatrixPerfectCorrelation(t *testing.T) {
	c := New(schema())
	history := []models.JointFeatureVector{
		vec(0.1, 0.9, 1.0),
		vec(0.2, 0.8, 3.0),
		vec(0.3, 0.7, 5.0),
		vec(0.4, 0.6, 7.0),
	}
	m := c.Matrix(history)
	assert.Equal(t, 4, m.Samples)

	r, ok := m.At("reddit_sentiment", "market_change")
	require.True(t, ok)
	assert.InDelta(t, 1.0, r, 1e-9)

	r, ok = m.At("reddit_sentiment", "news_sentiment")
	require.True(t, ok)
	assert.InDelta(t, -1.0, r, 1e-9)

	r, ok = m.At("market_change", "market_change")
	require.True(t, ok)
	assert.InDelta(t, 1.0, r, 1e-9)
}

func TestMatrixPairsOnlyRunsCarryingBothFeatures(t *testing.T) {
	c := New(schema())
	partial := func(r, m float64) models.JointFeatureVector {
		return models.JointFeatureVector{Features: []models.Feature{
			{Name: "reddit_sentiment", Value: r},
			{Name: "market_change", Value: m},
		}}
	}
	// news_sentiment is absent from the first two runs; pairing it by
	// position would line news[k] up with reddit[k] from another run.
	history := []models.JointFeatureVector{
		partial(5, 0),
		partial(-5, 0),
		vec(0.1, 0.9, 1),
		vec(0.2, 0.8, 2),
		vec(0.3, 0.7, 3),
	}
	m := c.Matrix(history)
	assert.Equal(t, 5, m.Samples)

	r, ok := m.At("reddit_sentiment", "news_sentiment")
	require.True(t, ok)
	assert.InDelta(t, -1.0, r, 1e-9)

	r, ok = m.At("news_sentiment", "market_change")
	require.True(t, ok)
	assert.InDelta(t, -1.0, r, 1e-9)

	want, ok := Pearson([]float64{5, -5, 0.1, 0.2, 0.3}, []float64{0, 0, 1, 2, 3})
	require.True(t, ok)
	r, ok = m.At("reddit_sentiment", "market_change")
	require.True(t, ok)
	assert.InDelta(t, want, r, 1e-9)
}

func TestMatrixUndefinedCells(t *testing.T) {
	c := New(schema())
	m := c.Matrix([]models.JointFeatureVector{vec(0.1, 0.5, 1), vec(0.2, 0.5, 2)})
	_, ok := m.At("news_sentiment", "market_change")
	assert.False(t, ok)
	assert.Nil(t, m.Values[1][1])

	m = c.Matrix([]models.JointFeatureVector{vec(0.1, 0.2, 1)})
	_, ok = m.At("reddit_sentiment", "market_change")
	assert.False(t, ok)
	assert.Len(t, m.Values, 3)
}
