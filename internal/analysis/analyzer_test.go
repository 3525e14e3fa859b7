package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentimentpipe/backend-go/internal/config"
	"sentimentpipe/backend-go/internal/models"
	"sentimentpipe/backend-go/internal/sentiment"
)

var t0 = time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

func redditRecords() []models.RawRecord {
	return []models.RawRecord{
		{ID: "1", Source: "reddit", Timestamp: t0, Category: "stocks",
			Text:    map[string]string{"title": "Great earnings beat for $AAPL"},
			Numeric: map[string]float64{"score": 10, "num_comments": 5}},
		{ID: "2", Source: "reddit", Timestamp: t0.Add(2 * time.Hour), Category: "stocks",
			Text:    map[string]string{"title": "Terrible crash, $aapl fears"},
			Numeric: map[string]float64{"score": 4, "num_comments": 1}},
		{ID: "3", Source: "reddit", Timestamp: t0.Add(26 * time.Hour),
			Text:    map[string]string{"title": "Federal Reserve holds rates, bullish outlook"},
			Numeric: map[string]float64{"score": 2}},
		{ID: "4", Source: "reddit", Timestamp: t0.Add(27 * time.Hour)},
	}
}

func passing(source string) models.QualityVerdict {
	return models.QualityVerdict{Source: source, Pass: true, Issues: []models.QualityIssue{}}
}

func failing(source string) models.QualityVerdict {
	return models.QualityVerdict{Source: source, Pass: false, Issues: []models.QualityIssue{models.IssueFreshness}}
}

func TestAnalyzeIsDeterministic(t *testing.T) {
	a := NewAnalyzer(sentiment.NewScorer(), false)
	cfg := config.DefaultPipeline().Sources[models.SourceReddit]
	records := redditRecords()

	first := a.Analyze(models.SourceReddit, records, passing("reddit"), cfg)
	second := a.Analyze(models.SourceReddit, records, passing("reddit"), cfg)
	assert.Equal(t, first, second)
}

func TestTextSummary(t *testing.T) {
	a := NewAnalyzer(sentiment.NewScorer(), false)
	cfg := config.DefaultPipeline().Sources[models.SourceReddit]

	s := a.Analyze(models.SourceReddit, redditRecords(), passing("reddit"), cfg)
	assert.False(t, s.Degraded)
	assert.Equal(t, 1.0, s.Confidence)
	assert.Equal(t, 4, s.RecordCount)
	// record 4 has no text and is not scored
	assert.Equal(t, 3, s.Sentiment.Count)
	require.Contains(t, s.Categories, "stocks")
	require.Contains(t, s.Categories, models.Uncategorized)
	assert.Equal(t, 2, s.Categories["stocks"].Count)
	assert.Equal(t, 1, s.Categories[models.Uncategorized].Count)

	assert.Equal(t, 4.0, s.Stats["volume"])
	assert.InDelta(t, (15.0+5.0+2.0)/3, s.Stats["engagement_mean"], 1e-9)
	assert.Equal(t, 2.0, s.Stats["records_per_day"])
	assert.Equal(t, 0.0, s.Stats["volume_change"])
	assert.Equal(t, 10.0, s.Stats["score_max"])

	require.NotEmpty(t, s.Entities)
	assert.Equal(t, models.EntityCount{Name: "$AAPL", Count: 2}, s.Entities[0])
	assert.Equal(t, t0, s.Window.Start)
	assert.Equal(t, t0.Add(27*time.Hour), s.Window.End)
}

func TestStrictFailingVerdictDegrades(t *testing.T) {
	a := NewAnalyzer(sentiment.NewScorer(), true)
	cfg := config.DefaultPipeline().Sources[models.SourceReddit]

	s := a.Analyze(models.SourceReddit, redditRecords(), failing("reddit"), cfg)
	assert.True(t, s.Degraded)
	assert.Equal(t, 0.0, s.Confidence)
	assert.Equal(t, models.Aggregate{}, s.Sentiment)
	assert.Empty(t, s.Categories)
	assert.Contains(t, s.Warnings, "quality_failed:freshness_violation")
	_, ok := s.Metric("sentiment_mean")
	assert.False(t, ok)
}

func TestLenientFailingVerdictWarns(t *testing.T) {
	a := NewAnalyzer(sentiment.NewScorer(), false)
	cfg := config.DefaultPipeline().Sources[models.SourceReddit]

	s := a.Analyze(models.SourceReddit, redditRecords(), failing("reddit"), cfg)
	assert.False(t, s.Degraded)
	assert.Equal(t, 0.5, s.Confidence)
	assert.Equal(t, []string{"quality_warning:freshness_violation"}, s.Warnings)
	assert.Equal(t, 3, s.Sentiment.Count)
}

func TestNewsTopicsCategoriseUnlabelled(t *testing.T) {
	a := NewAnalyzer(sentiment.NewScorer(), false)
	cfg := config.DefaultPipeline().Sources[models.SourceNews]
	records := []models.RawRecord{
		{ID: "1", Timestamp: t0, Text: map[string]string{"title": "Inflation worries hit the economy"}},
		{ID: "2", Timestamp: t0, Text: map[string]string{"title": "New AI chip unveiled, strong demand"}},
		{ID: "3", Timestamp: t0, Category: "business", Text: map[string]string{"title": "Good quarter"}},
	}

	s := a.Analyze(models.SourceNews, records, passing("news"), cfg)
	assert.Equal(t, map[string]int{"economy": 1, "technology": 1, topicOther: 1}, s.Topics)
	assert.Contains(t, s.Categories, "economy")
	assert.Contains(t, s.Categories, "technology")
	assert.Contains(t, s.Categories, "business")
}

func TestUnknownSourceFallsBackByKind(t *testing.T) {
	a := NewAnalyzer(sentiment.NewScorer(), false)
	cfg := config.SourceConfig{TimeSeries: true, Analyses: config.Analyses{Trends: true}}
	records := []models.RawRecord{
		{ID: "1", Timestamp: t0, Category: "BTC", Numeric: map[string]float64{"close": 100}},
		{ID: "2", Timestamp: t0.Add(time.Hour), Category: "BTC", Numeric: map[string]float64{"close": 110}},
	}
	s := a.Analyze("crypto", records, passing("crypto"), cfg)
	assert.InDelta(t, 10.0, s.Stats["window_change_pct"], 1e-9)
}

func TestClassifyTopic(t *testing.T) {
	assert.Equal(t, "politics", classifyTopic("Senate passes the bill"))
	assert.Equal(t, "health", classifyTopic("FDA approves vaccine"))
	assert.Equal(t, topicOther, classifyTopic(""))
}
