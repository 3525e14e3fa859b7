package quality

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentimentpipe/backend-go/internal/config"
	"sentimentpipe/backend-go/internal/models"
)

var fixedNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func gate() *Gate {
	return NewGateAt(func() time.Time { return fixedNow })
}

func textRecord(id string, age time.Duration, title string) models.RawRecord {
	r := models.RawRecord{ID: id, Source: "reddit", Timestamp: fixedNow.Add(-age), Text: map[string]string{}}
	if title != "" {
		r.Text["title"] = title
	}
	return r
}

func TestFreshnessViolation(t *testing.T) {
	cfg := config.SourceConfig{Freshness: 24 * time.Hour, RequiredFields: []string{"title"}, MissingThreshold: 0.5}
	records := []models.RawRecord{
		textRecord("1", 30*time.Hour, "a"),
		textRecord("2", 40*time.Hour, "b"),
	}

	v := gate().Evaluate("reddit", records, cfg)
	assert.False(t, v.Pass)
	assert.True(t, v.Has(models.IssueFreshness))
	assert.Equal(t, 30.0, v.Metrics.AgeHours)
	assert.Len(t, v.Details, len(v.Issues))
}

func TestFreshDatasetPasses(t *testing.T) {
	cfg := config.SourceConfig{Freshness: 24 * time.Hour, RequiredFields: []string{"title"}, MissingThreshold: 0.5}
	v := gate().Evaluate("reddit", []models.RawRecord{textRecord("1", time.Hour, "ok")}, cfg)
	assert.True(t, v.Pass)
	assert.Empty(t, v.Issues)
	assert.Equal(t, fixedNow, v.EvaluatedAt)
}

func TestMissingRatio(t *testing.T) {
	cfg := config.SourceConfig{RequiredFields: []string{"title"}, MissingThreshold: 0.25}
	records := []models.RawRecord{
		textRecord("1", time.Hour, "a"),
		textRecord("2", time.Hour, ""),
		textRecord("3", time.Hour, "   "),
		textRecord("4", time.Hour, "d"),
	}
	v := gate().Evaluate("reddit", records, cfg)
	assert.False(t, v.Pass)
	assert.Equal(t, []models.QualityIssue{models.IssueMissingRatio}, v.Issues)
	assert.Equal(t, 0.5, v.Metrics.MissingRatio)
}

func TestRangeViolationRecordsObserved(t *testing.T) {
	cfg := config.SourceConfig{Ranges: map[string]models.FieldRange{"change_pct": {Min: -50, Max: 50}}}
	records := []models.RawRecord{
		{ID: "1", Timestamp: fixedNow, Numeric: map[string]float64{"change_pct": 1.5}},
		{ID: "2", Timestamp: fixedNow, Numeric: map[string]float64{"change_pct": 75}},
		{ID: "3", Timestamp: fixedNow},
	}
	v := gate().Evaluate("market", records, cfg)
	require.True(t, v.Has(models.IssueRange))
	assert.Equal(t, models.FieldRange{Min: 1.5, Max: 75}, v.Metrics.Observed["change_pct"])
}

func TestGapDetectionOnlyForTimeSeries(t *testing.T) {
	records := []models.RawRecord{
		{ID: "3", Timestamp: fixedNow.Add(-1 * time.Hour), Numeric: map[string]float64{"close": 1}},
		{ID: "1", Timestamp: fixedNow.Add(-100 * time.Hour), Numeric: map[string]float64{"close": 1}},
		{ID: "2", Timestamp: fixedNow.Add(-90 * time.Hour), Numeric: map[string]float64{"close": 1}},
	}
	cfg := config.SourceConfig{TimeSeries: true, MaxGap: 48 * time.Hour}
	v := gate().Evaluate("market", records, cfg)
	assert.True(t, v.Has(models.IssueGap))
	assert.Equal(t, 89.0, v.Metrics.MaxGapHours)
	// input order untouched
	assert.Equal(t, "3", records[0].ID)

	cfg.TimeSeries = false
	v = gate().Evaluate("reddit", records, cfg)
	assert.False(t, v.Has(models.IssueGap))
}

func TestEmptyAndTooFew(t *testing.T) {
	v := gate().Evaluate("news", nil, config.SourceConfig{})
	assert.False(t, v.Pass)
	assert.Equal(t, []models.QualityIssue{models.IssueEmpty}, v.Issues)

	v = gate().Evaluate("news", []models.RawRecord{textRecord("1", time.Hour, "x")}, config.SourceConfig{MinRecords: 3})
	assert.False(t, v.Pass)
	assert.True(t, v.Has(models.IssueTooFew))
}

func TestMissingTimestampsFailFreshness(t *testing.T) {
	v := gate().Evaluate("news", []models.RawRecord{{ID: "1"}}, config.SourceConfig{Freshness: time.Hour})
	assert.True(t, v.Has(models.IssueFreshness))
	assert.Equal(t, -1.0, v.Metrics.AgeHours)
}
