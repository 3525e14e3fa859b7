package report

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentimentpipe/backend-go/internal/models"
)

func sample() models.AnalysisResult {
	r := 0.8
	return models.AnalysisResult{
		RunID:       "run-1",
		GeneratedAt: time.Date(2024, 3, 10, 12, 30, 0, 0, time.UTC),
		Summaries: []models.SourceFeatureSummary{{
			Source:      "reddit",
			Confidence:  1,
			Sentiment:   models.Aggregate{Mean: 0.2, Std: 0.1, Count: 4},
			Categories:  map[string]models.Aggregate{"stocks": {Mean: 0.3, Count: 2}},
			Stats:       map[string]float64{"volume": 4},
			RecordCount: 4,
		}},
		Features: models.JointFeatureVector{Features: []models.Feature{
			{Name: "reddit_sentiment", Value: 0.2},
			{Name: "news_sentiment", Imputed: true},
		}},
		Correlation: models.CorrelationMatrix{
			Features: []string{"reddit_sentiment", "news_sentiment"},
			Values:   [][]*float64{{nil, &r}, {&r, nil}},
		},
	}
}

func TestWriteJSONAndCSV(t *testing.T) {
	w := NewWriter(t.TempDir(), []string{"json", "csv"})
	paths, err := w.Write(sample())
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Contains(t, paths[0], "analysis_20240310T123000Z.json")

	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	var back models.AnalysisResult
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, "run-1", back.RunID)

	f, err := os.Open(paths[1])
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"source", "metric", "submetric", "value"}, rows[0])
	assert.Contains(t, rows, []string{"reddit", "category:stocks", "mean", "0.3"})
	assert.Contains(t, rows, []string{"joint", "feature", "news_sentiment (imputed)", "0"})
	assert.Contains(t, rows, []string{"joint", "correlation", "reddit_sentiment~news_sentiment", "0.8"})
}

func TestRowsAreStable(t *testing.T) {
	assert.Equal(t, Rows(sample()), Rows(sample()))
}

func TestUnknownFormat(t *testing.T) {
	_, err := NewWriter(t.TempDir(), []string{"xml"}).Write(sample())
	assert.Error(t, err)
}
