package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPipelineIsValid(t *testing.T) {
	p, err := LoadPipeline("")
	require.NoError(t, err)
	assert.Equal(t, []string{"reddit_sentiment", "news_sentiment", "market_change"}, p.Schema())
	assert.Equal(t, []string{"market", "news", "reddit"}, p.EnabledSources())
	assert.False(t, p.Strict())
}

func TestParsePipelineMergesSourceOverDefaults(t *testing.T) {
	doc := []byte(`
quality:
  policy: strict
parallel:
  max_workers: 2
  task_timeout: 5s
sources:
  reddit:
    freshness: 12h
  market:
    enabled: false
`)
	p, err := ParsePipeline(doc)
	require.NoError(t, err)

	assert.True(t, p.Strict())
	assert.Equal(t, 2, p.Parallel.MaxWorkers)
	assert.Equal(t, 5*time.Second, p.Parallel.TaskTimeout)

	reddit := p.Sources["reddit"]
	assert.Equal(t, 12*time.Hour, reddit.Freshness)
	assert.Equal(t, []string{"title", "selftext"}, reddit.TextFields, "unset fields keep their defaults")
	assert.True(t, reddit.Enabled)
	assert.False(t, p.Sources["market"].Enabled)
	assert.Equal(t, []string{"news", "reddit"}, p.EnabledSources())
}

func TestParsePipelineAcceptsJSON(t *testing.T) {
	doc := []byte(`{"quality": {"policy": "lenient"}, "model": {"min_samples": 20}}`)
	p, err := ParsePipeline(doc)
	require.NoError(t, err)
	assert.Equal(t, 20, p.Model.MinSamples)
	assert.Equal(t, "market_change", p.Model.TargetFeature)
}

func TestParsePipelineRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"bad policy":        "quality:\n  policy: sometimes\n",
		"bad threshold":     "sources:\n  news:\n    missing_threshold: 1.5\n",
		"unknown source":    "features:\n  - {name: x, source: twitter, metric: sentiment_mean}\n  - {name: market_change, source: market, metric: change_pct}\n",
		"duplicate feature": "features:\n  - {name: market_change, source: market, metric: change_pct}\n  - {name: market_change, source: market, metric: change_pct}\n",
		"target missing":    "model:\n  target_feature: volume\n",
		"bad format":        "output:\n  formats: [xml]\n",
		"inverted range":    "sources:\n  market:\n    ranges:\n      close: {min: 10, max: 1}\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParsePipeline([]byte(doc))
			assert.Error(t, err)
		})
	}
}
