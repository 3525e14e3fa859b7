package analysis

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentimentpipe/backend-go/internal/config"
	"sentimentpipe/backend-go/internal/models"
)

func TestMarketSummary(t *testing.T) {
	cfg := config.DefaultPipeline().Sources[models.SourceMarket]
	// newest first on purpose; strategy must sort its own copy
	records := []models.RawRecord{
		{ID: "c", Timestamp: t0.Add(48 * time.Hour), Category: "SPY", Numeric: map[string]float64{"close": 121, "change_pct": 10}},
		{ID: "b", Timestamp: t0.Add(24 * time.Hour), Category: "SPY", Numeric: map[string]float64{"close": 110, "change_pct": 10}},
		{ID: "a", Timestamp: t0, Category: "SPY", Numeric: map[string]float64{"close": 100}},
		{ID: "d", Timestamp: t0.Add(48 * time.Hour), Category: "QQQ", Numeric: map[string]float64{"close": 50, "change_pct": -2}},
	}

	s := (&MarketStrategy{}).Analyze(Input{Source: "market", Records: records, Config: cfg})
	assert.Equal(t, "c", records[0].ID)

	// latest day: SPY +10, QQQ -2
	assert.InDelta(t, 4.0, s.Stats["change_pct"], 1e-9)
	assert.InDelta(t, 21.0, s.Stats["window_change_pct"], 1e-9)
	assert.InDelta(t, 10.0, s.Stats["mean_step_change_pct"], 1e-9)
	assert.InDelta(t, 0.0, s.Stats["volatility"], 1e-9)
	assert.NotContains(t, s.Stats, "rsi_14")

	require.Contains(t, s.Categories, "SPY")
	assert.Equal(t, 2, s.Categories["SPY"].Count)
	assert.Equal(t, 1, s.Categories["QQQ"].Count)
	assert.Equal(t, 0, s.Sentiment.Count)

	v, ok := s.Metric("change_pct")
	assert.True(t, ok)
	assert.InDelta(t, 4.0, v, 1e-9)
}

func TestMarketChangeDerivedFromCloses(t *testing.T) {
	cfg := config.SourceConfig{Analyses: config.Analyses{Trends: true}}
	records := []models.RawRecord{
		{Timestamp: t0, Category: "X", Numeric: map[string]float64{"close": 200}},
		{Timestamp: t0.Add(time.Hour), Category: "X", Numeric: map[string]float64{"close": 190}},
	}
	s := (&MarketStrategy{}).Analyze(Input{Records: records, Config: cfg})
	assert.InDelta(t, -5.0, s.Stats["change_pct"], 1e-9)
}

func TestCalculateRSI(t *testing.T) {
	rising := make([]decimal.Decimal, 20)
	for i := range rising {
		rising[i] = decimal.NewFromInt(int64(100 + i))
	}
	rsi, err := calculateRSI(rising, rsiPeriod)
	require.NoError(t, err)
	assert.True(t, rsi.Equal(decimal.NewFromInt(100)))

	_, err = calculateRSI(rising[:5], rsiPeriod)
	assert.ErrorIs(t, err, errNotEnoughPrices)

	mixed := []decimal.Decimal{}
	for i := 0; i < 30; i++ {
		v := int64(100 + i%3)
		mixed = append(mixed, decimal.NewFromInt(v))
	}
	rsi, err = calculateRSI(mixed, rsiPeriod)
	require.NoError(t, err)
	assert.True(t, rsi.GreaterThan(decimal.Zero))
	assert.True(t, rsi.LessThan(decimal.NewFromInt(100)))
}
