package analysis

import (
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"sentimentpipe/backend-go/internal/models"
)

const rsiPeriod = 14

var hundred = decimal.NewFromInt(100)

// MarketStrategy covers price time series, grouped by symbol (the category).
type MarketStrategy struct{}

func (m *MarketStrategy) Analyze(in Input) models.SourceFeatureSummary {
	s := newSummary(in.Source, in.Records)
	series, symbols := bySymbol(in.Records)

	for _, sym := range symbols {
		changes := numericSeries(series[sym], "change_pct")
		if len(changes) == 0 {
			changes = floats(stepReturns(closes(series[sym])))
		}
		s.Categories[sym] = aggregate(changes)
	}

	if in.Config.Analyses.Statistics {
		statistics(&s, in.Records, in.Config.NumericFields)
	}
	if in.Config.Analyses.Trends {
		marketTrends(&s, in.Records, series, symbols)
	}
	return s
}

func marketTrends(s *models.SourceFeatureSummary, records []models.RawRecord, series map[string][]models.RawRecord, symbols []string) {
	if v, ok := latestDayChange(records); ok {
		s.Stats["change_pct"] = v
	}

	var windowChanges, lastSteps, pooled, rsis []float64
	for _, sym := range symbols {
		prices := closes(series[sym])
		if len(prices) < 2 {
			continue
		}
		first, last := prices[0], prices[len(prices)-1]
		if !first.IsZero() {
			windowChanges = append(windowChanges, last.Sub(first).Div(first).Mul(hundred).InexactFloat64())
		}
		steps := floats(stepReturns(prices))
		if len(steps) > 0 {
			lastSteps = append(lastSteps, steps[len(steps)-1])
			pooled = append(pooled, steps...)
		}
		if rsi, err := calculateRSI(prices, rsiPeriod); err == nil {
			rsis = append(rsis, rsi.InexactFloat64())
		}
	}

	if _, ok := s.Stats["change_pct"]; !ok && len(lastSteps) > 0 {
		s.Stats["change_pct"] = mean(lastSteps)
	}
	if len(windowChanges) > 0 {
		s.Stats["window_change_pct"] = mean(windowChanges)
	}
	if len(pooled) > 0 {
		agg := aggregate(pooled)
		s.Stats["mean_step_change_pct"] = agg.Mean
		s.Stats["volatility"] = agg.Std
	}
	if len(rsis) > 0 {
		s.Stats["rsi_14"] = mean(rsis)
	}
}

// latestDayChange is the mean reported change_pct over the newest UTC day.
func latestDayChange(records []models.RawRecord) (float64, bool) {
	var newest time.Time
	for _, r := range records {
		if _, ok := r.NumericValue("change_pct"); ok && r.Timestamp.After(newest) {
			newest = r.Timestamp
		}
	}
	if newest.IsZero() {
		return 0, false
	}
	day := newest.UTC().Format(time.DateOnly)
	xs := []float64{}
	for _, r := range records {
		v, ok := r.NumericValue("change_pct")
		if ok && !r.Timestamp.IsZero() && r.Timestamp.UTC().Format(time.DateOnly) == day {
			xs = append(xs, v)
		}
	}
	return mean(xs), true
}

// bySymbol groups records by category, each group sorted by timestamp.
// The input slice is left untouched.
func bySymbol(records []models.RawRecord) (map[string][]models.RawRecord, []string) {
	out := map[string][]models.RawRecord{}
	for _, r := range records {
		cat := categoryOf(r)
		out[cat] = append(out[cat], r)
	}
	symbols := make([]string, 0, len(out))
	for sym, rs := range out {
		sort.SliceStable(rs, func(i, j int) bool { return rs[i].Timestamp.Before(rs[j].Timestamp) })
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return out, symbols
}

func closes(records []models.RawRecord) []decimal.Decimal {
	out := []decimal.Decimal{}
	for _, r := range records {
		if v, ok := r.NumericValue("close"); ok {
			out = append(out, decimal.NewFromFloat(v))
		}
	}
	return out
}

// stepReturns are percent changes between consecutive prices.
func stepReturns(prices []decimal.Decimal) []decimal.Decimal {
	out := []decimal.Decimal{}
	for i := 1; i < len(prices); i++ {
		if prices[i-1].IsZero() {
			continue
		}
		out = append(out, prices[i].Sub(prices[i-1]).Div(prices[i-1]).Mul(hundred))
	}
	return out
}

func floats(ds []decimal.Decimal) []float64 {
	out := make([]float64, len(ds))
	for i, d := range ds {
		out[i] = d.InexactFloat64()
	}
	return out
}

var errNotEnoughPrices = errors.New("not enough data points for RSI")

// calculateRSI uses Wilder smoothing; prices are oldest first.
func calculateRSI(prices []decimal.Decimal, period int) (decimal.Decimal, error) {
	if period <= 0 || len(prices) < period+1 {
		return decimal.Zero, errNotEnoughPrices
	}
	p := decimal.NewFromInt(int64(period))
	gains, losses := decimal.Zero, decimal.Zero
	for i := 1; i <= period; i++ {
		change := prices[i].Sub(prices[i-1])
		if change.IsPositive() {
			gains = gains.Add(change)
		} else {
			losses = losses.Add(change.Abs())
		}
	}
	avgGain, avgLoss := gains.Div(p), losses.Div(p)

	for i := period + 1; i < len(prices); i++ {
		change := prices[i].Sub(prices[i-1])
		gain, loss := decimal.Zero, decimal.Zero
		if change.IsPositive() {
			gain = change
		} else {
			loss = change.Abs()
		}
		avgGain = avgGain.Mul(p.Sub(decimal.NewFromInt(1))).Add(gain).Div(p)
		avgLoss = avgLoss.Mul(p.Sub(decimal.NewFromInt(1))).Add(loss).Div(p)
	}

	if avgLoss.IsZero() {
		return hundred, nil
	}
	rs := avgGain.Div(avgLoss)
	return hundred.Sub(hundred.Div(decimal.NewFromInt(1).Add(rs))), nil
}
