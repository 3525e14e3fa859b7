package analysis

import (
	"sort"

	"sentimentpipe/backend-go/internal/config"
	"sentimentpipe/backend-go/internal/models"
	"sentimentpipe/backend-go/internal/sentiment"
)

const (
	confidenceFull    = 1.0
	confidenceWarning = 0.5
)

// Input is what a strategy sees for one source.
type Input struct {
	Source  string
	Records []models.RawRecord
	Verdict models.QualityVerdict
	Config  config.SourceConfig
}

// Strategy computes a source summary. Implementations must be deterministic and
// must not modify Input.Records.
type Strategy interface {
	Analyze(in Input) models.SourceFeatureSummary
}

// Analyzer picks a strategy by source id and applies the quality policy.
type Analyzer struct {
	strict     bool
	strategies map[string]Strategy
	text       Strategy
	series     Strategy
}

func NewAnalyzer(scorer *sentiment.Scorer, strict bool) *Analyzer {
	text := &TextStrategy{scorer: scorer}
	series := &MarketStrategy{}
	return &Analyzer{
		strict: strict,
		strategies: map[string]Strategy{
			models.SourceReddit: text,
			models.SourceNews:   &TextStrategy{scorer: scorer, topics: true},
			models.SourceMarket: series,
		},
		text:   text,
		series: series,
	}
}

func (a *Analyzer) Register(source string, s Strategy) {
	a.strategies[source] = s
}

// Analyze returns the summary for one source. In strict mode a failing
// verdict yields a degraded summary with zero-confidence aggregates.
func (a *Analyzer) Analyze(source string, records []models.RawRecord, verdict models.QualityVerdict, cfg config.SourceConfig) models.SourceFeatureSummary {
	if !verdict.Pass && a.strict {
		return degraded(source, records, verdict)
	}

	s := a.strategyFor(source, cfg).Analyze(Input{
		Source:  source,
		Records: records,
		Verdict: verdict,
		Config:  cfg,
	})
	s.Source = source
	s.Confidence = confidenceFull
	if !verdict.Pass {
		s.Confidence = confidenceWarning
		for _, issue := range verdict.Issues {
			s.Warnings = append(s.Warnings, "quality_warning:"+string(issue))
		}
	}
	return s
}

func (a *Analyzer) strategyFor(source string, cfg config.SourceConfig) Strategy {
	if s, ok := a.strategies[source]; ok {
		return s
	}
	if cfg.TimeSeries {
		return a.series
	}
	return a.text
}

func degraded(source string, records []models.RawRecord, verdict models.QualityVerdict) models.SourceFeatureSummary {
	s := newSummary(source, records)
	s.Degraded = true
	s.Confidence = 0
	for _, issue := range verdict.Issues {
		s.Warnings = append(s.Warnings, "quality_failed:"+string(issue))
	}
	return s
}

func newSummary(source string, records []models.RawRecord) models.SourceFeatureSummary {
	return models.SourceFeatureSummary{
		Source:      source,
		Categories:  map[string]models.Aggregate{},
		Stats:       map[string]float64{},
		RecordCount: len(records),
		Window:      window(records),
		Warnings:    []string{},
	}
}

func window(records []models.RawRecord) models.TimeWindow {
	var w models.TimeWindow
	for _, r := range records {
		if r.Timestamp.IsZero() {
			continue
		}
		if w.Start.IsZero() || r.Timestamp.Before(w.Start) {
			w.Start = r.Timestamp
		}
		if r.Timestamp.After(w.End) {
			w.End = r.Timestamp
		}
	}
	return w
}

func categoryOf(r models.RawRecord) string {
	if r.Category == "" {
		return models.Uncategorized
	}
	return r.Category
}

// statistics adds mean/std/min/max per configured numeric field.
func statistics(s *models.SourceFeatureSummary, records []models.RawRecord, fields []string) {
	sorted := append([]string(nil), fields...)
	sort.Strings(sorted)
	for _, f := range sorted {
		xs := numericSeries(records, f)
		if len(xs) == 0 {
			continue
		}
		agg := aggregate(xs)
		lo, hi := xs[0], xs[0]
		for _, x := range xs[1:] {
			if x < lo {
				lo = x
			}
			if x > hi {
				hi = x
			}
		}
		s.Stats[f+"_mean"] = agg.Mean
		s.Stats[f+"_std"] = agg.Std
		s.Stats[f+"_min"] = lo
		s.Stats[f+"_max"] = hi
	}
}

func numericSeries(records []models.RawRecord, field string) []float64 {
	out := []float64{}
	for _, r := range records {
		if v, ok := r.NumericValue(field); ok {
			out = append(out, v)
		}
	}
	return out
}
