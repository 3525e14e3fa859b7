package quality

import (
	"fmt"
	"math"
	"sort"
	"time"

	"sentimentpipe/backend-go/internal/config"
	"sentimentpipe/backend-go/internal/models"
)

// Gate validates one source dataset. It never logs and never fails: problems
// are reported as issues on the verdict.
type Gate struct {
	now func() time.Time
}

func NewGate() *Gate {
	return &Gate{now: time.Now}
}

// NewGateAt pins the clock, for tests and replays.
func NewGateAt(now func() time.Time) *Gate {
	return &Gate{now: now}
}

func (g *Gate) Evaluate(source string, records []models.RawRecord, cfg config.SourceConfig) models.QualityVerdict {
	now := g.now().UTC()
	v := models.QualityVerdict{
		Source:      source,
		Issues:      []models.QualityIssue{},
		Details:     []string{},
		EvaluatedAt: now,
		Metrics: models.QualityMetrics{
			RecordCount: len(records),
			Observed:    map[string]models.FieldRange{},
		},
	}

	if len(records) == 0 {
		addIssue(&v, models.IssueEmpty, "no records loaded")
		return finish(v)
	}
	if cfg.MinRecords > 0 && len(records) < cfg.MinRecords {
		addIssue(&v, models.IssueTooFew, fmt.Sprintf("%d records, need %d", len(records), cfg.MinRecords))
	}

	checkFreshness(&v, records, cfg, now)
	checkMissing(&v, records, cfg)
	checkRanges(&v, records, cfg)
	if cfg.TimeSeries && cfg.MaxGap > 0 {
		checkGaps(&v, records, cfg)
	}
	return finish(v)
}

func checkFreshness(v *models.QualityVerdict, records []models.RawRecord, cfg config.SourceConfig, now time.Time) {
	var newest time.Time
	for _, r := range records {
		if r.Timestamp.After(newest) {
			newest = r.Timestamp
		}
	}
	if newest.IsZero() {
		// -1 marks an unknown age; JSON cannot carry +Inf.
		v.Metrics.AgeHours = -1
		if cfg.Freshness > 0 {
			addIssue(v, models.IssueFreshness, "no record carries a timestamp")
		}
		return
	}
	age := now.Sub(newest)
	v.Metrics.AgeHours = round(age.Hours())
	if cfg.Freshness > 0 && age > cfg.Freshness {
		addIssue(v, models.IssueFreshness, fmt.Sprintf("newest record is %.1fh old, limit %.1fh", age.Hours(), cfg.Freshness.Hours()))
	}
}

func checkMissing(v *models.QualityVerdict, records []models.RawRecord, cfg config.SourceConfig) {
	if len(cfg.RequiredFields) == 0 {
		return
	}
	missing := 0
	for _, r := range records {
		for _, f := range cfg.RequiredFields {
			if !present(r, f) {
				missing++
				break
			}
		}
	}
	ratio := float64(missing) / float64(len(records))
	v.Metrics.MissingRatio = round(ratio)
	if ratio > cfg.MissingThreshold {
		addIssue(v, models.IssueMissingRatio, fmt.Sprintf("missing ratio %.3f exceeds %.3f", ratio, cfg.MissingThreshold))
	}
}

func present(r models.RawRecord, field string) bool {
	switch field {
	case "timestamp":
		return !r.Timestamp.IsZero()
	case "category":
		return r.Category != ""
	}
	if _, ok := r.NumericValue(field); ok {
		return true
	}
	_, ok := r.TextValue(field)
	return ok
}

func checkRanges(v *models.QualityVerdict, records []models.RawRecord, cfg config.SourceConfig) {
	fields := make([]string, 0, len(cfg.Ranges))
	for f := range cfg.Ranges {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	for _, f := range fields {
		limit := cfg.Ranges[f]
		obs := models.FieldRange{Min: math.Inf(1), Max: math.Inf(-1)}
		seen := 0
		for _, r := range records {
			x, ok := r.NumericValue(f)
			if !ok {
				continue
			}
			seen++
			obs.Min = math.Min(obs.Min, x)
			obs.Max = math.Max(obs.Max, x)
		}
		if seen == 0 {
			continue
		}
		v.Metrics.Observed[f] = obs
		if obs.Min < limit.Min || obs.Max > limit.Max {
			addIssue(v, models.IssueRange, fmt.Sprintf("%s observed [%g, %g] outside [%g, %g]", f, obs.Min, obs.Max, limit.Min, limit.Max))
		}
	}
}

func checkGaps(v *models.QualityVerdict, records []models.RawRecord, cfg config.SourceConfig) {
	ts := make([]time.Time, 0, len(records))
	for _, r := range records {
		if !r.Timestamp.IsZero() {
			ts = append(ts, r.Timestamp)
		}
	}
	sort.Slice(ts, func(i, j int) bool { return ts[i].Before(ts[j]) })

	var maxGap time.Duration
	for i := 1; i < len(ts); i++ {
		if d := ts[i].Sub(ts[i-1]); d > maxGap {
			maxGap = d
		}
	}
	v.Metrics.MaxGapHours = round(maxGap.Hours())
	if maxGap > cfg.MaxGap {
		addIssue(v, models.IssueGap, fmt.Sprintf("largest gap %.1fh exceeds %.1fh", maxGap.Hours(), cfg.MaxGap.Hours()))
	}
}

func finish(v models.QualityVerdict) models.QualityVerdict {
	v.Pass = len(v.Issues) == 0
	return v
}

func addIssue(v *models.QualityVerdict, issue models.QualityIssue, detail string) {
	v.Issues = append(v.Issues, issue)
	v.Details = append(v.Details, detail)
}

func round(x float64) float64 {
	return math.Round(x*1000) / 1000
}
