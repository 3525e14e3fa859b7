package correlate

import (
	"math"
	"time"

	"sentimentpipe/backend-go/internal/config"
	"sentimentpipe/backend-go/internal/models"
)

// Correlator builds joint feature vectors from the configured schema.
type Correlator struct {
	features []config.FeatureSpec
}

func New(features []config.FeatureSpec) *Correlator {
	return &Correlator{features: append([]config.FeatureSpec(nil), features...)}
}

// Combine maps summaries onto the schema. A feature whose source is absent,
// degraded, or lacks the metric takes its configured default and is flagged
// imputed. It never fails.
func (c *Correlator) Combine(asOf time.Time, summaries map[string]models.SourceFeatureSummary) models.JointFeatureVector {
	v := models.JointFeatureVector{AsOf: asOf, Features: make([]models.Feature, 0, len(c.features))}
	for _, spec := range c.features {
		f := models.Feature{Name: spec.Name, Source: spec.Source, Value: spec.Default, Imputed: true}
		if s, ok := summaries[spec.Source]; ok && !s.Degraded {
			if val, ok := s.Metric(spec.Metric); ok && !math.IsNaN(val) && !math.IsInf(val, 0) {
				f.Value = val
				f.Imputed = false
			}
		}
		v.Features = append(v.Features, f)
	}
	return v
}

// Matrix computes pairwise Pearson coefficients over history, in schema
// order over the runs carrying both features. Cells with fewer than two samples or a constant series are nil.
func (c *Correlator) Matrix(history []models.JointFeatureVector) models.CorrelationMatrix {
	names := make([]string, len(c.features))
	for i, f := range c.features {
		names[i] = f.Name
	}

	m := models.CorrelationMatrix{Features: names, Values: make([][]*float64, len(names)), Samples: len(history)}
	for i := range names {
		m.Values[i] = make([]*float64, len(names))
	}
	for i := range names {
		for j := i; j < len(names); j++ {
			x, y := pairedSeries(history, names[i], names[j])
			r, ok := Pearson(x, y)
			if !ok {
				continue
			}
			ri, rj := r, r
			m.Values[i][j] = &ri
			m.Values[j][i] = &rj
		}
	}
	return m
}

// pairedSeries keeps only vectors carrying both features, so x[k] and y[k]
// always come from the same run.
func pairedSeries(history []models.JointFeatureVector, a, b string) (x, y []float64) {
	for _, v := range history {
		xa, ok := v.Value(a)
		if !ok {
			continue
		}
		yb, ok := v.Value(b)
		if !ok {
			continue
		}
		x = append(x, xa)
		y = append(y, yb)
	}
	return x, y
}

// Pearson returns the correlation of two equal-length series.
func Pearson(x, y []float64) (float64, bool) {
	n := len(x)
	if n < 2 || n != len(y) {
		return 0, false
	}
	var mx, my float64
	for i := 0; i < n; i++ {
		mx += x[i]
		my += y[i]
	}
	mx /= float64(n)
	my /= float64(n)

	var sxy, sxx, syy float64
	for i := 0; i < n; i++ {
		dx, dy := x[i]-mx, y[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return 0, false
	}
	r := sxy / math.Sqrt(sxx*syy)
	return math.Max(-1, math.Min(1, r)), true
}
