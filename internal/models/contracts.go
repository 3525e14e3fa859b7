package models

import (
	"math"
	"strings"
	"time"
)

const (
	SourceReddit = "reddit"
	SourceNews   = "news"
	SourceMarket = "market"

	// JointKey is the store key used for whole-run results.
	JointKey = "joint"

	Uncategorized = "uncategorized"
)

// RawRecord is one observation from a source. Absent map keys and an empty
// Category are the null values.
type RawRecord struct {
	ID        string             `json:"id"`
	Source    string             `json:"source"`
	Timestamp time.Time          `json:"timestamp"`
	Text      map[string]string  `json:"text,omitempty"`
	Numeric   map[string]float64 `json:"numeric,omitempty"`
	Category  string             `json:"category,omitempty"`
}

func (r RawRecord) TextValue(field string) (string, bool) {
	v, ok := r.Text[field]
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// NumericValue treats NaN and ±Inf as missing.
func (r RawRecord) NumericValue(field string) (float64, bool) {
	v, ok := r.Numeric[field]
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

type QualityIssue string

const (
	IssueFreshness    QualityIssue = "freshness_violation"
	IssueMissingRatio QualityIssue = "missing_ratio_exceeded"
	IssueRange        QualityIssue = "range_violation"
	IssueGap          QualityIssue = "gap_detected"
	IssueEmpty        QualityIssue = "empty_dataset"
	IssueTooFew       QualityIssue = "insufficient_records"
)

type FieldRange struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

type QualityMetrics struct {
	AgeHours     float64               `json:"age_in_hours"`
	MissingRatio float64               `json:"missing_ratio"`
	MaxGapHours  float64               `json:"max_gap_hours"`
	RecordCount  int                   `json:"record_count"`
	Observed     map[string]FieldRange `json:"observed"`
}

type QualityVerdict struct {
	Source      string         `json:"source"`
	Pass        bool           `json:"pass"`
	Issues      []QualityIssue `json:"issues"`
	Details     []string       `json:"details"`
	Metrics     QualityMetrics `json:"metrics"`
	EvaluatedAt time.Time      `json:"evaluated_at"`
}

func (v QualityVerdict) Has(issue QualityIssue) bool {
	for _, it := range v.Issues {
		if it == issue {
			return true
		}
	}
	return false
}

type SentimentScore struct {
	RecordID     string  `json:"record_id"`
	Polarity     float64 `json:"polarity"`
	Subjectivity float64 `json:"subjectivity"`
	Confidence   float64 `json:"confidence"`
}

type Aggregate struct {
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	Count int     `json:"count"`
}

type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (w TimeWindow) Duration() time.Duration {
	if w.Start.IsZero() || w.End.IsZero() {
		return 0
	}
	return w.End.Sub(w.Start)
}

type EntityCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type SourceFeatureSummary struct {
	Source      string               `json:"source"`
	Degraded    bool                 `json:"degraded"`
	Confidence  float64              `json:"confidence"`
	Sentiment   Aggregate            `json:"sentiment"`
	Categories  map[string]Aggregate `json:"categories"`
	Stats       map[string]float64   `json:"stats"`
	Entities    []EntityCount        `json:"entities,omitempty"`
	Topics      map[string]int       `json:"topics,omitempty"`
	RecordCount int                  `json:"record_count"`
	Window      TimeWindow           `json:"window"`
	Warnings    []string             `json:"warnings,omitempty"`
}

// Metric resolves a named metric for the joint feature schema.
func (s SourceFeatureSummary) Metric(name string) (float64, bool) {
	switch name {
	case "sentiment_mean":
		if s.Sentiment.Count == 0 {
			return 0, false
		}
		return s.Sentiment.Mean, true
	case "sentiment_std":
		if s.Sentiment.Count == 0 {
			return 0, false
		}
		return s.Sentiment.Std, true
	case "record_count":
		return float64(s.RecordCount), true
	}
	v, ok := s.Stats[name]
	return v, ok
}

type Feature struct {
	Name    string  `json:"name"`
	Source  string  `json:"source"`
	Value   float64 `json:"value"`
	Imputed bool    `json:"imputed"`
}

// JointFeatureVector is one model row; Features follow the configured schema order.
type JointFeatureVector struct {
	AsOf     time.Time `json:"as_of"`
	Features []Feature `json:"features"`
}

func (v JointFeatureVector) Names() []string {
	out := make([]string, len(v.Features))
	for i, f := range v.Features {
		out[i] = f.Name
	}
	return out
}

func (v JointFeatureVector) Map() map[string]float64 {
	out := make(map[string]float64, len(v.Features))
	for _, f := range v.Features {
		out[f.Name] = f.Value
	}
	return out
}

func (v JointFeatureVector) Value(name string) (float64, bool) {
	for _, f := range v.Features {
		if f.Name == name {
			return f.Value, true
		}
	}
	return 0, false
}

func (v JointFeatureVector) ImputedNames() []string {
	out := []string{}
	for _, f := range v.Features {
		if f.Imputed {
			out = append(out, f.Name)
		}
	}
	return out
}

// CorrelationMatrix holds pairwise Pearson coefficients; nil cells are undefined
// (fewer than two samples or a constant series).
type CorrelationMatrix struct {
	Features []string     `json:"features"`
	Values   [][]*float64 `json:"values"`
	Samples  int          `json:"samples"`
}

func (m CorrelationMatrix) At(a, b string) (float64, bool) {
	i, j := -1, -1
	for k, name := range m.Features {
		if name == a {
			i = k
		}
		if name == b {
			j = k
		}
	}
	if i < 0 || j < 0 || m.Values[i][j] == nil {
		return 0, false
	}
	return *m.Values[i][j], true
}

type SourceFailure struct {
	Source  string `json:"source"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type SourceStatus string

const (
	StatusOK       SourceStatus = "ok"
	StatusWarning  SourceStatus = "warning"
	StatusDegraded SourceStatus = "degraded"
	StatusFailed   SourceStatus = "failed"
)

// SourceProvenance ties each source to its verdict and to how it reached the joint vector.
type SourceProvenance struct {
	Source      string       `json:"source"`
	Status      SourceStatus `json:"status"`
	QualityPass *bool        `json:"quality_pass"`
	Included    bool         `json:"included"`
	Imputed     []string     `json:"imputed_features"`
}

type EvalMetrics struct {
	MSE  float64 `json:"mse"`
	RMSE float64 `json:"rmse"`
	MAE  float64 `json:"mae"`
	R2   float64 `json:"r2"`
}

type ModelInfo struct {
	Version           string             `json:"version"`
	TrainedAt         time.Time          `json:"trained_at"`
	Target            string             `json:"target"`
	FeatureSchema     []string           `json:"feature_schema"`
	Metrics           EvalMetrics        `json:"metrics"`
	FeatureImportance map[string]float64 `json:"feature_importance"`
	TrainSamples      int                `json:"train_samples"`
	TestSamples       int                `json:"test_samples"`
}

type PredictionOutcome struct {
	Value        float64   `json:"value"`
	ModelVersion string    `json:"model_version"`
	TrainedAt    time.Time `json:"trained_at"`
	UsesImputed  bool      `json:"uses_imputed"`
}

type AnalysisResult struct {
	RunID       string                 `json:"run_id"`
	GeneratedAt time.Time              `json:"generated_at"`
	Policy      string                 `json:"policy"`
	Degraded    bool                   `json:"degraded"`
	Verdicts    []QualityVerdict       `json:"verdicts"`
	Summaries   []SourceFeatureSummary `json:"summaries"`
	Failures    []SourceFailure        `json:"failures"`
	Provenance  []SourceProvenance     `json:"provenance"`
	Features    JointFeatureVector     `json:"features"`
	Correlation CorrelationMatrix      `json:"correlation"`
	Prediction  *PredictionOutcome     `json:"prediction,omitempty"`
	Warnings    []string               `json:"warnings"`
}

type PredictRequest struct {
	Features map[string]float64 `json:"features"`
}

type PredictResponse struct {
	TsISO      string    `json:"tsISO"`
	Prediction float64   `json:"prediction"`
	Model      ModelInfo `json:"model"`
}

type ErrorResponse struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Missing []string `json:"missing,omitempty"`
	Extra   []string `json:"extra,omitempty"`
}

type AnalysisResponse struct {
	Result   AnalysisResult `json:"result"`
	Source   string         `json:"source"`
	Stale    bool           `json:"stale"`
	Warnings []string       `json:"warnings"`
}

type DepStatus struct {
	Ok    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type HealthResponse struct {
	Ok          bool                 `json:"ok"`
	TsISO       string               `json:"tsISO"`
	Service     string               `json:"service"`
	Version     string               `json:"version"`
	Deps        []string             `json:"deps"`
	DepsStatus  map[string]DepStatus `json:"deps_status"`
	DataMissing []string             `json:"data_missing"`
	ModelState  string               `json:"model_state"`
	Features    map[string]bool      `json:"features"`
}
