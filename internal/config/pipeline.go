package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"sentimentpipe/backend-go/internal/models"
)

const (
	PolicyStrict  = "strict"
	PolicyLenient = "lenient"

	LoaderCSV  = "csv"
	LoaderHTTP = "http"
)

// Pipeline is the typed analysis configuration. It is validated once by
// LoadPipeline and treated as read-only afterwards.
type Pipeline struct {
	Sources     map[string]SourceConfig `yaml:"sources" validate:"required,min=1,dive"`
	Features    []FeatureSpec           `yaml:"features" validate:"required,min=1,dive"`
	Quality     QualityConfig           `yaml:"quality"`
	Parallel    ParallelConfig          `yaml:"parallel"`
	Correlation CorrelationConfig       `yaml:"correlation"`
	Output      OutputConfig            `yaml:"output"`
	Model       ModelConfig             `yaml:"model"`
}

type SourceConfig struct {
	Enabled          bool                         `yaml:"enabled"`
	DataPath         string                       `yaml:"data_path"`
	Loader           string                       `yaml:"loader" validate:"oneof=csv http"`
	TimeSeries       bool                         `yaml:"time_series"`
	TextFields       []string                     `yaml:"text_fields"`
	RequiredFields   []string                     `yaml:"required_fields"`
	CategoryField    string                       `yaml:"category_field"`
	NumericFields    []string                     `yaml:"numeric_fields"`
	Freshness        time.Duration                `yaml:"freshness" validate:"gte=0"`
	MissingThreshold float64                      `yaml:"missing_threshold" validate:"gte=0,lte=1"`
	Ranges           map[string]models.FieldRange `yaml:"ranges"`
	MaxGap           time.Duration                `yaml:"max_gap" validate:"gte=0"`
	MinRecords       int                          `yaml:"min_records" validate:"gte=0"`
	Analyses         Analyses                     `yaml:"analyses"`
}

type Analyses struct {
	Sentiment  bool `yaml:"sentiment"`
	Entities   bool `yaml:"entities"`
	Topics     bool `yaml:"topics"`
	Statistics bool `yaml:"statistics"`
	Trends     bool `yaml:"trends"`
}

// FeatureSpec binds one schema slot to a source metric. The order of
// Pipeline.Features is the model schema.
type FeatureSpec struct {
	Name    string  `yaml:"name" validate:"required"`
	Source  string  `yaml:"source" validate:"required"`
	Metric  string  `yaml:"metric" validate:"required"`
	Default float64 `yaml:"default"`
}

type QualityConfig struct {
	Policy string `yaml:"policy" validate:"oneof=strict lenient"`
}

type ParallelConfig struct {
	MaxWorkers  int           `yaml:"max_workers" validate:"gte=1,lte=64"`
	TaskTimeout time.Duration `yaml:"task_timeout" validate:"gt=0"`
}

type CorrelationConfig struct {
	HistoryWindow int `yaml:"history_window" validate:"gte=0"`
}

type OutputConfig struct {
	Dir     string   `yaml:"dir"`
	Formats []string `yaml:"formats" validate:"dive,oneof=json csv"`
}

type ModelConfig struct {
	MinSamples      int     `yaml:"min_samples" validate:"gte=2"`
	TestFraction    float64 `yaml:"test_fraction" validate:"gt=0,lt=1"`
	Trees           int     `yaml:"n_trees" validate:"gte=1,lte=1000"`
	MaxDepth        int     `yaml:"max_depth" validate:"gte=1,lte=32"`
	MinSamplesLeaf  int     `yaml:"min_samples_leaf" validate:"gte=1"`
	FeatureFraction float64 `yaml:"feature_fraction" validate:"gt=0,lte=1"`
	Seed            int64   `yaml:"seed"`
	TargetFeature   string  `yaml:"target_feature" validate:"required"`
	Horizon         int     `yaml:"horizon" validate:"gte=1"`
}

func DefaultPipeline() Pipeline {
	return Pipeline{
		Sources: map[string]SourceConfig{
			models.SourceReddit: {
				Enabled:          true,
				DataPath:         "data/raw/reddit",
				Loader:           LoaderCSV,
				TextFields:       []string{"title", "selftext"},
				RequiredFields:   []string{"title"},
				CategoryField:    "subreddit",
				NumericFields:    []string{"score", "num_comments"},
				Freshness:        24 * time.Hour,
				MissingThreshold: 0.5,
				Ranges:           map[string]models.FieldRange{"num_comments": {Min: 0, Max: 1e7}},
				MinRecords:       1,
				Analyses:         Analyses{Sentiment: true, Entities: true, Statistics: true, Trends: true},
			},
			models.SourceNews: {
				Enabled:          true,
				DataPath:         "data/raw/news",
				Loader:           LoaderCSV,
				TextFields:       []string{"title", "description"},
				RequiredFields:   []string{"title"},
				CategoryField:    "category",
				Freshness:        24 * time.Hour,
				MissingThreshold: 0.5,
				MinRecords:       1,
				Analyses:         Analyses{Sentiment: true, Entities: true, Topics: true, Statistics: true, Trends: true},
			},
			models.SourceMarket: {
				Enabled:          true,
				DataPath:         "data/raw/market",
				Loader:           LoaderCSV,
				TimeSeries:       true,
				RequiredFields:   []string{"close"},
				CategoryField:    "symbol",
				NumericFields:    []string{"close", "volume", "change_pct"},
				Freshness:        72 * time.Hour,
				MissingThreshold: 0.2,
				Ranges:           map[string]models.FieldRange{"close": {Min: 0, Max: 1e7}, "change_pct": {Min: -50, Max: 50}},
				MaxGap:           96 * time.Hour,
				MinRecords:       2,
				Analyses:         Analyses{Statistics: true, Trends: true},
			},
		},
		Features: []FeatureSpec{
			{Name: "reddit_sentiment", Source: models.SourceReddit, Metric: "sentiment_mean"},
			{Name: "news_sentiment", Source: models.SourceNews, Metric: "sentiment_mean"},
			{Name: "market_change", Source: models.SourceMarket, Metric: "change_pct"},
		},
		Quality:     QualityConfig{Policy: PolicyLenient},
		Parallel:    ParallelConfig{MaxWorkers: 4, TaskTimeout: 30 * time.Second},
		Correlation: CorrelationConfig{HistoryWindow: 90},
		Output:      OutputConfig{Dir: "data/analysis", Formats: []string{"json", "csv"}},
		Model: ModelConfig{
			MinSamples:      10,
			TestFraction:    0.2,
			Trees:           100,
			MaxDepth:        8,
			MinSamplesLeaf:  2,
			FeatureFraction: 0.67,
			Seed:            42,
			TargetFeature:   "market_change",
			Horizon:         1,
		},
	}
}

// LoadPipeline reads a YAML (or JSON) file over the defaults. An empty path
// yields the validated defaults.
func LoadPipeline(path string) (Pipeline, error) {
	if path == "" {
		p := DefaultPipeline()
		return p, p.Validate()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Pipeline{}, fmt.Errorf("read pipeline config: %w", err)
	}
	return ParsePipeline(data)
}

func ParsePipeline(data []byte) (Pipeline, error) {
	var raw struct {
		Sources map[string]yaml.Node `yaml:"sources"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Pipeline{}, fmt.Errorf("parse pipeline config: %w", err)
	}

	p := DefaultPipeline()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Pipeline{}, fmt.Errorf("parse pipeline config: %w", err)
	}

	// Sources merge field by field over their defaults; yaml replaces map values whole.
	defaults := DefaultPipeline().Sources
	for name, node := range raw.Sources {
		base, ok := defaults[name]
		if !ok {
			base = SourceConfig{Enabled: true, Loader: LoaderCSV, DataPath: "data/raw/" + name}
		}
		node := node
		if err := node.Decode(&base); err != nil {
			return Pipeline{}, fmt.Errorf("parse source %s: %w", name, err)
		}
		p.Sources[name] = base
	}

	if err := p.Validate(); err != nil {
		return Pipeline{}, err
	}
	return p, nil
}

var validate = validator.New()

func (p Pipeline) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("invalid pipeline config: %w", err)
	}
	seen := map[string]bool{}
	for _, f := range p.Features {
		if seen[f.Name] {
			return fmt.Errorf("invalid pipeline config: duplicate feature %q", f.Name)
		}
		seen[f.Name] = true
		if _, ok := p.Sources[f.Source]; !ok {
			return fmt.Errorf("invalid pipeline config: feature %q references unknown source %q", f.Name, f.Source)
		}
	}
	if !seen[p.Model.TargetFeature] {
		return fmt.Errorf("invalid pipeline config: target feature %q is not in the schema", p.Model.TargetFeature)
	}
	for name, s := range p.Sources {
		for field, r := range s.Ranges {
			if r.Min > r.Max {
				return fmt.Errorf("invalid pipeline config: source %s range %s has min > max", name, field)
			}
		}
	}
	if len(p.EnabledSources()) == 0 {
		return errors.New("invalid pipeline config: no enabled sources")
	}
	return nil
}

// EnabledSources returns enabled source ids in sorted order.
func (p Pipeline) EnabledSources() []string {
	out := make([]string, 0, len(p.Sources))
	for name, s := range p.Sources {
		if s.Enabled {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (p Pipeline) Schema() []string {
	out := make([]string, len(p.Features))
	for i, f := range p.Features {
		out[i] = f.Name
	}
	return out
}

func (p Pipeline) Strict() bool {
	return p.Quality.Policy == PolicyStrict
}
