package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"sentimentpipe/backend-go/internal/models"
)

// Writer persists results as report files in the configured formats.
type Writer struct {
	dir     string
	formats []string
}

func NewWriter(dir string, formats []string) *Writer {
	return &Writer{dir: dir, formats: formats}
}

// Write returns the paths written. Files are named by generation time so
// lexicographic order is chronological.
func (w *Writer) Write(res models.AnalysisResult) ([]string, error) {
	if len(w.formats) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}
	base := filepath.Join(w.dir, "analysis_"+res.GeneratedAt.UTC().Format("20060102T150405Z"))

	var paths []string
	for _, format := range w.formats {
		var err error
		path := base + "." + format
		switch format {
		case "json":
			err = writeJSON(path, res)
		case "csv":
			err = writeCSV(path, res)
		default:
			err = fmt.Errorf("unknown report format %q", format)
		}
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeJSON(path string, res models.AnalysisResult) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func writeCSV(path string, res models.AnalysisResult) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write([]string{"source", "metric", "submetric", "value"}); err != nil {
		return err
	}
	for _, row := range Rows(res) {
		if err := cw.Write([]string{row.Source, row.Metric, row.Submetric, strconv.FormatFloat(row.Value, 'g', -1, 64)}); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return f.Close()
}

type Row struct {
	Source    string
	Metric    string
	Submetric string
	Value     float64
}

// Rows flattens a result into source/metric/submetric/value rows in a stable order.
func Rows(res models.AnalysisResult) []Row {
	var rows []Row
	for _, s := range res.Summaries {
		rows = append(rows,
			Row{s.Source, "record_count", "", float64(s.RecordCount)},
			Row{s.Source, "confidence", "", s.Confidence},
			Row{s.Source, "sentiment", "mean", s.Sentiment.Mean},
			Row{s.Source, "sentiment", "std", s.Sentiment.Std},
			Row{s.Source, "sentiment", "count", float64(s.Sentiment.Count)},
		)
		for _, cat := range sortedKeys(s.Categories) {
			agg := s.Categories[cat]
			rows = append(rows,
				Row{s.Source, "category:" + cat, "mean", agg.Mean},
				Row{s.Source, "category:" + cat, "count", float64(agg.Count)},
			)
		}
		for _, k := range sortedKeys(s.Stats) {
			rows = append(rows, Row{s.Source, "stats", k, s.Stats[k]})
		}
		for _, k := range sortedKeys(s.Topics) {
			rows = append(rows, Row{s.Source, "topic", k, float64(s.Topics[k])})
		}
	}
	for _, f := range res.Features.Features {
		sub := f.Name
		if f.Imputed {
			sub += " (imputed)"
		}
		rows = append(rows, Row{models.JointKey, "feature", sub, f.Value})
	}
	m := res.Correlation
	for i := range m.Features {
		for j := i + 1; j < len(m.Features); j++ {
			if m.Values[i][j] != nil {
				rows = append(rows, Row{models.JointKey, "correlation", m.Features[i] + "~" + m.Features[j], *m.Values[i][j]})
			}
		}
	}
	if res.Prediction != nil {
		rows = append(rows, Row{models.JointKey, "prediction", res.Prediction.ModelVersion, res.Prediction.Value})
	}
	return rows
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
