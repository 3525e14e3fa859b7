package loader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"sentimentpipe/backend-go/internal/config"
	"sentimentpipe/backend-go/internal/models"
)

var ErrNoData = errors.New("no data files")

// timestampColumns are tried in order.
var timestampColumns = []string{"timestamp", "date", "created_utc", "publishedAt", "published_at"}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// CSVLoader reads the newest *.csv under a source's data path. File names are
// date-stamped, so the lexicographic maximum is the newest.
type CSVLoader struct{}

func NewCSVLoader() *CSVLoader {
	return &CSVLoader{}
}

func (l *CSVLoader) Load(ctx context.Context, source string, cfg config.SourceConfig) ([]models.RawRecord, error) {
	files, err := filepath.Glob(filepath.Join(cfg.DataPath, "*.csv"))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoData, cfg.DataPath)
	}
	sort.Strings(files)
	latest := files[len(files)-1]

	f, err := os.Open(latest)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseCSV(ctx, source, latest, f, cfg)
}

// ParseCSV maps rows onto RawRecords. Blank cells are nulls. Rows without an
// id column get a stable name-based UUID.
func ParseCSV(ctx context.Context, source, name string, r io.Reader, cfg config.SourceConfig) ([]models.RawRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := map[string]int{}
	for i, h := range header {
		col[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}

	textFields := append([]string(nil), cfg.TextFields...)
	numeric := map[string]bool{}
	for _, f := range cfg.NumericFields {
		numeric[f] = true
	}
	for _, f := range cfg.RequiredFields {
		if !numeric[f] && f != "timestamp" && f != "category" && !contains(textFields, f) {
			textFields = append(textFields, f)
		}
	}

	var out []models.RawRecord
	line := 1
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		line++

		cell := func(field string) string {
			i, ok := col[field]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		rec := models.RawRecord{
			ID:        cell("id"),
			Source:    source,
			Timestamp: parseTimestamp(cell),
			Text:      map[string]string{},
			Numeric:   map[string]float64{},
		}
		if rec.ID == "" {
			rec.ID = uuid.NewSHA1(uuid.NameSpaceURL, []byte(name+":"+strconv.Itoa(line))).String()
		}
		if cfg.CategoryField != "" {
			rec.Category = cell(cfg.CategoryField)
		}
		for _, f := range textFields {
			if v := cell(f); v != "" {
				rec.Text[f] = v
			}
		}
		for f := range numeric {
			v, err := strconv.ParseFloat(cell(f), 64)
			if err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
				rec.Numeric[f] = v
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

func parseTimestamp(cell func(string) string) time.Time {
	for _, c := range timestampColumns {
		v := cell(c)
		if v == "" {
			continue
		}
		if secs, err := strconv.ParseFloat(v, 64); err == nil {
			return time.Unix(int64(secs), 0).UTC()
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t.UTC()
			}
		}
	}
	return time.Time{}
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}
