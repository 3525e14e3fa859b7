package predictor

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNoModel         = errors.New("no serving model")
	ErrStaleArtifact   = errors.New("artifact is older than the serving model")
	ErrInvalidArtifact = errors.New("invalid model artifact")
)

const (
	ReasonInsufficientSamples = "insufficient_samples"
	ReasonSchemaMismatch      = "schema_mismatch"
	ReasonInvalidInput        = "invalid_input"
)

// SchemaMismatchError reports how a feature set differs from a schema.
type SchemaMismatchError struct {
	Missing   []string
	Extra     []string
	Reordered bool
}

func (e *SchemaMismatchError) Error() string {
	parts := []string{}
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ","))
	}
	if len(e.Extra) > 0 {
		parts = append(parts, "unexpected "+strings.Join(e.Extra, ","))
	}
	if e.Reordered {
		parts = append(parts, "feature order differs")
	}
	return "feature schema mismatch: " + strings.Join(parts, "; ")
}

// TrainingError aborts one training run; the serving model is untouched.
type TrainingError struct {
	Reason string
	Err    error
}

func (e *TrainingError) Error() string {
	if e.Err == nil {
		return "training failed: " + e.Reason
	}
	return fmt.Sprintf("training failed: %s: %v", e.Reason, e.Err)
}

func (e *TrainingError) Unwrap() error {
	return e.Err
}

// compareKeys checks that keys equals schema as a set.
func compareKeys(keys map[string]float64, schema []string) *SchemaMismatchError {
	want := make(map[string]bool, len(schema))
	var missing, extra []string
	for _, name := range schema {
		want[name] = true
		if _, ok := keys[name]; !ok {
			missing = append(missing, name)
		}
	}
	for k := range keys {
		if !want[k] {
			extra = append(extra, k)
		}
	}
	if len(missing) == 0 && len(extra) == 0 {
		return nil
	}
	sort.Strings(missing)
	sort.Strings(extra)
	return &SchemaMismatchError{Missing: missing, Extra: extra}
}

// compareOrdered checks names against schema including order.
func compareOrdered(names, schema []string) *SchemaMismatchError {
	keys := make(map[string]float64, len(names))
	for _, n := range names {
		keys[n] = 0
	}
	if e := compareKeys(keys, schema); e != nil {
		return e
	}
	if len(names) != len(schema) {
		return &SchemaMismatchError{Reordered: true}
	}
	for i := range names {
		if names[i] != schema[i] {
			return &SchemaMismatchError{Reordered: true}
		}
	}
	return nil
}
