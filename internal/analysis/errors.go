package analysis

import (
	"fmt"

	"sentimentpipe/backend-go/internal/models"
)

const (
	CodeTimeout        = "timeout"
	CodeAnalysisFailed = "analysis_failed"
	CodeLoadFailed     = "load_failed"
	CodePanic          = "panic"
)

// SourceError is a failure confined to one source. It degrades that source
// only and never aborts sibling tasks.
type SourceError struct {
	Source string
	Code   string
	Err    error
}

func (e *SourceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("source %s: %s", e.Source, e.Code)
	}
	return fmt.Sprintf("source %s: %s: %v", e.Source, e.Code, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// Failure is the caller-facing form. The wrapped error text stays in logs.
func (e *SourceError) Failure() models.SourceFailure {
	msg := "source analysis failed"
	switch e.Code {
	case CodeTimeout:
		msg = "source analysis timed out"
	case CodeLoadFailed:
		msg = "source data could not be loaded"
	case CodePanic:
		msg = "source analysis aborted unexpectedly"
	}
	return models.SourceFailure{Source: e.Source, Code: e.Code, Message: msg}
}
