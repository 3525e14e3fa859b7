package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"sentimentpipe/backend-go/internal/config"
	"sentimentpipe/backend-go/internal/models"
)

// TaskResult is what one source task produces on success.
type TaskResult struct {
	Summary models.SourceFeatureSummary
	Verdict models.QualityVerdict
}

// Outcome is the per-source entry of RunAll. Exactly one of Result or Err is meaningful.
type Outcome struct {
	Source   string
	Result   TaskResult
	Err      *SourceError
	Duration time.Duration
}

func (o Outcome) OK() bool {
	return o.Err == nil
}

// TaskFunc analyses one source. It should honour ctx but is not required to.
type TaskFunc func(ctx context.Context, source string) (TaskResult, error)

// Orchestrator fans source tasks out over a bounded worker pool.
type Orchestrator struct {
	maxWorkers int
	timeout    time.Duration
}

func NewOrchestrator(cfg config.ParallelConfig) *Orchestrator {
	workers := cfg.MaxWorkers
	if workers < 1 {
		workers = 1
	}
	return &Orchestrator{maxWorkers: workers, timeout: cfg.TaskTimeout}
}

// RunAll blocks until every source has an outcome. A failing, panicking or
// slow task only affects its own entry; RunAll itself never fails.
func (o *Orchestrator) RunAll(ctx context.Context, sources []string, fn TaskFunc) map[string]Outcome {
	var (
		mu  sync.Mutex
		out = make(map[string]Outcome, len(sources))
	)

	// Tasks never return an error to the group, so siblings are never cancelled.
	g := new(errgroup.Group)
	g.SetLimit(o.maxWorkers)
	for _, src := range sources {
		src := src
		g.Go(func() error {
			start := time.Now()
			res, err := o.runOne(ctx, src, fn)
			oc := Outcome{Source: src, Result: res, Err: err, Duration: time.Since(start)}
			mu.Lock()
			out[src] = oc
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

type taskReturn struct {
	res TaskResult
	err error
}

func (o *Orchestrator) runOne(ctx context.Context, source string, fn TaskFunc) (TaskResult, *SourceError) {
	tctx := ctx
	if o.timeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}
	if tctx.Err() != nil {
		return TaskResult{}, &SourceError{Source: source, Code: CodeTimeout, Err: tctx.Err()}
	}

	done := make(chan taskReturn, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- taskReturn{err: &SourceError{Source: source, Code: CodePanic, Err: fmt.Errorf("%v", r)}}
			}
		}()
		res, err := fn(tctx, source)
		done <- taskReturn{res: res, err: err}
	}()

	// The task goroutine may outlive a timeout; we only stop waiting for it.
	select {
	case r := <-done:
		if r.err == nil {
			return r.res, nil
		}
		return TaskResult{}, classify(tctx, source, r.err)
	case <-tctx.Done():
		return TaskResult{}, &SourceError{Source: source, Code: CodeTimeout, Err: tctx.Err()}
	}
}

func classify(ctx context.Context, source string, err error) *SourceError {
	var se *SourceError
	if errors.As(err, &se) {
		return se
	}
	if ctx.Err() != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)) {
		return &SourceError{Source: source, Code: CodeTimeout, Err: err}
	}
	return &SourceError{Source: source, Code: CodeAnalysisFailed, Err: err}
}
