package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"sentimentpipe/backend-go/internal/config"
	"sentimentpipe/backend-go/internal/events"
	"sentimentpipe/backend-go/internal/logging"
	"sentimentpipe/backend-go/internal/models"
	"sentimentpipe/backend-go/internal/store"
)

const runFlightKey = "analysis:run"

type SnapshotMeta struct {
	Source    string
	Stale     bool
	Err       string
	FetchedAt string
}

type AnalysisSnapshot struct {
	Result models.AnalysisResult
	Meta   SnapshotMeta
}

type Runner interface {
	Run(ctx context.Context) (models.AnalysisResult, error)
}

type ResultStore interface {
	SaveResult(ctx context.Context, res models.AnalysisResult) error
	LatestResult(ctx context.Context) (models.AnalysisResult, error)
}

type ReportWriter interface {
	Write(res models.AnalysisResult) ([]string, error)
}

// AnalysisService serves the latest analysis with stale-while-revalidate
// caching and fans finished runs out to storage, reports, events and SSE
// subscribers.
type AnalysisService struct {
	cfg     config.Config
	cache   *SnapshotCache
	runner  Runner
	store   ResultStore
	reports ReportWriter
	events  events.Publisher
	log     logging.Logger

	flight     singleflight.Group
	mu         sync.Mutex
	subs       map[chan AnalysisSnapshot]struct{}
	last       *AnalysisSnapshot
	refreshing bool
}

type AnalysisDeps struct {
	Cache   Cache
	Runner  Runner
	Store   ResultStore
	Reports ReportWriter
	Events  events.Publisher
	Log     logging.Logger
}

func NewAnalysisService(cfg config.Config, d AnalysisDeps) *AnalysisService {
	if d.Events == nil {
		d.Events = events.NopPublisher{}
	}
	if d.Log == nil {
		d.Log = logging.Discard()
	}
	return &AnalysisService{
		cfg:     cfg,
		cache:   NewSnapshotCache(d.Cache),
		runner:  d.Runner,
		store:   d.Store,
		reports: d.Reports,
		events:  d.Events,
		log:     d.Log,
		subs:    make(map[chan AnalysisSnapshot]struct{}),
	}
}

// Subscribe delivers every finished run until ctx ends or unsubscribe is called.
// Slow subscribers miss snapshots rather than block publishing.
func (s *AnalysisService) Subscribe(ctx context.Context) (<-chan AnalysisSnapshot, func()) {
	ch := make(chan AnalysisSnapshot, 1)
	var once sync.Once

	s.mu.Lock()
	s.subs[ch] = struct{}{}
	last := s.last
	s.mu.Unlock()

	if last != nil {
		select {
		case ch <- *last:
		default:
		}
	}

	unsubscribe := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, ch)
			s.mu.Unlock()
			close(ch)
		})
	}

	go func() {
		<-ctx.Done()
		unsubscribe()
	}()

	return ch, unsubscribe
}

// GetSnapshot returns the cached result when fresh, the stale one while a
// refresh runs in the background, and otherwise runs the pipeline.
func (s *AnalysisService) GetSnapshot(ctx context.Context) (models.AnalysisResult, SnapshotMeta, error) {
	cached, fetchedAt, ok := s.cache.Latest(ctx)
	if ok {
		age := time.Since(fetchedAt)
		if age <= s.cfg.CacheTTLResult {
			return cached, SnapshotMeta{Source: "cache", FetchedAt: fetchedAt.UTC().Format(time.RFC3339)}, nil
		}
		if age <= s.hardTTL() {
			s.refreshAsync()
			return cached, SnapshotMeta{Source: "stale_cache", Stale: true, FetchedAt: fetchedAt.UTC().Format(time.RFC3339)}, nil
		}
	}

	res, meta, err := s.Run(ctx)
	if err == nil {
		return res, meta, nil
	}
	if ok {
		return cached, SnapshotMeta{
			Source:    "stale_cache",
			Stale:     true,
			Err:       err.Error(),
			FetchedAt: fetchedAt.UTC().Format(time.RFC3339),
		}, nil
	}
	if s.store != nil {
		if stored, serr := s.store.LatestResult(ctx); serr == nil {
			return stored, SnapshotMeta{
				Source:    "store",
				Stale:     true,
				Err:       err.Error(),
				FetchedAt: stored.GeneratedAt.UTC().Format(time.RFC3339),
			}, nil
		} else if !errors.Is(serr, store.ErrNotFound) {
			s.log.WithError(serr).Warn("latest stored result unavailable")
		}
	}
	return res, SnapshotMeta{Source: "error", Err: err.Error()}, err
}

// Run executes the pipeline once; concurrent callers share one run. The run
// is detached from the caller's ctx so an impatient client cannot cancel
// it for everyone else.
func (s *AnalysisService) Run(ctx context.Context) (models.AnalysisResult, SnapshotMeta, error) {
	ch := s.flight.DoChan(runFlightKey, func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.Background(), s.pipelineTimeout())
		defer cancel()
		res, err := s.runner.Run(runCtx)
		if err != nil {
			return res, err
		}
		s.afterRun(runCtx, res)
		return res, nil
	})

	select {
	case <-ctx.Done():
		return models.AnalysisResult{}, SnapshotMeta{Source: "error", Err: ctx.Err().Error()}, ctx.Err()
	case r := <-ch:
		res, _ := r.Val.(models.AnalysisResult)
		if r.Err != nil {
			return res, SnapshotMeta{Source: "error", Err: r.Err.Error()}, r.Err
		}
		return res, SnapshotMeta{Source: "fresh", FetchedAt: res.GeneratedAt.UTC().Format(time.RFC3339)}, nil
	}
}

// StartScheduler re-runs the pipeline every interval until ctx ends.
func (s *AnalysisService) StartScheduler(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	run := func() {
		if _, _, err := s.Run(ctx); err != nil && ctx.Err() == nil {
			s.log.WithError(err).Warn("scheduled analysis run failed")
		}
	}

	run()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			run()
		}
	}
}

func (s *AnalysisService) afterRun(ctx context.Context, res models.AnalysisResult) {
	log := s.log.WithField("run_id", res.RunID)
	fetchedAt := time.Now().UTC()

	if err := s.cache.Put(ctx, res, fetchedAt, s.hardTTL()); err != nil && !errors.Is(err, errNoSnapshotCache) {
		log.WithError(err).Warn("cache write failed")
	}
	if s.store != nil {
		if err := s.store.SaveResult(ctx, res); err != nil {
			log.WithError(err).Error("persist analysis result failed")
		}
	}
	if s.reports != nil {
		if paths, err := s.reports.Write(res); err != nil {
			log.WithError(err).Warn("report write failed")
		} else if len(paths) > 0 {
			log.WithField("paths", paths).Debug("reports written")
		}
	}
	if err := s.events.Publish(ctx, res); err != nil {
		log.WithError(err).Warn("publish analysis event failed")
	}

	s.publish(AnalysisSnapshot{Result: res, Meta: SnapshotMeta{Source: "fresh", FetchedAt: fetchedAt.Format(time.RFC3339)}})
}

func (s *AnalysisService) publish(snap AnalysisSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = &snap
	for ch := range s.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}

func (s *AnalysisService) refreshAsync() {
	s.mu.Lock()
	if s.refreshing {
		s.mu.Unlock()
		return
	}
	s.refreshing = true
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.refreshing = false
			s.mu.Unlock()
		}()
		ctx, cancel := context.WithTimeout(context.Background(), s.pipelineTimeout())
		defer cancel()
		if _, _, err := s.Run(ctx); err != nil {
			s.log.WithError(err).Warn("background refresh failed")
		}
	}()
}

func (s *AnalysisService) hardTTL() time.Duration {
	if s.cfg.CacheTTLResultHard < s.cfg.CacheTTLResult {
		return s.cfg.CacheTTLResult
	}
	return s.cfg.CacheTTLResultHard
}

func (s *AnalysisService) pipelineTimeout() time.Duration {
	if s.cfg.PipelineTimeout > 0 {
		return s.cfg.PipelineTimeout
	}
	return s.cfg.RequestTimeout
}
