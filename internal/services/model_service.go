package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"sentimentpipe/backend-go/internal/config"
	"sentimentpipe/backend-go/internal/logging"
	"sentimentpipe/backend-go/internal/metrics"
	"sentimentpipe/backend-go/internal/models"
	"sentimentpipe/backend-go/internal/predictor"
	"sentimentpipe/backend-go/internal/store"
)

type ArtifactStore interface {
	JointHistory(ctx context.Context, limit int) ([]models.JointFeatureVector, error)
	SaveArtifact(ctx context.Context, a *predictor.Artifact) error
	LatestArtifact(ctx context.Context) (*predictor.Artifact, error)
}

// ModelService trains, persists and serves artifacts through a Registry.
type ModelService struct {
	pipeline config.Pipeline
	registry *predictor.Registry
	store    ArtifactStore
	metrics  *metrics.Metrics
	log      logging.Logger
	modelDir string

	trainMu sync.Mutex
}

func NewModelService(pipeline config.Pipeline, registry *predictor.Registry, st ArtifactStore, m *metrics.Metrics, log logging.Logger, modelDir string) *ModelService {
	if log == nil {
		log = logging.Discard()
	}
	return &ModelService{
		pipeline: pipeline,
		registry: registry,
		store:    st,
		metrics:  m,
		log:      log,
		modelDir: modelDir,
	}
}

func (s *ModelService) Registry() *predictor.Registry {
	return s.registry
}

// Retrain fits a new artifact on the stored joint history, persists it and
// promotes it. Any failure leaves the serving artifact in place.
func (s *ModelService) Retrain(ctx context.Context) (*predictor.Artifact, error) {
	s.trainMu.Lock()
	defer s.trainMu.Unlock()

	history, err := s.store.JointHistory(ctx, 0)
	if err != nil {
		s.metrics.ModelTraining("failed")
		return nil, fmt.Errorf("load training history: %w", err)
	}
	cfg := s.pipeline.Model
	rows, targets := predictor.BuildTrainingSet(history, cfg.TargetFeature, cfg.Horizon)

	a, err := predictor.Train(rows, targets, s.pipeline.Schema(), cfg)
	if err != nil {
		s.metrics.ModelTraining("failed")
		s.log.WithError(err).WithField("samples", len(rows)).Warn("model training failed")
		return nil, err
	}
	if err := s.publish(ctx, a); err != nil {
		s.metrics.ModelTraining("failed")
		return nil, err
	}

	s.metrics.ModelTraining("ok")
	s.metrics.ModelServing(a.TrainedAt)
	s.log.WithFields(logging.Fields{
		"version": a.Version,
		"samples": a.TrainSamples + a.TestSamples,
		"rmse":    a.Metrics.RMSE,
		"r2":      a.Metrics.R2,
	}).Info("model promoted")
	return a, nil
}

// publish validates a fresh artifact, then persists, exports and promotes
// it. An artifact that fails validation is never written anywhere.
func (s *ModelService) publish(ctx context.Context, a *predictor.Artifact) error {
	if err := a.Validate(); err != nil {
		s.log.WithError(err).Warn("trained artifact rejected")
		return err
	}
	s.registry.Stage(a)

	if err := s.store.SaveArtifact(ctx, a); err != nil {
		return fmt.Errorf("persist artifact: %w", err)
	}
	if err := s.export(a); err != nil {
		s.log.WithError(err).Warn("artifact export failed")
	}
	return s.registry.Promote(a)
}

// Reload serves the newest persisted artifact. An artifact older than the
// serving one is ignored.
func (s *ModelService) Reload(ctx context.Context) (*predictor.Artifact, error) {
	a, err := s.store.LatestArtifact(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil, predictor.ErrNoModel
	}
	if err != nil {
		return nil, err
	}
	if cur := s.registry.Current(); cur != nil && cur.Version == a.Version {
		return cur, nil
	}
	if err := s.registry.Promote(a); err != nil {
		if errors.Is(err, predictor.ErrStaleArtifact) {
			return s.registry.Current(), nil
		}
		return nil, err
	}
	s.metrics.ModelServing(a.TrainedAt)
	s.log.WithField("version", a.Version).Info("model loaded")
	return a, nil
}

func (s *ModelService) Predict(features map[string]float64) (float64, *predictor.Artifact, error) {
	v, a, err := s.registry.Predict(features)
	switch {
	case errors.Is(err, predictor.ErrNoModel):
		s.metrics.Prediction("no_model")
	case err != nil:
		s.metrics.Prediction("schema_mismatch")
	default:
		s.metrics.Prediction("ok")
	}
	return v, a, err
}

// Info describes the serving artifact.
func (s *ModelService) Info() (models.ModelInfo, error) {
	a := s.registry.Current()
	if a == nil {
		return models.ModelInfo{}, predictor.ErrNoModel
	}
	return a.Info(), nil
}

func (s *ModelService) State() predictor.State {
	return s.registry.State()
}

// export writes the artifact blob next to the database so it can be shipped
// without the store.
func (s *ModelService) export(a *predictor.Artifact) error {
	if s.modelDir == "" {
		return nil
	}
	blob, err := a.Encode()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.modelDir, 0o755); err != nil {
		return err
	}
	name := filepath.Join(s.modelDir, "model_"+a.Version+".gob")
	tmp := name + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, name)
}
