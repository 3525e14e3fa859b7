package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"sentimentpipe/backend-go/internal/models"
	"sentimentpipe/backend-go/internal/predictor"
)

var ErrNotFound = errors.New("not found")

// ResultRecord stores one JSON document keyed by (source key, time). The
// joint key holds whole AnalysisResults; source keys hold summaries.
type ResultRecord struct {
	ID        uint      `gorm:"primaryKey"`
	RunID     string    `gorm:"size:64;index"`
	SourceKey string    `gorm:"size:64;index:idx_source_created,priority:1"`
	CreatedAt time.Time `gorm:"index:idx_source_created,priority:2"`
	Payload   []byte
}

// ArtifactRecord stores a model artifact as an opaque blob with searchable metadata.
type ArtifactRecord struct {
	Version   string    `gorm:"primaryKey;size:64"`
	TrainedAt time.Time `gorm:"index"`
	Target    string    `gorm:"size:128"`
	Schema    string
	Metrics   string
	Blob      []byte
}

type Store struct {
	db *gorm.DB
}

// Open connects to the sqlite file at path (":memory:" for tests) and migrates.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// sqlite allows one writer; a single connection also keeps :memory: shared.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&ResultRecord{}, &ArtifactRecord{}); err != nil {
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// SaveResult writes the joint result and one row per source summary in one transaction.
func (s *Store) SaveResult(ctx context.Context, res models.AnalysisResult) error {
	joint, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	rows := []ResultRecord{{RunID: res.RunID, SourceKey: models.JointKey, CreatedAt: res.GeneratedAt, Payload: joint}}
	for _, sum := range res.Summaries {
		b, err := json.Marshal(sum)
		if err != nil {
			return fmt.Errorf("encode summary %s: %w", sum.Source, err)
		}
		rows = append(rows, ResultRecord{RunID: res.RunID, SourceKey: sum.Source, CreatedAt: res.GeneratedAt, Payload: b})
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&rows).Error
	})
}

func (s *Store) LatestResult(ctx context.Context) (models.AnalysisResult, error) {
	var out models.AnalysisResult
	var rec ResultRecord
	err := s.db.WithContext(ctx).
		Where("source_key = ?", models.JointKey).
		Order("created_at desc, id desc").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return out, ErrNotFound
	}
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(rec.Payload, &out); err != nil {
		return out, fmt.Errorf("decode result: %w", err)
	}
	return out, nil
}

// SourceHistory returns up to limit summaries for one source, oldest first.
func (s *Store) SourceHistory(ctx context.Context, source string, limit int) ([]models.SourceFeatureSummary, error) {
	var recs []ResultRecord
	if err := s.recent(ctx, source, limit).Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]models.SourceFeatureSummary, 0, len(recs))
	for i := len(recs) - 1; i >= 0; i-- {
		var sum models.SourceFeatureSummary
		if err := json.Unmarshal(recs[i].Payload, &sum); err != nil {
			return nil, fmt.Errorf("decode summary: %w", err)
		}
		out = append(out, sum)
	}
	return out, nil
}

// JointHistory returns the feature vectors of up to limit stored runs,
// oldest first. limit <= 0 means all.
func (s *Store) JointHistory(ctx context.Context, limit int) ([]models.JointFeatureVector, error) {
	var recs []ResultRecord
	if err := s.recent(ctx, models.JointKey, limit).Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]models.JointFeatureVector, 0, len(recs))
	for i := len(recs) - 1; i >= 0; i-- {
		var res struct {
			GeneratedAt time.Time                 `json:"generated_at"`
			Features    models.JointFeatureVector `json:"features"`
		}
		if err := json.Unmarshal(recs[i].Payload, &res); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
		if res.Features.AsOf.IsZero() {
			res.Features.AsOf = res.GeneratedAt
		}
		out = append(out, res.Features)
	}
	return out, nil
}

func (s *Store) recent(ctx context.Context, key string, limit int) *gorm.DB {
	q := s.db.WithContext(ctx).Where("source_key = ?", key).Order("created_at desc, id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	return q
}

func (s *Store) SaveArtifact(ctx context.Context, a *predictor.Artifact) error {
	blob, err := a.Encode()
	if err != nil {
		return err
	}
	schema, err := json.Marshal(a.FeatureSchema)
	if err != nil {
		return err
	}
	metrics, err := json.Marshal(a.Metrics)
	if err != nil {
		return err
	}
	rec := ArtifactRecord{
		Version:   a.Version,
		TrainedAt: a.TrainedAt,
		Target:    a.Target,
		Schema:    string(schema),
		Metrics:   string(metrics),
		Blob:      blob,
	}
	return s.db.WithContext(ctx).Create(&rec).Error
}

// LatestArtifact decodes and validates the newest stored artifact.
func (s *Store) LatestArtifact(ctx context.Context) (*predictor.Artifact, error) {
	var rec ArtifactRecord
	err := s.db.WithContext(ctx).Order("trained_at desc").First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return predictor.Decode(rec.Blob)
}
