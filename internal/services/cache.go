package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"sentimentpipe/backend-go/internal/config"
	"sentimentpipe/backend-go/internal/models"
)

// keyPrefix keeps pipeline entries apart from anything else sharing the Redis db.
const keyPrefix = "sentimentpipe:"

const (
	snapshotKey      = "analysis:v1:latest"
	memSweepInterval = time.Minute
)

// Cache stores opaque blobs. Get reports a miss for expired, absent or
// unreadable entries alike.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Ping(ctx context.Context) error
	Kind() string
}

// NewCache connects to REDIS_URL and falls back to process memory when the
// URL is invalid or the server does not answer a ping within two seconds.
func NewCache(cfg config.Config) Cache {
	opt, err := redis.ParseURL(strings.TrimSpace(cfg.RedisURL))
	if err != nil {
		return NewMemoryCache()
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return NewMemoryCache()
	}
	return &RedisCache{client: client, prefix: keyPrefix}
}

type RedisCache struct {
	client *redis.Client
	prefix string
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	blob, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		// redis.Nil is a plain miss; anything else degrades to one
		return nil, false
	}
	return blob, true
}

func (c *RedisCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return c.client.Set(ctx, c.prefix+key, val, ttl).Err()
}

func (c *RedisCache) Ping(ctx context.Context) error { return c.client.Ping(ctx).Err() }

func (c *RedisCache) Kind() string { return "redis" }

// MemoryCache is the single-process fallback. Expired entries are dropped
// lazily on Get and in a sweep at most once per memSweepInterval on Set.
type MemoryCache struct {
	mu        sync.Mutex
	entries   map[string]memEntry
	lastSweep time.Time
	now       func() time.Time
}

type memEntry struct {
	blob      []byte
	expiresAt time.Time
}

func (e memEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memEntry), now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[keyPrefix+key]
	if !ok {
		return nil, false
	}
	if e.expired(c.now()) {
		delete(c.entries, keyPrefix+key)
		return nil, false
	}
	return e.blob, true
}

func (c *MemoryCache) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if now.Sub(c.lastSweep) >= memSweepInterval {
		for k, e := range c.entries {
			if e.expired(now) {
				delete(c.entries, k)
			}
		}
		c.lastSweep = now
	}
	e := memEntry{blob: append([]byte(nil), val...)}
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}
	c.entries[keyPrefix+key] = e
	return nil
}

// Len counts stored entries, including expired ones not yet swept.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *MemoryCache) Ping(context.Context) error { return nil }

func (c *MemoryCache) Kind() string { return "memory" }

var errNoSnapshotCache = errors.New("no cache configured")

// SnapshotCache keeps the latest AnalysisResult together with the moment it
// was fetched, which drives the fresh/stale decision.
type SnapshotCache struct {
	cache Cache
}

type snapshotEntry struct {
	FetchedAt string                `json:"fetched_at"`
	Result    models.AnalysisResult `json:"result"`
}

func NewSnapshotCache(c Cache) *SnapshotCache {
	return &SnapshotCache{cache: c}
}

func (s *SnapshotCache) Put(ctx context.Context, res models.AnalysisResult, fetchedAt time.Time, ttl time.Duration) error {
	if s == nil || s.cache == nil {
		return errNoSnapshotCache
	}
	blob, err := json.Marshal(snapshotEntry{FetchedAt: fetchedAt.UTC().Format(time.RFC3339), Result: res})
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, snapshotKey, blob, ttl)
}

// Latest returns the cached result and its fetch time. Entries without a run
// id or with an unparseable timestamp count as misses.
func (s *SnapshotCache) Latest(ctx context.Context) (models.AnalysisResult, time.Time, bool) {
	if s == nil || s.cache == nil {
		return models.AnalysisResult{}, time.Time{}, false
	}
	blob, ok := s.cache.Get(ctx, snapshotKey)
	if !ok {
		return models.AnalysisResult{}, time.Time{}, false
	}
	var e snapshotEntry
	if err := json.Unmarshal(blob, &e); err != nil || strings.TrimSpace(e.Result.RunID) == "" {
		return models.AnalysisResult{}, time.Time{}, false
	}
	fetchedAt, err := time.Parse(time.RFC3339, e.FetchedAt)
	if err != nil {
		return models.AnalysisResult{}, time.Time{}, false
	}
	return e.Result, fetchedAt, true
}
