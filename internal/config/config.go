package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port               string
	RedisURL           string
	DatabasePath       string
	PipelineConfigPath string
	ModelDir           string
	CollectorBaseURL   string
	CacheTTLResult     time.Duration
	CacheTTLResultHard time.Duration
	RequestTimeout     time.Duration
	PipelineTimeout    time.Duration
	RefreshInterval    time.Duration
	RateLimitPerMin    int
	CircuitFailLimit   int
	CircuitCooldown    time.Duration
	JWTSecret          string
	KafkaBrokers       []string
	KafkaTopic         string
	ServiceVersion     string
}

func Load() Config {
	return Config{
		Port:               getEnv("PORT", "8080"),
		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		DatabasePath:       getEnv("DATABASE_PATH", "data/pipeline.db"),
		PipelineConfigPath: getEnv("PIPELINE_CONFIG", ""),
		ModelDir:           getEnv("MODEL_DIR", "data/models"),
		CollectorBaseURL:   getEnv("COLLECTOR_BASE_URL", "http://localhost:8001"),
		CacheTTLResult:     getEnvDuration("CACHE_TTL_RESULT", 5*time.Minute),
		CacheTTLResultHard: getEnvDuration("CACHE_TTL_RESULT_HARD", 30*time.Minute),
		RequestTimeout:     getEnvDuration("REQUEST_TIMEOUT", 12*time.Second),
		PipelineTimeout:    getEnvDuration("PIPELINE_TIMEOUT", 90*time.Second),
		RefreshInterval:    getEnvDuration("REFRESH_INTERVAL", 15*time.Minute),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MIN", 120),
		CircuitFailLimit:   getEnvInt("CIRCUIT_FAIL_LIMIT", 3),
		CircuitCooldown:    getEnvDuration("CIRCUIT_COOLDOWN", 20*time.Second),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		KafkaBrokers:       getEnvList("KAFKA_BROKERS"),
		KafkaTopic:         getEnv("KAFKA_TOPIC", "sentiment.analysis"),
		ServiceVersion:     getEnv("SERVICE_VERSION", "dev"),
	}
}

func getEnv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// getEnvDuration reads whole seconds.
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return time.Duration(i) * time.Second
}

func getEnvList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	out := []string{}
	for _, p := range strings.Split(v, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
