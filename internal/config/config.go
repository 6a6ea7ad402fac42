package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/vicmordi/AIHelpdesk/internal/domain"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App       AppConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Logger    LoggerConfig
	Auth      AuthConfig
	Engine    EngineConfig
	Analysis  AnalysisConfig
	LLM       LLMConfig
	Embedding EmbeddingConfig
	Lock      LockConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	MetricsEnabled        bool
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// EngineConfig tunes the resolution decision engine.
type EngineConfig struct {
	MatchThreshold       float64
	GuidedFloor          float64
	AutoResolveThreshold float64
	CloseCallGap         float64
	TopK                 int
	UpstreamTimeout      time.Duration
}

// AnalysisConfig tunes recurrence clustering and drafting.
type AnalysisConfig struct {
	SimilarityThreshold float64
	MinClusterSize      int
	LookbackDays        int
	KBCoverageThreshold float64
	TopicTolerance      float64
	IntervalHours       int
	ResolvedThreshold   int
	SchedulerEnabled    bool
	Concurrency         int
}

// LLMConfig configures the optional OpenAI-compatible backend.
type LLMConfig struct {
	APIKey            string
	BaseURL           string
	Model             string
	EmbeddingModel    string
	RequestsPerSecond float64
	Temperature       float64
	MaxTokens         int
}

// EmbeddingConfig configures the local hashing embedder.
type EmbeddingConfig struct {
	Dimensions int
}

// LockConfig chooses the lock backend.
type LockConfig struct {
	Backend     string
	TicketTTL   time.Duration
	AnalysisTTL time.Duration
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "aihelpdesk"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			MetricsEnabled:        getEnvAsBool("METRICS_ENABLED", true),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Engine: EngineConfig{
			MatchThreshold:       getEnvAsFloat("RESOLUTION_MATCH_THRESHOLD", 0.6),
			GuidedFloor:          getEnvAsFloat("RESOLUTION_GUIDED_FLOOR", 0.35),
			AutoResolveThreshold: getEnvAsFloat("RESOLUTION_AUTO_RESOLVE_THRESHOLD", 0.7),
			CloseCallGap:         getEnvAsFloat("RESOLUTION_CLOSE_CALL_GAP", 0.1),
			TopK:                 getEnvAsInt("RESOLUTION_TOP_K", 3),
			UpstreamTimeout:      getEnvAsDuration("RESOLUTION_UPSTREAM_TIMEOUT", 20*time.Second),
		},
		Analysis: AnalysisConfig{
			SimilarityThreshold: getEnvAsFloat("KB_SIMILARITY_THRESHOLD", 0.85),
			MinClusterSize:      getEnvAsInt("KB_CLUSTER_MIN_SIZE", 3),
			LookbackDays:        getEnvAsInt("KB_RESOLVED_DAYS", 30),
			KBCoverageThreshold: getEnvAsFloat("KB_EXISTING_SIMILARITY", 0.88),
			TopicTolerance:      getEnvAsFloat("KB_TOPIC_TOLERANCE", 0.8),
			IntervalHours:       getEnvAsInt("KB_ANALYSIS_INTERVAL_HOURS", 24),
			ResolvedThreshold:   getEnvAsInt("KB_RESOLVED_THRESHOLD", 10),
			SchedulerEnabled:    getEnvAsBool("KB_SCHEDULER_ENABLED", true),
			Concurrency:         getEnvAsInt("KB_ANALYSIS_CONCURRENCY", 4),
		},
		LLM: LLMConfig{
			APIKey:            os.Getenv("OPENAI_API_KEY"),
			BaseURL:           os.Getenv("OPENAI_BASE_URL"),
			Model:             getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			EmbeddingModel:    getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			RequestsPerSecond: getEnvAsFloat("LLM_REQUESTS_PER_SECOND", 2),
			Temperature:       getEnvAsFloat("LLM_TEMPERATURE", 0.3),
			MaxTokens:         getEnvAsInt("LLM_MAX_TOKENS", 1500),
		},
		Embedding: EmbeddingConfig{
			Dimensions: getEnvAsInt("EMBEDDING_DIMENSIONS", 512),
		},
		Lock: LockConfig{
			Backend:     strings.ToLower(getEnv("LOCK_BACKEND", "redis")),
			TicketTTL:   getEnvAsDuration("LOCK_TICKET_TTL", 30*time.Second),
			AnalysisTTL: getEnvAsDuration("LOCK_ANALYSIS_TTL", 15*time.Minute),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	e := c.Engine
	if e.GuidedFloor < 0 || e.GuidedFloor > e.MatchThreshold || e.MatchThreshold > 1 {
		return fmt.Errorf("invalid engine thresholds: guided floor %.2f, match %.2f", e.GuidedFloor, e.MatchThreshold)
	}
	if e.AutoResolveThreshold <= 0 || e.AutoResolveThreshold > 1 {
		return fmt.Errorf("invalid RESOLUTION_AUTO_RESOLVE_THRESHOLD: %.2f", e.AutoResolveThreshold)
	}
	if c.Analysis.MinClusterSize < 2 {
		return fmt.Errorf("KB_CLUSTER_MIN_SIZE must be at least 2")
	}
	if c.Lock.Backend != "redis" && c.Lock.Backend != "local" {
		return fmt.Errorf("unknown LOCK_BACKEND %q", c.Lock.Backend)
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Lookback returns the analysis window.
func (a AnalysisConfig) Lookback() time.Duration {
	return time.Duration(a.LookbackDays) * 24 * time.Hour
}

// Interval returns the scheduler period.
func (a AnalysisConfig) Interval() time.Duration {
	if a.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(a.IntervalHours) * time.Hour
}

// Enabled reports whether a remote model is configured.
func (l LLMConfig) Enabled() bool {
	return strings.TrimSpace(l.APIKey) != ""
}

// WithOverrides applies per-organization settings to the engine thresholds.
// Out-of-range values are ignored and the configured default stays in force.
func (e EngineConfig) WithOverrides(s *domain.OrgSettings) EngineConfig {
	if s == nil {
		return e
	}
	if v := s.AutoResolveThreshold; v != nil && isUnitScore(*v) {
		e.AutoResolveThreshold = *v
	}
	if v := s.MatchThreshold; v != nil && isUnitScore(*v) && *v >= e.GuidedFloor {
		e.MatchThreshold = *v
	}
	return e
}

// WithOverrides applies per-organization settings to the analysis thresholds.
// Out-of-range values are ignored.
func (a AnalysisConfig) WithOverrides(s *domain.OrgSettings) AnalysisConfig {
	if s == nil {
		return a
	}
	if s.MinClusterSize != nil && *s.MinClusterSize >= 2 {
		a.MinClusterSize = *s.MinClusterSize
	}
	if v := s.SimilarityThreshold; v != nil && isUnitScore(*v) {
		a.SimilarityThreshold = *v
	}
	return a
}

// isUnitScore reports whether v is a usable threshold in (0, 1].
func isUnitScore(v float64) bool {
	return !math.IsNaN(v) && v > 0 && v <= 1
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}
