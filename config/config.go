// Package config loads the batch server configuration from environment
// variables. Configuration problems are fatal at startup: main prints the
// ConfigError and exits non-zero.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ConfigError reports a missing or invalid environment variable.
type ConfigError struct {
	Var     string
	Details string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error for %s: %s", e.Var, e.Details)
}

// Config holds every tunable of the batch server. Zero values are never
// used directly; LoadFromEnv fills defaults and Check rejects bad values.
type Config struct {
	// HTTP control surface
	HTTPPort int

	// Postgres
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string

	// Redis
	RedisURL string

	// Work distribution
	TotalWorkers     int
	ThreadsPerWorker int
	ChunkSize        int
	SkipLimit        int

	// Retry backoff
	BackoffInitial time.Duration
	BackoffMax     time.Duration

	// Update queue
	QueueVisibility   time.Duration
	HeartbeatInterval time.Duration
	MaxAttempts       int

	// Checkpointing
	BatchName            string
	CheckpointEnabled    bool
	CheckpointAutoResume bool

	// Collaborator services
	CrawlerBaseURL   string
	EmbeddingBaseURL string
	ImageBaseURL     string
	ServiceTimeout   time.Duration

	// Embedding pipeline
	EmbeddingChunkSize  int
	KeywordsPerPlace    int
	ShutdownGracePeriod time.Duration
}

// LoadFromEnv reads the environment and returns a Config with defaults
// applied. It does not validate; call Check before using the result.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		HTTPPort:             8080,
		DBHost:               envStr("DB_HOST", "localhost"),
		DBPort:               5432,
		DBUser:               envStr("DB_USER", "postgres"),
		DBPassword:           envStr("DB_PASSWORD", ""),
		DBName:               envStr("DB_NAME", "mohe"),
		RedisURL:             envStr("REDIS_URL", "redis://localhost:6379/0"),
		TotalWorkers:         3,
		ThreadsPerWorker:     1,
		ChunkSize:            10,
		SkipLimit:            50,
		BackoffInitial:       30 * time.Second,
		BackoffMax:           600 * time.Second,
		QueueVisibility:      300 * time.Second,
		HeartbeatInterval:    15 * time.Second,
		MaxAttempts:          3,
		BatchName:            envStr("BATCH_NAME", "place-ingestion-batch"),
		CheckpointEnabled:    true,
		CheckpointAutoResume: true,
		CrawlerBaseURL:       envStr("CRAWLER_BASE_URL", "http://localhost:9001"),
		EmbeddingBaseURL:     envStr("EMBEDDING_BASE_URL", "http://localhost:9002"),
		ImageBaseURL:         envStr("IMAGE_BASE_URL", "http://localhost:9003"),
		ServiceTimeout:       30 * time.Second,
		EmbeddingChunkSize:   1,
		KeywordsPerPlace:     5,
		ShutdownGracePeriod:  30 * time.Second,
	}

	var err error
	set := func(name string, dst *int) {
		if err != nil {
			return
		}
		if v := os.Getenv(name); v != "" {
			n, perr := strconv.Atoi(v)
			if perr != nil {
				err = &ConfigError{Var: name, Details: "not an integer: " + v}
				return
			}
			*dst = n
		}
	}

	set("HTTP_PORT", &cfg.HTTPPort)
	set("DB_PORT", &cfg.DBPort)
	set("TOTAL_WORKERS", &cfg.TotalWorkers)
	set("THREADS_PER_WORKER", &cfg.ThreadsPerWorker)
	set("CHUNK_SIZE", &cfg.ChunkSize)
	set("SKIP_LIMIT", &cfg.SkipLimit)
	set("MAX_ATTEMPTS", &cfg.MaxAttempts)
	set("EMBEDDING_CHUNK_SIZE", &cfg.EmbeddingChunkSize)
	set("KEYWORDS_PER_PLACE", &cfg.KeywordsPerPlace)
	if err != nil {
		return nil, err
	}

	if err := envDurationMS("BACKOFF_INITIAL_MS", &cfg.BackoffInitial); err != nil {
		return nil, err
	}
	if err := envDurationMS("BACKOFF_MAX_MS", &cfg.BackoffMax); err != nil {
		return nil, err
	}
	if err := envDurationSec("QUEUE_VISIBILITY_SECONDS", &cfg.QueueVisibility); err != nil {
		return nil, err
	}
	if err := envDurationSec("HEARTBEAT_SECONDS", &cfg.HeartbeatInterval); err != nil {
		return nil, err
	}
	if err := envDurationSec("SERVICE_TIMEOUT_SECONDS", &cfg.ServiceTimeout); err != nil {
		return nil, err
	}
	if err := envDurationSec("SHUTDOWN_GRACE_SECONDS", &cfg.ShutdownGracePeriod); err != nil {
		return nil, err
	}
	if err := envBool("CHECKPOINT_ENABLED", &cfg.CheckpointEnabled); err != nil {
		return nil, err
	}
	if err := envBool("CHECKPOINT_AUTO_RESUME", &cfg.CheckpointAutoResume); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Check validates the loaded configuration. Returns the first violation
// found as a ConfigError.
func (c *Config) Check() error {
	switch {
	case c.TotalWorkers <= 0:
		return &ConfigError{Var: "TOTAL_WORKERS", Details: "must be positive"}
	case c.ThreadsPerWorker < 1 || c.ThreadsPerWorker > 5:
		return &ConfigError{Var: "THREADS_PER_WORKER", Details: "must be between 1 and 5"}
	case c.ChunkSize <= 0:
		return &ConfigError{Var: "CHUNK_SIZE", Details: "must be positive"}
	case c.SkipLimit < 0:
		return &ConfigError{Var: "SKIP_LIMIT", Details: "must not be negative"}
	case c.MaxAttempts <= 0:
		return &ConfigError{Var: "MAX_ATTEMPTS", Details: "must be positive"}
	case c.BackoffInitial <= 0 || c.BackoffMax < c.BackoffInitial:
		return &ConfigError{Var: "BACKOFF_MAX_MS", Details: "must be >= BACKOFF_INITIAL_MS and positive"}
	case c.QueueVisibility <= 0:
		return &ConfigError{Var: "QUEUE_VISIBILITY_SECONDS", Details: "must be positive"}
	case c.HeartbeatInterval <= 0:
		return &ConfigError{Var: "HEARTBEAT_SECONDS", Details: "must be positive"}
	case c.BatchName == "":
		return &ConfigError{Var: "BATCH_NAME", Details: "must not be empty"}
	case c.DBHost == "":
		return &ConfigError{Var: "DB_HOST", Details: "must not be empty"}
	case c.RedisURL == "":
		return &ConfigError{Var: "REDIS_URL", Details: "must not be empty"}
	}
	return nil
}

// DBConnString renders the pgx connection string from the DB_* variables.
func (c *Config) DBConnString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName)
}

func envStr(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func envDurationMS(name string, dst *time.Duration) error {
	if v := os.Getenv(name); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &ConfigError{Var: name, Details: "not an integer: " + v}
		}
		*dst = time.Duration(n) * time.Millisecond
	}
	return nil
}

func envDurationSec(name string, dst *time.Duration) error {
	if v := os.Getenv(name); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &ConfigError{Var: name, Details: "not an integer: " + v}
		}
		*dst = time.Duration(n) * time.Second
	}
	return nil
}

func envBool(name string, dst *bool) error {
	if v := os.Getenv(name); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return &ConfigError{Var: name, Details: "not a boolean: " + v}
		}
		*dst = b
	}
	return nil
}
