// Package config centralizes all engine configuration, read once at
// process start and passed explicitly to every component (no component
// reads os.Getenv directly).
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds every tunable the engine needs across its three
// processes (api, scheduler/poller, executor).
type Config struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	RedisHost string
	RedisPort string

	EtcdEndpoints     []string
	LeaderElectionTTL int

	APIPort string

	// Auth
	JWTSecret      string
	JWTIssuer      string
	AuthEnabled    bool
	APIKeyCacheTTL time.Duration

	// Poller / scheduler (C7)
	PollInterval      time.Duration
	ReconcileInterval time.Duration
	BatchLimit        int
	StuckThreshold    time.Duration

	// Executor (C8)
	WorkerCount       int
	AgentTimeout      time.Duration
	MaxRetriesDefault int

	// Retry backoff (spec.md §4.8.1)
	BackoffBase   time.Duration
	BackoffFactor float64
	BackoffCap    time.Duration
	BackoffJitter float64

	// Quality assessment (spec.md §4.8.3)
	QualityLengthThreshold int
	QualityHighThreshold   float64

	// Log storage (S3-compatible, optional)
	LogStoreBucket   string
	LogStoreRegion   string
	LogStoreEndpoint string
	LogStorePrefix   string
	LocalLogCacheDir string

	// AI advisory precheck (optional, fail-open)
	AdvisoryServiceURL string

	// Agent (spec.md §6.1): the opaque AI collaborator the executor invokes.
	AgentServiceURL string

	// Shutdown
	ShutdownGracePeriod time.Duration
}

// Load reads configuration from the environment, falling back to
// sensible defaults for local development.
func Load() *Config {
	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "scheduler"),
		DBPassword: getEnv("DB_PASSWORD", "password"),
		DBName:     getEnv("DB_NAME", "scheduler"),

		RedisHost: getEnv("REDIS_HOST", "localhost"),
		RedisPort: getEnv("REDIS_PORT", "6379"),

		EtcdEndpoints:     []string{getEnv("ETCD_ENDPOINTS", "")},
		LeaderElectionTTL: getEnvAsInt("LEADER_ELECTION_TTL", 15),

		APIPort: getEnv("API_PORT", "8080"),

		JWTSecret:      getEnv("JWT_SECRET", ""),
		JWTIssuer:      getEnv("JWT_ISSUER", "ai-task-scheduler"),
		AuthEnabled:    getEnvAsBool("AUTH_ENABLED", false),
		APIKeyCacheTTL: getEnvAsDuration("API_KEY_CACHE_TTL", 24*time.Hour),

		PollInterval:      getEnvAsDuration("POLL_INTERVAL", 30*time.Second),
		ReconcileInterval: getEnvAsDuration("RECONCILE_INTERVAL", 30*time.Second),
		BatchLimit:        getEnvAsInt("BATCH_LIMIT", 100),
		StuckThreshold:    getEnvAsDuration("STUCK_THRESHOLD", 30*time.Minute),

		WorkerCount:       getEnvAsInt("WORKER_COUNT", 4),
		AgentTimeout:      getEnvAsDuration("AGENT_TIMEOUT", 120*time.Second),
		MaxRetriesDefault: getEnvAsInt("MAX_RETRIES_DEFAULT", 3),

		BackoffBase:   getEnvAsDuration("BACKOFF_BASE", 60*time.Second),
		BackoffFactor: getEnvAsFloat("BACKOFF_FACTOR", 2.0),
		BackoffCap:    getEnvAsDuration("BACKOFF_CAP", time.Hour),
		BackoffJitter: getEnvAsFloat("BACKOFF_JITTER", 0.2),

		QualityLengthThreshold: getEnvAsInt("QUALITY_LENGTH_THRESHOLD", 240),
		QualityHighThreshold:   getEnvAsFloat("QUALITY_HIGH_THRESHOLD", 0.6),

		LogStoreBucket:   getEnv("LOG_STORE_BUCKET", ""),
		LogStoreRegion:   getEnv("LOG_STORE_REGION", "us-east-1"),
		LogStoreEndpoint: getEnv("LOG_STORE_ENDPOINT", ""),
		LogStorePrefix:   getEnv("LOG_STORE_PREFIX", "executions/"),
		LocalLogCacheDir: getEnv("LOCAL_LOG_CACHE_DIR", "/tmp/ai-task-scheduler-logs"),

		AdvisoryServiceURL: getEnv("ADVISORY_SERVICE_URL", ""),
		AgentServiceURL:    getEnv("AGENT_SERVICE_URL", ""),

		ShutdownGracePeriod: getEnvAsDuration("SHUTDOWN_GRACE_PERIOD", 60*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	return value == "true" || value == "1" || value == "yes"
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return value
	}
	return fallback
}
