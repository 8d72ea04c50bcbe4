package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// generateWorkerID creates a unique worker ID using hostname and PID
func generateWorkerID() string {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "worker"
	}
	return fmt.Sprintf("%s-%d", hostname, os.Getpid())
}

type Config struct {
	Port        string
	Environment string
	LogLevel    string

	// Database
	DatabaseURL string
	MongoDBURL  string
	MongoDBName string
	RedisURL    string

	// Neo4j
	Neo4jURL      string
	Neo4jUsername string
	Neo4jPassword string

	// Auth
	JWTSecret   string
	AdminAPIKey string

	// OpenAI embeddings
	OpenAIAPIKey        string
	EmbeddingModel      string
	EmbeddingEnabled    bool
	EmbeddingTimeout    time.Duration
	EmbeddingCacheSize  int
	EmbeddingCacheTTL   time.Duration
	EmbeddingBatchSize  int
	BreakerFailureRatio float64
	BreakerOpenTimeout  time.Duration
	BreakerMinRequests  uint32

	// Preference engine
	Preference PreferenceConfig

	// Taxonomy
	TaxonomyFile   string
	StrictTaxonomy bool

	// Worker
	WorkerID        string
	WorkerMax       int
	WorkerQueueSize int
	JobTimeout      time.Duration

	// Consumer (Redis Stream)
	ConsumerGroup           string
	ConsumerMaxRetries      int
	ConsumerPendingCheckSec int
	StreamMaxLen            int64

	// Rate limiting of the processing endpoints, per user per minute
	ProcessRateLimit int

	// CORS
	AllowedOrigins []string
}

// PreferenceConfig holds the tunable constants of classification and
// aggregation.
type PreferenceConfig struct {
	DecayFactor        float64
	MaxShare           float64
	ImplicitWeight     float64
	EmbeddingThreshold float64
	RuleConfidence     float64
	RuleWeight         float64
	EmbeddingWeight    float64
	SnapshotTopN       int
	GraphTopN          int
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		// Database
		DatabaseURL: getEnv("DATABASE_URL", ""),
		MongoDBURL:  getEnv("MONGODB_URL", ""),
		MongoDBName: getEnv("MONGODB_DATABASE", "preferences"),
		RedisURL:    getEnv("REDIS_URL", ""),

		// Neo4j
		Neo4jURL:      getEnv("NEO4J_URL", ""),
		Neo4jUsername: getEnv("NEO4J_USERNAME", "neo4j"),
		Neo4jPassword: getEnv("NEO4J_PASSWORD", ""),

		// Auth
		JWTSecret:   getEnv("JWT_SECRET", ""),
		AdminAPIKey: getEnv("ADMIN_API_KEY", ""),

		// OpenAI embeddings
		OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
		EmbeddingModel:      getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-ada-002"),
		EmbeddingEnabled:    getEnvBool("USE_EMBEDDINGS", true),
		EmbeddingTimeout:    getEnvDuration("PREF_EMBEDDING_TIMEOUT", 3*time.Second),
		EmbeddingCacheSize:  getEnvInt("EMBEDDING_CACHE_SIZE", 1024),
		EmbeddingCacheTTL:   getEnvDuration("EMBEDDING_CACHE_TTL", time.Hour),
		EmbeddingBatchSize:  getEnvInt("EMBEDDING_BATCH_SIZE", 64),
		BreakerFailureRatio: getEnvFloat("EMBEDDING_BREAKER_FAILURE_RATIO", 0.6),
		BreakerOpenTimeout:  getEnvDuration("EMBEDDING_BREAKER_OPEN_TIMEOUT", 30*time.Second),
		BreakerMinRequests:  uint32(getEnvInt("EMBEDDING_BREAKER_MIN_REQUESTS", 5)),

		Preference: PreferenceConfig{
			DecayFactor:        getEnvFloat("PREF_DECAY_FACTOR", 0.8),
			MaxShare:           getEnvFloat("PREF_MAX_SHARE", 0.5),
			ImplicitWeight:     getEnvFloat("PREF_IMPLICIT_WEIGHT", 0.5),
			EmbeddingThreshold: getEnvFloat("PREF_EMBEDDING_THRESHOLD", 0.4),
			RuleConfidence:     getEnvFloat("PREF_RULE_CONFIDENCE", 0.5),
			RuleWeight:         getEnvFloat("PREF_RULE_WEIGHT", 0.3),
			EmbeddingWeight:    getEnvFloat("PREF_EMBEDDING_WEIGHT", 0.7),
			SnapshotTopN:       getEnvInt("PREF_SNAPSHOT_TOP_N", 5),
			GraphTopN:          getEnvInt("PREF_GRAPH_TOP_N", 10),
		},

		// Taxonomy
		TaxonomyFile:   getEnv("TAXONOMY_FILE", ""),
		StrictTaxonomy: getEnvBool("PREF_STRICT_TAXONOMY", false),

		// Worker
		WorkerID:        getEnv("WORKER_ID", generateWorkerID()),
		WorkerMax:       getEnvInt("WORKER_MAX", 8),
		WorkerQueueSize: getEnvInt("WORKER_QUEUE_SIZE", 1000),
		JobTimeout:      getEnvDuration("WORKER_JOB_TIMEOUT", time.Minute),

		// Consumer
		ConsumerGroup:           getEnv("CONSUMER_GROUP", "preference-workers"),
		ConsumerMaxRetries:      getEnvInt("CONSUMER_MAX_RETRIES", 3),
		ConsumerPendingCheckSec: getEnvInt("CONSUMER_PENDING_CHECK_SEC", 30),
		StreamMaxLen:            int64(getEnvInt("STREAM_MAX_LEN", 10000)),

		ProcessRateLimit: getEnvInt("PROCESS_RATE_LIMIT", 60),

		// CORS
		AllowedOrigins: getEnvSlice("CORS_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
	}

	if err := cfg.Preference.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the tunable constants are usable.
func (p PreferenceConfig) Validate() error {
	inUnit := func(name string, v float64) error {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be within [0,1], got %v", name, v)
		}
		return nil
	}
	checks := []struct {
		name string
		v    float64
	}{
		{"PREF_DECAY_FACTOR", p.DecayFactor},
		{"PREF_MAX_SHARE", p.MaxShare},
		{"PREF_IMPLICIT_WEIGHT", p.ImplicitWeight},
		{"PREF_EMBEDDING_THRESHOLD", p.EmbeddingThreshold},
		{"PREF_RULE_CONFIDENCE", p.RuleConfidence},
		{"PREF_RULE_WEIGHT", p.RuleWeight},
		{"PREF_EMBEDDING_WEIGHT", p.EmbeddingWeight},
	}
	for _, c := range checks {
		if err := inUnit(c.name, c.v); err != nil {
			return err
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := parts[:0]
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
