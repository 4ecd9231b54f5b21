package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/storm-data-clusters/internal/timezone"
)

// DefaultArchiveURL is the NCEI directory listing the yearly details files.
const DefaultArchiveURL = "https://www1.ncdc.noaa.gov/pub/data/swdi/stormevents/csvfiles/"

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Archive retrieval.
	WorkDir      string
	ArchiveURL   string
	FetchWorkers int
	FetchTimeout time.Duration
	FetchMaxAge  time.Duration

	// Defaults for load and cluster queries.
	TargetTimeZone    string
	ClusterEpsKm      float64
	ClusterEpsMin     float64
	ClusterMinSamples int
	ClusterAlgorithm  string

	// Coordinate time zone fallback.
	TZLookupAPIKey    string
	TZLookupEnabled   bool
	TZLookupTimeout   time.Duration
	TZLookupCacheSize int
	TZLookupCacheDir  string

	// Cluster summary sink.
	KafkaEnabled       bool
	KafkaBrokers       []string
	KafkaClusterTopic  string
	BatchSize          int
	BatchFlushInterval time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	fetchTimeout, err := parsePositiveDuration("FETCH_TIMEOUT", "2m")
	if err != nil {
		return nil, err
	}
	fetchMaxAge, err := parseNonNegativeDuration("FETCH_MAX_AGE", "24h")
	if err != nil {
		return nil, err
	}
	tzTimeout, err := parsePositiveDuration("TZLOOKUP_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	epsKm, err := parseFloat("CLUSTER_EPS_KM", "20")
	if err != nil {
		return nil, err
	}
	epsMin, err := parseFloat("CLUSTER_EPS_MIN", "15")
	if err != nil {
		return nil, err
	}
	minSamples, err := parseInt("CLUSTER_MIN_SAMPLES", "3")
	if err != nil {
		return nil, err
	}

	apiKey := os.Getenv("TZLOOKUP_API_KEY")
	tzEnabled := apiKey != ""
	if v := os.Getenv("TZLOOKUP_ENABLED"); v != "" {
		tzEnabled = v == "true"
	}

	workDir := sharedcfg.EnvOrDefault("WORK_DIR", filepath.Join(os.TempDir(), "storm-data-clusters"))

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		WorkDir:      workDir,
		ArchiveURL:   sharedcfg.EnvOrDefault("ARCHIVE_URL", DefaultArchiveURL),
		FetchWorkers: parsePositiveInt("FETCH_WORKERS", 4),
		FetchTimeout: fetchTimeout,
		FetchMaxAge:  fetchMaxAge,

		TargetTimeZone:    sharedcfg.EnvOrDefault("TARGET_TIMEZONE", "CST"),
		ClusterEpsKm:      epsKm,
		ClusterEpsMin:     epsMin,
		ClusterMinSamples: minSamples,
		ClusterAlgorithm:  sharedcfg.EnvOrDefault("CLUSTER_ALGORITHM", "density"),

		TZLookupAPIKey:    apiKey,
		TZLookupEnabled:   tzEnabled,
		TZLookupTimeout:   tzTimeout,
		TZLookupCacheSize: parsePositiveInt("TZLOOKUP_CACHE_SIZE", 1000),
		TZLookupCacheDir:  sharedcfg.EnvOrDefault("TZLOOKUP_CACHE_DIR", filepath.Join(workDir, "tzcache")),

		KafkaEnabled:       os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaClusterTopic:  sharedcfg.EnvOrDefault("KAFKA_CLUSTER_TOPIC", "storm-clusters"),
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,
	}

	if cfg.ArchiveURL == "" {
		return nil, errors.New("ARCHIVE_URL is required")
	}
	if _, err := timezone.Resolve(cfg.TargetTimeZone); err != nil {
		return nil, fmt.Errorf("invalid TARGET_TIMEZONE: %w", err)
	}
	if cfg.ClusterEpsKm <= 0 {
		return nil, errors.New("CLUSTER_EPS_KM must be positive")
	}
	if cfg.ClusterEpsMin < 0 {
		return nil, errors.New("CLUSTER_EPS_MIN must not be negative")
	}
	if cfg.ClusterMinSamples < 1 {
		return nil, errors.New("CLUSTER_MIN_SAMPLES must be at least 1")
	}
	if cfg.TZLookupEnabled && cfg.TZLookupAPIKey == "" {
		return nil, errors.New("TZLOOKUP_ENABLED is true but TZLOOKUP_API_KEY is not set")
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required")
		}
		if cfg.KafkaClusterTopic == "" {
			return nil, errors.New("KAFKA_CLUSTER_TOPIC is required")
		}
	}

	return cfg, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseNonNegativeDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseFloat(key, def string) (float64, error) {
	f, err := strconv.ParseFloat(sharedcfg.EnvOrDefault(key, def), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return f, nil
}

func parseInt(key, def string) (int, error) {
	n, err := strconv.Atoi(sharedcfg.EnvOrDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

// parsePositiveInt falls back to def on malformed or non-positive values.
func parsePositiveInt(key string, def int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return def
}
