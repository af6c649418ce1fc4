// Package config loads process configuration from the environment at
// startup. There is no hot reload and no .env file loading: plain
// os.Getenv rather than pulling in a config library.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ConfigError signals a missing or malformed startup configuration value.
type ConfigError struct {
	Key string
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %v", e.Key, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Config is the full set of process-wide knobs. Loaded once in main and
// passed down by value/pointer; nothing in this module mutates it after
// Load returns.
type Config struct {
	// Database
	DatabaseURL string
	DBPoolMin   int32
	DBPoolMax   int32

	// Source adapters
	MempoolSpaceURL       string
	BlockchainInfoURL     string
	BlockchainInfoAPIKey  string
	BlockCypherURL        string
	BlockCypherAPIToken   string
	SourceRequestTimeout  time.Duration
	SourceRateLimitPerSec float64

	// Source health
	DegradedFailureThreshold int
	DownFailureThreshold     int
	HealthCooldown           time.Duration

	// Scheduler
	SchedulerInterval    time.Duration
	Asset                string
	Timeframes           []string
	MaxConcurrentTasks   int

	// Whale detection
	WhaleThresholdMode string // "fixed" | "percentile"
	TierLargeBTC       float64
	TierWhaleBTC       float64
	TierUltraWhaleBTC  float64
	TierLeviathanBTC   float64
	ExchangeTagsPath   string

	// Kill-switch / verification thresholds
	MinConfidence          float64
	StabilityThreshold     float64
	CompletenessThreshold  float64
	MaxDataAge             time.Duration
	MaxConflictingSignals  int
	NormalWeight           float64
	DegradedWeightFactor   float64

	// API
	APIAuthToken    string
	AllowedOrigins  string
	RateLimitRPS    float64
	RateLimitBurst  int
	HTTPPort        string

	// Cache (optional)
	RedisAddr string

	// Logging
	LogFormat string // "console" | "json"
	LogLevel  string
}

// Load reads Config from the environment, applying defaults and failing
// fast on malformed (not merely absent) values.
func Load() (Config, error) {
	var cfg Config
	var err error

	if cfg.DatabaseURL, err = requireEnv("DATABASE_URL"); err != nil {
		return cfg, err
	}

	if cfg.DBPoolMin, err = getEnvInt32OrDefault("DB_POOL_MIN", 2); err != nil {
		return cfg, err
	}
	if cfg.DBPoolMax, err = getEnvInt32OrDefault("DB_POOL_MAX", 10); err != nil {
		return cfg, err
	}

	cfg.MempoolSpaceURL = getEnvOrDefault("MEMPOOL_SPACE_URL", "https://mempool.space/api")
	cfg.BlockchainInfoURL = getEnvOrDefault("BLOCKCHAIN_INFO_URL", "https://blockchain.info")
	cfg.BlockchainInfoAPIKey = os.Getenv("BLOCKCHAIN_INFO_API_KEY")
	cfg.BlockCypherURL = getEnvOrDefault("BLOCKCYPHER_URL", "https://api.blockcypher.com/v1/btc/main")
	cfg.BlockCypherAPIToken = os.Getenv("BLOCKCYPHER_API_TOKEN")

	if cfg.SourceRequestTimeout, err = getEnvDurationOrDefault("SOURCE_REQUEST_TIMEOUT", 10*time.Second); err != nil {
		return cfg, err
	}
	if cfg.SourceRateLimitPerSec, err = getEnvFloatOrDefault("SOURCE_RATE_LIMIT_PER_SEC", 4.0); err != nil {
		return cfg, err
	}

	if cfg.DegradedFailureThreshold, err = getEnvIntOrDefault("HEALTH_DEGRADED_FAILURES", 2); err != nil {
		return cfg, err
	}
	if cfg.DownFailureThreshold, err = getEnvIntOrDefault("HEALTH_DOWN_FAILURES", 5); err != nil {
		return cfg, err
	}
	if cfg.HealthCooldown, err = getEnvDurationOrDefault("HEALTH_COOLDOWN", 5*time.Minute); err != nil {
		return cfg, err
	}

	if cfg.SchedulerInterval, err = getEnvDurationOrDefault("SCHEDULER_INTERVAL", 5*time.Minute); err != nil {
		return cfg, err
	}
	cfg.Asset = getEnvOrDefault("ASSET", "BTC")
	cfg.Timeframes = splitCSV(getEnvOrDefault("TIMEFRAMES", "1h"))
	if cfg.MaxConcurrentTasks, err = getEnvIntOrDefault("MAX_CONCURRENT_TIMEFRAMES", 4); err != nil {
		return cfg, err
	}

	cfg.WhaleThresholdMode = getEnvOrDefault("WHALE_THRESHOLD_MODE", "fixed")
	if cfg.TierLargeBTC, err = getEnvFloatOrDefault("WHALE_TIER_LARGE_BTC", 10); err != nil {
		return cfg, err
	}
	if cfg.TierWhaleBTC, err = getEnvFloatOrDefault("WHALE_TIER_WHALE_BTC", 100); err != nil {
		return cfg, err
	}
	if cfg.TierUltraWhaleBTC, err = getEnvFloatOrDefault("WHALE_TIER_ULTRA_WHALE_BTC", 500); err != nil {
		return cfg, err
	}
	if cfg.TierLeviathanBTC, err = getEnvFloatOrDefault("WHALE_TIER_LEVIATHAN_BTC", 1000); err != nil {
		return cfg, err
	}
	cfg.ExchangeTagsPath = os.Getenv("EXCHANGE_TAGS_PATH")

	if cfg.MinConfidence, err = getEnvFloatOrDefault("MIN_CONFIDENCE", 0.5); err != nil {
		return cfg, err
	}
	if cfg.StabilityThreshold, err = getEnvFloatOrDefault("STABILITY_THRESHOLD", 0.6); err != nil {
		return cfg, err
	}
	if cfg.CompletenessThreshold, err = getEnvFloatOrDefault("COMPLETENESS_THRESHOLD", 0.75); err != nil {
		return cfg, err
	}
	maxDataAgeHours, err := getEnvFloatOrDefault("MAX_DATA_AGE_HOURS", 6)
	if err != nil {
		return cfg, err
	}
	cfg.MaxDataAge = time.Duration(maxDataAgeHours * float64(time.Hour))
	if cfg.MaxConflictingSignals, err = getEnvIntOrDefault("MAX_CONFLICTING_SIGNALS", 2); err != nil {
		return cfg, err
	}
	if cfg.NormalWeight, err = getEnvFloatOrDefault("NORMAL_WEIGHT", 1.0); err != nil {
		return cfg, err
	}
	if cfg.DegradedWeightFactor, err = getEnvFloatOrDefault("DEGRADED_WEIGHT_FACTOR", 0.3); err != nil {
		return cfg, err
	}

	cfg.APIAuthToken = os.Getenv("API_AUTH_TOKEN")
	cfg.AllowedOrigins = getEnvOrDefault("ALLOWED_ORIGINS", "*")
	if cfg.RateLimitRPS, err = getEnvFloatOrDefault("RATE_LIMIT_RPS", 30); err != nil {
		return cfg, err
	}
	if cfg.RateLimitBurst, err = getEnvIntOrDefault("RATE_LIMIT_BURST", 5); err != nil {
		return cfg, err
	}
	cfg.HTTPPort = getEnvOrDefault("PORT", "8080")

	cfg.RedisAddr = os.Getenv("REDIS_ADDR")

	cfg.LogFormat = getEnvOrDefault("LOG_FORMAT", "console")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	return cfg, nil
}

func requireEnv(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", &ConfigError{Key: key, Err: fmt.Errorf("required but not set")}
	}
	return v, nil
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvIntOrDefault(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &ConfigError{Key: key, Err: err}
	}
	return n, nil
}

func getEnvInt32OrDefault(key string, def int32) (int32, error) {
	n, err := getEnvIntOrDefault(key, int(def))
	return int32(n), err
}

func getEnvFloatOrDefault(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, &ConfigError{Key: key, Err: err}
	}
	return f, nil
}

func getEnvDurationOrDefault(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, &ConfigError{Key: key, Err: err}
	}
	return d, nil
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
