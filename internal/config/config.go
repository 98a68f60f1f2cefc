// Package config provides configuration loading and management for the application.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all application configuration
type Config struct {
	// HTTP server port
	Port string `toml:"port"`

	// Log file path; empty logs to stderr
	LogFile string `toml:"log_file"`

	// Record store backend ("memory" or "leveldb") and its path
	StoreBackend string `toml:"store_backend"`
	StorePath    string `toml:"store_path"`

	// Remote ledger; an empty URL selects the in-memory ledger
	LedgerURL     string        `toml:"ledger_url"`
	LedgerAPIKey  string        `toml:"ledger_api_key"`
	LedgerTimeout time.Duration `toml:"ledger_timeout"`

	// Circuit breaker settings for the remote ledger
	BreakerFailures int           `toml:"breaker_failures"`
	BreakerCooldown time.Duration `toml:"breaker_cooldown"`
	// Successful trial calls needed to close the breaker again
	BreakerSuccesses int `toml:"breaker_successes"`

	// Require an X-Signature on every mutating request
	RequireSignatures bool          `toml:"require_signatures"`
	SignatureMaxTTL   time.Duration `toml:"signature_max_ttl"`

	RateLimitRPS   float64 `toml:"rate_limit_rps"`
	RateLimitBurst int     `toml:"rate_limit_burst"`

	// Event webhook export; disabled when the URL is empty
	WebhookURL       string        `toml:"webhook_url"`
	WebhookAPIKey    string        `toml:"webhook_api_key"`
	WebhookBatchSize int           `toml:"webhook_batch_size"`
	WebhookInterval  time.Duration `toml:"webhook_interval"`

	// OpenTelemetry endpoint for observability
	OtelEndpoint    string  `toml:"otel_endpoint"`
	OtelSampleRatio float64 `toml:"otel_sample_ratio"`

	// Pools created at startup
	Pools []PoolConfig `toml:"pools"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Port:              "8080",
		StoreBackend:      "memory",
		StorePath:         "data/staking",
		LedgerTimeout:     10 * time.Second,
		BreakerFailures:   5,
		BreakerCooldown:   30 * time.Second,
		BreakerSuccesses:  2,
		RequireSignatures: true,
		SignatureMaxTTL:   5 * time.Minute,
		RateLimitRPS:      10,
		RateLimitBurst:    20,
		WebhookBatchSize:  100,
		WebhookInterval:   time.Minute,
		OtelSampleRatio:   1,
	}
}

// Load reads CONFIG_FILE when set and then applies environment overrides
func Load() (Config, error) {
	cfg := Default()
	if path, ok := GetEnv("CONFIG_FILE"); ok && path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnv()

	for i, p := range cfg.Pools {
		if err := p.Validate(); err != nil {
			return Config{}, fmt.Errorf("pool %d: %w", i, err)
		}
	}
	return cfg, nil
}

// LoadFile decodes a TOML file over cfg
func LoadFile(path string, cfg *Config) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = GetEnvOrDefault("PORT", c.Port)
	c.LogFile = GetEnvOrDefault("LOG_FILE", c.LogFile)
	c.StoreBackend = strings.ToLower(GetEnvOrDefault("STORE_BACKEND", c.StoreBackend))
	c.StorePath = GetEnvOrDefault("STORE_PATH", c.StorePath)
	c.LedgerURL = GetEnvOrDefault("LEDGER_URL", c.LedgerURL)
	c.LedgerAPIKey = GetEnvOrDefault("LEDGER_API_KEY", c.LedgerAPIKey)
	c.LedgerTimeout = GetEnvAsDuration("LEDGER_TIMEOUT", c.LedgerTimeout)
	c.BreakerFailures = GetEnvAsInt("BREAKER_FAILURES", c.BreakerFailures)
	c.BreakerCooldown = GetEnvAsDuration("BREAKER_COOLDOWN", c.BreakerCooldown)
	c.BreakerSuccesses = GetEnvAsInt("BREAKER_SUCCESSES", c.BreakerSuccesses)
	c.RequireSignatures = GetEnvAsBool("REQUIRE_SIGNATURES", c.RequireSignatures)
	c.SignatureMaxTTL = GetEnvAsDuration("SIGNATURE_MAX_TTL", c.SignatureMaxTTL)
	c.RateLimitRPS = GetEnvAsFloat("RATE_LIMIT_RPS", c.RateLimitRPS)
	c.RateLimitBurst = GetEnvAsInt("RATE_LIMIT_BURST", c.RateLimitBurst)
	c.WebhookURL = GetEnvOrDefault("WEBHOOK_URL", c.WebhookURL)
	c.WebhookAPIKey = GetEnvOrDefault("WEBHOOK_API_KEY", c.WebhookAPIKey)
	c.WebhookBatchSize = GetEnvAsInt("WEBHOOK_BATCH_SIZE", c.WebhookBatchSize)
	c.WebhookInterval = GetEnvAsDuration("WEBHOOK_INTERVAL", c.WebhookInterval)
	c.OtelEndpoint = GetEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", c.OtelEndpoint)
	c.OtelSampleRatio = GetEnvAsFloat("OTEL_SAMPLE_RATIO", c.OtelSampleRatio)
}

// GetEnv retrieves an environment variable and whether it exists
func GetEnv(key string) (string, bool) {
	value, exists := os.LookupEnv(key)
	return value, exists
}

// GetEnvOrDefault retrieves an environment variable or returns the default value if not set
func GetEnvOrDefault(key, defaultValue string) string {
	if value, exists := GetEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetEnvAsInt retrieves an environment variable as an integer with a default value
func GetEnvAsInt(key string, defaultValue int) int {
	if value, exists := GetEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvAsFloat retrieves an environment variable as a float with a default value
func GetEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := GetEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// GetEnvAsBool retrieves an environment variable as a boolean with a default value
func GetEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := GetEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// GetEnvAsDuration retrieves an environment variable as a duration with a default value
func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := GetEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
