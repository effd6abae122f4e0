package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Viewport  ViewportConfig
	Harness   HarnessConfig
	Tuner     TunerConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Collector CollectorConfig
	Webhook   WebhookConfig

	// CoefficientsFile is an optional YAML file with per-feature weight
	// overrides and rule toggles.
	CoefficientsFile string
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// ViewportConfig is the layout context geometry was captured under.
type ViewportConfig struct {
	Width  float64 // default: 1680
	Height float64 // default: 960
}

// HarnessConfig controls corpus evaluation.
type HarnessConfig struct {
	// Corpus is the directory holding one sub-directory per test case.
	Corpus string // default: "testdata/corpus"

	// Workers bounds concurrently evaluated cases; 0 means GOMAXPROCS.
	Workers int

	// SkipPresenceCheck keeps mismatches whose expected value occurs
	// nowhere in the document as scored failures.
	SkipPresenceCheck bool
}

// TunerConfig controls the annealing schedule.
type TunerConfig struct {
	Iterations   int     // default: 500
	Step         float64 // default: 0.3
	Temperature  float64 // default: 10
	Cooling      float64 // default: 0.95
	StepsPerTemp int     // default: 20
	Patience     int     // default: 150
	Seed         uint64  // 0 picks a random seed
}

// CacheConfig controls the cost memo used while tuning.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached costs.
	MaxEntries int // default: 10000
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 20

	// Burst is the maximum burst size per API key.
	Burst int // default: 40
}

// CollectorConfig controls the headless browser that captures fixtures.
type CollectorConfig struct {
	Headless   bool // default: true
	NoSandbox  bool // default: false
	BrowserBin string
	Stealth    bool // default: true

	// Timeout bounds one capture, navigation included.
	Timeout time.Duration // default: 45s

	// Settle is how long to wait after load before measuring.
	Settle time.Duration // default: 1s
}

// WebhookConfig controls the notification sent when tuning completes.
type WebhookConfig struct {
	URL     string
	Secret  string
	Timeout time.Duration // default: 10s
	Retries int           // default: 3
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("PRODRANK_HOST", "0.0.0.0"),
			Port: envIntOr("PRODRANK_PORT", 8080),
			Mode: envOr("PRODRANK_MODE", "release"),
		},
		Log: LogConfig{
			Level:  envOr("PRODRANK_LOG_LEVEL", "info"),
			Format: envOr("PRODRANK_LOG_FORMAT", "json"),
		},
		Viewport: ViewportConfig{
			Width:  envFloatOr("PRODRANK_VIEWPORT_WIDTH", 1680),
			Height: envFloatOr("PRODRANK_VIEWPORT_HEIGHT", 960),
		},
		Harness: HarnessConfig{
			Corpus:            envOr("PRODRANK_CORPUS", "testdata/corpus"),
			Workers:           envIntOr("PRODRANK_WORKERS", 0),
			SkipPresenceCheck: envBoolOr("PRODRANK_SKIP_PRESENCE_CHECK", false),
		},
		Tuner: TunerConfig{
			Iterations:   envIntOr("PRODRANK_TUNE_ITERATIONS", 500),
			Step:         envFloatOr("PRODRANK_TUNE_STEP", 0.3),
			Temperature:  envFloatOr("PRODRANK_TUNE_TEMPERATURE", 10),
			Cooling:      envFloatOr("PRODRANK_TUNE_COOLING", 0.95),
			StepsPerTemp: envIntOr("PRODRANK_TUNE_STEPS_PER_TEMP", 20),
			Patience:     envIntOr("PRODRANK_TUNE_PATIENCE", 150),
			Seed:         envUintOr("PRODRANK_TUNE_SEED", 0),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("PRODRANK_AUTH_ENABLED", true),
			APIKeys: envSliceOr("PRODRANK_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("PRODRANK_RATE_RPS", 20.0),
			Burst:             envIntOr("PRODRANK_RATE_BURST", 40),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("PRODRANK_CACHE_MAX_ENTRIES", 10000),
		},
		Collector: CollectorConfig{
			Headless:   envBoolOr("PRODRANK_HEADLESS", true),
			NoSandbox:  envBoolOr("PRODRANK_NO_SANDBOX", false),
			BrowserBin: os.Getenv("PRODRANK_BROWSER_BIN"),
			Stealth:    envBoolOr("PRODRANK_STEALTH", true),
			Timeout:    envDurationOr("PRODRANK_COLLECT_TIMEOUT", 45*time.Second),
			Settle:     envDurationOr("PRODRANK_COLLECT_SETTLE", time.Second),
		},
		Webhook: WebhookConfig{
			URL:     os.Getenv("PRODRANK_WEBHOOK_URL"),
			Secret:  os.Getenv("PRODRANK_WEBHOOK_SECRET"),
			Timeout: envDurationOr("PRODRANK_WEBHOOK_TIMEOUT", 10*time.Second),
			Retries: envIntOr("PRODRANK_WEBHOOK_RETRIES", 3),
		},
		CoefficientsFile: os.Getenv("PRODRANK_COEFFICIENTS"),
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envUintOr(key string, fallback uint64) uint64 {
	if v := os.Getenv(key); v != "" {
		if u, err := strconv.ParseUint(v, 10, 64); err == nil {
			return u
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
