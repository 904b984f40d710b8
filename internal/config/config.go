package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the staydex service configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Cache      CacheConfig      `yaml:"cache"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Browser    BrowserConfig    `yaml:"browser"`
	Scrape     ScrapeConfig     `yaml:"scrape"`
	Generative GenerativeConfig `yaml:"generative"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeoutSec  int      `yaml:"read_timeout_sec"`
	WriteTimeoutSec int      `yaml:"write_timeout_sec"` // 0 keeps SSE streams open
	ShutdownSec     int      `yaml:"shutdown_timeout_sec"`
	TrustedProxies  []string `yaml:"trusted_proxies"` // CIDRs allowed to set X-Forwarded-For
}

// DatabaseConfig holds persistent store settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // redis, valkey, sqlite, postgres (default: sqlite)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	DSN              string   `yaml:"dsn"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	KeyPrefix        string   `yaml:"key_prefix"`
}

// IsRedis reports whether the driver is served by the rueidis store.
func (d DatabaseConfig) IsRedis() bool {
	return d.Driver == "redis" || d.Driver == "valkey"
}

// CacheConfig holds the three cache tiers' settings.
type CacheConfig struct {
	MemoryCapacity      int     `yaml:"memory_capacity"`
	MemoryTTLSec        int     `yaml:"memory_ttl_sec"`
	PersistentTTLSec    int     `yaml:"persistent_ttl_sec"`
	VectorTTLSec        int     `yaml:"vector_ttl_sec"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	SweepIntervalSec    int     `yaml:"sweep_interval_sec"`
}

// RateLimitConfig holds fixed-window limiter settings.
type RateLimitConfig struct {
	WindowSec   int `yaml:"window_sec"`
	MaxRequests int `yaml:"max_requests"`
	MaxEntries  int `yaml:"max_entries"`
}

// BrowserConfig holds headless browser pool settings.
type BrowserConfig struct {
	ExecPath         string `yaml:"exec_path"`
	Headless         *bool  `yaml:"headless"`
	UserAgent        string `yaml:"user_agent"`
	MaxUses          int    `yaml:"max_uses"`
	MaxAgeSec        int    `yaml:"max_age_sec"`
	FailureThreshold int    `yaml:"failure_threshold"`
	CooldownSec      int    `yaml:"cooldown_sec"`
	LaunchTimeoutSec int    `yaml:"launch_timeout_sec"`
}

// ScrapeConfig holds scrape orchestration settings.
type ScrapeConfig struct {
	Sources              []string `yaml:"sources"`
	NavigationTimeoutSec int      `yaml:"navigation_timeout_sec"`
	ExtractionTimeoutSec int      `yaml:"extraction_timeout_sec"`
	BlockedDomains       []string `yaml:"blocked_domains"`
}

// GenerativeConfig holds generative provider settings.
type GenerativeConfig struct {
	APIKey         string   `yaml:"api_key"`
	BaseURL        string   `yaml:"base_url"`
	Model          string   `yaml:"model"`
	MaxTokens      int      `yaml:"max_tokens"`
	TimeoutSec     int      `yaml:"timeout_sec"`
	MaxRetries     *int     `yaml:"max_retries"`
	BackoffBaseMS  int      `yaml:"backoff_base_ms"`
	WebSearch      bool     `yaml:"web_search"`
	AllowedDomains []string `yaml:"allowed_domains"`
}

// PipelineConfig holds resolution deadlines.
type PipelineConfig struct {
	DeadlineSec  int `yaml:"deadline_sec"`
	HeartbeatSec int `yaml:"heartbeat_sec"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
// An optional .env file in the working directory is loaded first.
func Load(env string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse expands env variables in data, unmarshals it, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.DSN == "" {
		c.Database.DSN = "staydex.db"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Database.KeyPrefix == "" {
		c.Database.KeyPrefix = "staydex:"
	}
	c.applyCacheDefaults()
	c.applyRateLimitDefaults()
	c.applyBrowserDefaults()
	c.applyScrapeDefaults()
	c.applyGenerativeDefaults()
	if c.Pipeline.DeadlineSec <= 0 {
		c.Pipeline.DeadlineSec = 60
	}
	if c.Pipeline.HeartbeatSec <= 0 {
		c.Pipeline.HeartbeatSec = 15
	}
}

func (c *Config) applyCacheDefaults() {
	if c.Cache.MemoryCapacity <= 0 {
		c.Cache.MemoryCapacity = 500
	}
	if c.Cache.MemoryTTLSec <= 0 {
		c.Cache.MemoryTTLSec = 300
	}
	if c.Cache.PersistentTTLSec <= 0 {
		c.Cache.PersistentTTLSec = 6 * 3600
	}
	if c.Cache.VectorTTLSec <= 0 {
		c.Cache.VectorTTLSec = 24 * 3600
	}
	if c.Cache.SimilarityThreshold <= 0 {
		c.Cache.SimilarityThreshold = 0.95
	}
	if c.Cache.SweepIntervalSec <= 0 {
		c.Cache.SweepIntervalSec = 600
	}
}

func (c *Config) applyRateLimitDefaults() {
	if c.RateLimit.WindowSec <= 0 {
		c.RateLimit.WindowSec = 60
	}
	if c.RateLimit.MaxRequests <= 0 {
		c.RateLimit.MaxRequests = 10
	}
	if c.RateLimit.MaxEntries <= 0 {
		c.RateLimit.MaxEntries = 10_000
	}
}

func (c *Config) applyBrowserDefaults() {
	if c.Browser.Headless == nil {
		headless := true
		c.Browser.Headless = &headless
	}
	if c.Browser.MaxUses <= 0 {
		c.Browser.MaxUses = 50
	}
	if c.Browser.MaxAgeSec <= 0 {
		c.Browser.MaxAgeSec = 30 * 60
	}
	if c.Browser.FailureThreshold <= 0 {
		c.Browser.FailureThreshold = 3
	}
	if c.Browser.CooldownSec <= 0 {
		c.Browser.CooldownSec = 60
	}
	if c.Browser.LaunchTimeoutSec <= 0 {
		c.Browser.LaunchTimeoutSec = 30
	}
}

func (c *Config) applyScrapeDefaults() {
	if len(c.Scrape.Sources) == 0 {
		c.Scrape.Sources = []string{"airbnb", "booking"}
	}
	if c.Scrape.NavigationTimeoutSec <= 0 {
		c.Scrape.NavigationTimeoutSec = 25
	}
	if c.Scrape.ExtractionTimeoutSec <= 0 {
		c.Scrape.ExtractionTimeoutSec = 10
	}
}

func (c *Config) applyGenerativeDefaults() {
	if c.Generative.Model == "" {
		c.Generative.Model = "gpt-4o-mini"
	}
	if c.Generative.MaxTokens <= 0 {
		c.Generative.MaxTokens = 2000
	}
	if c.Generative.TimeoutSec <= 0 {
		c.Generative.TimeoutSec = 30
	}
	if c.Generative.MaxRetries == nil {
		retries := 2
		c.Generative.MaxRetries = &retries
	}
	if c.Generative.BackoffBaseMS <= 0 {
		c.Generative.BackoffBaseMS = 500
	}
	if len(c.Generative.AllowedDomains) == 0 {
		c.Generative.AllowedDomains = []string{
			"airbnb.com", "booking.com", "vrbo.com", "expedia.com",
			"hotels.com", "agoda.com", "tripadvisor.com",
		}
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case "redis", "valkey":
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for driver %q", c.Database.Driver)
		}
	case "sqlite", "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for driver %q", c.Database.Driver)
		}
	default:
		return fmt.Errorf("database.driver must be one of redis, valkey, sqlite, postgres, got %q", c.Database.Driver)
	}
	if c.Cache.SimilarityThreshold > 1 {
		return fmt.Errorf("cache.similarity_threshold must be in (0, 1], got %g", c.Cache.SimilarityThreshold)
	}
	if c.Cache.VectorTTLSec < c.Cache.PersistentTTLSec {
		return fmt.Errorf("cache.vector_ttl_sec (%d) must not be shorter than cache.persistent_ttl_sec (%d)",
			c.Cache.VectorTTLSec, c.Cache.PersistentTTLSec)
	}
	if c.Scrape.ExtractionTimeoutSec >= c.Scrape.NavigationTimeoutSec {
		return fmt.Errorf("scrape.extraction_timeout_sec (%d) must be shorter than scrape.navigation_timeout_sec (%d)",
			c.Scrape.ExtractionTimeoutSec, c.Scrape.NavigationTimeoutSec)
	}
	if r := *c.Generative.MaxRetries; r < 0 || r > 2 {
		return fmt.Errorf("generative.max_retries must be between 0 and 2, got %d", r)
	}
	return nil
}

// MemoryTTL returns the L1 entry lifetime.
func (c CacheConfig) MemoryTTL() time.Duration { return seconds(c.MemoryTTLSec) }

// PersistentTTL returns the L2 entry lifetime.
func (c CacheConfig) PersistentTTL() time.Duration { return seconds(c.PersistentTTLSec) }

// VectorTTL returns the L3 record lifetime.
func (c CacheConfig) VectorTTL() time.Duration { return seconds(c.VectorTTLSec) }

// SweepInterval returns the period of the expired-row sweep.
func (c CacheConfig) SweepInterval() time.Duration { return seconds(c.SweepIntervalSec) }

// Window returns the fixed window length.
func (c RateLimitConfig) Window() time.Duration { return seconds(c.WindowSec) }

// MaxAge returns the browser age after which it is recycled.
func (c BrowserConfig) MaxAge() time.Duration { return seconds(c.MaxAgeSec) }

// Cooldown returns how long launches fail fast once the breaker opens.
func (c BrowserConfig) Cooldown() time.Duration { return seconds(c.CooldownSec) }

// LaunchTimeout bounds a single browser start.
func (c BrowserConfig) LaunchTimeout() time.Duration { return seconds(c.LaunchTimeoutSec) }

// NavigationTimeout bounds page navigation per target.
func (c ScrapeConfig) NavigationTimeout() time.Duration { return seconds(c.NavigationTimeoutSec) }

// ExtractionTimeout bounds the extraction step per target.
func (c ScrapeConfig) ExtractionTimeout() time.Duration { return seconds(c.ExtractionTimeoutSec) }

// Timeout bounds a single generative call.
func (c GenerativeConfig) Timeout() time.Duration { return seconds(c.TimeoutSec) }

// BackoffBase is the first retry delay.
func (c GenerativeConfig) BackoffBase() time.Duration {
	return time.Duration(c.BackoffBaseMS) * time.Millisecond
}

// Deadline bounds a whole resolution.
func (c PipelineConfig) Deadline() time.Duration { return seconds(c.DeadlineSec) }

// Heartbeat is the SSE keep-alive interval.
func (c PipelineConfig) Heartbeat() time.Duration { return seconds(c.HeartbeatSec) }

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
