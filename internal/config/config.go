// ABOUTME: Configuration loading and parsing for timecard
// ABOUTME: Supports YAML or TOML files with environment variable expansion, env overrides and defaults

package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Environment variables consulted by Load and Default.
const (
	EnvConfigPath    = "TIMECARD_CONFIG"
	EnvSessionSecret = "TIMECARD_SESSION_SECRET"
	EnvDBPath        = "TIMECARD_DB_PATH"
	EnvMode          = "TIMECARD_ENV"
)

// MinSecretLength is the shortest session secret accepted in production.
const MinSecretLength = 32

// Session backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config represents the complete timecard configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" toml:"server"`
	Database DatabaseConfig `yaml:"database" toml:"database"`
	Auth     AuthConfig     `yaml:"auth" toml:"auth"`
	Sessions SessionsConfig `yaml:"sessions" toml:"sessions"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics" toml:"metrics"`
}

// ServerConfig holds the HTTP listener configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
	// Production forces Secure cookies and requires a real session secret.
	Production bool `yaml:"production" toml:"production"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	SessionSecret  string        `yaml:"session_secret" toml:"session_secret"`
	SessionTTL     time.Duration `yaml:"-" toml:"-"`
	TokenTTL       time.Duration `yaml:"-" toml:"-"`
	KDFConcurrency int           `yaml:"kdf_concurrency" toml:"kdf_concurrency"`

	// Raw string values for unmarshaling
	SessionTTLRaw string `yaml:"session_ttl" toml:"session_ttl"`
	TokenTTLRaw   string `yaml:"token_ttl" toml:"token_ttl"`

	// EphemeralSecret is set when no secret was configured outside
	// production and a random one was generated for this process.
	EphemeralSecret bool `yaml:"-" toml:"-"`
}

// SessionsConfig selects and tunes the session backend
type SessionsConfig struct {
	Backend          string        `yaml:"backend" toml:"backend"`
	SweepInterval    time.Duration `yaml:"-" toml:"-"`
	SweepIntervalRaw string        `yaml:"sweep_interval" toml:"sweep_interval"`
	Redis            RedisConfig   `yaml:"redis" toml:"redis"`
}

// RedisConfig holds the Redis connection used by the redis session backend
type RedisConfig struct {
	Addr     string `yaml:"addr" toml:"addr"`
	Password string `yaml:"password" toml:"password"`
	DB       int    `yaml:"db" toml:"db"`
	Prefix   string `yaml:"prefix" toml:"prefix"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are parsed as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file exists: built-in
// defaults plus environment overrides.
func Default() (*Config, error) {
	var cfg Config
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Path resolves the config file location: the explicit flag value, then
// TIMECARD_CONFIG, then $XDG_CONFIG_HOME/timecard/config.yaml.
func Path(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml"
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "timecard", "config.yaml")
}

func (c *Config) finish() error {
	c.applyEnvOverrides()
	c.applyDefaults()

	if err := parseDurations(c); err != nil {
		return fmt.Errorf("parsing durations: %w", err)
	}

	if c.Auth.SessionSecret == "" && !c.Server.Production {
		secret, err := randomSecret()
		if err != nil {
			return err
		}
		c.Auth.SessionSecret = secret
		c.Auth.EphemeralSecret = true
	}

	if err := c.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	return nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(EnvSessionSecret); v != "" {
		c.Auth.SessionSecret = v
	}
	if v := os.Getenv(EnvDBPath); v != "" {
		c.Database.Path = v
	}
	if strings.EqualFold(os.Getenv(EnvMode), "production") {
		c.Server.Production = true
	}
}

func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = ":8080"
	}
	if c.Database.Path == "" {
		c.Database.Path = defaultDBPath()
	}
	if c.Auth.SessionTTLRaw == "" {
		c.Auth.SessionTTLRaw = "24h"
	}
	if c.Auth.TokenTTLRaw == "" {
		c.Auth.TokenTTLRaw = "1h"
	}
	if c.Auth.KDFConcurrency == 0 {
		c.Auth.KDFConcurrency = runtime.NumCPU()
	}
	if c.Sessions.Backend == "" {
		c.Sessions.Backend = BackendMemory
	}
	if c.Sessions.SweepIntervalRaw == "" {
		c.Sessions.SweepIntervalRaw = "10m"
	}
	if c.Sessions.Redis.Prefix == "" {
		c.Sessions.Redis.Prefix = "timecard:session:"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

func defaultDBPath() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "timecard.db"
		}
		dir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dir, "timecard", "timecard.db")
}

func randomSecret() (string, error) {
	b := make([]byte, MinSecretLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating session secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Server.Production && len(c.Auth.SessionSecret) < MinSecretLength {
		return fmt.Errorf("auth.session_secret must be at least %d bytes in production", MinSecretLength)
	}

	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("auth.session_ttl must be positive")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}
	if c.Auth.KDFConcurrency < 1 {
		return fmt.Errorf("auth.kdf_concurrency must be at least 1")
	}

	switch c.Sessions.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Sessions.Redis.Addr == "" {
			return fmt.Errorf("sessions.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("sessions.backend must be %q or %q, got %q", BackendMemory, BackendRedis, c.Sessions.Backend)
	}
	if c.Sessions.SweepInterval < 0 {
		return fmt.Errorf("sessions.sweep_interval must not be negative")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	cfg.Auth.SessionTTL, err = time.ParseDuration(cfg.Auth.SessionTTLRaw)
	if err != nil {
		return fmt.Errorf("parsing session_ttl %q: %w", cfg.Auth.SessionTTLRaw, err)
	}

	cfg.Auth.TokenTTL, err = time.ParseDuration(cfg.Auth.TokenTTLRaw)
	if err != nil {
		return fmt.Errorf("parsing token_ttl %q: %w", cfg.Auth.TokenTTLRaw, err)
	}

	cfg.Sessions.SweepInterval, err = time.ParseDuration(cfg.Sessions.SweepIntervalRaw)
	if err != nil {
		return fmt.Errorf("parsing sweep_interval %q: %w", cfg.Sessions.SweepIntervalRaw, err)
	}

	return nil
}
