package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tourneykit/adapters/redis"
	"tourneykit/adapters/sqlx"
)

// Environment represents the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

const redacted = "[REDACTED]"

// Config holds the complete application configuration
type Config struct {
	// Environment and profile settings
	Environment Environment `json:"environment" env:"TOURNEYKIT_ENV"`
	Profile     string      `json:"profile" env:"TOURNEYKIT_PROFILE"`

	// Server configuration
	Server ServerConfig `json:"server"`

	// Storage configuration
	Storage StorageConfig `json:"storage"`

	// Logging configuration
	Logging LoggingConfig `json:"logging"`

	// Metrics and monitoring
	Metrics MetricsConfig `json:"metrics"`

	// Security configuration
	Security SecurityConfig `json:"security"`

	// Role authorization
	Authz AuthzConfig `json:"authz"`

	// Event dispatch and delivery
	Events   EventsConfig  `json:"events"`
	Webhooks WebhookConfig `json:"webhooks"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Address           string        `json:"address" env:"TOURNEYKIT_SERVER_ADDR"`
	PathPrefix        string        `json:"path_prefix" env:"TOURNEYKIT_SERVER_PATH_PREFIX"`
	CORSOrigin        string        `json:"cors_origin" env:"TOURNEYKIT_SERVER_CORS_ORIGIN"`
	ReadTimeout       time.Duration `json:"read_timeout" env:"TOURNEYKIT_SERVER_READ_TIMEOUT"`
	WriteTimeout      time.Duration `json:"write_timeout" env:"TOURNEYKIT_SERVER_WRITE_TIMEOUT"`
	IdleTimeout       time.Duration `json:"idle_timeout" env:"TOURNEYKIT_SERVER_IDLE_TIMEOUT"`
	ReadHeaderTimeout time.Duration `json:"read_header_timeout" env:"TOURNEYKIT_SERVER_READ_HEADER_TIMEOUT"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout" env:"TOURNEYKIT_SERVER_SHUTDOWN_TIMEOUT"`
}

// StorageConfig holds storage adapter configuration
type StorageConfig struct {
	Adapter string       `json:"adapter" env:"TOURNEYKIT_STORAGE_ADAPTER"`
	Redis   redis.Config `json:"redis,omitempty" envPrefix:"TOURNEYKIT_REDIS_"`
	SQL     sqlx.Config  `json:"sql,omitempty" envPrefix:"TOURNEYKIT_SQL_"`
	File    FileConfig   `json:"file,omitempty"`
}

// FileConfig holds JSON file storage configuration
type FileConfig struct {
	Path string `json:"path" env:"TOURNEYKIT_STORAGE_FILE_PATH"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string            `json:"level" env:"TOURNEYKIT_LOG_LEVEL"`
	Format     string            `json:"format" env:"TOURNEYKIT_LOG_FORMAT"`
	Output     string            `json:"output" env:"TOURNEYKIT_LOG_OUTPUT"`
	Attributes map[string]string `json:"attributes,omitempty" env:"TOURNEYKIT_LOG_ATTRIBUTES" envKeyValSeparator:"="`
}

// MetricsConfig holds metrics and monitoring configuration
type MetricsConfig struct {
	Enabled       bool   `json:"enabled" env:"TOURNEYKIT_METRICS_ENABLED"`
	Address       string `json:"address" env:"TOURNEYKIT_METRICS_ADDR"`
	Path          string `json:"path" env:"TOURNEYKIT_METRICS_PATH"`
	CollectSystem bool   `json:"collect_system" env:"TOURNEYKIT_METRICS_COLLECT_SYSTEM"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	EnableRateLimit bool            `json:"enable_rate_limit" env:"TOURNEYKIT_SECURITY_RATE_LIMIT_ENABLED"`
	RateLimit       RateLimitConfig `json:"rate_limit,omitempty"`
	APIKeys         []string        `json:"api_keys,omitempty" env:"TOURNEYKIT_SECURITY_API_KEYS"`
	// JWTSecret signs and verifies actor tokens for role routes.
	JWTSecret string `json:"jwt_secret,omitempty" env:"TOURNEYKIT_SECURITY_JWT_SECRET"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int `json:"requests_per_minute" env:"TOURNEYKIT_SECURITY_RATE_LIMIT_RPM"`
	BurstSize         int `json:"burst_size" env:"TOURNEYKIT_SECURITY_RATE_LIMIT_BURST"`
}

// AuthzConfig names the super-admin principal. Leaving the email empty
// means no one can grant the admin role.
type AuthzConfig struct {
	SuperAdminEmail  string `json:"super_admin_email" env:"TOURNEYKIT_SUPER_ADMIN_EMAIL"`
	SuperAdminUserID string `json:"super_admin_user_id" env:"TOURNEYKIT_SUPER_ADMIN_USER_ID"`
}

// EventsConfig controls the in-process event bus.
type EventsConfig struct {
	DispatchMode string `json:"dispatch_mode" env:"TOURNEYKIT_EVENTS_DISPATCH"`
	QueueSize    int    `json:"queue_size" env:"TOURNEYKIT_EVENTS_QUEUE_SIZE"`
}

// WebhookConfig lists endpoints that receive event JSON.
type WebhookConfig struct {
	Endpoints []string      `json:"endpoints,omitempty" env:"TOURNEYKIT_WEBHOOK_ENDPOINTS"`
	Events    []string      `json:"events,omitempty" env:"TOURNEYKIT_WEBHOOK_EVENTS"`
	Timeout   time.Duration `json:"timeout" env:"TOURNEYKIT_WEBHOOK_TIMEOUT"`
}

// Load builds configuration from defaults (or the profile named by
// TOURNEYKIT_PROFILE) and environment variables, then validates it. When
// TOURNEYKIT_CONFIG_FILE is set the file replaces the defaults.
func Load() (*Config, error) {
	if path := os.Getenv("TOURNEYKIT_CONFIG_FILE"); path != "" {
		return LoadFromFile(path)
	}
	cfg := DefaultConfig()
	if name := os.Getenv("TOURNEYKIT_PROFILE"); name != "" {
		p, err := profile(name)
		if err != nil {
			return nil, err
		}
		cfg = p
	}

	// Load from environment variables
	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// validateConfigPath validates that the config file path is safe
func validateConfigPath(path string) error {
	if path == "" {
		return errors.New("config file path cannot be empty")
	}

	// Clean the path to resolve any .. or . components
	cleanPath := filepath.Clean(path)

	// Only JSON files are accepted
	if !strings.HasSuffix(strings.ToLower(cleanPath), ".json") {
		return errors.New("config file must have .json extension")
	}

	// Check that the file exists and is readable
	if _, err := os.Stat(cleanPath); err != nil {
		return fmt.Errorf("config file not accessible: %w", err)
	}

	return nil
}

// LoadFromFile loads configuration from a JSON file
func LoadFromFile(path string) (*Config, error) {
	// Validate the path for security
	if err := validateConfigPath(path); err != nil {
		return nil, fmt.Errorf("invalid config file path: %w", err)
	}

	// Open the file safely after validation
	file, err := os.Open(path) // #nosec G304 - Path validated above
	if err != nil {
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	// Start from defaults so omitted sections keep sane values
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	// Environment variables override file values
	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development
func DefaultConfig() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Profile:     "default",
		Server: ServerConfig{
			Address:           ":8080",
			PathPrefix:        "/api",
			CORSOrigin:        "*",
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   30 * time.Second,
		},
		Storage: StorageConfig{
			Adapter: "memory",
			Redis:   redis.DefaultConfig(),
			SQL:     sqlx.DefaultConfig(sqlx.DriverPostgres),
			File: FileConfig{
				Path: "./data/tourneykit.json",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled:       false,
			Address:       ":9090",
			Path:          "/metrics",
			CollectSystem: true,
		},
		Security: SecurityConfig{
			EnableRateLimit: false,
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 60,
				BurstSize:         10,
			},
			APIKeys: []string{},
		},
		Events: EventsConfig{
			DispatchMode: "async",
			QueueSize:    2048,
		},
		Webhooks: WebhookConfig{
			Timeout: 2 * time.Second,
		},
	}
}

// Validate validates the configuration and returns detailed error messages
func (c *Config) Validate() error {
	var errs []string

	// Validate environment
	if c.Environment == "" {
		errs = append(errs, "environment cannot be empty")
	}

	// Validate each section
	sections := []struct {
		name string
		err  error
	}{
		{"server", c.Server.Validate()},
		{"storage", c.Storage.Validate()},
		{"logging", c.Logging.Validate()},
		{"metrics", c.Metrics.Validate()},
		{"security", c.Security.Validate()},
		{"authz", c.Authz.Validate()},
		{"events", c.Events.Validate()},
		{"webhooks", c.Webhooks.Validate()},
	}
	for _, s := range sections {
		if s.err != nil {
			errs = append(errs, fmt.Sprintf("%s config: %v", s.name, s.err))
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

// String returns a JSON representation of the config (with secrets redacted)
func (c *Config) String() string {
	// Create a copy for redaction
	cfg := *c

	// Redact sensitive information
	if cfg.Storage.SQL.DSN != "" {
		cfg.Storage.SQL.DSN = redacted
	}
	if cfg.Storage.Redis.Password != "" {
		cfg.Storage.Redis.Password = redacted
	}
	if cfg.Security.JWTSecret != "" {
		cfg.Security.JWTSecret = redacted
	}
	if len(cfg.Security.APIKeys) > 0 {
		keys := make([]string, len(cfg.Security.APIKeys))
		for i := range keys {
			keys[i] = redacted
		}
		cfg.Security.APIKeys = keys
	}

	data, _ := json.MarshalIndent(cfg, "", "  ")
	return string(data)
}
