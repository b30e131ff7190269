package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	// Test loading default config
	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// Verify defaults
	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "memory", cfg.Storage.Adapter)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadFromFile(t *testing.T) {
	// Create a temporary config file
	configContent := `{
		"environment": "testing",
		"server": {
			"address": ":9090"
		},
		"storage": {
			"adapter": "memory"
		}
	}`

	tmpFile, err := os.CreateTemp("", "config_test_*.json")
	require.NoError(t, err)
	defer os.Remove(tmpFile.Name())

	_, err = tmpFile.WriteString(configContent)
	require.NoError(t, err)
	tmpFile.Close()

	// Load config from file
	cfg, err := LoadFromFile(tmpFile.Name())
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// Verify loaded values
	assert.Equal(t, EnvTesting, cfg.Environment)
	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, "memory", cfg.Storage.Adapter)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		config      *Config
		expectError bool
	}{
		{
			name: "valid config",
			config: &Config{
				Environment: EnvDevelopment,
				Server: ServerConfig{
					Address:           ":8080",
					ReadTimeout:       time.Second,
					WriteTimeout:      time.Second,
					IdleTimeout:       time.Second,
					ReadHeaderTimeout: time.Second,
					ShutdownTimeout:   time.Second,
				},
				Storage: StorageConfig{
					Adapter: "memory",
				},
				Logging: LoggingConfig{
					Level:  "info",
					Format: "json",
					Output: "stdout",
				},
				Events: EventsConfig{DispatchMode: "sync"},
			},
			expectError: false,
		},
		{
			name: "invalid environment",
			config: &Config{
				Environment: "",
				Server: ServerConfig{
					Address:           ":8080",
					ReadTimeout:       time.Second,
					WriteTimeout:      time.Second,
					IdleTimeout:       time.Second,
					ReadHeaderTimeout: time.Second,
					ShutdownTimeout:   time.Second,
				},
				Storage: StorageConfig{
					Adapter: "memory",
				},
				Logging: LoggingConfig{
					Level:  "info",
					Format: "json",
					Output: "stdout",
				},
				Events: EventsConfig{DispatchMode: "sync"},
			},
			expectError: true,
		},
		{
			name: "invalid server timeout",
			config: &Config{
				Environment: EnvDevelopment,
				Server: ServerConfig{
					Address:           ":8080",
					ReadTimeout:       0,
					WriteTimeout:      time.Second,
					IdleTimeout:       time.Second,
					ReadHeaderTimeout: time.Second,
					ShutdownTimeout:   time.Second,
				},
				Storage: StorageConfig{
					Adapter: "memory",
				},
				Logging: LoggingConfig{
					Level:  "info",
					Format: "json",
					Output: "stdout",
				},
				Events: EventsConfig{DispatchMode: "sync"},
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestProfiles(t *testing.T) {
	tests := []struct {
		name         string
		profileName  string
		expectConfig bool
		environment  Environment
	}{
		{"development", "development", true, EnvDevelopment},
		{"testing", "testing", true, EnvTesting},
		{"staging", "staging", true, EnvStaging},
		{"production", "production", true, EnvProduction},
		{"unknown", "unknown", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadProfile(tt.profileName)
			if tt.expectConfig {
				require.NoError(t, err)
				require.NotNil(t, cfg)
				assert.Equal(t, tt.environment, cfg.Environment)
			} else {
				assert.Error(t, err)
				assert.Nil(t, cfg)
			}
		})
	}
}

func TestValidateConfigPath(t *testing.T) {
	tests := []struct {
		name        string
		path        string
		expectError bool
		setup       func() string // returns path to cleanup
	}{
		{
			name:        "valid json file",
			path:        "config_test.json",
			expectError: false,
			setup: func() string {
				tmpFile, _ := os.CreateTemp("", "config_test_*.json")
				tmpFile.WriteString("{}")
				tmpFile.Close()
				return tmpFile.Name()
			},
		},
		{
			name:        "empty path",
			path:        "",
			expectError: true,
			setup:       func() string { return "" },
		},
		{
			name:        "path traversal",
			path:        "../../../etc/passwd",
			expectError: true,
			setup:       func() string { return "" },
		},
		{
			name:        "non-json file",
			path:        "config.txt",
			expectError: true,
			setup: func() string {
				tmpFile, _ := os.CreateTemp("", "config_test_*.txt")
				tmpFile.WriteString("{}")
				tmpFile.Close()
				return tmpFile.Name()
			},
		},
		{
			name:        "nonexistent file",
			path:        "nonexistent.json",
			expectError: true,
			setup:       func() string { return "" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanupPath := tt.setup()
			if cleanupPath != "" {
				defer os.Remove(cleanupPath)
				if tt.path == "config_test.json" || tt.path == "config.txt" {
					tt.path = cleanupPath
				}
			}

			err := validateConfigPath(tt.path)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TOURNEYKIT_SERVER_ADDR", ":7070")
	t.Setenv("TOURNEYKIT_STORAGE_ADAPTER", "sql")
	t.Setenv("TOURNEYKIT_SQL_DRIVER", "sqlite")
	t.Setenv("TOURNEYKIT_SQL_DSN", "file:test.db")
	t.Setenv("TOURNEYKIT_REDIS_CACHE_TTL", "90s")
	t.Setenv("TOURNEYKIT_SECURITY_API_KEYS", "a,b")
	t.Setenv("TOURNEYKIT_LOG_ATTRIBUTES", "service=tourneykit,region=eu")
	t.Setenv("TOURNEYKIT_SUPER_ADMIN_EMAIL", "owner@example.com")
	t.Setenv("TOURNEYKIT_EVENTS_DISPATCH", "sync")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Address)
	assert.Equal(t, "sql", cfg.Storage.Adapter)
	assert.Equal(t, "file:test.db", cfg.Storage.SQL.DSN)
	assert.EqualValues(t, "sqlite", cfg.Storage.SQL.Driver)
	assert.Equal(t, 90*time.Second, cfg.Storage.Redis.CacheTTL)
	assert.Equal(t, []string{"a", "b"}, cfg.Security.APIKeys)
	assert.Equal(t, map[string]string{"service": "tourneykit", "region": "eu"}, cfg.Logging.Attributes)
	assert.Equal(t, "owner@example.com", cfg.Authz.SuperAdminEmail)
	assert.Equal(t, "sync", cfg.Events.DispatchMode)
	// untouched defaults survive
	assert.Equal(t, "/api", cfg.Server.PathPrefix)
	assert.Equal(t, "localhost:6379", cfg.Storage.Redis.Addr)
}

func TestLoadWithProfileEnv(t *testing.T) {
	t.Setenv("TOURNEYKIT_PROFILE", "testing")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, EnvTesting, cfg.Environment)
	assert.Equal(t, "sync", cfg.Events.DispatchMode)

	t.Setenv("TOURNEYKIT_PROFILE", "mars")
	_, err = Load()
	assert.Error(t, err)
}

func TestLoadWithConfigFileEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tourneykit.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"authz": {"super_admin_email": "owner@example.com"}}`), 0o600))
	t.Setenv("TOURNEYKIT_CONFIG_FILE", path)
	t.Setenv("TOURNEYKIT_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "owner@example.com", cfg.Authz.SuperAdminEmail)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, ":8080", cfg.Server.Address)
}

func TestInvalidEnvValue(t *testing.T) {
	t.Setenv("TOURNEYKIT_SERVER_READ_TIMEOUT", "soon")
	_, err := Load()
	assert.Error(t, err)
}

func TestSectionValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "format must be one of"},
		{"sql without dsn", func(c *Config) { c.Storage.Adapter = "sql"; c.Storage.SQL.DSN = "" }, "dsn cannot be empty"},
		{"bad super admin", func(c *Config) { c.Authz.SuperAdminEmail = "nope" }, "super_admin_email"},
		{"user id without email", func(c *Config) { c.Authz.SuperAdminUserID = "owner" }, "requires super_admin_email"},
		{"short jwt secret", func(c *Config) { c.Security.JWTSecret = "short" }, "jwt_secret"},
		{"relative webhook", func(c *Config) { c.Webhooks.Endpoints = []string{"/hook"} }, "endpoints[0]"},
		{"unknown webhook event", func(c *Config) { c.Webhooks.Events = []string{"points_added"} }, "unknown event type"},
		{"bad dispatch", func(c *Config) { c.Events.DispatchMode = "later" }, "dispatch_mode"},
		{"async without queue", func(c *Config) { c.Events.QueueSize = 0 }, "queue_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	cfg := DefaultConfig()
	cfg.Logging.Format = "pretty"
	cfg.Webhooks.Endpoints = []string{"https://hooks.example.com/tourney"}
	cfg.Webhooks.Events = []string{"badge_earned", "role_changed"}
	cfg.Authz = AuthzConfig{SuperAdminEmail: "owner@example.com", SuperAdminUserID: "owner"}
	assert.NoError(t, cfg.Validate())
}

func TestStringRedactsSecrets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.SQL.DSN = "postgres://user:hunter2@db/tourney"
	cfg.Storage.Redis.Password = "redis-pass"
	cfg.Security.JWTSecret = "super-secret-signing-key"
	cfg.Security.APIKeys = []string{"key-1"}

	out := cfg.String()
	for _, secret := range []string{"hunter2", "redis-pass", "super-secret-signing-key", "key-1"} {
		assert.False(t, strings.Contains(out, secret), "secret %q leaked", secret)
	}
	assert.Contains(t, out, redacted)
	// the original is untouched
	assert.Equal(t, []string{"key-1"}, cfg.Security.APIKeys)
}
