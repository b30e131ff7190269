package config

import (
	"fmt"
	"time"
)

// profile returns the defaults for a named deployment profile.
func profile(name string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.Profile = name
	switch Environment(name) {
	case EnvDevelopment:
		cfg.Environment = EnvDevelopment
		cfg.Logging.Level = "debug"
		cfg.Logging.Format = "pretty"
	case EnvTesting:
		cfg.Environment = EnvTesting
		cfg.Logging.Level = "warn"
		cfg.Logging.Format = "text"
		cfg.Events.DispatchMode = "sync"
	case EnvStaging:
		cfg.Environment = EnvStaging
		cfg.Metrics.Enabled = true
		cfg.Security.EnableRateLimit = true
	case EnvProduction:
		cfg.Environment = EnvProduction
		cfg.Server.CORSOrigin = ""
		cfg.Server.WriteTimeout = 15 * time.Second
		cfg.Metrics.Enabled = true
		cfg.Security.EnableRateLimit = true
		cfg.Security.RateLimit.RequestsPerMinute = 120
		cfg.Security.RateLimit.BurstSize = 20
	default:
		return nil, fmt.Errorf("unknown profile %q", name)
	}
	return cfg, nil
}

// LoadProfile returns the named profile with environment overrides applied.
func LoadProfile(name string) (*Config, error) {
	cfg, err := profile(name)
	if err != nil {
		return nil, err
	}
	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
