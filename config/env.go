package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// loadFromEnv overlays environment variables onto cfg. Unset variables keep
// the value already present, so defaults and file values survive.
func loadFromEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
