// Package config loads the daemon configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the daemon configuration. Every field can be set through an
// environment variable prefixed with VOTEREGISTRY_.
type Config struct {
	DataDir         string        `envconfig:"DATA_DIR"`
	DBType          string        `envconfig:"DB_TYPE"`
	Host            string        `envconfig:"HOST"`
	Port            int           `envconfig:"PORT"`
	LogLevel        string        `envconfig:"LOG_LEVEL"`
	LogOutput       string        `envconfig:"LOG_OUTPUT"`
	AdminAddress    string        `envconfig:"ADMIN_ADDRESS"`
	Quorum          float64       `envconfig:"QUORUM"`
	MonitorInterval time.Duration `envconfig:"MONITOR_INTERVAL"`
	EventInterval   time.Duration `envconfig:"EVENT_INTERVAL"`
}

// Load reads the configuration from the environment, applying defaults for
// unset fields.
func Load() (*Config, error) {
	cfg := &Config{
		DataDir:         ".voting-registry",
		DBType:          "pebble",
		Host:            "0.0.0.0",
		Port:            9090,
		LogLevel:        "info",
		LogOutput:       "stdout",
		Quorum:          0,
		MonitorInterval: 30 * time.Second,
		EventInterval:   5 * time.Second,
	}
	if err := envconfig.Process("voteregistry", cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.Quorum < 0 || cfg.Quorum > 1 {
		return nil, fmt.Errorf("invalid quorum: %f (must be in [0,1])", cfg.Quorum)
	}
	return cfg, nil
}
