// Package dfsconfig loads the library's ambient configuration knobs via
// viper/mapstructure, modeled on backend/pkg/config/config.go in the
// teacher codebase. Only knobs the numerical pipeline itself consumes are
// kept here: no DB/Redis/JWT/SMS/AI keys, since the services that owned
// those concerns are out of this library's scope.
package dfsconfig

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the default run parameters for the pipeline. Any field can
// be overridden per-call via the operation-specific Config structs in
// internal/* packages; this is only where process-wide defaults live.
type Config struct {
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
	Environment     string        `mapstructure:"ENV"`
	DefaultNScenarios int         `mapstructure:"DEFAULT_N_SCENARIOS"`
	MaxResampleAttempts int       `mapstructure:"MAX_RESAMPLE_ATTEMPTS"`
	SolverTimeout   time.Duration `mapstructure:"SOLVER_TIMEOUT"`
	BootstrapSamples int          `mapstructure:"BOOTSTRAP_SAMPLES"`
	FieldOversampleFactor float64 `mapstructure:"FIELD_OVERSAMPLE_FACTOR"`
	FieldMaxShrinkAttempts int    `mapstructure:"FIELD_MAX_SHRINK_ATTEMPTS"`
	Workers         int           `mapstructure:"WORKERS"`
}

// Load reads configuration from the environment (and an optional .env file
// in the working directory or its parent), falling back to documented
// defaults for anything unset.
func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")

	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("ENV", "production")
	viper.SetDefault("DEFAULT_N_SCENARIOS", 5000)
	viper.SetDefault("MAX_RESAMPLE_ATTEMPTS", 16)
	viper.SetDefault("SOLVER_TIMEOUT", "30s")
	viper.SetDefault("BOOTSTRAP_SAMPLES", 100)
	viper.SetDefault("FIELD_OVERSAMPLE_FACTOR", 3.0)
	viper.SetDefault("FIELD_MAX_SHRINK_ATTEMPTS", 5)
	viper.SetDefault("WORKERS", 4)

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
