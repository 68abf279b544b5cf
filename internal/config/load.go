// Package config provides configuration management for the carcrawl service.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Load initializes Viper and unmarshals the full configuration. It is the
// single entry point commands use; defaults, the optional config file, and
// environment overrides have already been merged by the time it returns.
func Load() (*Config, error) {
	if err := InitializeViper(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigLoadFailed, err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigLoadFailed, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadFile loads configuration from an explicit file path instead of the
// default search locations.
func LoadFile(path string) (*Config, error) {
	loadEnvFile()
	setupViper()
	setDefaults()
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		return nil, &LoadError{File: path, Err: err}
	}

	if err := bindEnvironmentVariables(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigLoadFailed, err)
	}
	setupDevelopmentLogging()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, &LoadError{File: path, Err: err}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
