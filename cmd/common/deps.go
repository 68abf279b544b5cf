// Package common holds the dependency wiring shared by every subcommand.
package common

import (
	"fmt"

	"github.com/carcrawl/carcrawl/internal/config"
	"github.com/carcrawl/carcrawl/internal/logger"
)

// CommandDeps carries the dependencies every command starts from.
type CommandDeps struct {
	Config config.Interface
	Logger logger.Interface
}

// NewCommandDeps loads configuration and builds the logger. An empty
// cfgFile uses the default search locations; a set one is an explicit
// path and missing is an error.
func NewCommandDeps(cfgFile string) (*CommandDeps, error) {
	var (
		cfg *config.Config
		err error
	)
	if cfgFile != "" {
		cfg, err = config.LoadFile(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.New(loggerConfig(cfg.GetLoggingConfig()))
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return &CommandDeps{Config: cfg, Logger: log}, nil
}

func loggerConfig(cfg *config.LoggingConfig) *logger.Config {
	return &logger.Config{
		Level:       logger.Level(cfg.Level),
		Encoding:    cfg.Encoding,
		Development: cfg.Development,
	}
}
