package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/vmunix/plexorg/internal/config"
	"github.com/vmunix/plexorg/internal/logging"
)

// loadConfig loads --config or the discovered config file. With optional
// set, a missing file yields the defaults instead of an error.
func loadConfig(optional bool) (*config.Config, error) {
	path := configPath
	if path == "" {
		var err error
		path, err = config.Discover()
		if err != nil {
			if optional && config.IsNotFound(err) {
				return config.Default(), nil
			}
			return nil, err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		var cfgErr *config.Error
		if errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("invalid configuration\n%w", err)
		}
		return nil, err
	}
	return cfg, nil
}

// cliLogger logs to stderr, warnings and up unless the config asks for debug.
func cliLogger(cfg *config.Config) *slog.Logger {
	level := "warn"
	if cfg != nil && cfg.Server.LogLevel == "debug" {
		level = "debug"
	}
	return logging.New(os.Stderr, level, "text")
}
