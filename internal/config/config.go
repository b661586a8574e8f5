// Package config handles TOML configuration loading with environment variable substitution.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/vmunix/plexorg/internal/organizer"
)

// Config is the root configuration structure.
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Database   DatabaseConfig   `toml:"database"`
	Organize   organizer.Config `toml:"organize"`
	Conversion ConversionConfig `toml:"conversion"`
	Analysis   AnalysisConfig   `toml:"analysis"`
	Watch      WatchConfig      `toml:"watch"`
	Plex       *PlexConfig      `toml:"plex"`
}

type ServerConfig struct {
	Host      string `toml:"host"`
	Port      int    `toml:"port"`
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"` // text, logfmt or json
}

type DatabaseConfig struct {
	Path           string        `toml:"path"`
	EventRetention time.Duration `toml:"event_retention"` // negative keeps events forever
}

type ConversionConfig struct {
	MaxConcurrent   int           `toml:"max_concurrent"`
	Timeout         time.Duration `toml:"timeout"` // zero means no limit
	FFmpegPath      string        `toml:"ffmpeg_path"`
	ArchiveInterval time.Duration `toml:"archive_interval"`
}

type AnalysisConfig struct {
	FFprobePath string        `toml:"ffprobe_path"`
	Timeout     time.Duration `toml:"timeout"`
	Cache       bool          `toml:"cache"`
}

type WatchConfig struct {
	Enabled  bool          `toml:"enabled"`
	Path     string        `toml:"path"`
	Debounce time.Duration `toml:"debounce"`
}

type PlexConfig struct {
	URL        string `toml:"url"`
	Token      string `toml:"token"`
	LocalPath  string `toml:"local_path"`  // path prefix as seen by plexorg
	RemotePath string `toml:"remote_path"` // same prefix as seen by Plex
}

// Defaults.
const (
	DefaultHost            = "0.0.0.0"
	DefaultPort            = 8585
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
	DefaultDatabasePath    = "./data/plexorg.db"
	DefaultArchiveInterval = 10 * time.Minute
	DefaultEventRetention  = 30 * 24 * time.Hour
	DefaultDebounce        = 5 * time.Second
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{Organize: organizer.DefaultConfig()}
	cfg.applyDefaults()
	return cfg
}

// Load reads, parses and validates the configuration file. Warnings do not
// fail the load; use Validate to see them.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	content, missing := substituteEnvVars(string(data))
	if len(missing) > 0 {
		return nil, &Error{Path: path, Missing: missing}
	}

	cfg := &Config{Organize: organizer.DefaultConfig()}
	if _, err := toml.Decode(content, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyDefaults()

	if errs, _ := cfg.Validate(); len(errs) > 0 {
		return nil, &Error{Path: path, Errors: errs}
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = DefaultLogLevel
	}
	if c.Server.LogFormat == "" {
		c.Server.LogFormat = DefaultLogFormat
	}
	if c.Database.Path == "" {
		c.Database.Path = DefaultDatabasePath
	}
	if c.Database.EventRetention == 0 {
		c.Database.EventRetention = DefaultEventRetention
	}
	if c.Conversion.ArchiveInterval == 0 {
		c.Conversion.ArchiveInterval = DefaultArchiveInterval
	}
	if c.Watch.Debounce == 0 {
		c.Watch.Debounce = DefaultDebounce
	}
	c.Organize = c.Organize.WithDefaults()
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// LockPath is the instance lock file kept next to the database.
func (c *Config) LockPath() string {
	return c.Database.Path + ".lock"
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// substituteEnvVars replaces ${VAR_NAME} with environment variable values.
// Unset variables are left in place and reported.
func substituteEnvVars(content string) (string, []string) {
	var missing []string
	seen := make(map[string]bool)
	out := envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		name := match[2 : len(match)-1] // Strip ${ and }
		if value, ok := os.LookupEnv(name); ok {
			return value
		}
		if !seen[name] {
			seen[name] = true
			missing = append(missing, name)
		}
		return match
	})
	return out, missing
}

// IsNotFound reports whether err came from Discover finding no file.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
