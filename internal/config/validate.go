package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/vmunix/plexorg/internal/conversion"
	"github.com/vmunix/plexorg/internal/organizer"
)

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true, "": true,
}

var validLogFormats = map[string]bool{
	"text": true, "logfmt": true, "json": true, "": true,
}

// Validate checks the configuration. errs are fatal; warnings describe
// settings that will work but are probably not what was meant.
func (c *Config) Validate() (errs, warnings []string) {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port: must be between 1 and 65535, got %d", c.Server.Port))
	}
	if !validLogLevels[c.Server.LogLevel] {
		errs = append(errs, fmt.Sprintf("server.log_level: must be one of debug, info, warn, error; got %q", c.Server.LogLevel))
	}
	if !validLogFormats[c.Server.LogFormat] {
		errs = append(errs, fmt.Sprintf("server.log_format: must be one of text, logfmt, json; got %q", c.Server.LogFormat))
	}

	if err := c.Organize.Validate(); err != nil {
		var ce *organizer.ConfigurationError
		if errors.As(err, &ce) {
			errs = append(errs, fmt.Sprintf("organize: %s: %s", ce.Field, ce.Reason))
		} else {
			errs = append(errs, fmt.Sprintf("organize: %v", err))
		}
	}

	mc := c.Conversion.MaxConcurrent
	if mc != 0 && (mc < conversion.MinConcurrent || mc > conversion.MaxConcurrentLimit) {
		errs = append(errs, fmt.Sprintf("conversion.max_concurrent: must be between %d and %d, got %d",
			conversion.MinConcurrent, conversion.MaxConcurrentLimit, mc))
	}
	if c.Conversion.Timeout < 0 {
		errs = append(errs, "conversion.timeout: must not be negative")
	}
	if c.Analysis.Timeout < 0 {
		errs = append(errs, "analysis.timeout: must not be negative")
	}

	if c.Watch.Enabled && c.Watch.Path == "" {
		errs = append(errs, "watch.path: required when watch is enabled")
	}

	if c.Plex != nil {
		if c.Plex.URL == "" {
			errs = append(errs, "plex.url: required when plex is configured")
		}
		if c.Plex.Token == "" {
			errs = append(errs, "plex.token: required when plex is configured")
		}
		if (c.Plex.LocalPath == "") != (c.Plex.RemotePath == "") {
			errs = append(errs, "plex: local_path and remote_path must be set together")
		}
	}

	// Non-fatal
	if c.Organize.Enabled && c.Organize.MediaRoot != "" {
		if _, err := os.Stat(c.Organize.MediaRoot); os.IsNotExist(err) {
			warnings = append(warnings, fmt.Sprintf("organize.media_root: directory %q does not exist", c.Organize.MediaRoot))
		}
	}
	if c.Watch.Enabled && c.Watch.Path != "" {
		if _, err := os.Stat(c.Watch.Path); os.IsNotExist(err) {
			warnings = append(warnings, fmt.Sprintf("watch.path: directory %q does not exist", c.Watch.Path))
		}
	}
	if c.Organize.Enabled && !c.Organize.SymlinkCompatible && !c.Organize.ConvertIncompatible {
		warnings = append(warnings, "organize: enabled but neither symlink_compatible nor convert_incompatible is set")
	}
	if c.Organize.Enabled && c.Plex == nil {
		warnings = append(warnings, "plex: not configured, libraries will not be rescanned")
	}

	return errs, warnings
}
