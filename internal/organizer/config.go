package organizer

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/vmunix/plexorg/internal/conversion"
)

const (
	DefaultMovieLibrary = "Movies"
	DefaultTVLibrary    = "TV Shows"
	DefaultWorkers      = 1
	MaxWorkers          = 16
)

// Config is the snapshot of settings one Organize call runs under.
type Config struct {
	Enabled             bool               `toml:"enabled" json:"enabled"`
	MediaRoot           string             `toml:"media_root" json:"media_root" validate:"required_if=Enabled true"`
	MovieLibrary        string             `toml:"movie_library" json:"movie_library" validate:"required,excludesall=/\\"`
	TVLibrary           string             `toml:"tv_library" json:"tv_library" validate:"required,excludesall=/\\"`
	SymlinkCompatible   bool               `toml:"symlink_compatible" json:"symlink_compatible"`
	ConvertIncompatible bool               `toml:"convert_incompatible" json:"convert_incompatible"`
	Conversion          conversion.Options `toml:"conversion" json:"conversion"`
	Workers             int                `toml:"workers" json:"workers" validate:"min=0,max=16"`
}

// DefaultConfig returns an enabled configuration that symlinks compatible
// files and converts the rest. MediaRoot must still be set.
func DefaultConfig() Config {
	return Config{
		Enabled:             true,
		MovieLibrary:        DefaultMovieLibrary,
		TVLibrary:           DefaultTVLibrary,
		SymlinkCompatible:   true,
		ConvertIncompatible: true,
		Conversion:          conversion.DefaultOptions(),
		Workers:             DefaultWorkers,
	}
}

// WithDefaults fills unset library names, worker count and encoding options.
func (c Config) WithDefaults() Config {
	if c.MovieLibrary == "" {
		c.MovieLibrary = DefaultMovieLibrary
	}
	if c.TVLibrary == "" {
		c.TVLibrary = DefaultTVLibrary
	}
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
	c.Conversion = c.Conversion.WithDefaults()
	return c
}

var validate = validator.New()

// Validate checks the configuration. Every failure is a *ConfigurationError.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &ConfigurationError{
				Field:  fe.Namespace(),
				Reason: describe(fe),
				Err:    err,
			}
		}
		return &ConfigurationError{Reason: "invalid configuration", Err: err}
	}

	if c.Enabled && !filepath.IsAbs(c.MediaRoot) {
		return &ConfigurationError{Field: "Config.MediaRoot", Reason: fmt.Sprintf("must be an absolute path, got %q", c.MediaRoot)}
	}
	for field, dir := range map[string]string{"Config.MovieLibrary": c.MovieLibrary, "Config.TVLibrary": c.TVLibrary} {
		if dir == "." || dir == ".." || strings.TrimSpace(dir) == "" {
			return &ConfigurationError{Field: field, Reason: fmt.Sprintf("invalid library directory %q", dir)}
		}
	}
	if c.ConvertIncompatible {
		if err := c.Conversion.Validate(); err != nil {
			return &ConfigurationError{Field: "Config.Conversion", Reason: err.Error(), Err: err}
		}
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "is required"
	case "excludesall":
		return "must be a single directory name"
	case "min", "max":
		return fmt.Sprintf("must be between 0 and %d", MaxWorkers)
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}
