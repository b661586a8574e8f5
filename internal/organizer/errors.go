package organizer

import (
	"errors"
	"fmt"
)

// ErrSourceMissing indicates the completed file no longer exists.
var ErrSourceMissing = errors.New("source file does not exist")

// ConfigurationError means no per-file decision is possible. It is the only
// error Organize returns.
type ConfigurationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration: " + e.Reason
	}
	return fmt.Sprintf("configuration: %s %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}
