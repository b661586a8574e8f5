package v1

import (
	"context"
	"errors"

	"github.com/vmunix/plexorg/internal/analyzer"
	"github.com/vmunix/plexorg/internal/conversion"
	"github.com/vmunix/plexorg/internal/events"
	"github.com/vmunix/plexorg/internal/media"
	"github.com/vmunix/plexorg/internal/organizer"
	"github.com/vmunix/plexorg/internal/plex"
	"github.com/vmunix/plexorg/internal/store"
)

//go:generate mockgen -destination=mocks/conversions.go -package=mocks . Conversions
//go:generate mockgen -destination=mocks/organizer.go -package=mocks . Organizer

// ErrMissingDependency is returned when a required dependency is nil.
var ErrMissingDependency = errors.New("missing required dependency")

// Conversions is the conversion engine as seen by the API.
type Conversions interface {
	List() []conversion.Task
	Get(id string) (conversion.Task, error)
	Cancel(id string) error
	Stats() conversion.Stats
	SetMaxConcurrent(n int) error
}

// Organizer runs the organize policy.
type Organizer interface {
	Organize(ctx context.Context, files []media.CompletedFile, cfg organizer.Config) ([]organizer.Result, error)
}

// Analyzer probes a single file.
type Analyzer interface {
	Analyze(ctx context.Context, path string) (analyzer.Analysis, error)
}

// PlexClient defines the Plex operations the API exposes.
type PlexClient interface {
	Identity(ctx context.Context) (*plex.Identity, error)
	Sections(ctx context.Context) ([]plex.Section, error)
	ScanDir(ctx context.Context, dir string) (*plex.Section, error)
}

// ServerDeps contains all dependencies for the API server.
// Required dependencies must be non-nil; optional dependencies may be nil.
type ServerDeps struct {
	// Required dependencies
	Conversions Conversions
	Organizer   Organizer
	Store       *store.Store
	Config      func() organizer.Config

	// Optional dependencies (nil if not configured)
	Analyzer Analyzer
	Plex     PlexClient
	EventLog *events.EventLog
	Bus      *events.Bus
}

// Validate checks that all required dependencies are provided.
func (d ServerDeps) Validate() error {
	if d.Conversions == nil {
		return errors.New("conversions engine is required")
	}
	if d.Organizer == nil {
		return errors.New("organizer is required")
	}
	if d.Store == nil {
		return errors.New("store is required")
	}
	if d.Config == nil {
		return errors.New("organize config source is required")
	}
	return nil
}
