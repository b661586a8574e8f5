package handlers

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/vmunix/plexorg/internal/events"
	"github.com/vmunix/plexorg/internal/plex"
)

// Scanner asks a media server to rescan part of its library.
type Scanner interface {
	ScanDir(ctx context.Context, dir string) (*plex.Section, error)
	RefreshByType(ctx context.Context, sectionType string) (*plex.Section, error)
}

// PlexConfig configures the Plex refresh handler.
type PlexConfig struct {
	// TVLibraryDir marks paths under it as shows for the type fallback.
	TVLibraryDir string
}

// PlexHandler rescans library directories that were changed by a batch or a
// finished conversion.
type PlexHandler struct {
	*BaseHandler
	scanner Scanner
	config  PlexConfig
}

// NewPlexHandler creates the handler.
func NewPlexHandler(bus *events.Bus, scanner Scanner, config PlexConfig, logger *slog.Logger) *PlexHandler {
	return &PlexHandler{
		BaseHandler: NewBaseHandler(bus, "plex", logger),
		scanner:     scanner,
		config:      config,
	}
}

// Name returns the handler name.
func (h *PlexHandler) Name() string {
	return "plex"
}

// Start begins processing events.
func (h *PlexHandler) Start(ctx context.Context) error {
	organized := h.Bus().Subscribe(events.EventOrganizeCompleted, 100)
	converted := h.Bus().Subscribe(events.EventConversionCompleted, 100)

	for {
		select {
		case e := <-organized:
			if e == nil {
				return nil
			}
			if oc, ok := e.(*events.OrganizeCompleted); ok {
				for _, dir := range oc.LibraryPaths {
					h.refresh(ctx, dir)
				}
			}
		case e := <-converted:
			if e == nil {
				return nil
			}
			if cc, ok := e.(*events.ConversionCompleted); ok {
				h.refresh(ctx, filepath.Dir(cc.OutputPath))
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *PlexHandler) refresh(ctx context.Context, dir string) {
	section, err := h.scanner.ScanDir(ctx, dir)
	if errors.Is(err, plex.ErrNoSection) {
		kind := h.kindFor(dir)
		h.Logger().Debug("no section for path, refreshing by type", "path", dir, "type", kind)
		section, err = h.scanner.RefreshByType(ctx, kind)
	}
	if err != nil {
		h.Logger().Warn("plex refresh failed", "path", dir, "error", err)
		return
	}

	h.Logger().Info("plex refresh requested", "path", dir, "section", section.Title)
	h.publish(ctx, &events.LibraryRefreshed{
		BaseEvent: events.NewBaseEvent(events.EventLibraryRefreshed, events.EntityLibrary, section.Key),
		Section:   section.Title,
		Path:      dir,
	})
}

func (h *PlexHandler) kindFor(dir string) string {
	if h.config.TVLibraryDir == "" {
		return plex.TypeMovie
	}
	rel, err := filepath.Rel(h.config.TVLibraryDir, dir)
	if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return plex.TypeShow
	}
	return plex.TypeMovie
}
