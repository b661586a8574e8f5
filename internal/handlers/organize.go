package handlers

import (
	"context"
	"log/slog"
	"sync"

	"github.com/vmunix/plexorg/internal/events"
	"github.com/vmunix/plexorg/internal/media"
	"github.com/vmunix/plexorg/internal/organizer"
	"github.com/vmunix/plexorg/internal/store"
)

// Organizer runs the organize policy over files.
type Organizer interface {
	Organize(ctx context.Context, files []media.CompletedFile, cfg organizer.Config) ([]organizer.Result, error)
}

// FileLookup returns what is recorded about a file. *store.Store implements it.
type FileLookup interface {
	GetFile(ctx context.Context, path string) (*store.FileRecord, error)
}

// ConfigSource returns the organize settings to use for the next batch.
type ConfigSource func() organizer.Config

// OrganizeHandler organizes each file announced by a file.completed event.
type OrganizeHandler struct {
	*BaseHandler
	organizer Organizer
	config    ConfigSource
	files     FileLookup // optional

	// Per-path lock; the same file is never organized concurrently.
	inflight sync.Map // map[string]struct{}
	wg       sync.WaitGroup
}

// NewOrganizeHandler creates the handler.
func NewOrganizeHandler(bus *events.Bus, org Organizer, config ConfigSource, logger *slog.Logger) *OrganizeHandler {
	return &OrganizeHandler{
		BaseHandler: NewBaseHandler(bus, "organize", logger),
		organizer:   org,
		config:      config,
	}
}

// SkipOrganized makes the handler ignore files already organized at their
// current size, such as those announced again when the watcher restarts.
func (h *OrganizeHandler) SkipOrganized(files FileLookup) *OrganizeHandler {
	h.files = files
	return h
}

// Name returns the handler name.
func (h *OrganizeHandler) Name() string {
	return "organize"
}

// Start begins processing events. In-flight files finish before it returns.
func (h *OrganizeHandler) Start(ctx context.Context) error {
	completed := h.Bus().Subscribe(events.EventFileCompleted, 100)
	defer h.wg.Wait()

	for {
		select {
		case e := <-completed:
			if e == nil {
				return nil // Channel closed
			}
			fc, ok := e.(*events.FileCompleted)
			if !ok {
				continue
			}
			h.wg.Add(1)
			go func() {
				defer h.wg.Done()
				h.handleFileCompleted(ctx, fc)
			}()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *OrganizeHandler) handleFileCompleted(ctx context.Context, e *events.FileCompleted) {
	if _, loaded := h.inflight.LoadOrStore(e.Path, struct{}{}); loaded {
		h.Logger().Warn("organize already in progress", "path", e.Path)
		return
	}
	defer h.inflight.Delete(e.Path)

	f, err := media.Describe(e.Path)
	if err != nil {
		h.Logger().Error("describe completed file", "path", e.Path, "error", err)
		return
	}
	f.DownloadID = e.DownloadID
	if h.alreadyOrganized(ctx, f) {
		h.Logger().Debug("already organized", "path", f.Path)
		return
	}

	results, err := h.organizer.Organize(ctx, []media.CompletedFile{f}, h.config())
	if err != nil {
		h.Logger().Error("organize failed", "path", e.Path, "error", err)
		return
	}
	for _, r := range results {
		h.Logger().Debug("organized", "path", r.File, "action", r.Action, "success", r.Success)
	}
}

func (h *OrganizeHandler) alreadyOrganized(ctx context.Context, f media.CompletedFile) bool {
	if h.files == nil {
		return false
	}
	rec, err := h.files.GetFile(ctx, f.Path)
	if err != nil {
		return false
	}
	return !rec.OrganizedAt.IsZero() && rec.Size == f.Size
}
