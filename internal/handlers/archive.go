package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/vmunix/plexorg/internal/conversion"
	"github.com/vmunix/plexorg/internal/events"
)

// DefaultArchiveInterval is how often finished conversions are swept.
const DefaultArchiveInterval = 10 * time.Minute

// Sweeper drops finished tasks from memory, archiving them.
type Sweeper interface {
	ClearFinished(ctx context.Context) []conversion.Task
}

// EventPruner deletes persisted events older than a cutoff.
type EventPruner interface {
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// ArchiveHandler periodically moves finished conversion tasks out of the
// engine's in-memory table and trims the event log.
type ArchiveHandler struct {
	*BaseHandler
	sweeper   Sweeper
	interval  time.Duration
	pruner    EventPruner
	retention time.Duration
}

// NewArchiveHandler creates the handler. A non-positive interval uses
// DefaultArchiveInterval.
func NewArchiveHandler(bus *events.Bus, sweeper Sweeper, interval time.Duration, logger *slog.Logger) *ArchiveHandler {
	if interval <= 0 {
		interval = DefaultArchiveInterval
	}
	return &ArchiveHandler{
		BaseHandler: NewBaseHandler(bus, "archive", logger),
		sweeper:     sweeper,
		interval:    interval,
	}
}

// PruneEvents makes every sweep also delete events older than retention.
func (h *ArchiveHandler) PruneEvents(p EventPruner, retention time.Duration) *ArchiveHandler {
	h.pruner, h.retention = p, retention
	return h
}

// Name returns the handler name.
func (h *ArchiveHandler) Name() string {
	return "archive"
}

// Start sweeps on every tick until ctx is done.
func (h *ArchiveHandler) Start(ctx context.Context) error {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.sweep(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *ArchiveHandler) sweep(ctx context.Context) {
	removed := h.sweeper.ClearFinished(ctx)
	if len(removed) > 0 {
		h.Logger().Info("archived finished conversions", "count", len(removed))
	}
	if h.pruner == nil || h.retention <= 0 {
		return
	}
	n, err := h.pruner.Prune(ctx, h.retention)
	if err != nil {
		h.Logger().Warn("prune events failed", "error", err)
		return
	}
	if n > 0 {
		h.Logger().Info("pruned old events", "count", n, "retention", h.retention)
	}
}
