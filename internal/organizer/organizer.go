// Package organizer decides, per completed download file, whether to link it
// into the Plex library, queue it for conversion, or leave it alone.
package organizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vmunix/plexorg/internal/analyzer"
	"github.com/vmunix/plexorg/internal/conversion"
	"github.com/vmunix/plexorg/internal/events"
	"github.com/vmunix/plexorg/internal/media"
	"github.com/vmunix/plexorg/internal/store"
	"github.com/vmunix/plexorg/internal/symlink"
)

//go:generate mockgen -destination=mocks/analyzer.go -package=mocks . Analyzer
//go:generate mockgen -destination=mocks/converter.go -package=mocks . Converter

// Analyzer probes a file for Plex compatibility.
type Analyzer interface {
	Analyze(ctx context.Context, path string) (analyzer.Analysis, error)
}

// Converter queues a transcode and returns the pending task without waiting.
type Converter interface {
	Submit(input, output string, opts conversion.Options) (conversion.Task, error)
}

// Recorder keeps bookkeeping about organized files. *store.Store implements it.
type Recorder interface {
	RecordFile(ctx context.Context, f media.CompletedFile) error
	AddHistory(ctx context.Context, h *store.HistoryEntry) error
	MarkOrganized(ctx context.Context, path string, at time.Time) error
}

// Action is what the coordinator did with a file.
type Action string

const (
	ActionSymlink Action = "symlink"
	ActionConvert Action = "convert"
	ActionSkip    Action = "skip"
)

// Result is the outcome for one input file.
type Result struct {
	File        string           `json:"file"`
	LibraryPath string           `json:"library_path,omitempty"`
	Action      Action           `json:"action"`
	Task        *conversion.Task `json:"task,omitempty"` // convert only
	Success     bool             `json:"success"`
	Error       string           `json:"error,omitempty"`
	Note        string           `json:"note,omitempty"`
	Err         error            `json:"-"`
}

// Skip notes.
const (
	noteDisabled    = "organization disabled"
	noteNotVideo    = "not a video file"
	noteNoAction    = "no action configured"
	noteLinkPresent = "symlink already in place"
)

// Option configures optional coordinator collaborators.
type Option func(*Coordinator)

// WithBus publishes organize events.
func WithBus(bus *events.Bus) Option {
	return func(c *Coordinator) { c.bus = bus }
}

// WithRecorder records every file and result.
func WithRecorder(r Recorder) Option {
	return func(c *Coordinator) { c.recorder = r }
}

// WithMetrics counts results in Prometheus.
func WithMetrics(m *Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// Coordinator runs the per-file organize policy over batches of files.
type Coordinator struct {
	analyzer  Analyzer
	linker    *symlink.Organizer
	converter Converter
	bus       *events.Bus
	recorder  Recorder
	metrics   *Metrics
	log       *slog.Logger
}

// New creates a coordinator. converter may be nil when conversion is never
// enabled; files that would need it are then skipped with an error.
func New(a Analyzer, linker *symlink.Organizer, converter Converter, logger *slog.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		analyzer:  a,
		linker:    linker,
		converter: converter,
		log:       logger.With("component", "organizer"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Organize produces one Result per file, in input order. Per-file failures
// are reported in the results; only an invalid cfg fails the call, with a
// *ConfigurationError. Conversions are queued, never awaited.
func (c *Coordinator) Organize(ctx context.Context, files []media.CompletedFile, cfg Config) ([]Result, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	batchID := newBatchID()
	start := time.Now()
	results := make([]Result, len(files))

	var g errgroup.Group
	g.SetLimit(cfg.Workers)
	for i, f := range files {
		g.Go(func() error {
			var r Result
			if err := ctx.Err(); err != nil {
				r = failed(f.Path, ActionSkip, err)
			} else {
				r = c.organizeFile(ctx, f, cfg)
			}
			results[i] = r
			c.record(ctx, batchID, f, r)
			return nil
		})
	}
	_ = g.Wait()

	summary := Summarize(results)
	c.metrics.batch(time.Since(start))
	c.log.Info("organize batch complete",
		"batch_id", batchID,
		"total", summary.Total,
		"symlinked", summary.Symlinked,
		"converting", summary.Converting,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"duration_ms", time.Since(start).Milliseconds())
	c.publish(context.WithoutCancel(ctx), &events.OrganizeCompleted{
		BaseEvent:    events.NewBaseEvent(events.EventOrganizeCompleted, events.EntityBatch, batchID),
		Total:        summary.Total,
		Symlinked:    summary.Symlinked,
		Converting:   summary.Converting,
		Skipped:      summary.Skipped,
		Failed:       summary.Failed,
		LibraryPaths: summary.LibraryPaths,
	})
	return results, nil
}

func (c *Coordinator) organizeFile(ctx context.Context, f media.CompletedFile, cfg Config) Result {
	log := c.log.With("file", f.Path)

	if !cfg.Enabled {
		return Result{File: f.Path, Action: ActionSkip, Success: true, Note: noteDisabled}
	}
	if !f.IsVideo() {
		return Result{File: f.Path, Action: ActionSkip, Success: true, Note: noteNotVideo}
	}
	if _, err := os.Stat(f.Path); err != nil {
		log.Warn("source missing", "error", err)
		return failed(f.Path, ActionSkip, fmt.Errorf("%w: %w", ErrSourceMissing, err))
	}

	analysis, err := c.analyzer.Analyze(ctx, f.Path)
	if err != nil {
		log.Warn("analysis failed", "error", err)
		return failed(f.Path, ActionSkip, err)
	}

	target, err := c.targetPath(f, cfg)
	if err != nil {
		return failed(f.Path, ActionSkip, err)
	}

	switch {
	case analysis.PlexCompatible && cfg.SymlinkCompatible:
		res, err := c.linker.Place(f.Path, target)
		if err != nil {
			log.Error("symlink failed", "target", target, "error", err)
			r := failed(f.Path, ActionSymlink, err)
			r.LibraryPath = target
			return r
		}
		log.Info("symlinked", "target", target, "result", res)
		r := Result{File: f.Path, LibraryPath: target, Action: ActionSymlink, Success: true}
		if res == symlink.PlaceUnchanged {
			r.Note = noteLinkPresent
		}
		return r

	case !analysis.PlexCompatible && cfg.ConvertIncompatible:
		output := strings.TrimSuffix(target, filepath.Ext(target)) + ".mp4"
		if c.converter == nil {
			return failed(f.Path, ActionConvert, errors.New("no converter configured"))
		}
		task, err := c.converter.Submit(f.Path, output, cfg.Conversion)
		if err != nil {
			log.Error("enqueue conversion failed", "output", output, "error", err)
			r := failed(f.Path, ActionConvert, err)
			r.LibraryPath = output
			return r
		}
		log.Info("conversion queued", "output", output, "task_id", task.ID,
			"reasons", strings.Join(analysis.Reasons, "; "))
		return Result{File: f.Path, LibraryPath: output, Action: ActionConvert, Task: &task, Success: true}

	default:
		note := noteNoAction
		if analysis.PlexCompatible {
			note += ": symlinking disabled"
		} else {
			note += ": conversion disabled"
		}
		return Result{File: f.Path, Action: ActionSkip, Success: true, Note: note}
	}
}

func failed(path string, action Action, err error) Result {
	return Result{File: path, Action: action, Success: false, Error: err.Error(), Err: err}
}

func newBatchID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// record is best effort and outlives a cancelled batch.
func (c *Coordinator) record(ctx context.Context, batchID string, f media.CompletedFile, r Result) {
	ctx = context.WithoutCancel(ctx)
	c.metrics.result(r)

	taskID := ""
	if r.Task != nil {
		taskID = r.Task.ID
	}

	if c.recorder != nil {
		if err := c.recorder.RecordFile(ctx, f); err != nil {
			c.log.Warn("record file failed", "file", f.Path, "error", err)
		}
		h := &store.HistoryEntry{
			BatchID:     batchID,
			File:        r.File,
			LibraryPath: r.LibraryPath,
			Action:      string(r.Action),
			Success:     r.Success,
			Error:       r.Error,
			Note:        r.Note,
			TaskID:      taskID,
		}
		if err := c.recorder.AddHistory(ctx, h); err != nil {
			c.log.Warn("record history failed", "file", f.Path, "error", err)
		}
		if r.Success && r.Action != ActionSkip {
			if err := c.recorder.MarkOrganized(ctx, f.Path, time.Now()); err != nil {
				c.log.Warn("mark organized failed", "file", f.Path, "error", err)
			}
		}
	}

	c.publish(ctx, &events.FileOrganized{
		BaseEvent:   events.NewBaseEvent(events.EventOrganizeFile, events.EntityFile, r.File),
		Path:        r.File,
		LibraryPath: r.LibraryPath,
		Action:      string(r.Action),
		Success:     r.Success,
		TaskID:      taskID,
		Error:       r.Error,
		Note:        r.Note,
	})
}

func (c *Coordinator) publish(ctx context.Context, e events.Event) {
	if c.bus == nil {
		return
	}
	if err := c.bus.Publish(ctx, e); err != nil {
		c.log.Warn("publish failed", "type", e.EventType(), "error", err)
	}
}
