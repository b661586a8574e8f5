// Package watcher detects finished files in a download directory and
// announces them on the event bus.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vmunix/plexorg/internal/events"
)

// DefaultDebounce is how long a file must stay quiet before it is announced.
const DefaultDebounce = 5 * time.Second

// Suffixes written by download clients and ffmpeg while a file is in flight.
var incompleteSuffixes = []string{".part", ".partial", ".!qb", ".tmp", ".crdownload"}

// Publisher receives file.completed events.
type Publisher interface {
	Publish(ctx context.Context, e events.Event) error
}

// Config configures a Watcher.
type Config struct {
	Root     string
	Debounce time.Duration
}

// Watcher watches Root and every directory below it. A file is announced
// once it has seen no writes for the debounce period.
type Watcher struct {
	cfg Config
	pub Publisher
	log *slog.Logger

	fsw *fsnotify.Watcher

	mu     sync.Mutex
	timers map[string]*time.Timer
	sizes  map[string]int64
}

// New creates a watcher. Nothing is watched until Run.
func New(cfg Config, pub Publisher, logger *slog.Logger) (*Watcher, error) {
	if cfg.Root == "" {
		return nil, errors.New("watch root is required")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	return &Watcher{
		cfg:    cfg,
		pub:    pub,
		log:    logger.With("component", "watcher"),
		fsw:    fsw,
		timers: make(map[string]*time.Timer),
		sizes:  make(map[string]int64),
	}, nil
}

// Run watches until ctx is done, then releases the underlying watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.stop()

	if err := w.addTree(w.cfg.Root); err != nil {
		return err
	}
	w.log.Info("watching for completed files", "root", w.cfg.Root, "debounce", w.cfg.Debounce)
	w.announceExisting(ctx, w.cfg.Root)

	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Error("watch error", "error", err)
		case <-ctx.Done():
			return nil
		}
	}
}

func (w *Watcher) stop() {
	w.mu.Lock()
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
	w.mu.Unlock()
	_ = w.fsw.Close()
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		w.forget(ev.Name)
		return
	}
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return
	}

	info, err := os.Stat(ev.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		if ev.Has(fsnotify.Create) && !isHidden(info.Name()) {
			if err := w.addTree(ev.Name); err != nil {
				w.log.Warn("watch new directory failed", "path", ev.Name, "error", err)
			}
			w.announceExisting(ctx, ev.Name)
		}
		return
	}
	if !candidate(ev.Name) {
		return
	}
	w.schedule(ctx, ev.Name)
}

// announceExisting schedules files that landed in a directory before it was
// watched: the whole root at start, or a completed download moved in as a
// whole.
func (w *Watcher) announceExisting(ctx context.Context, dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != dir && isHidden(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !candidate(path) {
			return nil
		}
		w.schedule(ctx, path)
		return nil
	})
}

// schedule (re)starts the quiet-period timer for path.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.cfg.Debounce, func() { w.settle(ctx, path) })
}

func (w *Watcher) forget(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Stop()
		delete(w.timers, path)
	}
	delete(w.sizes, path)
}

// settle announces path if its size held still over the last quiet period,
// otherwise waits another period.
func (w *Watcher) settle(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil {
		w.forget(path)
		return
	}

	w.mu.Lock()
	prev, seen := w.sizes[path]
	if !seen || prev != info.Size() {
		w.sizes[path] = info.Size()
		w.timers[path] = time.AfterFunc(w.cfg.Debounce, func() { w.settle(ctx, path) })
		w.mu.Unlock()
		return
	}
	delete(w.timers, path)
	delete(w.sizes, path)
	w.mu.Unlock()

	w.log.Info("file completed", "path", path, "size_bytes", info.Size())
	e := &events.FileCompleted{
		BaseEvent: events.NewBaseEvent(events.EventFileCompleted, events.EntityFile, path),
		Path:      path,
		Name:      filepath.Base(path),
		Size:      info.Size(),
	}
	if err := w.pub.Publish(context.WithoutCancel(ctx), e); err != nil {
		w.log.Warn("publish file.completed failed", "path", path, "error", err)
	}
}

func candidate(path string) bool {
	name := filepath.Base(path)
	if isHidden(name) {
		return false
	}
	lower := strings.ToLower(name)
	for _, s := range incompleteSuffixes {
		if strings.HasSuffix(lower, s) {
			return false
		}
	}
	return true
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
