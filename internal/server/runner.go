// Package server wires the daemon: store, event bus, engine, handlers,
// watcher and HTTP API, run together until the context ends.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	v1 "github.com/vmunix/plexorg/internal/api/v1"
	"github.com/vmunix/plexorg/internal/config"
	"github.com/vmunix/plexorg/internal/events"
	"github.com/vmunix/plexorg/internal/handlers"
	"github.com/vmunix/plexorg/internal/organizer"
	"github.com/vmunix/plexorg/internal/store"
	"github.com/vmunix/plexorg/internal/watcher"
)

// ErrLocked means another daemon holds the instance lock.
var ErrLocked = errors.New("another plexorg daemon is running")

const shutdownTimeout = 10 * time.Second

// Runner manages the event-driven components.
type Runner struct {
	logger *slog.Logger

	mu  sync.RWMutex
	cfg *config.Config

	ready chan net.Addr // receives the bound HTTP address; tests only
}

// NewRunner creates a new runner.
func NewRunner(cfg *config.Config, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{cfg: cfg, logger: logger}
}

// SetConfig swaps the configuration used for later organize batches.
func (r *Runner) SetConfig(cfg *config.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg = cfg
}

func (r *Runner) organizeConfig() organizer.Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg.Organize
}

// Run starts all components. It blocks until the context is canceled or a
// component fails.
func (r *Runner) Run(ctx context.Context) error {
	cfg := r.cfg
	log := r.logger.With("component", "server")

	if err := os.MkdirAll(filepath.Dir(cfg.LockPath()), 0755); err != nil {
		return fmt.Errorf("create lock dir: %w", err)
	}
	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w (lock %s)", ErrLocked, cfg.LockPath())
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			log.Warn("failed to release daemon lock", "error", err)
		}
	}()

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	eventLog := events.NewEventLog(st.DB())
	bus := events.NewBus(eventLog, r.logger.With("component", "bus"))
	defer bus.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "plexorg_bus_dropped_events_total",
			Help: "Event deliveries skipped because a subscriber was full.",
		}, func() float64 { return float64(bus.Dropped()) }),
	)

	svc := NewServices(cfg, Deps{Store: st, Bus: bus, Registry: reg}, r.logger)
	defer func() { _ = svc.Engine.Close() }()

	deps := v1.ServerDeps{
		Conversions: svc.Engine,
		Organizer:   svc.Coordinator,
		Store:       st,
		Config:      r.organizeConfig,
		Analyzer:    svc.Analyzer,
		EventLog:    eventLog,
		Bus:         bus,
	}
	if svc.Plex != nil {
		deps.Plex = svc.Plex
	}
	api, err := v1.New(deps)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	api.RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	hs := []handlers.Handler{
		handlers.NewOrganizeHandler(bus, svc.Coordinator, r.organizeConfig, r.logger).SkipOrganized(st),
		handlers.NewArchiveHandler(bus, svc.Engine, cfg.Conversion.ArchiveInterval, r.logger).
			PruneEvents(eventLog, cfg.Database.EventRetention),
	}
	if svc.Plex != nil {
		tvDir := filepath.Join(cfg.Organize.MediaRoot, cfg.Organize.TVLibrary)
		hs = append(hs, handlers.NewPlexHandler(bus, svc.Plex, handlers.PlexConfig{TVLibraryDir: tvDir}, r.logger))
	}

	var w *watcher.Watcher
	if cfg.Watch.Enabled {
		w, err = watcher.New(watcher.Config{Root: cfg.Watch.Path, Debounce: cfg.Watch.Debounce}, bus, r.logger)
		if err != nil {
			return err
		}
	}

	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Addr(), err)
	}
	srv := &http.Server{
		Handler:           v1.LogRequests(mux, r.logger.With("component", "http")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	for _, h := range hs {
		g.Go(func() error {
			log.Debug("starting handler", "handler", h.Name())
			if err := h.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("handler %s: %w", h.Name(), err)
			}
			return nil
		})
	}
	if w != nil {
		g.Go(func() error { return w.Run(ctx) })
	}
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	log.Info("plexorg daemon started", "addr", ln.Addr().String(), "watch", cfg.Watch.Enabled, "plex", svc.Plex != nil)
	if r.ready != nil {
		r.ready <- ln.Addr()
	}

	err = g.Wait()
	log.Info("plexorg daemon stopped")
	return err
}
