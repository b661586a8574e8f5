package server

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vmunix/plexorg/internal/analyzer"
	"github.com/vmunix/plexorg/internal/config"
	"github.com/vmunix/plexorg/internal/conversion"
	"github.com/vmunix/plexorg/internal/events"
	"github.com/vmunix/plexorg/internal/organizer"
	"github.com/vmunix/plexorg/internal/plex"
	"github.com/vmunix/plexorg/internal/store"
	"github.com/vmunix/plexorg/internal/symlink"
)

// Services are the long-lived components shared by the daemon and the CLI.
type Services struct {
	Analyzer    organizer.Analyzer
	Cache       *analyzer.Cache // nil unless analysis.cache is set
	Engine      *conversion.Engine
	Coordinator *organizer.Coordinator
	Plex        *plex.Client // nil unless [plex] is configured
}

// Deps are the optional shared collaborators for NewServices.
type Deps struct {
	Store    *store.Store
	Bus      *events.Bus
	Registry prometheus.Registerer
}

// NewServices builds the analyzer, conversion engine, coordinator and Plex
// client from cfg. Callers own Engine and must Close it.
func NewServices(cfg *config.Config, deps Deps, logger *slog.Logger) *Services {
	probe := analyzer.FFProbe{Binary: cfg.Analysis.FFprobePath}
	base := analyzer.New(probe, analyzer.Config{Timeout: cfg.Analysis.Timeout}, logger)

	s := &Services{Analyzer: base}
	if cfg.Analysis.Cache {
		s.Cache = analyzer.NewCache(base, logger)
		s.Analyzer = s.Cache
	}

	var engineOpts []conversion.Option
	var orgOpts []organizer.Option
	if deps.Bus != nil {
		engineOpts = append(engineOpts, conversion.WithBus(deps.Bus))
		orgOpts = append(orgOpts, organizer.WithBus(deps.Bus))
	}
	if deps.Store != nil {
		engineOpts = append(engineOpts, conversion.WithArchiver(deps.Store))
		orgOpts = append(orgOpts, organizer.WithRecorder(deps.Store))
	}
	if deps.Registry != nil {
		if s.Cache != nil {
			registerCacheMetrics(deps.Registry, s.Cache)
		}
		engineOpts = append(engineOpts, conversion.WithMetrics(conversion.NewMetrics(deps.Registry)))
		orgOpts = append(orgOpts, organizer.WithMetrics(organizer.NewMetrics(deps.Registry)))
	}

	s.Engine = conversion.New(
		&conversion.FFmpeg{Binary: cfg.Conversion.FFmpegPath},
		conversion.Config{MaxConcurrent: cfg.Conversion.MaxConcurrent, Timeout: cfg.Conversion.Timeout},
		logger,
		engineOpts...,
	)
	s.Coordinator = organizer.New(s.Analyzer, symlink.New(logger), s.Engine, logger, orgOpts...)

	if cfg.Plex != nil {
		var opts []plex.Option
		if cfg.Plex.LocalPath != "" {
			opts = append(opts, plex.WithPathMapping(cfg.Plex.LocalPath, cfg.Plex.RemotePath))
		}
		s.Plex = plex.New(cfg.Plex.URL, cfg.Plex.Token, logger, opts...)
	}
	return s
}

func registerCacheMetrics(reg prometheus.Registerer, c *analyzer.Cache) {
	reg.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "plexorg_analysis_cache_hits_total",
			Help: "Analyses served from the cache.",
		}, func() float64 { hits, _ := c.Stats(); return float64(hits) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "plexorg_analysis_cache_misses_total",
			Help: "Analyses that ran ffprobe.",
		}, func() float64 { _, misses := c.Stats(); return float64(misses) }),
	)
}
