// Command plexorgd watches a download directory and organizes completed
// files into a Plex library, serving the plexorg HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/vmunix/plexorg/internal/config"
	"github.com/vmunix/plexorg/internal/logging"
	"github.com/vmunix/plexorg/internal/server"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "Path to config file (default: discovered)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("plexorgd %s\n", version)
		os.Exit(0)
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(path string) error {
	if path == "" {
		var err error
		if path, err = config.Discover(); err != nil {
			return err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	logger := logging.New(os.Stdout, cfg.Server.LogLevel, cfg.Server.LogFormat)
	logger.Info("starting plexorgd", "version", version, "config", path, "addr", cfg.Addr())
	_, warnings := cfg.Validate()
	for _, w := range warnings {
		logger.Warn("config", "warning", w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := server.NewRunner(cfg, logger)
	go reloadOnHangup(ctx, runner, path, logger)

	if err := runner.Run(ctx); err != nil {
		if errors.Is(err, server.ErrLocked) {
			return fmt.Errorf("%w (database %s)", err, cfg.Database.Path)
		}
		return err
	}
	logger.Info("plexorgd stopped")
	return nil
}

// reloadOnHangup re-reads the config on SIGHUP. Only organize settings take
// effect without a restart.
func reloadOnHangup(ctx context.Context, runner *server.Runner, path string, logger *slog.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			cfg, err := config.Load(path)
			if err != nil {
				logger.Error("config reload failed", "error", err)
				continue
			}
			runner.SetConfig(cfg)
			logger.Info("config reloaded", "path", path)
		}
	}
}
