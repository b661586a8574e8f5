package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vmunix/plexorg/internal/analyzer"
	"github.com/vmunix/plexorg/internal/config"
	"github.com/vmunix/plexorg/internal/conversion"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
}

var configTestCmd = &cobra.Command{
	Use:   "test [path]",
	Short: "Validate configuration file",
	Long:  "Validates config.toml syntax, required fields, and environment variable substitution without starting the daemon.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigTest,
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write an example configuration file",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file that would be used",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		path, err := config.Discover()
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configTestCmd, configInitCmd, configPathCmd)
	configInitCmd.Flags().Bool("force", false, "Overwrite an existing file")
}

func runConfigTest(cmd *cobra.Command, args []string) error {
	path := configPath
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		var err error
		if path, err = config.Discover(); err != nil {
			return err
		}
	}

	fmt.Printf("Validating %s...\n\n", path)

	cfg, err := config.Load(path)
	if err != nil {
		var configErr *config.Error
		if errors.As(err, &configErr) {
			printConfigErrors(configErr)
			return fmt.Errorf("configuration invalid")
		}
		return fmt.Errorf("failed to load config: %w", err)
	}

	_, warnings := cfg.Validate()
	if len(warnings) > 0 {
		fmt.Println("Warnings:")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
		fmt.Println()
	}

	printConfigSummary(cfg)
	if !checkTools(cmd.Context(), cfg) {
		return fmt.Errorf("required tools missing")
	}
	fmt.Println("\nConfiguration valid!")
	return nil
}

// checkTools reports whether ffprobe and ffmpeg are usable. ffmpeg is only
// required when conversion is enabled.
func checkTools(ctx context.Context, cfg *config.Config) bool {
	ok := true
	fmt.Println("\nTools:")

	a := analyzer.New(analyzer.FFProbe{Binary: cfg.Analysis.FFprobePath},
		analyzer.Config{Timeout: cfg.Analysis.Timeout}, cliLogger(cfg))
	if v, err := a.CheckInstallation(ctx); err != nil {
		fmt.Printf("  ffprobe:     missing (%v)\n", err)
		ok = false
	} else {
		fmt.Printf("  ffprobe:     %s\n", v)
	}

	ff := &conversion.FFmpeg{Binary: cfg.Conversion.FFmpegPath}
	switch err := ff.CheckEncoders(ctx); {
	case err == nil:
		fmt.Println("  ffmpeg:      libx264 and aac available")
	case !cfg.Organize.ConvertIncompatible:
		fmt.Printf("  ffmpeg:      unavailable, conversion disabled (%v)\n", err)
	default:
		fmt.Printf("  ffmpeg:      unusable (%v)\n", err)
		ok = false
	}
	return ok
}

func printConfigErrors(e *config.Error) {
	if len(e.Missing) > 0 {
		fmt.Println("Missing environment variables:")
		for _, m := range e.Missing {
			fmt.Printf("  - %s\n", m)
		}
		fmt.Println()
	}

	if len(e.Errors) > 0 {
		fmt.Println("Validation errors:")
		for _, err := range e.Errors {
			fmt.Printf("  - %s\n", err)
		}
		fmt.Println()
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func printConfigSummary(cfg *config.Config) {
	o := cfg.Organize
	fmt.Println("Configuration Summary:")
	fmt.Printf("  Server:      %s (log: %s, %s)\n", cfg.Addr(), cfg.Server.LogLevel, cfg.Server.LogFormat)
	fmt.Printf("  Database:    %s\n", cfg.Database.Path)
	fmt.Printf("  Organize:    %s, media root %q\n", onOff(o.Enabled), o.MediaRoot)
	fmt.Printf("  Libraries:   %s, %s\n", o.MovieLibrary, o.TVLibrary)
	fmt.Printf("  Symlink:     %s\n", onOff(o.SymlinkCompatible))
	fmt.Printf("  Convert:     %s (crf %d, preset %s, %d at once)\n",
		onOff(o.ConvertIncompatible), o.Conversion.CRF, o.Conversion.Preset, cfg.Conversion.MaxConcurrent)
	if cfg.Watch.Enabled {
		fmt.Printf("  Watch:       %s (debounce %s)\n", cfg.Watch.Path, cfg.Watch.Debounce)
	}
	if cfg.Plex != nil {
		fmt.Printf("  Plex:        %s\n", cfg.Plex.URL)
	}
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := config.DefaultPath()
	if len(args) > 0 {
		path = args[0]
	}
	force, _ := cmd.Flags().GetBool("force")
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := config.WriteDefault(path); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}
