package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vmunix/plexorg/internal/config"
	"github.com/vmunix/plexorg/internal/plex"
)

var plexCmd = &cobra.Command{
	Use:   "plex",
	Short: "Plex media server commands (local)",
}

var plexStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show Plex server identity and library sections",
	Args:  cobra.NoArgs,
	RunE:  runPlexStatus,
}

var plexScanCmd = &cobra.Command{
	Use:   "scan <dir>",
	Short: "Ask Plex to scan a library directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlexScan,
}

var plexFindCmd = &cobra.Command{
	Use:   "find <title>",
	Short: "Check whether Plex already has a movie or show",
	Long: `Search Plex for a title. Matching is fuzzy; for movies a year off by
one is tolerated.

Examples:
  plexorg plex find "Heat" --year 1995
  plexorg plex find "Shogun" --show`,
	Args: cobra.ExactArgs(1),
	RunE: runPlexFind,
}

func init() {
	rootCmd.AddCommand(plexCmd)
	plexCmd.AddCommand(plexStatusCmd, plexScanCmd, plexFindCmd)
	plexFindCmd.Flags().Int("year", 0, "Release year (movies)")
	plexFindCmd.Flags().Bool("show", false, "Search TV shows instead of movies")
}

func plexClient(cfg *config.Config) (*plex.Client, error) {
	if cfg.Plex == nil {
		return nil, errors.New("plex is not configured")
	}
	var opts []plex.Option
	if cfg.Plex.LocalPath != "" {
		opts = append(opts, plex.WithPathMapping(cfg.Plex.LocalPath, cfg.Plex.RemotePath))
	}
	return plex.New(cfg.Plex.URL, cfg.Plex.Token, cliLogger(cfg), opts...), nil
}

func runPlexStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	client, err := plexClient(cfg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()

	id, err := client.Identity(ctx)
	if err != nil {
		return err
	}
	sections, err := client.Sections(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]any{"identity": id, "sections": sections})
		return nil
	}

	fmt.Printf("Server: %s (%s)\n\n", id.Name, id.Version)
	rows := make([][]string, 0, len(sections))
	for _, s := range sections {
		locs := make([]string, 0, len(s.Locations))
		for _, l := range s.Locations {
			locs = append(locs, client.ToLocal(l.Path))
		}
		state := "idle"
		if s.Refreshing() {
			state = "scanning"
		}
		scanned := "never"
		if s.ScannedAt > 0 {
			scanned = time.Unix(s.ScannedAt, 0).Local().Format("2006-01-02 15:04")
		}
		rows = append(rows, []string{s.Key, s.Title, s.Type, strings.Join(locs, ", "), scanned, state})
	}
	fmt.Println(renderTable([]string{"Key", "Title", "Type", "Locations", "Scanned", "State"}, rows, nil))
	return nil
}

func runPlexScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	client, err := plexClient(cfg)
	if err != nil {
		return err
	}
	dir, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()

	section, err := client.ScanDir(ctx, dir)
	if err != nil {
		return err
	}
	fmt.Printf("Scan of %s queued in %q\n", client.ToRemote(dir), section.Title)
	return nil
}

func runPlexFind(cmd *cobra.Command, args []string) error {
	year, _ := cmd.Flags().GetInt("year")
	show, _ := cmd.Flags().GetBool("show")

	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	client, err := plexClient(cfg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()

	itemType := plex.TypeMovie
	if show {
		itemType = plex.TypeShow
	}
	item, err := client.Find(ctx, itemType, args[0], year)
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(item)
		return nil
	}
	if item == nil {
		fmt.Printf("%q not found in Plex\n", args[0])
		return nil
	}
	if item.Year > 0 {
		fmt.Printf("Found: %s (%d) [key %s]\n", item.Title, item.Year, item.RatingKey)
	} else {
		fmt.Printf("Found: %s [key %s]\n", item.Title, item.RatingKey)
	}
	return nil
}
