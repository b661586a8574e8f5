package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vmunix/plexorg/internal/analyzer"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>...",
	Short: "Probe files for Plex compatibility (local, needs ffprobe)",
	Long: `Probe each file with ffprobe and report whether Plex can direct-play it.

Examples:
  plexorg analyze movie.mkv
  plexorg analyze --json *.mkv`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyzeCmd,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}

type analyzeRow struct {
	analyzer.Analysis
	Error string `json:"error,omitempty"`
}

func runAnalyzeCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}
	a := analyzer.New(analyzer.FFProbe{Binary: cfg.Analysis.FFprobePath},
		analyzer.Config{Timeout: cfg.Analysis.Timeout}, cliLogger(cfg))

	rows := make([]analyzeRow, 0, len(args))
	failed := 0
	for _, path := range args {
		res, err := a.Analyze(cmd.Context(), path)
		row := analyzeRow{Analysis: res}
		if err != nil {
			row.Path = path
			row.Error = err.Error()
			failed++
		}
		rows = append(rows, row)
	}

	if jsonOutput {
		printJSON(rows)
	} else {
		printAnalysis(rows)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files could not be analyzed", failed, len(args))
	}
	return nil
}

func printAnalysis(rows []analyzeRow) {
	table := make([][]string, 0, len(rows))
	for _, r := range rows {
		if r.Error != "" {
			table = append(table, []string{truncate(r.Path, 50), "-", "-", "-", "-", "-", colorStatus(os.Stdout, "error"), r.Error})
			continue
		}
		compat := "yes"
		if !r.PlexCompatible {
			compat = "no"
		}
		table = append(table, []string{
			truncate(r.Path, 50),
			strings.TrimSpace(r.VideoCodec + " " + r.VideoProfile),
			r.AudioCodec,
			r.Container,
			r.Resolution,
			formatDuration(r.Duration),
			compat,
			strings.Join(r.Reasons, "; "),
		})
	}
	fmt.Println(renderTable(
		[]string{"File", "Video", "Audio", "Container", "Resolution", "Duration", "Compatible", "Reasons"},
		table, nil))
}
