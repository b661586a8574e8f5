package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vmunix/plexorg/internal/media"
	"github.com/vmunix/plexorg/internal/organizer"
	"github.com/vmunix/plexorg/pkg/release"
)

// ParseResultJSON is the JSON-friendly representation of a parsed name.
type ParseResultJSON struct {
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	Title      string `json:"title"`
	Year       int    `json:"year,omitempty"`
	Season     int    `json:"season,omitempty"`
	Episodes   []int  `json:"episodes,omitempty"`
	Resolution string `json:"resolution"`
	Source     string `json:"source"`
	Codec      string `json:"codec"`
	Group      string `json:"group,omitempty"`
	CleanTitle string `json:"clean_title"`
	Target     string `json:"target,omitempty"`
}

func toParseJSON(name string, info *release.Info, target string) ParseResultJSON {
	return ParseResultJSON{
		Name:       name,
		Kind:       info.Kind.String(),
		Title:      info.Title,
		Year:       info.Year,
		Season:     info.Season,
		Episodes:   info.Episodes,
		Resolution: info.Resolution.String(),
		Source:     info.Source.String(),
		Codec:      info.Codec.String(),
		Group:      info.Group,
		CleanTitle: info.CleanTitle,
		Target:     target,
	}
}

var parseCmd = &cobra.Command{
	Use:   "parse [flags] <file-name>",
	Short: "Parse a file name and show where it would be organized (local)",
	Long: `Parse a download file name to extract title, year and episode numbers.
When a media root is configured, the library path is shown too.

Examples:
  plexorg parse "The.Matrix.1999.2160p.UHD.BluRay.x265-GROUP.mkv"
  plexorg parse --file names.txt --json`,
	RunE: runParseCmd,
}

func init() {
	rootCmd.AddCommand(parseCmd)
	parseCmd.Flags().StringP("file", "f", "", "Read names from file (one per line)")
}

func runParseCmd(cmd *cobra.Command, args []string) error {
	inputFile, _ := cmd.Flags().GetString("file")

	var names []string
	switch {
	case inputFile != "":
		n, err := readNamesFile(inputFile)
		if err != nil {
			return fmt.Errorf("reading file: %w", err)
		}
		names = n
	case len(args) > 0:
		names = []string{args[0]}
	default:
		return fmt.Errorf("usage: plexorg parse <file-name> or plexorg parse --file <filename>")
	}

	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}
	var coord *organizer.Coordinator
	if cfg.Organize.MediaRoot != "" {
		coord = organizer.New(nil, nil, nil, cliLogger(cfg))
	}

	results := make([]ParseResultJSON, 0, len(names))
	for _, name := range names {
		base := filepath.Base(name)
		target := ""
		if coord != nil {
			target, _ = coord.Target(media.CompletedFile{Path: name, Name: base}, cfg.Organize)
		}
		results = append(results, toParseJSON(base, release.Parse(base), target))
	}

	if jsonOutput {
		printJSON(results)
		return nil
	}
	for i, r := range results {
		if i > 0 {
			fmt.Println()
		}
		printParseResult(r)
	}
	return nil
}

// readNamesFile reads names from a file, one per line. Blank lines and
// # comments are skipped.
func readNamesFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			names = append(names, line)
		}
	}
	return names, scanner.Err()
}

func printParseResult(r ParseResultJSON) {
	fmt.Printf("Name:       %s\n", r.Name)
	fmt.Printf("Kind:       %s\n", r.Kind)
	fmt.Printf("Title:      %s\n", r.Title)
	if r.Year > 0 {
		fmt.Printf("Year:       %d\n", r.Year)
	}
	if r.Kind == release.KindTV.String() {
		eps := make([]string, 0, len(r.Episodes))
		for _, e := range r.Episodes {
			eps = append(eps, fmt.Sprintf("E%02d", e))
		}
		fmt.Printf("Season:     %d %s\n", r.Season, strings.Join(eps, ""))
	}
	fmt.Printf("Quality:    %s %s %s\n", r.Resolution, r.Source, r.Codec)
	if r.Group != "" {
		fmt.Printf("Group:      %s\n", r.Group)
	}
	fmt.Printf("Clean:      %s\n", r.CleanTitle)
	if r.Target != "" {
		fmt.Printf("Target:     %s\n", r.Target)
	}
}
