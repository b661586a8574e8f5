package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vmunix/plexorg/internal/media"
)

var scanCmd = &cobra.Command{
	Use:   "scan <dir>",
	Short: "List completed files under a directory (local)",
	Long: `Walk a download directory and list what organize would see.

Examples:
  plexorg scan ~/downloads/complete
  plexorg scan --all --json ~/downloads/complete`,
	Args: cobra.ExactArgs(1),
	RunE: runScanCmd,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().Bool("all", false, "Include non-video files and samples")
}

func runScanCmd(cmd *cobra.Command, args []string) error {
	all, _ := cmd.Flags().GetBool("all")
	files, err := media.Scan(args[0], media.ScanOptions{VideoOnly: !all, SkipSamples: !all})
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(files)
		return nil
	}
	if len(files) == 0 {
		fmt.Println("No files found.")
		return nil
	}

	rows := make([][]string, 0, len(files))
	var total int64
	for _, f := range files {
		total += f.Size
		compat := "no"
		if f.PlexCompatible {
			compat = "yes"
		}
		rows = append(rows, []string{truncate(f.Name, 60), string(f.Kind), f.Quality, compat, formatBytes(f.Size)})
	}
	fmt.Println(renderTable([]string{"Name", "Kind", "Quality", "MP4", "Size"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight}))
	fmt.Printf("\n%s files, %s\n", strconv.Itoa(len(files)), formatBytes(total))
	return nil
}
