package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vmunix/plexorg/internal/organizer"
	"github.com/vmunix/plexorg/internal/store"
	"github.com/vmunix/plexorg/internal/symlink"
)

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "List completed files recorded in the database",
	Long: `List completed files organize has seen, newest first, with the state
of their library symlink.

Examples:
  plexorg files
  plexorg files --pending`,
	Args: cobra.NoArgs,
	RunE: runFilesCmd,
}

var filesUnlinkCmd = &cobra.Command{
	Use:   "unlink <path>",
	Short: "Remove the library symlink for a completed file",
	Args:  cobra.ExactArgs(1),
	RunE:  runFilesUnlink,
}

func init() {
	rootCmd.AddCommand(filesCmd)
	filesCmd.AddCommand(filesUnlinkCmd)
	filesCmd.Flags().Bool("pending", false, "Only files not yet organized")
	filesCmd.Flags().Int("limit", 50, "Maximum files")
}

// Link states shown by the files command.
const (
	linkNone   = "-"
	linkOK     = "ok"
	linkBroken = "broken"
)

// FileJSON is one row of the files command in JSON mode.
type FileJSON struct {
	*store.FileRecord
	LibraryPath string `json:"library_path,omitempty"`
	Link        string `json:"link"`
}

func openStore() (*store.Store, error) {
	cfg, err := loadConfig(false)
	if err != nil {
		return nil, err
	}
	return store.Open(cfg.Database.Path)
}

// linkState finds the most recent successful symlink for path and checks
// that it still resolves to the source.
func linkState(ctx context.Context, st *store.Store, path string) (string, string, error) {
	entries, err := st.ListHistory(ctx, store.HistoryFilter{File: path, Action: string(organizer.ActionSymlink), Limit: 10})
	if err != nil {
		return "", "", err
	}
	for _, h := range entries {
		if !h.Success || h.LibraryPath == "" {
			continue
		}
		if symlink.Verify(h.LibraryPath, path) {
			return h.LibraryPath, linkOK, nil
		}
		return h.LibraryPath, linkBroken, nil
	}
	return "", linkNone, nil
}

func runFilesCmd(cmd *cobra.Command, _ []string) error {
	pending, _ := cmd.Flags().GetBool("pending")
	limit, _ := cmd.Flags().GetInt("limit")

	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	records, err := st.ListFiles(cmd.Context(), store.FileFilter{Unorganized: pending, Limit: limit})
	if err != nil {
		return err
	}

	out := make([]FileJSON, 0, len(records))
	for _, r := range records {
		lib, state, err := linkState(cmd.Context(), st, r.Path)
		if err != nil {
			return err
		}
		out = append(out, FileJSON{FileRecord: r, LibraryPath: lib, Link: state})
	}

	if jsonOutput {
		printJSON(out)
		return nil
	}
	printFiles(out)
	return nil
}

func printFiles(files []FileJSON) {
	if len(files) == 0 {
		fmt.Println("No files recorded.")
		return
	}
	rows := make([][]string, 0, len(files))
	for _, f := range files {
		organized := "-"
		if !f.OrganizedAt.IsZero() {
			organized = f.OrganizedAt.Local().Format("2006-01-02 15:04")
		}
		rows = append(rows, []string{
			truncate(f.Name, 45),
			f.Quality,
			formatBytes(f.Size),
			f.SeenAt.Local().Format("2006-01-02 15:04"),
			organized,
			f.Link,
		})
	}
	fmt.Println(renderTable(
		[]string{"Name", "Quality", "Size", "Seen", "Organized", "Link"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight},
	))
}

func runFilesUnlink(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	if _, err := st.GetFile(cmd.Context(), path); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%s has not been organized", path)
		}
		return err
	}

	lib, state, err := linkState(cmd.Context(), st, path)
	if err != nil {
		return err
	}
	switch state {
	case linkNone:
		return fmt.Errorf("%s has no library symlink", path)
	case linkBroken:
		return fmt.Errorf("%s no longer points at %s; leaving it alone", lib, path)
	}
	if err := symlink.Remove(lib); err != nil {
		return err
	}
	fmt.Printf("Removed %s\n", lib)
	return nil
}
