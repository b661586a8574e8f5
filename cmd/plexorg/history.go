package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	v1 "github.com/vmunix/plexorg/internal/api/v1"
	"github.com/vmunix/plexorg/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show organize history",
	Long: `Show what organize did with each file, newest first.
Reads the database directly; use --remote to ask the daemon instead.

Examples:
  plexorg history
  plexorg history --failed --limit 20`,
	Args: cobra.NoArgs,
	RunE: runHistoryCmd,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().Bool("failed", false, "Only failed results")
	historyCmd.Flags().String("file", "", "Only entries for this source file")
	historyCmd.Flags().Int("limit", 50, "Maximum entries")
	historyCmd.Flags().Bool("remote", false, "Query the daemon")
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	failed, _ := cmd.Flags().GetBool("failed")
	file, _ := cmd.Flags().GetString("file")
	limit, _ := cmd.Flags().GetInt("limit")
	remote, _ := cmd.Flags().GetBool("remote")

	var entries []v1.HistoryResponse
	if remote {
		var err error
		entries, err = NewClient(serverURL).History(failed, limit)
		if err != nil {
			return err
		}
	} else {
		cfg, err := loadConfig(false)
		if err != nil {
			return err
		}
		st, err := store.Open(cfg.Database.Path)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		rows, err := st.ListHistory(cmd.Context(), store.HistoryFilter{File: file, Failed: failed, Limit: limit})
		if err != nil {
			return err
		}
		for _, h := range rows {
			entries = append(entries, v1.HistoryResponse{
				ID: h.ID, BatchID: h.BatchID, File: h.File, LibraryPath: h.LibraryPath,
				Action: h.Action, Success: h.Success, Error: h.Error, Note: h.Note,
				TaskID: h.TaskID, CreatedAt: h.CreatedAt,
			})
		}
	}

	if jsonOutput {
		printJSON(entries)
		return nil
	}
	printHistory(entries)
	return nil
}

func printHistory(entries []v1.HistoryResponse) {
	if len(entries) == 0 {
		fmt.Println("No history.")
		return
	}
	rows := make([][]string, 0, len(entries))
	for _, h := range entries {
		status := "ok"
		detail := h.Note
		if !h.Success {
			status = "failed"
			detail = h.Error
		}
		if h.TaskID != "" {
			detail = "task " + shortID(h.TaskID)
		}
		rows = append(rows, []string{
			h.CreatedAt.Local().Format("2006-01-02 15:04"),
			truncate(h.File, 40),
			colorStatus(os.Stdout, h.Action),
			colorStatus(os.Stdout, status),
			truncate(h.LibraryPath, 45),
			detail,
		})
	}
	fmt.Println(renderTable([]string{"When", "File", "Action", "Status", "Library Path", "Detail"}, rows, nil))
}
