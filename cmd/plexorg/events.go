package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show recent daemon events",
	Long: `Show recent events from the daemon's event log.

Examples:
  plexorg events -n 50
  plexorg events --task 0192f7c4-...`,
	Args: cobra.NoArgs,
	RunE: runEventsCmd,
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.Flags().IntP("limit", "n", 20, "Number of events to show")
	eventsCmd.Flags().String("task", "", "Only events for this conversion task")
}

func runEventsCmd(cmd *cobra.Command, _ []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	taskID, _ := cmd.Flags().GetString("task")

	resp, err := NewClient(serverURL).Events(limit, taskID)
	if err != nil {
		return fmt.Errorf("failed to fetch events: %w", err)
	}

	if jsonOutput {
		printJSON(resp)
		return nil
	}
	if len(resp.Items) == 0 {
		fmt.Println("No events")
		return nil
	}

	rows := make([][]string, 0, len(resp.Items))
	for _, e := range resp.Items {
		when := e.OccurredAt
		if t, err := time.Parse(time.RFC3339, e.OccurredAt); err == nil {
			when = t.Local().Format("01-02 15:04:05")
		}
		rows = append(rows, []string{when, e.EventType, e.EntityType, truncate(e.EntityID, 50)})
	}
	fmt.Println(renderTable([]string{"Time", "Type", "Entity", "ID"}, rows, nil))
	return nil
}
