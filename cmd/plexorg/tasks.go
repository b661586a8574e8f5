package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	v1 "github.com/vmunix/plexorg/internal/api/v1"
	"github.com/vmunix/plexorg/internal/conversion"
	"github.com/vmunix/plexorg/internal/events"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List the daemon's conversion tasks",
	Long: `List conversion tasks held by the daemon.

Examples:
  plexorg tasks
  plexorg tasks --archived
  plexorg tasks show 0192f7c4
  plexorg tasks watch 0192f7c4-...
  plexorg tasks cancel 0192f7c4-...
  plexorg tasks concurrency 3`,
	Args: cobra.NoArgs,
	RunE: runTasksList,
}

var tasksShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTasksShow,
}

var tasksWatchCmd = &cobra.Command{
	Use:   "watch <id>",
	Short: "Follow a task's progress until it finishes",
	Args:  cobra.ExactArgs(1),
	RunE:  runTasksWatch,
}

var tasksCancelCmd = &cobra.Command{
	Use:   "cancel <id>",
	Short: "Cancel a pending or running task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTasksCancel,
}

var tasksConcurrencyCmd = &cobra.Command{
	Use:   "concurrency <n>",
	Short: "Set how many conversions run at once (1-4)",
	Args:  cobra.ExactArgs(1),
	RunE:  runTasksConcurrency,
}

func init() {
	rootCmd.AddCommand(tasksCmd)
	tasksCmd.AddCommand(tasksShowCmd, tasksWatchCmd, tasksCancelCmd, tasksConcurrencyCmd)
	tasksCmd.Flags().Bool("archived", false, "Include archived tasks")
}

func runTasksList(cmd *cobra.Command, _ []string) error {
	archived, _ := cmd.Flags().GetBool("archived")
	resp, err := NewClient(serverURL).Tasks(archived)
	if err != nil {
		return err
	}
	if jsonOutput {
		printJSON(resp)
		return nil
	}
	printTasks(resp)
	return nil
}

func printTasks(resp *v1.ListTasksResponse) {
	s := resp.Stats
	fmt.Printf("Pending %d, processing %d, completed %d, failed %d (max %d at once)\n\n",
		s.Pending, s.Processing, s.Completed, s.Failed, s.MaxConcurrent)
	if len(resp.Items) == 0 {
		fmt.Println("No tasks.")
		return
	}
	rows := make([][]string, 0, len(resp.Items))
	for _, t := range resp.Items {
		status := t.Status
		if t.Archived {
			status += " (archived)"
		}
		rows = append(rows, []string{
			shortID(t.ID),
			colorStatus(os.Stdout, status),
			formatPercent(t.Progress),
			truncate(t.InputPath, 45),
			truncate(t.OutputPath, 45),
		})
	}
	fmt.Println(renderTable([]string{"ID", "Status", "Progress", "Input", "Output"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft}))
}

func runTasksShow(_ *cobra.Command, args []string) error {
	t, err := NewClient(serverURL).Task(args[0])
	if err != nil {
		return err
	}
	if jsonOutput {
		printJSON(t)
		return nil
	}
	fmt.Printf("ID:       %s\n", t.ID)
	fmt.Printf("Status:   %s\n", colorStatus(os.Stdout, t.Status))
	fmt.Printf("Progress: %s %s\n", formatPercent(t.Progress), t.Timemark)
	fmt.Printf("Input:    %s\n", t.InputPath)
	fmt.Printf("Output:   %s\n", t.OutputPath)
	fmt.Printf("Options:  crf %d, preset %s, audio %s\n", t.Options.CRF, t.Options.Preset, t.Options.AudioBitrate)
	fmt.Printf("Queued:   %s\n", t.QueuedAt.Local().Format("2006-01-02 15:04:05"))
	if t.StartedAt != nil && t.CompletedAt != nil {
		fmt.Printf("Took:     %s\n", formatDuration(t.CompletedAt.Sub(*t.StartedAt)))
	}
	if t.Error != "" {
		fmt.Printf("Error:    %s\n", t.Error)
	}
	return nil
}

func runTasksWatch(cmd *cobra.Command, args []string) error {
	res, err := watchTask(cmd.Context(), NewClient(serverURL), args[0], !jsonOutput)
	if err != nil {
		return err
	}
	if jsonOutput {
		printJSON(res)
		return nil
	}
	fmt.Printf("%s %s\n", shortID(args[0]), colorStatus(os.Stdout, string(res.Status)))
	if res.Error != "" {
		return fmt.Errorf("conversion failed: %s", res.Error)
	}
	return nil
}

// watchResult is the last known state of a watched task.
type watchResult struct {
	Status conversion.Status `json:"status"`
	Error  string            `json:"error,omitempty"`
}

// watchTask follows a task's event stream. With show set, progress is
// printed on one line as it arrives.
func watchTask(ctx context.Context, client *Client, id string, show bool) (watchResult, error) {
	res := watchResult{Status: conversion.StatusPending}
	err := client.StreamTask(ctx, id, func(event string, data []byte) {
		switch event {
		case "task":
			var t v1.TaskResponse
			if json.Unmarshal(data, &t) == nil {
				res = watchResult{Status: conversion.Status(t.Status), Error: t.Error}
			}
		case events.EventConversionStarted:
			res.Status = conversion.StatusProcessing
		case events.EventConversionProgress:
			var p events.ConversionProgressed
			if show && json.Unmarshal(data, &p) == nil {
				fmt.Printf("\r%s %5.1f%%  %s", shortID(id), p.Percent, p.Timemark)
			}
		case events.EventConversionCompleted:
			res.Status = conversion.StatusCompleted
		case events.EventConversionFailed:
			var f events.ConversionFailed
			_ = json.Unmarshal(data, &f)
			res = watchResult{Status: conversion.StatusFailed, Error: f.Reason}
		}
	})
	if show {
		fmt.Println()
	}
	return res, err
}

func runTasksCancel(_ *cobra.Command, args []string) error {
	if err := NewClient(serverURL).CancelTask(args[0]); err != nil {
		return err
	}
	fmt.Printf("Cancelled %s\n", args[0])
	return nil
}

func runTasksConcurrency(_ *cobra.Command, args []string) error {
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid number %q", args[0])
	}
	if err := NewClient(serverURL).SetConcurrency(n); err != nil {
		return err
	}
	fmt.Printf("Max concurrent conversions set to %d\n", n)
	return nil
}
