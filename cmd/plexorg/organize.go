package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	v1 "github.com/vmunix/plexorg/internal/api/v1"
	"github.com/vmunix/plexorg/internal/config"
	"github.com/vmunix/plexorg/internal/events"
	"github.com/vmunix/plexorg/internal/media"
	"github.com/vmunix/plexorg/internal/organizer"
	"github.com/vmunix/plexorg/internal/server"
	"github.com/vmunix/plexorg/internal/store"
)

var organizeCmd = &cobra.Command{
	Use:   "organize <path>...",
	Short: "Symlink or convert completed files into the library",
	Long: `Organize files into the Plex library. Directories are scanned for files.

Runs in-process by default and waits for any conversions it starts.
With --remote the daemon does the work; add --wait to follow its conversions.

Examples:
  plexorg organize ~/downloads/complete/Heat.1995.1080p.mkv
  plexorg organize --remote --wait ~/downloads/complete/Show.S01`,
	Args: cobra.MinimumNArgs(1),
	RunE: runOrganizeCmd,
}

func init() {
	rootCmd.AddCommand(organizeCmd)
	organizeCmd.Flags().Bool("remote", false, "Send the batch to the daemon")
	organizeCmd.Flags().Bool("wait", false, "With --remote, wait for conversions to finish")
	organizeCmd.Flags().Bool("include-samples", false, "Keep sample files when scanning directories")
}

// collectFiles expands directories and describes every file.
func collectFiles(args []string, skipSamples bool) ([]media.CompletedFile, error) {
	var files []media.CompletedFile
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			found, err := media.Scan(arg, media.ScanOptions{SkipSamples: skipSamples})
			if err != nil {
				return nil, fmt.Errorf("scan %s: %w", arg, err)
			}
			files = append(files, found...)
			continue
		}
		f, err := media.Describe(arg)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

func runOrganizeCmd(cmd *cobra.Command, args []string) error {
	remote, _ := cmd.Flags().GetBool("remote")
	wait, _ := cmd.Flags().GetBool("wait")
	samples, _ := cmd.Flags().GetBool("include-samples")

	files, err := collectFiles(args, !samples)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.New("no files found")
	}

	if remote {
		return organizeRemote(cmd.Context(), files, wait)
	}

	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	return organizeLocal(cmd.Context(), cfg, files)
}

func organizeLocal(ctx context.Context, cfg *config.Config, files []media.CompletedFile) error {
	logger := cliLogger(cfg)
	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	bus := events.NewBus(events.NewEventLog(st.DB()), logger)
	defer bus.Close()

	svc := server.NewServices(cfg, server.Deps{Store: st, Bus: bus}, logger)
	defer func() { _ = svc.Engine.Close() }()

	results, err := svc.Coordinator.Organize(ctx, files, cfg.Organize)
	if err != nil {
		return err
	}

	var pending []string
	for _, r := range results {
		if r.Task != nil {
			pending = append(pending, r.Task.ID)
		}
	}
	if len(pending) > 0 && !jsonOutput {
		fmt.Printf("Waiting for %d conversion(s)...\n", len(pending))
	}
	for _, id := range pending {
		t, err := svc.Engine.Wait(ctx, id)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		for i := range results {
			if results[i].Task != nil && results[i].Task.ID == id {
				results[i].Task = &t
			}
		}
		if err != nil {
			logger.Error("conversion failed", "task_id", id, "error", err)
		}
	}
	svc.Engine.ClearFinished(ctx)

	return printOrganizeResults(results, organizer.Summarize(results))
}

func organizeRemote(ctx context.Context, files []media.CompletedFile, wait bool) error {
	client := NewClient(serverURL)
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	resp, err := client.Organize(paths)
	if err != nil {
		return fmt.Errorf("organize failed: %w", err)
	}

	if wait {
		for i, r := range resp.Results {
			if r.Task == nil {
				continue
			}
			res, err := watchTask(ctx, client, r.Task.ID, !jsonOutput)
			if err != nil {
				return err
			}
			resp.Results[i].Task.Status = res.Status
			resp.Results[i].Task.Error = res.Error
		}
	}
	return printOrganizeResults(resp.Results, resp.Summary)
}

func printOrganizeResults(results []organizer.Result, sum organizer.Summary) error {
	if jsonOutput {
		printJSON(v1.OrganizeResponse{Results: results, Summary: sum})
	} else {
		rows := make([][]string, 0, len(results))
		for _, r := range results {
			status := "ok"
			detail := r.Note
			if !r.Success {
				status = "failed"
				detail = r.Error
			}
			if r.Task != nil {
				detail = fmt.Sprintf("task %s %s", r.Task.ID, r.Task.Status)
				if r.Task.Error != "" {
					status = "failed"
					detail += ": " + r.Task.Error
				}
			}
			rows = append(rows, []string{
				truncate(r.File, 45),
				colorStatus(os.Stdout, string(r.Action)),
				truncate(r.LibraryPath, 50),
				colorStatus(os.Stdout, status),
				detail,
			})
		}
		fmt.Println(renderTable([]string{"File", "Action", "Library Path", "Status", "Detail"}, rows, nil))
		fmt.Printf("\n%d files: %d symlinked, %d converting, %d skipped, %d failed\n",
			sum.Total, sum.Symlinked, sum.Converting, sum.Skipped, sum.Failed)
	}
	if sum.Failed > 0 {
		return fmt.Errorf("%d file(s) failed", sum.Failed)
	}
	return nil
}
