package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vmunix/plexorg/internal/conversion"
)

var convertCmd = &cobra.Command{
	Use:   "convert <input> <output>",
	Short: "Convert one file to H.264/AAC MP4 (local, needs ffmpeg)",
	Long: `Convert a file with ffmpeg, printing progress until it finishes.
Interrupting cancels the conversion and removes the partial output.

Examples:
  plexorg convert movie.avi "/srv/media/Movies/Movie (1999)/movie.mp4"
  plexorg convert --crf 20 --preset slow in.mkv out.mp4`,
	Args: cobra.ExactArgs(2),
	RunE: runConvertCmd,
}

func init() {
	rootCmd.AddCommand(convertCmd)
	convertCmd.Flags().Int("crf", conversion.DefaultCRF, "Constant rate factor (1-51, lower is better)")
	convertCmd.Flags().String("preset", conversion.DefaultPreset, "x264 preset")
	convertCmd.Flags().String("audio-bitrate", conversion.DefaultAudioBitrate, "AAC bitrate")
}

func runConvertCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}
	crf, _ := cmd.Flags().GetInt("crf")
	preset, _ := cmd.Flags().GetString("preset")
	bitrate, _ := cmd.Flags().GetString("audio-bitrate")
	opts := conversion.Options{CRF: crf, Preset: preset, AudioBitrate: bitrate}

	engine := conversion.New(&conversion.FFmpeg{Binary: cfg.Conversion.FFmpegPath},
		conversion.Config{MaxConcurrent: 1, Timeout: cfg.Conversion.Timeout}, cliLogger(cfg))
	defer func() { _ = engine.Close() }()

	h, err := engine.Enqueue(args[0], args[1], opts)
	if err != nil {
		return err
	}
	return followConversion(cmd.Context(), engine, h)
}

// followConversion prints task events until the task ends, cancelling it if
// ctx ends first.
func followConversion(ctx context.Context, engine *conversion.Engine, h *conversion.Handle) error {
	tty := isTerminal(os.Stdout) && !jsonOutput
	evs := h.Events()
	for {
		select {
		case ev, ok := <-evs:
			if !ok {
				t, err := h.Wait(context.WithoutCancel(ctx))
				if tty {
					fmt.Println()
				}
				if jsonOutput {
					printJSON(t)
				} else if err == nil {
					fmt.Printf("Converted %s -> %s in %s\n", t.InputPath, t.OutputPath, formatDuration(t.Elapsed()))
				}
				return err
			}
			printConversionEvent(ev, tty)
		case <-ctx.Done():
			if err := engine.Cancel(h.ID()); err != nil && !errors.Is(err, conversion.ErrTaskFinished) {
				return err
			}
			_, err := h.Wait(context.WithoutCancel(ctx))
			return err
		}
	}
}

func printConversionEvent(ev conversion.Event, tty bool) {
	if jsonOutput {
		return
	}
	switch ev.Type {
	case conversion.EventStarted:
		fmt.Printf("Converting %s\n", ev.InputPath)
	case conversion.EventProgress:
		line := fmt.Sprintf("%5.1f%%  %s", ev.Percent, ev.Timemark)
		if tty {
			fmt.Printf("\r%s", line)
		} else if int(ev.Percent)%10 == 0 {
			fmt.Println(line)
		}
	case conversion.EventFailed:
		if tty {
			fmt.Println()
		}
		fmt.Fprintf(os.Stderr, "Conversion failed: %v\n", ev.Err)
	}
}
