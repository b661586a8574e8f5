package conversion

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

//go:generate mockgen -destination=mocks/transcoder.go -package=mocks . Transcoder

// Transcoder runs a single conversion. It writes job.Output and reports
// progress through the callback until it returns.
type Transcoder interface {
	Transcode(ctx context.Context, job Job, progress func(Progress)) error
}

// Job describes one transcode.
type Job struct {
	Input   string
	Output  string
	Options Options
}

// Progress is one update from a running transcode.
type Progress struct {
	Percent  float64 // 0-100, 0 when unknown
	Timemark string  // e.g. "00:01:23.45"
}

// Fixed output target. Only Options may vary.
const (
	videoCodec  = "libx264"
	audioCodec  = "aac"
	pixelFormat = "yuv420p"
)

var (
	bitrateRe  = regexp.MustCompile(`^\d+[kKmM]?$`)
	durationRe = regexp.MustCompile(`Duration:\s*(\d+):(\d{2}):(\d{2}(?:\.\d+)?)`)
)

// stderrTail is how many trailing stderr lines a ProcessError keeps.
const stderrTail = 5

// FFmpeg transcodes with the ffmpeg binary.
type FFmpeg struct {
	Binary string // defaults to "ffmpeg"

	mu         sync.Mutex
	checked    bool
	encoderErr error
}

func (f *FFmpeg) binary() string {
	if b := strings.TrimSpace(f.Binary); b != "" {
		return b
	}
	return "ffmpeg"
}

// BuildArgs returns the ffmpeg arguments for a job.
func BuildArgs(job Job) []string {
	opts := job.Options.WithDefaults()
	return []string{
		"-hide_banner", "-nostdin", "-y",
		"-i", job.Input,
		"-map", "0:v:0", "-map", "0:a:0?",
		"-c:v", videoCodec,
		"-preset", opts.Preset,
		"-crf", strconv.Itoa(opts.CRF),
		"-pix_fmt", pixelFormat,
		"-c:a", audioCodec,
		"-b:a", opts.AudioBitrate,
		"-movflags", "+faststart",
		"-progress", "pipe:1",
		"-nostats",
		"-f", "mp4",
		job.Output,
	}
}

// CheckEncoders verifies ffmpeg can encode libx264 and aac. A definitive
// answer is remembered for the lifetime of f; failures to run ffmpeg are not.
func (f *FFmpeg) CheckEncoders(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.checked {
		return f.encoderErr
	}

	out, err := exec.CommandContext(ctx, f.binary(), "-hide_banner", "-encoders").Output()
	if err != nil {
		return &SpawnError{Binary: f.binary(), Err: err}
	}

	var missing []string
	for _, enc := range []string{videoCodec, audioCodec} {
		if !hasEncoder(string(out), enc) {
			missing = append(missing, enc)
		}
	}
	if len(missing) > 0 {
		f.encoderErr = &SpawnError{
			Binary: f.binary(),
			Err:    fmt.Errorf("%w: %s", ErrMissingEncoder, strings.Join(missing, ", ")),
		}
	}
	f.checked = true
	return f.encoderErr
}

// hasEncoder scans "ffmpeg -encoders" output, whose lines look like
// " V....D libx264              libx264 H.264 / AVC ...".
func hasEncoder(listing, name string) bool {
	for _, line := range strings.Split(listing, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[1] == name {
			return true
		}
	}
	return false
}

// Transcode runs ffmpeg for job. Cancelling ctx kills the process.
func (f *FFmpeg) Transcode(ctx context.Context, job Job, progress func(Progress)) error {
	if err := f.CheckEncoders(ctx); err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, f.binary(), BuildArgs(job)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &SpawnError{Binary: f.binary(), Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return &SpawnError{Binary: f.binary(), Err: err}
	}
	if err := cmd.Start(); err != nil {
		return &SpawnError{Binary: f.binary(), Err: err}
	}

	// ffmpeg prints the input duration on stderr before progress starts.
	var (
		durMu    sync.Mutex
		duration time.Duration
		tail     []string
	)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			durMu.Lock()
			if duration == 0 {
				if d, ok := parseDuration(line); ok {
					duration = d
				}
			}
			if line != "" {
				tail = append(tail, line)
				if len(tail) > stderrTail {
					tail = tail[1:]
				}
			}
			durMu.Unlock()
		}
	}()

	readProgress(stdout, func() time.Duration {
		durMu.Lock()
		defer durMu.Unlock()
		return duration
	}, progress)
	wg.Wait()

	err = cmd.Wait()
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	pe := &ProcessError{ExitCode: -1, Stderr: strings.Join(tail, " | "), Err: err}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		pe.ExitCode = exitErr.ExitCode()
	}
	return pe
}

// readProgress parses "-progress" key=value blocks. Each block ends with a
// "progress=continue" or "progress=end" line.
func readProgress(r io.Reader, total func() time.Duration, progress func(Progress)) {
	scanner := bufio.NewScanner(r)
	var outTime time.Duration
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		switch key {
		case "out_time_us", "out_time_ms": // both are microseconds
			if us, err := strconv.ParseInt(value, 10, 64); err == nil && us >= 0 {
				outTime = time.Duration(us) * time.Microsecond
			}
		case "progress":
			if progress != nil {
				progress(Progress{
					Percent:  percent(outTime, total()),
					Timemark: formatTimemark(outTime),
				})
			}
		}
	}
}

// percent converts a position into a clamped percentage. Unknown totals
// report 0.
func percent(pos, total time.Duration) float64 {
	if total <= 0 {
		return 0
	}
	p := float64(pos) / float64(total) * 100
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}

func parseDuration(line string) (time.Duration, bool) {
	m := durationRe.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	h, _ := strconv.Atoi(m[1])
	mins, _ := strconv.Atoi(m[2])
	secs, _ := strconv.ParseFloat(m[3], 64)
	d := time.Duration(h)*time.Hour + time.Duration(mins)*time.Minute + time.Duration(secs*float64(time.Second))
	return d, d > 0
}

func formatTimemark(d time.Duration) string {
	h := int(d / time.Hour)
	d -= time.Duration(h) * time.Hour
	m := int(d / time.Minute)
	d -= time.Duration(m) * time.Minute
	return fmt.Sprintf("%02d:%02d:%05.2f", h, m, d.Seconds())
}
