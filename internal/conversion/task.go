package conversion

import (
	"fmt"
	"slices"
	"time"
)

// Status is the lifecycle state of a conversion task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// validTransitions defines allowed status transitions.
// pending -> failed is the one edge that skips processing. It is taken only
// when a queued task is cancelled (Cancel or Close), so the task never ran,
// StartedAt stays zero and no started event is emitted.
var validTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusFailed},
	StatusProcessing: {StatusCompleted, StatusFailed},
	StatusCompleted:  {},
	StatusFailed:     {},
}

// CanTransitionTo returns true if transitioning to target is valid.
func (s Status) CanTransitionTo(target Status) bool {
	return slices.Contains(validTransitions[s], target)
}

// IsTerminal returns true if no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Task is a snapshot of a conversion task. The engine owns the live record.
type Task struct {
	ID          string    `json:"id"`
	InputPath   string    `json:"input_path"`
	OutputPath  string    `json:"output_path"`
	Options     Options   `json:"options"`
	Status      Status    `json:"status"`
	Progress    float64   `json:"progress"`           // 0.0 - 1.0
	Timemark    string    `json:"timemark,omitempty"` // last reported output position
	QueuedAt    time.Time `json:"queued_at"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	Error       string    `json:"error,omitempty"`
	Cancelled   bool      `json:"cancelled,omitempty"`
}

// Elapsed returns processing time so far, or total processing time once finished.
func (t Task) Elapsed() time.Duration {
	if t.StartedAt.IsZero() {
		return 0
	}
	if t.CompletedAt.IsZero() {
		return time.Since(t.StartedAt)
	}
	return t.CompletedAt.Sub(t.StartedAt)
}

// Options tune the fixed H.264/AAC output.
type Options struct {
	CRF          int    `toml:"crf" json:"crf"`                     // 1-51, lower is better quality; 0 means default
	AudioBitrate string `toml:"audio_bitrate" json:"audio_bitrate"` // e.g. "128k"
	Preset       string `toml:"preset" json:"preset"`               // x264 preset name
}

const (
	DefaultCRF          = 23
	DefaultAudioBitrate = "128k"
	DefaultPreset       = "medium"
)

var presets = []string{
	"ultrafast", "superfast", "veryfast", "faster", "fast",
	"medium", "slow", "slower", "veryslow", "placebo",
}

// DefaultOptions returns the standard encoding settings.
func DefaultOptions() Options {
	return Options{CRF: DefaultCRF, AudioBitrate: DefaultAudioBitrate, Preset: DefaultPreset}
}

// WithDefaults fills unset fields. Lossless CRF 0 is not offered; a zero CRF
// is unset like any other zero field.
func (o Options) WithDefaults() Options {
	if o.CRF == 0 {
		o.CRF = DefaultCRF
	}
	if o.AudioBitrate == "" {
		o.AudioBitrate = DefaultAudioBitrate
	}
	if o.Preset == "" {
		o.Preset = DefaultPreset
	}
	return o
}

// Validate checks option ranges.
func (o Options) Validate() error {
	if o.CRF < 1 || o.CRF > 51 {
		return fmt.Errorf("%w: crf %d out of range 1-51", ErrInvalidOptions, o.CRF)
	}
	if !slices.Contains(presets, o.Preset) {
		return fmt.Errorf("%w: unknown preset %q", ErrInvalidOptions, o.Preset)
	}
	if !bitrateRe.MatchString(o.AudioBitrate) {
		return fmt.Errorf("%w: audio bitrate %q", ErrInvalidOptions, o.AudioBitrate)
	}
	return nil
}

// Stats summarizes the engine's tasks.
type Stats struct {
	Pending       int
	Processing    int
	Completed     int
	Failed        int
	MaxConcurrent int
}
