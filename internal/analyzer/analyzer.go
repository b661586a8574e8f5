// Package analyzer probes media files and decides whether Plex can play them
// directly or whether they need to be converted first.
package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// NoAudio is reported as the audio codec of files without an audio stream.
const NoAudio = "none"

// DefaultTimeout bounds a single probe.
const DefaultTimeout = 30 * time.Second

// Analysis is the result of probing one file.
type Analysis struct {
	Path            string        `json:"path"`
	VideoCodec      string        `json:"video_codec"`
	VideoProfile    string        `json:"video_profile,omitempty"`
	AudioCodec      string        `json:"audio_codec"`
	Container       string        `json:"container"`
	Duration        time.Duration `json:"duration"`
	Resolution      string        `json:"resolution"` // "WxH" or "unknown"
	PlexCompatible  bool          `json:"plex_compatible"`
	NeedsConversion bool          `json:"needs_conversion"`  // always !PlexCompatible
	Reasons         []string      `json:"reasons,omitempty"` // why the file is incompatible
}

// Config for the analyzer.
type Config struct {
	Policy  Policy
	Timeout time.Duration // defaults to DefaultTimeout
}

// Analyzer applies a compatibility Policy to ffprobe output.
type Analyzer struct {
	prober  Prober
	policy  Policy
	timeout time.Duration
	log     *slog.Logger
}

// New creates an analyzer.
func New(prober Prober, cfg Config, logger *slog.Logger) *Analyzer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Policy.VideoCodecs == nil && cfg.Policy.Containers == nil {
		cfg.Policy = DefaultPolicy()
	}
	return &Analyzer{
		prober:  prober,
		policy:  cfg.Policy,
		timeout: cfg.Timeout,
		log:     logger.With("component", "analyzer"),
	}
}

// Analyze probes path once and classifies it. Every failure is returned as
// an *AnalysisError.
func (a *Analyzer) Analyze(ctx context.Context, path string) (Analysis, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	result, err := a.prober.Probe(ctx, path)
	if err != nil {
		a.log.Warn("probe failed", "path", path, "error", err)
		return Analysis{}, &AnalysisError{Path: path, Err: err}
	}

	if len(result.Streams) == 0 {
		return Analysis{}, &AnalysisError{Path: path, Err: ErrNoStreams}
	}
	video, ok := result.FirstStream("video")
	if !ok {
		return Analysis{}, &AnalysisError{Path: path, Err: ErrNoVideoStream}
	}

	audioCodec := NoAudio
	if audio, ok := result.FirstStream("audio"); ok && audio.CodecName != "" {
		audioCodec = audio.CodecName
	} else if !ok {
		a.log.Warn("no audio stream", "path", path)
	}

	videoCodec := video.CodecName
	if videoCodec == "" {
		videoCodec = "unknown"
	}

	resolution := "unknown"
	if video.Width > 0 && video.Height > 0 {
		resolution = fmt.Sprintf("%dx%d", video.Width, video.Height)
	}

	reasons := a.policy.Evaluate(video, audioCodec, result.Format.FormatName)
	analysis := Analysis{
		Path:            path,
		VideoCodec:      videoCodec,
		VideoProfile:    video.Profile,
		AudioCodec:      audioCodec,
		Container:       result.Format.FormatName,
		Duration:        time.Duration(result.DurationSeconds() * float64(time.Second)),
		Resolution:      resolution,
		PlexCompatible:  len(reasons) == 0,
		NeedsConversion: len(reasons) > 0,
		Reasons:         reasons,
	}

	a.log.Debug("analyzed",
		"path", path,
		"video", analysis.VideoCodec,
		"audio", analysis.AudioCodec,
		"container", analysis.Container,
		"compatible", analysis.PlexCompatible,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return analysis, nil
}

// VersionChecker is implemented by probers that can report their version.
type VersionChecker interface {
	Version(ctx context.Context) (string, error)
}

// CheckInstallation verifies the probe tool is available.
func (a *Analyzer) CheckInstallation(ctx context.Context) (string, error) {
	vc, ok := a.prober.(VersionChecker)
	if !ok {
		return "", nil
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return vc.Version(ctx)
}
