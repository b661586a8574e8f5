package analyzer

import (
	"fmt"
	"slices"
	"strings"
)

// Policy decides which codec and container combinations play directly on
// Plex clients without transcoding.
type Policy struct {
	VideoCodecs []string
	AudioCodecs []string // "none" allows files without audio
	Containers  []string // matched against each ffprobe format_name token

	// AllowHEVC accepts hevc video when its profile is listed in HEVCProfiles.
	AllowHEVC    bool
	HEVCProfiles []string
}

// DefaultPolicy targets H.264/AAC in an MP4 family container.
func DefaultPolicy() Policy {
	return Policy{
		VideoCodecs:  []string{"h264"},
		AudioCodecs:  []string{"aac", "mp3", "ac3", "eac3", NoAudio},
		Containers:   []string{"mp4", "mov", "m4v"},
		HEVCProfiles: []string{"Main", "Main 10"},
	}
}

// Evaluate returns the reasons a probe result fails the policy.
// An empty slice means the file is compatible.
func (p Policy) Evaluate(video Stream, audioCodec, formatName string) []string {
	var reasons []string

	vc := strings.ToLower(video.CodecName)
	switch {
	case containsFold(p.VideoCodecs, vc):
	case vc == "hevc" && p.AllowHEVC:
		if !containsFold(p.HEVCProfiles, video.Profile) {
			reasons = append(reasons, fmt.Sprintf("hevc profile %q", video.Profile))
		}
	default:
		reasons = append(reasons, fmt.Sprintf("video codec %s", codecOrUnknown(vc)))
	}

	if !containsFold(p.AudioCodecs, audioCodec) {
		reasons = append(reasons, fmt.Sprintf("audio codec %s", audioCodec))
	}

	if !p.containerAllowed(formatName) {
		reasons = append(reasons, fmt.Sprintf("container %s", codecOrUnknown(formatName)))
	}
	return reasons
}

func (p Policy) containerAllowed(formatName string) bool {
	for _, token := range strings.Split(formatName, ",") {
		if containsFold(p.Containers, strings.TrimSpace(token)) {
			return true
		}
	}
	return false
}

func containsFold(list []string, v string) bool {
	return slices.ContainsFunc(list, func(s string) bool { return strings.EqualFold(s, v) })
}

func codecOrUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
