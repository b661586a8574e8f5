// Package media describes finished downloads as they are handed to the
// organizer: which kind of file each one is and what quality it advertises.
package media

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Kind is the coarse media type derived from a file extension.
type Kind string

const (
	KindVideo    Kind = "video"
	KindAudio    Kind = "audio"
	KindImage    Kind = "image"
	KindArchive  Kind = "archive"
	KindDocument Kind = "document"
	KindUnknown  Kind = ""
)

var kindByExt = map[string]Kind{}

func init() {
	register := func(k Kind, exts ...string) {
		for _, e := range exts {
			kindByExt["."+e] = k
		}
	}
	register(KindVideo, "mp4", "mkv", "avi", "mov", "wmv", "flv", "m4v", "webm")
	register(KindAudio, "mp3", "flac", "wav", "aac", "m4a", "ogg", "wma")
	register(KindImage, "jpg", "jpeg", "png", "gif", "bmp", "webp", "svg")
	register(KindArchive, "zip", "rar", "7z", "tar", "gz", "bz2", "xz")
	register(KindDocument, "pdf", "doc", "docx", "txt", "rtf", "odt")
}

// plexExts are extensions Plex will at least attempt to play. Membership is
// advisory; the analyzer decides whether a file actually direct-plays.
var plexExts = map[string]bool{
	".mp4": true, ".mkv": true, ".avi": true, ".mov": true, ".m4v": true,
	".wmv": true, ".asf": true, ".flv": true, ".f4v": true, ".webm": true,
	".mp3": true, ".flac": true, ".m4a": true, ".aac": true, ".ogg": true,
	".wma": true, ".wav": true,
}

// CompletedFile is a file that has finished downloading.
type CompletedFile struct {
	Path           string
	Name           string
	Size           int64
	ModifiedAt     time.Time
	DownloadID     string // originating torrent hash, if known
	Kind           Kind
	PlexCompatible bool
	Quality        string // e.g. "1080P"; empty when the name carries none
}

// IsVideo reports whether the file is a video by extension.
func (f CompletedFile) IsVideo() bool {
	return f.Kind == KindVideo
}

// DetectKind returns the media kind for a filename.
func DetectKind(name string) Kind {
	return kindByExt[strings.ToLower(filepath.Ext(name))]
}

// IsVideoFile checks if a path has a video extension.
func IsVideoFile(path string) bool {
	return DetectKind(path) == KindVideo
}

// IsPlexCompatible reports whether Plex recognizes the extension.
func IsPlexCompatible(name string) bool {
	return plexExts[strings.ToLower(filepath.Ext(name))]
}

var qualityPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(4k|2160p)\b`),
	regexp.MustCompile(`(?i)\b(1080p|1080i)\b`),
	regexp.MustCompile(`(?i)\b(720p|720i)\b`),
	regexp.MustCompile(`(?i)\b(480p|480i)\b`),
	regexp.MustCompile(`(?i)\b(360p)\b`),
	regexp.MustCompile(`(?i)\b(240p)\b`),
}

// ExtractQuality returns the highest quality label found in name, upper-cased.
func ExtractQuality(name string) string {
	for _, re := range qualityPatterns {
		if m := re.FindStringSubmatch(name); m != nil {
			return strings.ToUpper(m[1])
		}
	}
	return ""
}
