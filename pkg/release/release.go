// Package release parses download file names into the pieces needed to place
// them in a media library: kind, title, year, season/episode and quality.
package release

import "fmt"

// Kind distinguishes movies from episodic content.
type Kind int

const (
	KindMovie Kind = iota
	KindTV
)

func (k Kind) String() string {
	if k == KindTV {
		return "tv"
	}
	return "movie"
}

// Resolution represents the video resolution advertised in a name.
type Resolution int

const (
	ResolutionUnknown Resolution = iota
	Resolution480p
	Resolution720p
	Resolution1080p
	Resolution2160p
)

// unknownStr is the string representation for unknown values.
const unknownStr = "unknown"

func (r Resolution) String() string {
	switch r {
	case Resolution480p:
		return "480p"
	case Resolution720p:
		return "720p"
	case Resolution1080p:
		return "1080p"
	case Resolution2160p:
		return "2160p"
	default:
		return unknownStr
	}
}

// Codec represents the video codec advertised in a name.
type Codec int

const (
	CodecUnknown Codec = iota
	CodecH264
	CodecHEVC
	CodecAV1
	CodecXviD
)

func (c Codec) String() string {
	switch c {
	case CodecH264:
		return "h264"
	case CodecHEVC:
		return "hevc"
	case CodecAV1:
		return "av1"
	case CodecXviD:
		return "xvid"
	default:
		return unknownStr
	}
}

// Source represents where a release was captured from.
type Source int

const (
	SourceUnknown Source = iota
	SourceBluRay
	SourceWEBDL
	SourceWEBRip
	SourceHDTV
	SourceDVD
)

func (s Source) String() string {
	switch s {
	case SourceBluRay:
		return "bluray"
	case SourceWEBDL:
		return "webdl"
	case SourceWEBRip:
		return "webrip"
	case SourceHDTV:
		return "hdtv"
	case SourceDVD:
		return "dvd"
	default:
		return unknownStr
	}
}

// Info contains parsed release information.
type Info struct {
	Kind       Kind
	Title      string // display title, e.g. "South Park"
	Year       int
	Season     int
	Episodes   []int // all episodes for multi-episode files (S01E05E06)
	Resolution Resolution
	Codec      Codec
	Source     Source
	Group      string

	// CleanTitle is the normalized title used for matching.
	CleanTitle string
}

// Episode returns the first episode number, or 0 when none was parsed.
func (i *Info) Episode() int {
	if len(i.Episodes) == 0 {
		return 0
	}
	return i.Episodes[0]
}

// FolderName is the library folder for this release: "Title (Year)" for
// movies with a known year, otherwise the bare title.
func (i *Info) FolderName() string {
	if i.Kind == KindMovie && i.Year > 0 {
		return fmt.Sprintf("%s (%d)", i.Title, i.Year)
	}
	return i.Title
}

// SeasonFolder returns "Season NN" for episodic content, or "" for movies.
func (i *Info) SeasonFolder() string {
	if i.Kind != KindTV {
		return ""
	}
	return fmt.Sprintf("Season %02d", i.Season)
}
