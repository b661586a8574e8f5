package release

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var (
	// S01E02, S01.E02, S01E02E03, S01E02-E03
	seasonEpisodeRe = regexp.MustCompile(`(?i)\bs(\d{1,2})[ -]?e(\d{1,3})((?:[ -]?e\d{1,3})*)`)
	extraEpisodeRe  = regexp.MustCompile(`(?i)e(\d{1,3})`)
	// 1x02
	crossRe       = regexp.MustCompile(`(?i)\b(\d{1,2})x(\d{2,3})\b`)
	seasonWordRe  = regexp.MustCompile(`(?i)\bseason ?(\d{1,2})\b`)
	episodeWordRe = regexp.MustCompile(`(?i)\bepisode ?(\d{1,3})\b`)

	// Show.S01.Complete season packs
	seasonOnlyRe = regexp.MustCompile(`(?i)\bs(\d{1,2})\b`)

	// [Group] Show - 01 [1080p]
	leadingGroupRe    = regexp.MustCompile(`^\[([^\]]+)\] *`)
	absoluteEpisodeRe = regexp.MustCompile(` - (\d{1,3})(?:v\d)?\b`)

	yearRe       = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)
	resolutionRe = regexp.MustCompile(`(?i)\b(2160p|4k|uhd|1080[pi]|720[pi]|480[pi])\b`)
	codecRe      = regexp.MustCompile(`(?i)\b(x264|h ?264|avc|x265|h ?265|hevc|av1|xvid|divx)\b`)
	sourceRe     = regexp.MustCompile(`(?i)\b(blu[ -]?ray|bdrip|brrip|web[ -]?dl|webrip|hdtv|dvdrip|dvd)\b`)
	bracketRe    = regexp.MustCompile(`[\[(]`)
	groupRe      = regexp.MustCompile(`-([A-Za-z0-9]+)$`)
)

// mediaExtensions are stripped before parsing so they never leak into titles.
var mediaExtensions = map[string]bool{
	".mkv": true, ".mp4": true, ".m4v": true, ".avi": true, ".mov": true,
	".wmv": true, ".ts": true, ".webm": true, ".flv": true, ".mpg": true,
	".mpeg": true,
}

// Parse extracts release information from a file or release name.
// The result depends only on name, so identical names always map to the
// same library location.
func Parse(name string) *Info {
	base := filepath.Base(name)
	if ext := filepath.Ext(base); mediaExtensions[strings.ToLower(ext)] {
		base = strings.TrimSuffix(base, ext)
	}

	info := &Info{Kind: KindMovie}
	if m := groupRe.FindStringSubmatch(base); m != nil {
		info.Group = m[1]
	}

	normalized := normalizeSeparators(base)
	fansub := false
	if m := leadingGroupRe.FindStringSubmatch(normalized); m != nil {
		fansub = true
		if info.Group == "" {
			info.Group = m[1]
		}
		normalized = normalized[len(m[0]):]
	}
	cut := len(normalized)
	mark := func(idx int) {
		if idx >= 0 && idx < cut {
			cut = idx
		}
	}

	if loc := seasonEpisodeRe.FindStringSubmatchIndex(normalized); loc != nil {
		info.Kind = KindTV
		info.Season = atoi(normalized[loc[2]:loc[3]])
		info.Episodes = append(info.Episodes, atoi(normalized[loc[4]:loc[5]]))
		for _, m := range extraEpisodeRe.FindAllStringSubmatch(normalized[loc[6]:loc[7]], -1) {
			info.Episodes = append(info.Episodes, atoi(m[1]))
		}
		mark(loc[0])
	} else if loc := crossRe.FindStringSubmatchIndex(normalized); loc != nil {
		info.Kind = KindTV
		info.Season = atoi(normalized[loc[2]:loc[3]])
		info.Episodes = []int{atoi(normalized[loc[4]:loc[5]])}
		mark(loc[0])
	} else {
		if loc := seasonWordRe.FindStringSubmatchIndex(normalized); loc != nil {
			info.Kind = KindTV
			info.Season = atoi(normalized[loc[2]:loc[3]])
			mark(loc[0])
		} else if loc := seasonOnlyRe.FindStringSubmatchIndex(normalized); loc != nil {
			info.Kind = KindTV
			info.Season = atoi(normalized[loc[2]:loc[3]])
			mark(loc[0])
		}
		if loc := episodeWordRe.FindStringSubmatchIndex(normalized); loc != nil {
			info.Kind = KindTV
			info.Episodes = []int{atoi(normalized[loc[2]:loc[3]])}
			mark(loc[0])
		} else if loc := absoluteEpisodeRe.FindStringSubmatchIndex(normalized); fansub && loc != nil {
			// Absolute numbering only counts after a leading [Group] tag.
			info.Kind = KindTV
			info.Episodes = []int{atoi(normalized[loc[2]:loc[3]])}
			mark(loc[0])
		}
		// "Episode 5" alone still has to land in a season folder.
		if info.Kind == KindTV && info.Season == 0 {
			info.Season = 1
		}
	}

	// A leading year is part of the title ("2001 A Space Odyssey"), and when
	// several follow it the last one is the release year ("Blade Runner 2049 2017").
	var yearLoc []int
	for _, loc := range yearRe.FindAllStringSubmatchIndex(normalized, -1) {
		if loc[0] > 0 {
			yearLoc = loc
		}
	}
	if yearLoc != nil {
		info.Year = atoi(normalized[yearLoc[2]:yearLoc[3]])
		mark(yearLoc[0])
	}

	if loc := resolutionRe.FindStringSubmatchIndex(normalized); loc != nil {
		info.Resolution = parseResolution(normalized[loc[2]:loc[3]])
		mark(loc[0])
	}
	if loc := codecRe.FindStringSubmatchIndex(normalized); loc != nil {
		info.Codec = parseCodec(normalized[loc[2]:loc[3]])
		mark(loc[0])
	}
	if loc := sourceRe.FindStringSubmatchIndex(normalized); loc != nil {
		info.Source = parseSource(normalized[loc[2]:loc[3]])
		mark(loc[0])
	}
	if loc := bracketRe.FindStringIndex(normalized); loc != nil {
		mark(loc[0])
	}

	title := strings.Trim(normalized[:cut], " -")
	if title == "" {
		// Name starts with a marker; fall back to the whole name minus markers.
		title = stripMarkers(normalized)
	}
	info.Title = DisplayTitle(title)
	info.CleanTitle = CleanTitle(info.Title)
	return info
}

// normalizeSeparators turns dots and underscores into spaces and collapses runs.
func normalizeSeparators(s string) string {
	s = strings.NewReplacer(".", " ", "_", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

func stripMarkers(s string) string {
	for _, re := range []*regexp.Regexp{seasonEpisodeRe, crossRe, seasonWordRe, seasonOnlyRe, episodeWordRe, resolutionRe, codecRe, sourceRe} {
		s = re.ReplaceAllString(s, " ")
	}
	s = strings.NewReplacer("[", " ", "]", " ", "(", " ", ")", " ").Replace(s)
	return strings.Trim(strings.Join(strings.Fields(s), " "), " -")
}

func parseResolution(s string) Resolution {
	switch strings.ToLower(s) {
	case "2160p", "4k", "uhd":
		return Resolution2160p
	case "1080p", "1080i":
		return Resolution1080p
	case "720p", "720i":
		return Resolution720p
	case "480p", "480i":
		return Resolution480p
	default:
		return ResolutionUnknown
	}
}

func parseCodec(s string) Codec {
	switch strings.ToLower(strings.ReplaceAll(s, " ", "")) {
	case "x264", "h264", "avc":
		return CodecH264
	case "x265", "h265", "hevc":
		return CodecHEVC
	case "av1":
		return CodecAV1
	case "xvid", "divx":
		return CodecXviD
	default:
		return CodecUnknown
	}
}

func parseSource(s string) Source {
	switch strings.ToLower(strings.NewReplacer(" ", "", "-", "").Replace(s)) {
	case "bluray", "bdrip", "brrip":
		return SourceBluRay
	case "webdl":
		return SourceWEBDL
	case "webrip":
		return SourceWEBRip
	case "hdtv":
		return SourceHDTV
	case "dvdrip", "dvd":
		return SourceDVD
	default:
		return SourceUnknown
	}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
