package organizer

import (
	"path/filepath"
	"slices"
)

// Summary counts a batch of results.
type Summary struct {
	Total      int `json:"total"`
	Symlinked  int `json:"symlinked"`
	Converting int `json:"converting"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`

	// LibraryPaths are the distinct directories that gained a link, sorted.
	LibraryPaths []string `json:"library_paths,omitempty"`
}

// Summarize counts results. Failed results count only as Failed.
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	seen := make(map[string]bool)
	for _, r := range results {
		if !r.Success {
			s.Failed++
			continue
		}
		switch r.Action {
		case ActionSymlink:
			s.Symlinked++
			dir := filepath.Dir(r.LibraryPath)
			if !seen[dir] {
				seen[dir] = true
				s.LibraryPaths = append(s.LibraryPaths, dir)
			}
		case ActionConvert:
			s.Converting++
		default:
			s.Skipped++
		}
	}
	slices.Sort(s.LibraryPaths)
	return s
}
