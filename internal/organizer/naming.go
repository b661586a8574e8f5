package organizer

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/vmunix/plexorg/internal/media"
	"github.com/vmunix/plexorg/internal/symlink"
	"github.com/vmunix/plexorg/pkg/release"
)

const unknownTitle = "Unknown"

// targetPath computes the library location for f:
//
//	movies: <root>/<MovieLibrary>/<Title (Year)>/<name>
//	tv:     <root>/<TVLibrary>/<Title>/Season NN/<name>
//
// An existing show or movie folder whose name matches the parsed title with
// high confidence is reused, so "Shogun" lands in an existing "Shōgun".
func (c *Coordinator) targetPath(f media.CompletedFile, cfg Config) (string, error) {
	name := f.Name
	if name == "" {
		name = filepath.Base(f.Path)
	}
	info := release.Parse(name)
	if symlink.Sanitize(info.Title) == "" {
		info.Title = unknownTitle
	}

	var path string
	if info.Kind == release.KindTV {
		libDir := filepath.Join(cfg.MediaRoot, cfg.TVLibrary)
		show := c.existingFolder(libDir, info.Title)
		path = symlink.TargetPath(cfg.MediaRoot, filepath.Join(cfg.TVLibrary, symlink.Sanitize(show)), info.SeasonFolder(), name)
	} else {
		folder := c.existingFolder(filepath.Join(cfg.MediaRoot, cfg.MovieLibrary), info.FolderName())
		path = symlink.TargetPath(cfg.MediaRoot, cfg.MovieLibrary, folder, name)
	}

	if err := symlink.ValidatePath(path, cfg.MediaRoot); err != nil {
		return "", err
	}
	return path, nil
}

// existingFolder returns the name of a folder under dir that matches want
// with high confidence, or want itself.
func (c *Coordinator) existingFolder(dir, want string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return want
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if e.Name() == symlink.Sanitize(want) {
			return want
		}
		names = append(names, e.Name())
	}

	m := release.MatchTitle(want, names)
	if m.Confidence == release.ConfidenceHigh {
		c.log.Debug("reusing library folder", "parsed", want, "folder", m.Title, "score", m.Score)
		return m.Title
	}
	return want
}

// Target reports where f would be placed under cfg. Nothing is created.
func (c *Coordinator) Target(f media.CompletedFile, cfg Config) (string, error) {
	return c.targetPath(f, cfg.WithDefaults())
}
