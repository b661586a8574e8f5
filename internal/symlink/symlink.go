// Package symlink places relative symbolic links into a media library so that
// files are visible to Plex without copying any bytes.
package symlink

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// PlaceResult says what Place did to the filesystem.
type PlaceResult int

const (
	PlaceCreated   PlaceResult = iota // new link written
	PlaceUnchanged                    // link already pointed at the source
	PlaceReplaced                     // stale link swapped for a correct one
)

func (r PlaceResult) String() string {
	switch r {
	case PlaceUnchanged:
		return "unchanged"
	case PlaceReplaced:
		return "replaced"
	default:
		return "created"
	}
}

// Organizer creates library symlinks.
type Organizer struct {
	log *slog.Logger
}

// New creates an Organizer.
func New(logger *slog.Logger) *Organizer {
	return &Organizer{log: logger.With("component", "symlink")}
}

// Place makes target a symlink to source, written relative to target's
// directory. Parent directories are created as needed. Placing the same pair
// twice is not an error, and a link that already points at source is left
// untouched. A link pointing elsewhere is replaced atomically.
func (o *Organizer) Place(source, target string) (PlaceResult, error) {
	source, err := filepath.Abs(source)
	if err != nil {
		return 0, &SymlinkError{Source: source, Target: target, Op: "abs", Err: err}
	}
	target, err = filepath.Abs(target)
	if err != nil {
		return 0, &SymlinkError{Source: source, Target: target, Op: "abs", Err: err}
	}

	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, &SymlinkError{Source: source, Target: target, Op: "mkdir", Err: err}
	}

	rel, err := filepath.Rel(dir, source)
	if err != nil {
		return 0, &SymlinkError{Source: source, Target: target, Op: "rel", Err: err}
	}

	// Two passes cover a link appearing between Lstat and Symlink.
	for attempt := 0; attempt < 2; attempt++ {
		info, err := os.Lstat(target)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			err = os.Symlink(rel, target)
			if errors.Is(err, fs.ErrExist) {
				continue
			}
			if err != nil {
				return 0, &SymlinkError{Source: source, Target: target, Op: "symlink", Err: err}
			}
			o.log.Debug("symlink created", "target", target, "link", rel)
			return PlaceCreated, nil
		case err != nil:
			return 0, &SymlinkError{Source: source, Target: target, Op: "lstat", Err: err}
		}

		if info.Mode()&fs.ModeSymlink == 0 {
			return 0, &SymlinkError{Source: source, Target: target, Op: "place", Err: ErrNotSymlink}
		}

		current, err := os.Readlink(target)
		if err != nil {
			return 0, &SymlinkError{Source: source, Target: target, Op: "readlink", Err: err}
		}
		if current == rel {
			return PlaceUnchanged, nil
		}

		if err := replace(rel, target); err != nil {
			return 0, &SymlinkError{Source: source, Target: target, Op: "rename", Err: err}
		}
		o.log.Info("symlink replaced", "target", target, "old", current, "new", rel)
		return PlaceReplaced, nil
	}

	return 0, &SymlinkError{Source: source, Target: target, Op: "symlink", Err: fs.ErrExist}
}

// replace writes a link under a temporary name and renames it over target,
// so target never disappears.
func replace(link, target string) error {
	tmp := filepath.Join(filepath.Dir(target),
		fmt.Sprintf(".%s.%d.%d.tmp", filepath.Base(target), os.Getpid(), time.Now().UnixNano()))
	if err := os.Symlink(link, tmp); err != nil {
		return err
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// Resolve returns the absolute path a library symlink points at.
func Resolve(target string) (string, error) {
	info, err := os.Lstat(target)
	if err != nil {
		return "", err
	}
	if info.Mode()&fs.ModeSymlink == 0 {
		return "", ErrNotSymlink
	}
	link, err := os.Readlink(target)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(link) {
		return filepath.Clean(link), nil
	}
	return filepath.Join(filepath.Dir(target), link), nil
}

// Verify reports whether target is a symlink that resolves to source.
func Verify(target, source string) bool {
	resolved, err := Resolve(target)
	if err != nil {
		return false
	}
	abs, err := filepath.Abs(source)
	if err != nil {
		return false
	}
	return resolved == abs
}

// Remove deletes a library symlink. A missing target is not an error, and
// regular files are never removed.
func Remove(target string) error {
	info, err := os.Lstat(target)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.Mode()&fs.ModeSymlink == 0 {
		return ErrNotSymlink
	}
	return os.Remove(target)
}
