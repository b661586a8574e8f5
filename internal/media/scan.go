package media

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Describe builds a CompletedFile for a single path.
func Describe(path string) (CompletedFile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return CompletedFile{}, fmt.Errorf("resolve %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return CompletedFile{}, fmt.Errorf("stat %s: %w", abs, err)
	}
	if info.IsDir() {
		return CompletedFile{}, fmt.Errorf("%s is a directory", abs)
	}
	name := info.Name()
	return CompletedFile{
		Path:           abs,
		Name:           name,
		Size:           info.Size(),
		ModifiedAt:     info.ModTime(),
		Kind:           DetectKind(name),
		PlexCompatible: IsPlexCompatible(name),
		Quality:        ExtractQuality(name),
	}, nil
}

// ScanOptions controls which files Scan returns.
type ScanOptions struct {
	VideoOnly   bool
	SkipSamples bool
}

// Scan walks root and describes every regular file below it, sorted by path.
// Hidden entries are skipped.
func Scan(root string, opts ScanOptions) ([]CompletedFile, error) {
	var files []CompletedFile

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if path != root && strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if opts.VideoOnly && !IsVideoFile(name) {
			return nil
		}
		if opts.SkipSamples && strings.Contains(strings.ToLower(name), "sample") {
			return nil
		}

		f, err := Describe(path)
		if err != nil {
			return err
		}
		files = append(files, f)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}
