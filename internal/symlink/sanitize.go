// internal/symlink/sanitize.go
package symlink

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxNameBytes is the longest path component most filesystems accept.
const MaxNameBytes = 255

// illegalChars are characters not allowed in filenames on common filesystems.
var illegalChars = regexp.MustCompile(`[<>:"/\\|?*\x00]`)

var multiSpace = regexp.MustCompile(`\s+`)

var multiDot = regexp.MustCompile(`\.{2,}`)

// Sanitize makes a title or filename safe to use as a single path component.
// It is pure and idempotent: Sanitize(Sanitize(s)) == Sanitize(s).
func Sanitize(name string) string {
	name = illegalChars.ReplaceAllString(name, " ")
	name = multiDot.ReplaceAllString(name, ".")
	name = multiSpace.ReplaceAllString(name, " ")
	name = strings.Trim(name, " .")

	if len(name) > MaxNameBytes {
		name = truncate(name, MaxNameBytes)
		name = strings.Trim(name, " .")
	}
	return name
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// TargetPath computes where a file lands in the library:
// mediaRoot/libraryDir/Sanitize(title)/Sanitize(filename).
func TargetPath(mediaRoot, libraryDir, title, filename string) string {
	return filepath.Join(mediaRoot, libraryDir, Sanitize(title), Sanitize(filename))
}

// ValidatePath ensures path is within root.
// Returns ErrPathTraversal if the path would escape the root.
func ValidatePath(path, root string) error {
	cleanPath := filepath.Clean(path)
	cleanRoot := filepath.Clean(root)

	if cleanPath == cleanRoot {
		return nil
	}
	prefix := cleanRoot
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	if !strings.HasPrefix(cleanPath, prefix) {
		return ErrPathTraversal
	}
	return nil
}
