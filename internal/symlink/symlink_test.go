package symlink

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
}

func writeFile(t *testing.T, path string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("video"), 0644))
	return path
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Normal Title", "Normal Title"},
		{`What? Why: "Now"`, "What Why Now"},
		{"AC/DC", "AC DC"},
		{`a\b|c*d<e>f`, "a b c d e f"},
		{"nul\x00byte", "nul byte"},
		{"  spaced   out  ", "spaced out"},
		{"...dots...", "dots"},
		{"Mr.. Robot", "Mr. Robot"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := Sanitize(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, Sanitize(got), "idempotent")
			assert.False(t, strings.ContainsAny(got, `<>:"/\|?*`))
		})
	}
}

func TestSanitize_Truncates(t *testing.T) {
	long := strings.Repeat("é", 200) // 400 bytes
	got := Sanitize(long)
	assert.LessOrEqual(t, len(got), MaxNameBytes)
	assert.True(t, strings.HasPrefix(long, got))
	assert.Equal(t, got, Sanitize(got))

	ascii := strings.Repeat("a", 300)
	assert.Len(t, Sanitize(ascii), MaxNameBytes)
}

func TestTargetPath(t *testing.T) {
	got := TargetPath("/media", "TV Shows", "Show: Part 1", "Show.S01E01.mkv")
	assert.Equal(t, filepath.Join("/media", "TV Shows", "Show Part 1", "Show.S01E01.mkv"), got)
	assert.Equal(t, got, TargetPath("/media", "TV Shows", "Show: Part 1", "Show.S01E01.mkv"))
}

func TestValidatePath(t *testing.T) {
	assert.NoError(t, ValidatePath("/media/Movies/a.mkv", "/media"))
	assert.NoError(t, ValidatePath("/media", "/media"))
	assert.ErrorIs(t, ValidatePath("/media/../etc/passwd", "/media"), ErrPathTraversal)
	assert.ErrorIs(t, ValidatePath("/media2/a.mkv", "/media"), ErrPathTraversal)
}

func TestPlace_CreatesRelativeLink(t *testing.T) {
	skipOnWindows(t)
	root := t.TempDir()
	src := writeFile(t, filepath.Join(root, "downloads", "movie.mkv"))
	target := filepath.Join(root, "media", "Movies", "Movie (2020)", "movie.mkv")

	o := New(testLogger())
	res, err := o.Place(src, target)
	require.NoError(t, err)
	assert.Equal(t, PlaceCreated, res)

	link, err := os.Readlink(target)
	require.NoError(t, err)
	assert.False(t, filepath.IsAbs(link))
	assert.Equal(t, filepath.Join("..", "..", "..", "downloads", "movie.mkv"), link)
	assert.True(t, Verify(target, src))

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "video", string(data))
}

func TestPlace_Idempotent(t *testing.T) {
	skipOnWindows(t)
	root := t.TempDir()
	src := writeFile(t, filepath.Join(root, "dl", "a.mkv"))
	target := filepath.Join(root, "lib", "a.mkv")

	o := New(testLogger())
	_, err := o.Place(src, target)
	require.NoError(t, err)

	before, err := os.Lstat(target)
	require.NoError(t, err)

	res, err := o.Place(src, target)
	require.NoError(t, err)
	assert.Equal(t, PlaceUnchanged, res)

	after, err := os.Lstat(target)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime())
}

func TestPlace_ReplacesStaleLink(t *testing.T) {
	skipOnWindows(t)
	root := t.TempDir()
	oldSrc := writeFile(t, filepath.Join(root, "dl", "old.mkv"))
	newSrc := writeFile(t, filepath.Join(root, "dl", "new.mkv"))
	target := filepath.Join(root, "lib", "show.mkv")

	o := New(testLogger())
	_, err := o.Place(oldSrc, target)
	require.NoError(t, err)

	res, err := o.Place(newSrc, target)
	require.NoError(t, err)
	assert.Equal(t, PlaceReplaced, res)

	link, err := os.Readlink(target)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("..", "dl", "new.mkv"), link)

	// No temporary links are left behind.
	entries, err := os.ReadDir(filepath.Join(root, "lib"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestPlace_RegularFileTarget(t *testing.T) {
	skipOnWindows(t)
	root := t.TempDir()
	src := writeFile(t, filepath.Join(root, "dl", "a.mkv"))
	target := writeFile(t, filepath.Join(root, "lib", "a.mkv"))

	_, err := New(testLogger()).Place(src, target)
	require.Error(t, err)

	var se *SymlinkError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, target, se.Target)
	assert.ErrorIs(t, err, ErrNotSymlink)
}

func TestPlace_MkdirFailure(t *testing.T) {
	skipOnWindows(t)
	root := t.TempDir()
	src := writeFile(t, filepath.Join(root, "dl", "a.mkv"))
	blocker := writeFile(t, filepath.Join(root, "lib"))

	_, err := New(testLogger()).Place(src, filepath.Join(blocker, "sub", "a.mkv"))
	var se *SymlinkError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "mkdir", se.Op)
	assert.Contains(t, err.Error(), "mkdir")
}

func TestResolveAndRemove(t *testing.T) {
	skipOnWindows(t)
	root := t.TempDir()
	src := writeFile(t, filepath.Join(root, "dl", "a.mkv"))
	target := filepath.Join(root, "lib", "a.mkv")

	_, err := New(testLogger()).Place(src, target)
	require.NoError(t, err)

	resolved, err := Resolve(target)
	require.NoError(t, err)
	assert.Equal(t, src, resolved)

	_, err = Resolve(src)
	assert.ErrorIs(t, err, ErrNotSymlink)
	assert.ErrorIs(t, Remove(src), ErrNotSymlink)

	require.NoError(t, Remove(target))
	_, err = os.Lstat(target)
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, Remove(target), "missing target is not an error")

	_, err = os.Stat(src)
	assert.NoError(t, err, "source untouched")
}

func TestPlaceResult_String(t *testing.T) {
	assert.Equal(t, "created", PlaceCreated.String())
	assert.Equal(t, "unchanged", PlaceUnchanged.String())
	assert.Equal(t, "replaced", PlaceReplaced.String())
}
