package media

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectKind(t *testing.T) {
	tests := []struct {
		name string
		want Kind
	}{
		{"movie.mkv", KindVideo},
		{"MOVIE.MP4", KindVideo},
		{"song.flac", KindAudio},
		{"cover.jpg", KindImage},
		{"pack.rar", KindArchive},
		{"readme.txt", KindDocument},
		{"movie.nfo", KindUnknown},
		{"noext", KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectKind(tt.name))
		})
	}
}

func TestIsPlexCompatible(t *testing.T) {
	assert.True(t, IsPlexCompatible("a.mkv"))
	assert.True(t, IsPlexCompatible("a.F4V"))
	assert.False(t, IsPlexCompatible("a.rar"))
	assert.False(t, IsPlexCompatible("a"))
}

func TestExtractQuality(t *testing.T) {
	assert.Equal(t, "2160P", ExtractQuality("Movie.2019.2160p.mkv"))
	assert.Equal(t, "4K", ExtractQuality("Movie 4k HDR.mkv"))
	assert.Equal(t, "1080P", ExtractQuality("show.s01e01.1080p.web.mkv"))
	assert.Equal(t, "720I", ExtractQuality("show 720i.ts"))
	assert.Equal(t, "", ExtractQuality("show.s01e01.mkv"))
}

func TestDescribe(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Show.S01E01.1080p.mkv")
	require.NoError(t, os.WriteFile(path, []byte("12345"), 0644))

	f, err := Describe(path)
	require.NoError(t, err)
	assert.Equal(t, path, f.Path)
	assert.Equal(t, "Show.S01E01.1080p.mkv", f.Name)
	assert.Equal(t, int64(5), f.Size)
	assert.Equal(t, KindVideo, f.Kind)
	assert.True(t, f.PlexCompatible)
	assert.True(t, f.IsVideo())
	assert.Equal(t, "1080P", f.Quality)

	_, err = Describe(dir)
	assert.Error(t, err)

	_, err = Describe(filepath.Join(dir, "missing.mkv"))
	assert.Error(t, err)
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	write := func(rel string) {
		p := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0644))
	}
	write("b/Movie.2020.mkv")
	write("a/Show.S01E01.mp4")
	write("a/sample.mkv")
	write("a/notes.txt")
	write(".hidden/secret.mkv")

	files, err := Scan(dir, ScanOptions{VideoOnly: true, SkipSamples: true})
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "Show.S01E01.mp4", files[0].Name)
	assert.Equal(t, "Movie.2020.mkv", files[1].Name)

	all, err := Scan(dir, ScanOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestScan_MissingRoot(t *testing.T) {
	_, err := Scan(filepath.Join(t.TempDir(), "nope"), ScanOptions{})
	assert.Error(t, err)
}
