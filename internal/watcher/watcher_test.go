package watcher

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmunix/plexorg/internal/events"
)

type chanPublisher chan events.Event

func (c chanPublisher) Publish(_ context.Context, e events.Event) error {
	c <- e
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startWatcher(t *testing.T, root string) chanPublisher {
	t.Helper()
	pub := make(chanPublisher, 10)
	w, err := New(Config{Root: root, Debounce: 20 * time.Millisecond}, pub, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
	time.Sleep(30 * time.Millisecond)
	return pub
}

func next(t *testing.T, pub chanPublisher) *events.FileCompleted {
	t.Helper()
	select {
	case e := <-pub:
		fc, ok := e.(*events.FileCompleted)
		require.True(t, ok)
		return fc
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for file.completed")
		return nil
	}
}

func TestWatcher_AnnouncesSettledFile(t *testing.T) {
	root := t.TempDir()
	pub := startWatcher(t, root)

	path := filepath.Join(root, "Heat.1995.1080p.mkv")
	require.NoError(t, os.WriteFile(path, []byte("video data"), 0644))

	fc := next(t, pub)
	assert.Equal(t, path, fc.Path)
	assert.Equal(t, "Heat.1995.1080p.mkv", fc.Name)
	assert.Equal(t, int64(10), fc.Size)
	assert.Equal(t, events.EventFileCompleted, fc.EventType())
}

func TestWatcher_AnnouncesExistingOnStart(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "Heat.1995.1080p.mkv")
	require.NoError(t, os.WriteFile(path, []byte("video"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".hidden"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".hidden", "skip.mkv"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "partial.mkv.part"), []byte("x"), 0644))

	pub := startWatcher(t, root)

	fc := next(t, pub)
	assert.Equal(t, path, fc.Path)
	select {
	case e := <-pub:
		t.Fatalf("unexpected announcement for %s", e.EntityID())
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWatcher_NewDirectory(t *testing.T) {
	root := t.TempDir()
	pub := startWatcher(t, root)

	dir := filepath.Join(root, "Show.S01")
	require.NoError(t, os.Mkdir(dir, 0755))
	time.Sleep(30 * time.Millisecond)

	path := filepath.Join(dir, "Show.S01E01.mkv")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	assert.Equal(t, path, next(t, pub).Path)
}

func TestWatcher_IgnoresIncomplete(t *testing.T) {
	root := t.TempDir()
	pub := startWatcher(t, root)

	require.NoError(t, os.WriteFile(filepath.Join(root, "movie.mkv.part"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".hidden.mkv"), []byte("x"), 0644))

	select {
	case e := <-pub:
		t.Fatalf("unexpected event %v", e.EntityID())
	case <-time.After(150 * time.Millisecond):
	}
}

func TestWatcher_RemovedBeforeSettle(t *testing.T) {
	root := t.TempDir()
	pub := startWatcher(t, root)

	path := filepath.Join(root, "gone.mkv")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	require.NoError(t, os.Remove(path))

	select {
	case e := <-pub:
		t.Fatalf("unexpected event %v", e.EntityID())
	case <-time.After(150 * time.Millisecond):
	}
}

func TestCandidate(t *testing.T) {
	assert.True(t, candidate("/dl/movie.mkv"))
	assert.True(t, candidate("/dl/notes.txt"))
	assert.False(t, candidate("/dl/movie.mkv.partial"))
	assert.False(t, candidate("/dl/movie.mkv.!qB"))
	assert.False(t, candidate("/dl/.DS_Store"))
}

func TestNew_RequiresRoot(t *testing.T) {
	_, err := New(Config{}, make(chanPublisher), testLogger())
	assert.Error(t, err)
}
