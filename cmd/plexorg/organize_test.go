package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmunix/plexorg/internal/conversion"
	"github.com/vmunix/plexorg/internal/organizer"
)

func TestCollectFiles(t *testing.T) {
	dir := t.TempDir()
	write := func(rel string) string {
		p := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0644))
		return p
	}
	single := write("Heat.1995.1080p.mkv")
	write("Show.S01/Show.S01E01.mkv")
	write("Show.S01/Show.S01E01.nfo")
	write("Show.S01/sample.mkv")

	files, err := collectFiles([]string{single, filepath.Join(dir, "Show.S01")}, true)
	require.NoError(t, err)

	var names []string
	for _, f := range files {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"Heat.1995.1080p.mkv", "Show.S01E01.mkv", "Show.S01E01.nfo"}, names)

	files, err = collectFiles([]string{filepath.Join(dir, "Show.S01")}, false)
	require.NoError(t, err)
	assert.Len(t, files, 3)
}

func TestCollectFiles_Missing(t *testing.T) {
	_, err := collectFiles([]string{filepath.Join(t.TempDir(), "gone.mkv")}, true)
	assert.Error(t, err)
}

func TestPrintOrganizeResults(t *testing.T) {
	ok := []organizer.Result{
		{File: "/dl/a.mkv", Action: organizer.ActionSymlink, Success: true, LibraryPath: "/m/A/a.mkv"},
		{File: "/dl/b.avi", Action: organizer.ActionConvert, Success: true, LibraryPath: "/m/B/b.mp4",
			Task: &conversion.Task{ID: "t1", Status: conversion.StatusCompleted}},
	}
	assert.NoError(t, printOrganizeResults(ok, organizer.Summarize(ok)))

	bad := append(ok, organizer.Result{File: "/dl/c.mkv", Action: organizer.ActionSkip, Error: "source missing"})
	err := printOrganizeResults(bad, organizer.Summarize(bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 file(s) failed")
}
