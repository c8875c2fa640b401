package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckExtensionMatchesBareExtension(t *testing.T) {
	assert.True(t, checkExtension("show.mkv", []string{"mkv", "avi"}))
	assert.False(t, checkExtension("show.srt", []string{"mkv", "avi"}))
	assert.True(t, checkExtension("show.srt", nil), "no filter means everything passes")
}

func TestFilesToProcessSkipsDirectoriesWithoutRecursive(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "a.mkv"), []byte("x"), 0o644))

	flagRecursive = false
	flagExtensions = ""
	got, err := filesToProcess([]string{dir})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFilesToProcessWalksRecursivelyAndFilters(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "a.mkv"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "a.nfo"), []byte("x"), 0o644))

	flagRecursive = true
	flagExtensions = "mkv"
	defer func() { flagRecursive = false; flagExtensions = "" }()

	got, err := filesToProcess([]string{dir})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, filepath.Join(sub, "a.mkv"), got[0])
}
