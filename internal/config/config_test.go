package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePrefersAPPDATA(t *testing.T) {
	t.Setenv("APPDATA", filepath.FromSlash("/fake/appdata"))
	p, err := Resolve()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/fake/appdata", "anidbcli"), p.BaseDir)
	assert.Equal(t, filepath.Join(p.BaseDir, "session.json"), p.SessionPath)
	assert.Equal(t, filepath.Join(p.BaseDir, "cache.bolt"), p.CachePath)
}

func TestResolveFallsBackToHome(t *testing.T) {
	t.Setenv("APPDATA", "")
	t.Setenv("HOME", "/fake/home")
	p, err := Resolve()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/fake/home", ".anidbcli"), p.BaseDir)
}

func TestEnsureBaseDirCreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	p := Paths{BaseDir: filepath.Join(dir, "nested", "anidbcli")}
	require.NoError(t, p.EnsureBaseDir())
	info, err := os.Stat(p.BaseDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
