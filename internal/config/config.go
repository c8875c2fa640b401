// Package config resolves the on-disk paths this client persists
// state under, replacing the process-wide globals of
// get_persistence_base_path/get_cache_path/get_persistent_file_path
// with an explicit, constructible struct.
package config

import (
	"os"
	"path/filepath"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
)

// Paths is where this client reads and writes its persistent state.
type Paths struct {
	BaseDir     string
	SessionPath string
	CachePath   string
}

// Resolve builds Paths the same way the source does: APPDATA first
// (all platforms, matching the source's own behaviour rather than
// gating it behind GOOS), falling back to $HOME/.anidbcli.
func Resolve() (Paths, error) {
	base, err := basePath()
	if err != nil {
		return Paths{}, err
	}
	return Paths{
		BaseDir:     base,
		SessionPath: filepath.Join(base, "session.json"),
		CachePath:   filepath.Join(base, "cache.bolt"),
	}, nil
}

func basePath() (string, error) {
	if appdata := os.Getenv("APPDATA"); appdata != "" {
		return filepath.Join(appdata, "anidbcli"), nil
	}
	home, err := homedir.Dir()
	if err != nil {
		return "", errors.Wrap(err, "config: resolve home directory")
	}
	return filepath.Join(home, ".anidbcli"), nil
}

// EnsureBaseDir creates p.BaseDir if it doesn't already exist.
func (p Paths) EnsureBaseDir() error {
	if err := os.MkdirAll(p.BaseDir, 0o700); err != nil {
		return errors.Wrapf(err, "config: create base dir %s", p.BaseDir)
	}
	return nil
}
