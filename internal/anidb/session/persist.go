package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/anidbcli/anidbcli/internal/anidb/crypt"
)

// ReuseWindow is how long a persisted session is trusted verbatim
// before a fresh login is required instead.
const ReuseWindow = 10 * time.Minute

// Persisted is the on-disk shape of a saved session, written on clean
// close and consulted on startup.
type Persisted struct {
	SessionToken string    `json:"session_token"`
	BoundAddr    string    `json:"bound_sockaddr"`
	Salt         string    `json:"salt,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Fresh reports whether this persisted session is young enough to
// reuse verbatim.
func (p Persisted) Fresh(now time.Time) bool {
	return now.Sub(p.Timestamp) < ReuseWindow
}

// SavePersisted writes p to path atomically: write to a temp file in
// the same directory, then rename over the destination, so a crash
// mid-write never leaves a corrupt session file behind.
func SavePersisted(path string, p Persisted) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return errors.Wrap(err, "session: marshal persisted session")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return errors.Wrap(err, "session: create session dir")
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errors.Wrap(err, "session: write temp session file")
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrap(err, "session: rename session file into place")
	}
	return nil
}

// LoadPersisted reads a previously saved session, if any. A missing
// file is not an error: it returns the zero value and ok=false.
func LoadPersisted(path string) (p Persisted, ok bool, err error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Persisted{}, false, nil
	}
	if err != nil {
		return Persisted{}, false, errors.Wrap(err, "session: read session file")
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return Persisted{}, false, errors.Wrap(err, "session: unmarshal session file")
	}
	return p, true, nil
}

// DeletePersisted removes the session file, if present; used on a
// non-persistent close so no stale session token is left behind.
func DeletePersisted(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "session: delete session file")
	}
	return nil
}

// Resume restores s's state from a freshly-loaded Persisted record,
// skipping the login round trip entirely. Callers are responsible for
// checking Persisted.Fresh first.
func (s *Session) Resume(p Persisted) {
	s.sessionKey = p.SessionToken
	s.salt = p.Salt
	s.state = StateActive
	s.lastUsed = time.Now()
	if p.Salt != "" && s.creds.APIKey != "" {
		key := crypt.DeriveKey(s.creds.APIKey, p.Salt)
		if cipher, err := crypt.NewAES128ECB(key); err == nil {
			s.cipher = cipher
		}
	}
}
