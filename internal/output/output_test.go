package output

import (
	"bytes"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/anidbcli/anidbcli/internal/alog"
)

func newTestLogger(w io.Writer) *slog.Logger {
	return alog.New(w, false, slog.LevelInfo)
}

func TestPlainCollaboratorPrefixesBySeverity(t *testing.T) {
	buf := &bytes.Buffer{}
	c := NewPlainCollaborator(buf)
	c.Success("renamed %s", "a.mkv")
	c.Warning("already in mylist")
	c.Error("no such file")
	c.Info("scanning %d files", 3)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, "OK: renamed a.mkv", lines[0])
	assert.Equal(t, "WARN: already in mylist", lines[1])
	assert.Equal(t, "ERROR: no such file", lines[2])
	assert.Equal(t, "scanning 3 files", lines[3])
}

func TestLogCollaboratorFormatsMessage(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := newTestLogger(buf)
	c := NewLogCollaborator(logger)

	c.Success("hashed %s", "a.mkv")
	assert.Contains(t, buf.String(), "hashed a.mkv")
}
