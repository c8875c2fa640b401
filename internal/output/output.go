// Package output is the "output collaborator" the pipeline runtime
// reports to: a small interface decoupling per-record status messages
// from however the CLI chooses to render them (slog records or plain
// lines today, anything else tomorrow).
package output

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/anidbcli/anidbcli/internal/alog"
)

// Collaborator is what pipeline operations report through. All four
// methods only report: whether a record's remaining pipeline is
// aborted is decided by the operation's own return value, not by a
// call to Error.
type Collaborator interface {
	Success(format string, args ...interface{})
	Warning(format string, args ...interface{})
	Error(format string, args ...interface{})
	Info(format string, args ...interface{})
}

// logCollaborator renders messages through an *slog.Logger, mapping
// each method to the severity operations.py's four output calls imply:
// success/info are routine, warning is Notice, error is Critical
// (the record fails, the run continues).
type logCollaborator struct {
	logger *slog.Logger
}

// NewLogCollaborator builds a Collaborator backed by logger.
func NewLogCollaborator(logger *slog.Logger) Collaborator {
	return &logCollaborator{logger: logger}
}

func (c *logCollaborator) Success(format string, args ...interface{}) {
	c.logger.Info(fmt.Sprintf(format, args...))
}

func (c *logCollaborator) Warning(format string, args ...interface{}) {
	alog.Notice(context.Background(), c.logger, fmt.Sprintf(format, args...))
}

func (c *logCollaborator) Error(format string, args ...interface{}) {
	alog.Critical(context.Background(), c.logger, fmt.Sprintf(format, args...))
}

func (c *logCollaborator) Info(format string, args ...interface{}) {
	c.logger.Info(fmt.Sprintf(format, args...))
}

// plainCollaborator writes unadorned lines, e.g. for the ed2k
// command's link output where log-style prefixes would be noise.
type plainCollaborator struct {
	w io.Writer
}

// NewPlainCollaborator builds a Collaborator that writes bare lines
// to w: Success, Warning and Error lines are prefixed by their
// severity, Info lines have no prefix.
func NewPlainCollaborator(w io.Writer) Collaborator {
	return &plainCollaborator{w: w}
}

func (c *plainCollaborator) Success(format string, args ...interface{}) {
	fmt.Fprintf(c.w, "OK: %s\n", fmt.Sprintf(format, args...))
}

func (c *plainCollaborator) Warning(format string, args ...interface{}) {
	fmt.Fprintf(c.w, "WARN: %s\n", fmt.Sprintf(format, args...))
}

func (c *plainCollaborator) Error(format string, args ...interface{}) {
	fmt.Fprintf(c.w, "ERROR: %s\n", fmt.Sprintf(format, args...))
}

func (c *plainCollaborator) Info(format string, args ...interface{}) {
	fmt.Fprintf(c.w, "%s\n", fmt.Sprintf(format, args...))
}
