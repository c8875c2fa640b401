// Package alog provides the structured logger used throughout this
// module: log/slog with four extra severities above the stdlib set
// (Notice, Critical, Alert, Emergency), the same level scheme and
// level-name rendering as the teacher's fs/log package.
package alog

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Extra severities, slotted between and above the stdlib levels the
// same way fs.SlogLevelNotice/Critical/Alert/Emergency are.
const (
	LevelNotice    = slog.Level(2)  // between Info(0) and Warn(4)
	LevelCritical  = slog.Level(10) // above Error(8)
	LevelAlert     = slog.Level(14)
	LevelEmergency = slog.Level(18)
)

// levelName renders a level the way the teacher's slogLevelToString
// does: the extra severities get their own name, everything else
// falls back to slog's own String().
func levelName(l slog.Level) string {
	switch l {
	case LevelNotice:
		return "NOTICE"
	case LevelCritical:
		return "CRITICAL"
	case LevelAlert:
		return "ALERT"
	case LevelEmergency:
		return "EMERGENCY"
	default:
		return l.String()
	}
}

// replaceLevelText renders the extra severities' names on the level
// attribute for the text handler, the same uppercase form slog uses
// for its own levels.
func replaceLevelText(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	level, ok := a.Value.Any().(slog.Level)
	if !ok {
		return a
	}
	return slog.String(slog.LevelKey, levelName(level))
}

// replaceLevelJSON does the same but lowercases the result, matching
// the teacher's mapLogLevelNames: JSON output uses lowercase level
// names regardless of what the text handler shows.
func replaceLevelJSON(path []string, a slog.Attr) slog.Attr {
	a = replaceLevelText(path, a)
	if a.Key != slog.LevelKey {
		return a
	}
	return slog.String(slog.LevelKey, toLower(a.Value.String()))
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// New builds a logger writing to w. json selects slog's JSON handler
// over its text handler; minLevel sets the Enabled floor.
func New(w io.Writer, json bool, minLevel slog.Level) *slog.Logger {
	var h slog.Handler
	if json {
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: minLevel, ReplaceAttr: replaceLevelJSON})
	} else {
		h = slog.NewTextHandler(w, &slog.HandlerOptions{Level: minLevel, ReplaceAttr: replaceLevelText})
	}
	return slog.New(h)
}

// Default is a text logger to stderr at Info and above, the
// module's fallback before a CLI flag configures its own.
func Default() *slog.Logger {
	return New(os.Stderr, false, slog.LevelInfo)
}

// Notice logs at LevelNotice: a normal but noteworthy condition, e.g.
// a mylist entry that was already present.
func Notice(ctx context.Context, l *slog.Logger, msg string, args ...any) {
	l.Log(ctx, LevelNotice, msg, args...)
}

// Critical logs at LevelCritical: a failure a single record can
// recover from by failing only that record, e.g. a malformed server
// response for one file.
func Critical(ctx context.Context, l *slog.Logger, msg string, args ...any) {
	l.Log(ctx, LevelCritical, msg, args...)
}

// Alert logs at LevelAlert: a failure that stops the whole run, e.g.
// the session has been permanently banned.
func Alert(ctx context.Context, l *slog.Logger, msg string, args ...any) {
	l.Log(ctx, LevelAlert, msg, args...)
}

// Emergency logs at LevelEmergency: the process cannot continue at
// all, e.g. the cache file can't be opened.
func Emergency(ctx context.Context, l *slog.Logger, msg string, args ...any) {
	l.Log(ctx, LevelEmergency, msg, args...)
}
