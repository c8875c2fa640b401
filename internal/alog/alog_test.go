package alog

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelNameCoversExtraSeverities(t *testing.T) {
	cases := []struct {
		level slog.Level
		want  string
	}{
		{slog.LevelInfo, slog.LevelInfo.String()},
		{LevelNotice, "NOTICE"},
		{slog.LevelWarn, slog.LevelWarn.String()},
		{LevelCritical, "CRITICAL"},
		{LevelAlert, "ALERT"},
		{LevelEmergency, "EMERGENCY"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, levelName(tc.level))
	}
}

func TestJSONHandlerLowercasesExtraLevels(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := New(buf, true, LevelNotice)
	Notice(context.Background(), logger, "mylist entry already present")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "notice", entry["level"])
	assert.Equal(t, "mylist entry already present", entry["msg"])
}

func TestTextHandlerRespectsMinLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := New(buf, false, LevelCritical)
	Notice(context.Background(), logger, "should be suppressed")
	assert.Empty(t, buf.String())

	Critical(context.Background(), logger, "disk is full")
	assert.True(t, strings.Contains(buf.String(), "disk is full"))
}
