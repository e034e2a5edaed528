package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{" DEBUG ", LevelDebug},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"info", LevelInfo},
		{"", LevelInfo},
		{"verbose", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestLoggerGatesByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelWarn)

	l.Debugf("debug %d", 1)
	l.Infof("info %d", 2)
	assert.Zero(t, buf.Len())

	l.Warnf("[Storage] warn %d", 3)
	l.Errorf("[Storage] error %d", 4)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "[Storage] warn 3", entry["message"])

	require.NoError(t, json.Unmarshal([]byte(lines[1]), &entry))
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "[Storage] error 4", entry["message"])
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelInfo)
	assert.False(t, l.EnabledDebug())

	l.SetLevel(LevelDebug)
	assert.True(t, l.EnabledDebug())
	l.Debugf("now visible")
	assert.Contains(t, buf.String(), "now visible")
}

func TestNopDiscards(t *testing.T) {
	l := Nop()
	assert.False(t, l.EnabledDebug())
	l.Errorf("dropped")
}

func TestSetDefault(t *testing.T) {
	prev := Default()
	t.Cleanup(func() { SetDefault(prev) })

	var buf bytes.Buffer
	SetDefault(New(&buf, LevelDebug))
	Infof("through default")
	assert.Contains(t, buf.String(), "through default")

	SetDefault(nil)
	assert.NotNil(t, Default())
}

func TestInitAndSetLevelFromString(t *testing.T) {
	prev := Default()
	t.Cleanup(func() { SetDefault(prev) })

	Init("warn", "json")
	assert.Equal(t, LevelWarn, Default().Level())

	SetLevelFromString("debug")
	assert.True(t, Default().EnabledDebug())

	Init("", "console")
	assert.Equal(t, LevelInfo, Default().Level())
}
