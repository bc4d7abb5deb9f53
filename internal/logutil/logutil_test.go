package logutil

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"info":    slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New("debug", "json", &buf)
	require.NoError(t, err)

	logger.Debug("settings saved", "path", "/tmp/settings.json")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "settings saved", rec["msg"])
	assert.Equal(t, "/tmp/settings.json", rec["path"])
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New("warn", "text", &buf)
	require.NoError(t, err)

	logger.Info("hidden")
	assert.Zero(t, buf.Len())
	logger.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNew_UnknownFormat(t *testing.T) {
	_, err := New("info", "xml", nil)
	assert.Error(t, err)
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")
	f, err := OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	_, err = f.WriteString("line\n")
	assert.NoError(t, err)
}
