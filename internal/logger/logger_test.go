package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		" warn ":  slog.LevelWarn,
		"Warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestDefaultConfigReadsEnv(t *testing.T) {
	t.Setenv(EnvLevel, "debug")
	assert.Equal(t, slog.LevelDebug, DefaultConfig().Level)

	t.Setenv(EnvLevel, "bogus")
	assert.Equal(t, slog.LevelInfo, DefaultConfig().Level)
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: slog.LevelInfo, Format: "json", Output: &buf})
	log.Debug("hidden")
	log.Info("stream started", "rate", 48000)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "stream started", rec["msg"])
	assert.EqualValues(t, 48000, rec["rate"])
}
