package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"ERROR", zerolog.ErrorLevel},
		{"disabled", zerolog.Disabled},
	}

	for _, tt := range tests {
		got, err := parseLogLevel(tt.input)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := parseLogLevel("loud")
	assert.Error(t, err)
}

func TestLazyErrorFileStaysUnopenedBelowError(t *testing.T) {
	dir := t.TempDir()
	w := newLazyErrorFile(dir)

	_, err := w.WriteLevel(zerolog.InfoLevel, []byte(`{"level":"info"}`))
	require.NoError(t, err)
	_, err = w.WriteLevel(zerolog.WarnLevel, []byte(`{"level":"warn"}`))
	require.NoError(t, err)

	assert.Empty(t, w.Path())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLazyErrorFileOpensOnFirstError(t *testing.T) {
	dir := t.TempDir()
	w := newLazyErrorFile(dir)

	line := []byte(`{"level":"error","message":"boom"}` + "\n")
	_, err := w.WriteLevel(zerolog.ErrorLevel, line)
	require.NoError(t, err)

	path := w.Path()
	require.NotEmpty(t, path)
	assert.True(t, strings.HasPrefix(filepath.Base(path), "baraag_dl_error_"))
	assert.True(t, strings.HasSuffix(path, ".log"))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "boom")

	// A second error appends to the same file
	_, err = w.WriteLevel(zerolog.ErrorLevel, []byte(`{"level":"error","message":"again"}`+"\n"))
	require.NoError(t, err)

	content, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "again")
	assert.Equal(t, path, w.Path())
}

func TestNopLoggerChains(t *testing.T) {
	log := NewNopLogger()

	// Chained calls must never panic or emit
	log.WithField("k", "v").WithFields(map[string]interface{}{"a": 1}).Info("quiet")
	log.WithError(os.ErrNotExist).Error("still quiet")
}
