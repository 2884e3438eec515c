package logging

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lautenbacher.net/goglove/config"
)

type failingWriter struct{}

func (fw *failingWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

func TestTUIMode(t *testing.T) {
	require.NoError(t, Init(true, config.LogConfig{Level: "DEBUG", Format: "text"}))

	slog.Info("Initial log")

	var tuiPane bytes.Buffer
	require.NoError(t, SetOutput(&tuiPane))
	assert.Contains(t, tuiPane.String(), "Initial log", "buffered records are flushed to the pane")

	slog.Info("Live log")
	assert.Contains(t, tuiPane.String(), "Live log")

	BufferOutput()
	slog.Info("Buffered log")
	assert.NotContains(t, tuiPane.String(), "Buffered log")

	require.NoError(t, Close())
}

func TestHWMode_FileLogging(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "test.log")

	require.NoError(t, Init(false, config.LogConfig{Level: "INFO", Format: "json", File: logFile}))
	writer.target = io.Discard

	slog.Debug("Filtered log")
	slog.Info("HW log", "key", "value")
	require.NoError(t, Close())

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"msg":"HW log"`)
	assert.Contains(t, string(content), `"key":"value"`)
	assert.NotContains(t, string(content), "Filtered log")
}

func TestBufferedRecordsWrittenOnceToFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "test.log")

	require.NoError(t, Init(true, config.LogConfig{File: logFile}))
	slog.Info("Only once")
	require.NoError(t, Close())

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Equal(t, 1, bytes.Count(content, []byte("Only once")))
}

func TestInit_BadFile(t *testing.T) {
	err := Init(false, config.LogConfig{File: filepath.Join(t.TempDir(), "missing", "x.log")})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestStderrFallback(t *testing.T) {
	require.NoError(t, Init(true, config.LogConfig{Level: "DEBUG"}))

	slog.Info("Shutdown log")

	oldStderr := os.Stderr
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stderr = w
	t.Cleanup(func() { os.Stderr = oldStderr })

	require.NoError(t, Close())
	w.Close()

	captured, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Contains(t, string(captured), "Shutdown log")
}

func TestErrorPropagation(t *testing.T) {
	require.NoError(t, Init(false, config.LogConfig{}))
	writer.target = &failingWriter{}

	_, err := writer.Write([]byte("x"))
	assert.EqualError(t, err, "write failed")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelError, ParseLevel("Error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}
