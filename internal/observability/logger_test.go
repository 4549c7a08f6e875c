package observability

import (
	"bytes"
	"log"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newBufferedLogger(prefix string, level LogLevel) (*StandardLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	return &StandardLogger{prefix: prefix, level: level, logger: log.New(&buf, "", 0)}, &buf
}

func TestStandardLoggerInfoLevelFiltersDebug(t *testing.T) {
	logger, buf := newBufferedLogger("test", LogLevelInfo)

	logger.Debug("debug message", nil)
	logger.Info("info message", nil)

	assert.NotContains(t, buf.String(), "debug message")
	assert.Contains(t, buf.String(), "info message")
}

func TestStandardLoggerDebugLevelLogsEverything(t *testing.T) {
	logger, buf := newBufferedLogger("test", LogLevelDebug)

	logger.Debug("debug message", nil)
	logger.Warn("warn message", nil)
	logger.Error("error message", nil)

	out := buf.String()
	assert.Contains(t, out, "debug message")
	assert.Contains(t, out, "warn message")
	assert.Contains(t, out, "error message")
}

func TestStandardLoggerIncludesFields(t *testing.T) {
	logger, buf := newBufferedLogger("test", LogLevelInfo)

	logger.Info("hello", map[string]any{"request_id": "abc123"})

	assert.Contains(t, buf.String(), "request_id")
	assert.Contains(t, buf.String(), "abc123")
}

func TestStandardLoggerWithMergesFields(t *testing.T) {
	logger, buf := newBufferedLogger("test", LogLevelInfo)

	scoped := logger.With(map[string]any{"component": "retrieval"})
	scoped.Info("msg", map[string]any{"call": "fulltext"})

	out := buf.String()
	assert.Contains(t, out, "component")
	assert.Contains(t, out, "call")
}

func TestStandardLoggerWithPrefixNests(t *testing.T) {
	logger, buf := newBufferedLogger("graphcore", LogLevelInfo)

	scoped := logger.WithPrefix("cache")
	scoped.Info("populated", nil)

	assert.True(t, strings.Contains(buf.String(), "graphcore.cache"))
}

func TestLogLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LogLevelDebug.String())
	assert.Equal(t, "INFO", LogLevelInfo.String())
	assert.Equal(t, "WARN", LogLevelWarn.String())
	assert.Equal(t, "ERROR", LogLevelError.String())
	assert.Equal(t, "UNKNOWN", LogLevel(99).String())
}
