package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewWriterRenamesErrorKey(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriter(&buf, slog.LevelDebug)

	logger.Debug("fetch failed", "error", errors.New("boom"))

	out := buf.String()
	assert.Contains(t, out, "err=boom")
	assert.NotContains(t, out, "error=boom")
}

func TestNewWriterRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriter(&buf, slog.LevelWarn)

	logger.Debug("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewNop(t *testing.T) {
	assert.NotPanics(t, func() {
		NewNop().Error("nothing", "err", errors.New("x"))
	})
}

func TestLevelForVerbosity(t *testing.T) {
	assert.Equal(t, slog.LevelWarn, LevelForVerbosity(0))
	assert.Equal(t, slog.LevelDebug, LevelForVerbosity(1))
	assert.Equal(t, slog.LevelDebug-4, LevelForVerbosity(2))
	assert.Equal(t, slog.LevelDebug-4, LevelForVerbosity(5))
}
