package logutil

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-hh-autoreply/internal/config"
)

func TestNewLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&buf, config.LoggingConfig{Level: "warn"})
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&buf, config.LoggingConfig{Level: "debug", Format: "JSON"})
	require.NoError(t, err)

	logger.Debug("event", "user_id", 42)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "event", rec["msg"])
	assert.EqualValues(t, 42, rec["user_id"])
}

func TestNewLoggerRejectsUnknown(t *testing.T) {
	_, err := newLogger(&bytes.Buffer{}, config.LoggingConfig{Level: "loud"})
	require.Error(t, err)
	_, err = newLogger(&bytes.Buffer{}, config.LoggingConfig{Format: "xml"})
	require.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "абв…", Truncate("абвгд", 3))
	assert.Equal(t, "anything", Truncate("anything", 0))
}
