package internal

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	var lines []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		lines = append(lines, entry)
	}
	return lines
}

func TestLoggerFeatureEvent(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := newLoggerWithWriter("debug", "json", time.UTC, buf)
	require.NoError(t, err)

	logger.FeatureEvent("Heartbeat", "cp-1", "alive")
	logger.FeatureEvent("Startup", "", "started")
	logger.Error("store write", errors.New("boom"))

	lines := decodeLines(t, buf)
	require.Len(t, lines, 3)
	assert.Equal(t, "alive", lines[0]["message"])
	assert.Equal(t, "Heartbeat", lines[0]["feature"])
	assert.Equal(t, "cp-1", lines[0]["charge_point_id"])
	assert.Equal(t, "*", lines[1]["charge_point_id"])
	assert.Equal(t, "error", lines[2]["level"])
	assert.Equal(t, "boom", lines[2]["error"])
}

func TestLoggerRawDataOnlyInDebugMode(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := newLoggerWithWriter("debug", "json", time.UTC, buf)
	require.NoError(t, err)

	logger.RawDataEvent("IN", "[2,\"1\",\"Heartbeat\",{}]")
	assert.Empty(t, buf.String())

	logger.SetDebugMode(true)
	logger.RawDataEvent("IN", "[2,\"1\",\"Heartbeat\",{}]")
	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "IN", lines[0]["direction"])
}

func TestLoggerLevelFilter(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := newLoggerWithWriter("warn", "console", time.UTC, buf)
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestLoggerRejectsBadSettings(t *testing.T) {
	_, err := newLoggerWithWriter("loud", "json", nil, &bytes.Buffer{})
	assert.Error(t, err)
	_, err = newLoggerWithWriter("info", "xml", nil, &bytes.Buffer{})
	assert.Error(t, err)
}
