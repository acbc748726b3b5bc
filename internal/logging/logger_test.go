package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductionLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger("production", &buf)

	logger.Info("login", "email", "admin@example.com")
	logger.Debug("hidden")

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "login", line["msg"])
	assert.Equal(t, "sentinel-panel", line["service"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestDevelopmentLoggerWritesTextWithDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger("development", &buf)

	logger.Debug("visible")

	assert.True(t, strings.Contains(buf.String(), "msg=visible"))
	assert.True(t, strings.Contains(buf.String(), "level=DEBUG"))
}
