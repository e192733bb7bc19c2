package app

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, &Config{LogFormat: "json"})
	logger.Info("backend ping", "addr", "127.0.0.1:3001")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "backend ping", record["msg"])
	assert.Equal(t, "geox-gateway", record["service"])
}

func TestNewLoggerDefaultsToText(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, &Config{LogFormat: "pretty"})
	logger.Info("starting http server")

	assert.Contains(t, buf.String(), "starting http server")
	assert.Contains(t, buf.String(), "service=geox-gateway")
}
