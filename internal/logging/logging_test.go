// internal/logging/logging_test.go
package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/jason-s-yu/negotiator/internal/config"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureJSON(t *testing.T) {
	logger := log.New()
	var buf bytes.Buffer
	logger.SetOutput(&buf)

	require.NoError(t, Configure(logger, config.LoggingConfig{Level: "debug", Format: "json"}))
	assert.Equal(t, log.DebugLevel, logger.GetLevel())

	logger.WithField("session", "s-1").Debug("hello")
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "s-1", entry["session"])
}

func TestConfigureDefaultsAndErrors(t *testing.T) {
	logger := log.New()
	require.NoError(t, Configure(logger, config.LoggingConfig{}))
	assert.Equal(t, log.InfoLevel, logger.GetLevel())
	assert.IsType(t, &log.TextFormatter{}, logger.Formatter)

	assert.Error(t, Configure(logger, config.LoggingConfig{Level: "chatty"}))
	assert.Error(t, Configure(logger, config.LoggingConfig{Format: "xml"}))
}
