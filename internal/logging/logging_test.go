package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storelabs/storelabs/internal/config"
	"github.com/storelabs/storelabs/internal/errors"
)

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithOutput(config.LoggingConfig{Level: "debug", Format: "json"}, &buf)
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

	Component(logger, "widecolumn").WithField("rows", 500).Debug("progress")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "progress", entry["msg"])
	assert.Equal(t, "widecolumn", entry["component"])
	assert.Equal(t, float64(500), entry["rows"])
}

func TestNew_TextFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithOutput(config.LoggingConfig{Level: "warn"}, &buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")
	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.True(t, strings.Contains(out, "msg=shown"), out)
}

func TestNew_Invalid(t *testing.T) {
	for _, cfg := range []config.LoggingConfig{
		{Level: "loud"},
		{Level: "info", Format: "xml"},
	} {
		_, err := New(cfg)
		require.Error(t, err)
		assert.Equal(t, errors.CodeInvalidConfiguration, errors.GetCode(err))
	}
}
