package logger_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"codeberg.org/mutker/plantsim/internal/errors"
	"codeberg.org/mutker/plantsim/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogLevelIsValid(t *testing.T) {
	for _, level := range []logger.LogLevel{logger.DebugLevel, logger.InfoLevel, logger.WarningLevel, logger.ErrorLevel} {
		assert.True(t, level.IsValid(), string(level))
	}
	assert.False(t, logger.LogLevel("verbose").IsValid())
}

func TestNewWritesFields(t *testing.T) {
	logger.SetLogLevel(logger.DebugLevel)

	var buf bytes.Buffer
	log := logger.New(&buf).With("page", "reservoir")
	log.Info().Float64("storage_volume_m3", 2.5e7).Msg("tick")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "reservoir", line["page"])
	assert.Equal(t, "tick", line["message"])
	assert.InDelta(t, 2.5e7, line["storage_volume_m3"], 0.1)
}

func TestErrorWithCode(t *testing.T) {
	logger.SetLogLevel(logger.DebugLevel)

	var buf bytes.Buffer
	err := errors.New().WithMessage(errors.ErrInvalidConfig, "cadence must be positive")
	logger.New(&buf).ErrorWithCode(err).Msg("rejected")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "invalid_configuration", line["error_code"])
	assert.Equal(t, "cadence must be positive", line["error_message"])
}

func TestNopDiscards(t *testing.T) {
	assert.NotPanics(t, func() {
		logger.Nop().Warn().Str("k", "v").Msg("dropped")
	})
}
