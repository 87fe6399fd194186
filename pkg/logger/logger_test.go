package logger

import (
	"learnhub_backend/internal/config"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestLevel(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, zapcore.DebugLevel, Level(cfg))

	cfg.Server.Mode = "release"
	assert.Equal(t, zapcore.InfoLevel, Level(cfg))

	cfg.Log.Level = "warn"
	assert.Equal(t, zapcore.WarnLevel, Level(cfg))

	cfg.Log.Level = "loud"
	assert.Equal(t, zapcore.InfoLevel, Level(cfg))
}
