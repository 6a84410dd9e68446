package logger

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLevel(t *testing.T) {
	tests := []struct {
		level string
		want  logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{" WARN ", logrus.WarnLevel},
		{"warning", logrus.WarnLevel},
		{"error", logrus.ErrorLevel},
		{"", logrus.InfoLevel},
		{"chatty", logrus.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			Init(tt.level)
			assert.Equal(t, tt.want, GetLogger().GetLevel())
		})
	}
}

func TestInitFallsBackToEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	Init("")
	assert.Equal(t, logrus.ErrorLevel, GetLogger().GetLevel())

	Init("debug")
	assert.Equal(t, logrus.DebugLevel, GetLogger().GetLevel())
}

func TestLogFormat(t *testing.T) {
	t.Setenv("LOG_FORMAT", "text")
	Init("info")
	assert.IsType(t, &logrus.TextFormatter{}, GetLogger().Formatter)

	t.Setenv("LOG_FORMAT", "")
	Init("info")
	assert.IsType(t, &logrus.JSONFormatter{}, GetLogger().Formatter)
}

func TestComponentFields(t *testing.T) {
	Init("info")
	hook := test.NewLocal(GetLogger())

	Component("health").WithError(errors.New("boom")).Warn("Run failed")
	WithFields(logrus.Fields{"issue": "acme/widgets#1"}).Info("Routed issue")

	entries := hook.AllEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, "health", entries[0].Data["component"])
	assert.EqualError(t, entries[0].Data[logrus.ErrorKey].(error), "boom")
	assert.Equal(t, "acme/widgets#1", entries[1].Data["issue"])
}
