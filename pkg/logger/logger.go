package logger

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var log *logrus.Logger

// Init builds the process logger. An empty level falls back to LOG_LEVEL.
// Records are JSON on stderr unless LOG_FORMAT=text; stdout stays free for
// command output.
func Init(level string) {
	log = logrus.New()
	log.SetOutput(os.Stderr)

	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	SetLevel(level)

	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "text") {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		return
	}
	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
	})
}

// SetLevel changes the level; unknown values select info.
func SetLevel(level string) {
	parsed, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		parsed = logrus.InfoLevel
	}
	GetLogger().SetLevel(parsed)
}

// GetLogger returns the process logger, creating it on first use.
func GetLogger() *logrus.Logger {
	if log == nil {
		Init("")
	}
	return log
}

// Component returns an entry tagged with the emitting component.
func Component(name string) *logrus.Entry {
	return GetLogger().WithField("component", name)
}

func WithFields(fields logrus.Fields) *logrus.Entry {
	return GetLogger().WithFields(fields)
}

func WithError(err error) *logrus.Entry {
	return GetLogger().WithError(err)
}

func Debugf(format string, args ...interface{}) {
	GetLogger().Debugf(format, args...)
}
