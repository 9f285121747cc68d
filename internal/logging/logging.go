package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New builds the run logger: text to stderr, rotated file copy under logDir.
// An unwritable log directory degrades to stderr only.
func New(logDir string, verbose bool) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}

	if logDir == "" {
		log.SetOutput(os.Stderr)
		return log
	}

	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.SetOutput(os.Stderr)
		log.WithError(err).Warn("could not create log directory, logging to stderr only")
		return log
	}

	rotated := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "clipforge.log"),
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, rotated))
	return log
}
