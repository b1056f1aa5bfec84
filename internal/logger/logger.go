package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the process logger
type Options struct {
	Level  string // logrus level name, defaults to info
	Format string // "json" or "text"
	File   string // optional rotating log file
}

// New builds a logrus logger writing to stderr and, if configured, a rotating file
func New(opts Options) *logrus.Logger {
	log := logrus.New()

	if strings.EqualFold(opts.Format, "json") {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if opts.File != "" {
		log.SetOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
		}))
	}

	return log
}

// Discard returns a logger that drops everything; handy in tests
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
