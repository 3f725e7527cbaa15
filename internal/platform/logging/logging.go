// Package logging builds the process logger: console or JSON on stdout, plus
// an optional rotating file sink in Elastic Common Schema.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"go.elastic.co/ecszerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Level      string
	Format     string // "console", "json" or "" (console in development)
	Dev        bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	Out        io.Writer
}

// New returns the configured logger and a closer for the file sink. The
// closer is a no-op when no file is configured.
func New(opts Options) (zerolog.Logger, io.Closer) {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	level, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}

	console := useConsole(opts)
	var primary io.Writer = out
	if console {
		primary = zerolog.ConsoleWriter{Out: out}
	}

	if opts.File == "" {
		logger := zerolog.New(primary).Level(level).With().Timestamp().Logger()
		return logger, nopCloser{}
	}

	rotator := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		Compress:   true,
	}

	// ECS-shaped events go to the file and to stdout alike.
	multi := zerolog.MultiLevelWriter(primary, rotator)
	logger := ecszerolog.New(multi).Level(level)
	return logger, rotator
}

func useConsole(opts Options) bool {
	switch strings.ToLower(opts.Format) {
	case "console":
		return true
	case "json":
		return false
	}
	return opts.Dev
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
