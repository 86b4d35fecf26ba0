// Package logging configures the global zerolog logger.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Settings controls where and how much is logged. An empty File logs to
// stderr.
type Settings struct {
	Level      string `koanf:"level" yaml:"level"`
	Format     string `koanf:"format" yaml:"format"`
	File       string `koanf:"file" yaml:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `koanf:"max_age_days" yaml:"max_age_days"`
}

func DefaultSettings() Settings {
	return Settings{
		Level:      "info",
		Format:     "auto",
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 28,
	}
}

// ParseLevel converts a string level into zerolog.Level with a safe default.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	case "disabled", "off":
		return zerolog.Disabled
	case "info":
		fallthrough
	default:
		return zerolog.InfoLevel
	}
}

// Init installs a global logger built from s and returns the writer it logs
// to, so callers can close rotated files on exit.
func Init(s Settings) (io.WriteCloser, error) {
	w, err := newWriter(s)
	if err != nil {
		return nil, err
	}
	zerolog.SetGlobalLevel(ParseLevel(s.Level))
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	return w, nil
}

func newWriter(s Settings) (io.WriteCloser, error) {
	var out io.WriteCloser = nopCloser{os.Stderr}
	console := false

	if s.File != "" {
		if err := os.MkdirAll(filepath.Dir(s.File), 0o755); err != nil {
			return nil, errors.Wrapf(err, "create log directory for %s", s.File)
		}
		out = &lumberjack.Logger{
			Filename:   s.File,
			MaxSize:    s.MaxSizeMB,
			MaxBackups: s.MaxBackups,
			MaxAge:     s.MaxAgeDays,
			Compress:   true,
		}
	}

	switch strings.ToLower(s.Format) {
	case "json":
	case "console", "text":
		console = true
	case "", "auto":
		console = s.File == "" && isatty.IsTerminal(os.Stderr.Fd())
	default:
		return nil, errors.Errorf("unknown log format %q", s.Format)
	}

	if console {
		return consoleCloser{
			ConsoleWriter: zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen, NoColor: s.File != ""},
			closer:        out,
		}, nil
	}
	return out, nil
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

type consoleCloser struct {
	zerolog.ConsoleWriter
	closer io.Closer
}

func (c consoleCloser) Close() error { return c.closer.Close() }
