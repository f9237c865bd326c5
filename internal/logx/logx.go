// Package logx configures tickd's structured logging: a readable console
// writer for interactive use and an optional JSON file sink for the
// journal that heartbeat analysis tools consume.
package logx

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config selects log sinks and verbosity.
type Config struct {
	Level   string `yaml:"level"`   // trace, debug, info, warn, error
	Console bool   `yaml:"console"` // human-readable stderr output
	File    string `yaml:"file"`    // JSON log file path, empty to disable
}

// New builds the logger. The returned closer releases the file sink and is
// safe to call when no file was configured.
func New(cfg Config) (zerolog.Logger, func() error, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), nil, err
	}

	var sinks []io.Writer
	if cfg.Console {
		sinks = append(sinks, zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "2006-01-02T15:04:05.000",
		})
	}

	closer := func() error { return nil }
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("open log file: %w", err)
		}
		sinks = append(sinks, f)
		closer = f.Close
	}

	if len(sinks) == 0 {
		sinks = append(sinks, os.Stderr)
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(sinks...)).
		Level(level).
		With().Timestamp().Logger()
	zerolog.TimeFieldFormat = time.RFC3339Nano
	return logger, closer, nil
}

func parseLevel(s string) (zerolog.Level, error) {
	if strings.TrimSpace(s) == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return zerolog.InfoLevel, fmt.Errorf("log level %q: %w", s, err)
	}
	return level, nil
}
