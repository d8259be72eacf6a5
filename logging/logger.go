// Package logging constructs the slog loggers used throughout signtrack.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/roadsight/signtrack/config"
)

// Options describes logger construction parameters.
type Options struct {
	// Level is one of debug, info, warn or error
	Level string
	// Format is console, json or auto.  Auto selects console output when
	// Output is a terminal and json otherwise.
	Format string
	// Output receives log records, defaults to stdout
	Output io.Writer
	// FilePath optionally receives a copy of every record
	FilePath string
}

// New constructs a slog logger using the provided options.  The returned
// close function releases the log file, if one was opened.
func New(opts Options) (*slog.Logger, func() error, error) {

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	format, err := resolveFormat(opts.Format, out)
	if err != nil {
		return nil, nil, err
	}

	closer := func() error { return nil }

	if strings.TrimSpace(opts.FilePath) != "" {
		if err := os.MkdirAll(filepath.Dir(opts.FilePath), 0o755); err != nil {
			return nil, nil, fmt.Errorf("ensure log directory: %w", err)
		}

		file, err := os.OpenFile(opts.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file %s: %w", opts.FilePath, err)
		}

		out = io.MultiWriter(out, file)
		closer = file.Close
	}

	level := ParseLevel(opts.Level)
	handlerOpts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			if attr.Key == slog.SourceKey {
				if src, ok := attr.Value.Any().(*slog.Source); ok && src != nil {
					attr.Value = slog.StringValue(fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
				}
			}
			return attr
		},
	}

	var handler slog.Handler

	switch format {
	case "json":
		handler = slog.NewJSONHandler(out, handlerOpts)
	default:
		handler = slog.NewTextHandler(out, handlerOpts)
	}

	return slog.New(handler), closer, nil
}

// NewFromConfig creates a logger from the logging section of cfg, writing a
// copy of the output to a dated file in the configured log directory.
func NewFromConfig(cfg *config.Config) (*slog.Logger, func() error, error) {

	if cfg == nil {
		return New(Options{Level: "info", Format: "auto"})
	}

	opts := Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}

	if cfg.Paths.LogDir != "" {
		opts.FilePath = DatedPath(cfg.Paths.LogDir, time.Now())
	}

	return New(opts)
}

// DatedPath returns the log file path for the given day, eg: 20261018.log
func DatedPath(dir string, day time.Time) string {
	return filepath.Join(dir, day.Format("20060102")+".log")
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ParseLevel converts a level name to a slog level, unknown names map to info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func resolveFormat(format string, out io.Writer) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		return "json", nil
	case "console":
		return "console", nil
	case "", "auto":
		if f, ok := out.(*os.File); ok && isTerminal(f.Fd()) {
			return "console", nil
		}
		return "json", nil
	default:
		return "", fmt.Errorf("log format: unsupported value %q", format)
	}
}

func isTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
