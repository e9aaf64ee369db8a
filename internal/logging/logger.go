package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"reviewgate/internal/config"
)

// Options describes logger construction parameters.
type Options struct {
	Level  string
	Format string
	// Sinks names "stdout", "stderr" or file paths. Files rotate per Rotation.
	// Empty means stdout.
	Sinks []string
	// SessionID, when set, is attached to every record together with the pid.
	SessionID string
	Rotation  Rotation
}

// Rotation follows lumberjack semantics; zero values use lumberjack defaults.
type Rotation struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Runtime bundles a logger with the file sinks backing it so callers can
// release them at shutdown.
type Runtime struct {
	Logger  *slog.Logger
	closers []io.Closer
}

// Close releases every file sink opened for the logger.
func (r *Runtime) Close() error {
	if r == nil {
		return nil
	}
	err := closeAll(r.closers)
	r.closers = nil
	return err
}

// Open constructs a logger and returns it together with its file sinks.
// Caller locations are included at debug level.
func Open(opts Options) (*Runtime, error) {
	level := parseLevel(opts.Level)
	w, closers, err := openSinks(opts.Sinks, opts.Rotation)
	if err != nil {
		return nil, err
	}

	addSource := level <= slog.LevelDebug
	var handler slog.Handler
	switch format := strings.ToLower(strings.TrimSpace(opts.Format)); format {
	case "", "console":
		handler = newConsoleHandler(w, level, addSource)
	case "json":
		handler = newJSONHandler(w, level, addSource)
	default:
		_ = closeAll(closers)
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}
	if sid := strings.TrimSpace(opts.SessionID); sid != "" {
		handler = newSessionHandler(handler, sid, os.Getpid())
	}
	return &Runtime{Logger: slog.New(handler), closers: closers}, nil
}

// NewFromConfig opens the daemon logger: stdout plus the rotating log file
// under paths.log_dir, which `reviewgate logs` reads back.
func NewFromConfig(cfg *config.Config, sessionID string) (*Runtime, error) {
	if cfg == nil {
		return Open(Options{SessionID: sessionID})
	}
	sinks := []string{"stdout"}
	if cfg.Paths.LogDir != "" {
		sinks = append(sinks, cfg.LogPath())
	}
	return Open(Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Sinks:     sinks,
		SessionID: sessionID,
		Rotation: Rotation{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
		},
	})
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func openSinks(sinks []string, rotation Rotation) (io.Writer, []io.Closer, error) {
	var writers []io.Writer
	var closers []io.Closer
	seen := make(map[string]bool, len(sinks))
	for _, sink := range sinks {
		sink = strings.TrimSpace(sink)
		if sink == "" || seen[sink] {
			continue
		}
		seen[sink] = true

		switch sink {
		case "stdout":
			writers = append(writers, os.Stdout)
		case "stderr":
			writers = append(writers, os.Stderr)
		default:
			if err := os.MkdirAll(filepath.Dir(sink), 0o755); err != nil {
				_ = closeAll(closers)
				return nil, nil, fmt.Errorf("log sink %s: %w", sink, err)
			}
			file := &lumberjack.Logger{
				Filename:   sink,
				MaxSize:    rotation.MaxSizeMB,
				MaxBackups: rotation.MaxBackups,
				MaxAge:     rotation.MaxAgeDays,
			}
			writers = append(writers, file)
			closers = append(closers, file)
		}
	}

	switch len(writers) {
	case 0:
		return os.Stdout, nil, nil
	case 1:
		return writers[0], closers, nil
	default:
		return io.MultiWriter(writers...), closers, nil
	}
}

func closeAll(closers []io.Closer) error {
	var first error
	for _, c := range closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// newJSONHandler writes the shape `reviewgate logs --id` parses: ts, level,
// msg and flat attributes.
func newJSONHandler(w io.Writer, level slog.Leveler, addSource bool) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: addSource,
		ReplaceAttr: func(_ []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.TimeKey:
				attr.Key = "ts"
				if attr.Value.Kind() == slog.KindTime {
					attr.Value = slog.StringValue(attr.Value.Time().UTC().Format(time.RFC3339))
				}
			case slog.LevelKey:
				attr.Value = slog.StringValue(strings.ToLower(attr.Value.String()))
			case slog.SourceKey:
				if src, ok := attr.Value.Any().(*slog.Source); ok && src != nil {
					attr.Value = slog.StringValue(fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
				}
			}
			return attr
		},
	})
}
