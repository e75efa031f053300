package clusterfs

import (
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with filesystem-specific helpers.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithFile adds a file name field to the logger.
func (l *Logger) WithFile(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("file", name),
	}
}

// LogMount logs a mount. formatted reports whether a new filesystem was written.
func (l *Logger) LogMount(blocks int, formatted bool, err error) {
	if err != nil {
		l.Error("mount failed",
			"blocks", blocks,
			"error", err,
		)
		return
	}
	if formatted {
		l.Info("formatted new filesystem",
			"blocks", blocks,
		)
		return
	}
	l.Info("mounted filesystem",
		"blocks", blocks,
	)
}

// LogCreate logs a file creation.
func (l *Logger) LogCreate(name string, cluster uint32, err error) {
	if err != nil {
		l.Error("create failed",
			"file", name,
			"error", err,
		)
	} else {
		l.Debug("create completed",
			"file", name,
			"first_cluster", cluster,
		)
	}
}

// LogDelete logs a file deletion.
func (l *Logger) LogDelete(name string, err error) {
	if err != nil {
		l.Error("delete failed",
			"file", name,
			"error", err,
		)
	} else {
		l.Debug("delete completed",
			"file", name,
		)
	}
}

// LogResize logs a size change of a file.
func (l *Logger) LogResize(name string, from, to int64, err error) {
	if err != nil {
		l.Error("resize failed",
			"file", name,
			"from", from,
			"to", to,
			"error", err,
		)
	} else {
		l.Debug("resize completed",
			"file", name,
			"from", from,
			"to", to,
		)
	}
}

// LogDefragment logs an orphan reclamation pass.
func (l *Logger) LogDefragment(freed int, err error) {
	switch {
	case err != nil:
		l.Error("defragment failed",
			"error", err,
		)
	case freed > 0:
		l.Info("defragment reclaimed orphans",
			"freed", freed,
		)
	default:
		l.Debug("defragment found no orphans")
	}
}

// LogCheck logs a consistency check.
func (l *Logger) LogCheck(problems int, err error) {
	switch {
	case err != nil:
		l.Error("check failed",
			"error", err,
		)
	case problems > 0:
		l.Warn("check found problems",
			"problems", problems,
		)
	default:
		l.Debug("check completed")
	}
}
