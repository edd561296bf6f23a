// Package build provides the logging primitives shared by every subsystem
// package: a rotating file+console writer and a registry of per-subsystem
// slog.Logger values that main wires up once at startup.
package build

import (
	"os"

	"github.com/decred/slog"
	"github.com/jrick/logrotate/rotator"
)

// LogTypeStdOut and LogTypeNone mirror the two ways a daemon can run: an
// interactive console, or fully backgrounded with file-only logging.
const (
	LogTypeStdOut = iota
	LogTypeNone
)

// LogWriter wraps a rotator.Rotator so it can be passed to
// slog.NewBackend(...).Logger as an io.Writer.
type LogWriter struct {
	RotatorLog *rotator.Rotator
}

// Write logs to both the rotating log file and (when built without the
// `filelog` tag) standard output.
func (w *LogWriter) Write(b []byte) (int, error) {
	if w.RotatorLog != nil {
		_, _ = w.RotatorLog.Write(b)
	}
	return os.Stdout.Write(b)
}

// RotatingLogWriter wraps a log writer and a set of pkg-level loggers so
// that the loggers can be replaced once the writer is initialized with a
// log file, and individual subsystems can have their level adjusted at
// runtime.
type RotatingLogWriter struct {
	backend     *slog.Backend
	subLoggers  map[string]slog.Logger
	logWriter   *LogWriter
	rotatorLogf func(string) slog.Logger
}

// NewRotatingLogWriter instantiates a new log writer that is capable of
// cycling through rotating log files.
func NewRotatingLogWriter() *RotatingLogWriter {
	writer := &LogWriter{}
	backend := slog.NewBackend(writer)

	return &RotatingLogWriter{
		backend:    backend,
		subLoggers: make(map[string]slog.Logger),
		logWriter:  writer,
	}
}

// InitLogRotator initializes the log file rotator to write logs to
// logFile and create roll files in the same directory. It must be called
// before the log rotator is actually used, and should only be called
// once overall.
func (r *RotatingLogWriter) InitLogRotator(logFile string, maxLogFileSize int, maxLogFiles int) error {
	logDir, _ := splitDir(logFile)
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return err
	}

	rot, err := rotator.New(logFile, int64(maxLogFileSize*1024), false, maxLogFiles)
	if err != nil {
		return err
	}

	r.rotatorLogf = func(subsystem string) slog.Logger {
		return r.backend.Logger(subsystem)
	}
	r.logWriter.RotatorLog = rot

	return nil
}

// GenSubLogger creates a new sublogger. It is used to inject the
// initialized rotating log writer into subsystem packages that don't
// already have a reference to it.
func (r *RotatingLogWriter) GenSubLogger(tag string) slog.Logger {
	return r.backend.Logger(tag)
}

// RegisterSubLogger stores a freshly created logger, keyed by its
// subsystem tag, so SetLogLevel can later find and adjust it.
func (r *RotatingLogWriter) RegisterSubLogger(subsystem string, logger slog.Logger) {
	r.subLoggers[subsystem] = logger
}

// SetLogLevel sets the log level for the subsystem tagged with subsystem.
func (r *RotatingLogWriter) SetLogLevel(subsystem string, level string) {
	logger, ok := r.subLoggers[subsystem]
	if !ok {
		return
	}
	lvl, _ := slog.LevelFromString(level)
	logger.SetLevel(lvl)
}

// SetLogLevels sets the log level for every registered subsystem.
func (r *RotatingLogWriter) SetLogLevels(level string) {
	for subsystem := range r.subLoggers {
		r.SetLogLevel(subsystem, level)
	}
}

// Close flushes and closes the underlying rotator.
func (r *RotatingLogWriter) Close() error {
	if r.logWriter.RotatorLog != nil {
		return r.logWriter.RotatorLog.Close()
	}
	return nil
}

// NewSubLogger returns a new logger for a subsystem, either created
// through genLogger if provided or else a disabled logger, which matches
// the pattern used to register package-level loggers before the root
// logger is ready.
func NewSubLogger(subsystem string, genLogger func(string) slog.Logger) slog.Logger {
	if genLogger == nil {
		return slog.Disabled
	}
	return genLogger(subsystem)
}

func splitDir(path string) (dir string, file string) {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i], path[i+1:]
		}
	}
	return ".", path
}
