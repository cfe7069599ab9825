// Package monitoring routes diagnostic output to three streams: ops for
// actionable warnings and errors, diag for day-to-day diagnostics and trace
// for per-deposit telemetry. Writers are configured once per process; each
// algorithm instance filters by its own Level.
package monitoring

import (
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
)

// Level is the minimum severity a Logger emits.
type Level int

const (
	LevelVerbose Level = iota
	LevelDebug
	LevelInfo
	LevelWarning
	LevelError
	LevelFatal
)

var levelNames = [...]string{"VERBOSE", "DEBUG", "INFO", "WARNING", "ERROR", "FATAL"}

func (l Level) String() string {
	if l >= 0 && int(l) < len(levelNames) {
		return levelNames[l]
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// ParseLevel accepts a level name, case-insensitive. "WARN" is accepted
// for WARNING.
func ParseLevel(s string) (Level, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	if name == "WARN" {
		return LevelWarning, nil
	}
	for i, n := range levelNames {
		if n == name {
			return Level(i), nil
		}
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// LogWriters holds the io.Writers for each logging stream.
type LogWriters struct {
	Ops   io.Writer
	Diag  io.Writer
	Trace io.Writer
}

var (
	mu          sync.RWMutex
	opsLogger   *log.Logger
	diagLogger  *log.Logger
	traceLogger *log.Logger
)

// SetLogWriters configures all three logging streams at once.
// Pass nil for any writer to disable that stream.
func SetLogWriters(w LogWriters) {
	mu.Lock()
	defer mu.Unlock()
	opsLogger = newLogger(w.Ops)
	diagLogger = newLogger(w.Diag)
	traceLogger = newLogger(w.Trace)
}

// newLogger creates a *log.Logger for a given writer, or returns nil if w is nil.
func newLogger(w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, "", log.LstdFlags|log.Lmicroseconds)
}

func stream(l **log.Logger) *log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return *l
}

// Logger is a named, leveled view onto the shared streams.
type Logger struct {
	name  string
	level Level
}

// NewLogger returns a Logger that prefixes lines with [name].
func NewLogger(name string, level Level) *Logger {
	return &Logger{name: name, level: level}
}

// Level returns the logger's threshold.
func (l *Logger) Level() Level { return l.level }

// SetLevel changes the logger's threshold.
func (l *Logger) SetLevel(level Level) { l.level = level }

// Enabled reports whether messages at level would be emitted.
func (l *Logger) Enabled(level Level) bool { return level >= l.level }

func (l *Logger) emit(level Level, out **log.Logger, format string, args ...interface{}) {
	if !l.Enabled(level) {
		return
	}
	if lg := stream(out); lg != nil {
		lg.Printf("[%s] %s: %s", l.name, level, fmt.Sprintf(format, args...))
	}
}

// Tracef logs per-deposit telemetry to the trace stream.
func (l *Logger) Tracef(format string, args ...interface{}) {
	l.emit(LevelVerbose, &traceLogger, format, args...)
}

// Debugf logs to the diag stream.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.emit(LevelDebug, &diagLogger, format, args...)
}

// Infof logs to the diag stream.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.emit(LevelInfo, &diagLogger, format, args...)
}

// Warnf logs to the ops stream.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.emit(LevelWarning, &opsLogger, format, args...)
}

// Errorf logs to the ops stream.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.emit(LevelError, &opsLogger, format, args...)
}

// Printf implements the migrate.Logger style interface on the diag stream.
func (l *Logger) Printf(format string, args ...interface{}) {
	l.Infof(strings.TrimRight(format, "\n"), args...)
}

// Verbose reports whether verbose output is enabled.
func (l *Logger) Verbose() bool { return l.Enabled(LevelVerbose) }
