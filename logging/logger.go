// Package logging provides the leveled logger used across the service.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Sink receives every formatted line in addition to the output streams.
type Sink func(level Level, line string)

// Logger wraps standard log with level-based output and optional sinks.
type Logger struct {
	info  *log.Logger
	warn  *log.Logger
	error *log.Logger
	debug *log.Logger

	mu     sync.RWMutex
	sinks  map[int]Sink
	nextID int
	now    func() time.Time
}

// New creates a logger writing info/warn/debug to stdout and errors to stderr.
func New() *Logger {
	return NewWithWriters(os.Stdout, os.Stderr)
}

// NewWithWriters is New with explicit destinations.
func NewWithWriters(out, errOut io.Writer) *Logger {
	flags := log.Lmsgprefix
	return &Logger{
		info:  log.New(out, "[INFO]  ", flags),
		warn:  log.New(out, "[WARN]  ", flags),
		error: log.New(errOut, "[ERROR] ", flags),
		debug: log.New(out, "[DEBUG] ", flags),
		sinks: make(map[int]Sink),
		now:   time.Now,
	}
}

// Discard returns a logger that only feeds its sinks.
func Discard() *Logger {
	return NewWithWriters(io.Discard, io.Discard)
}

// AddSink registers s and returns a function that removes it.
func (l *Logger) AddSink(s Sink) (remove func()) {
	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.sinks[id] = s
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		delete(l.sinks, id)
		l.mu.Unlock()
	}
}

// Fork returns a logger writing to the same outputs with its own, empty set
// of sinks. Lines logged on the fork do not reach l's sinks and vice versa.
func (l *Logger) Fork() *Logger {
	return &Logger{
		info:  l.info,
		warn:  l.warn,
		error: l.error,
		debug: l.debug,
		sinks: make(map[int]Sink),
		now:   l.now,
	}
}

func (l *Logger) prefix() string {
	return fmt.Sprintf(" %s ", l.now().Format("15:04:05"))
}

func (l *Logger) emit(level Level, target *log.Logger, msg string, args []any) {
	line := fmt.Sprintf(msg, args...)
	target.Print(l.prefix() + line)

	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, s := range l.sinks {
		s(level, line)
	}
}

func (l *Logger) Info(msg string, args ...any)  { l.emit(LevelInfo, l.info, msg, args) }
func (l *Logger) Warn(msg string, args ...any)  { l.emit(LevelWarn, l.warn, msg, args) }
func (l *Logger) Error(msg string, args ...any) { l.emit(LevelError, l.error, msg, args) }
func (l *Logger) Debug(msg string, args ...any) { l.emit(LevelDebug, l.debug, msg, args) }
