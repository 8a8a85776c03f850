// Package logging wraps zerolog behind small Logger and Event types so the
// rest of the module never imports zerolog directly.
//
// The package is split across three files: logger.go (core types and level
// management), error_logging.go (log-and-return error helpers), and
// constants.go (shared field names).
package logging

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// Logger wraps a zerolog.Logger.
type Logger struct {
	zl zerolog.Logger
}

// Event wraps a zerolog.Event: a single in-flight log line that fields are
// chained onto before Msg sends it.
type Event struct {
	ze *zerolog.Event
}

// DefaultLogger is the logger used by the package-level functions.
var DefaultLogger = Logger{zl: zlog.Logger}

// Level represents a log level.
type Level int8

// Log levels.
const (
	DebugLevel Level = Level(zerolog.DebugLevel)
	InfoLevel  Level = Level(zerolog.InfoLevel)
	WarnLevel  Level = Level(zerolog.WarnLevel)
	ErrorLevel Level = Level(zerolog.ErrorLevel)
)

// SetGlobalLevel sets the minimum level accepted process-wide.
func SetGlobalLevel(level Level) {
	zerolog.SetGlobalLevel(zerolog.Level(level))
}

// ParseLevel parses a level string such as "debug" or "warn" into a Level.
func ParseLevel(levelStr string) (Level, error) {
	level, err := zerolog.ParseLevel(levelStr)
	if err != nil {
		return Level(0), fmt.Errorf("invalid log level %q: %w", levelStr, err)
	}
	return Level(level), nil
}

// String returns the string representation of the log level.
func (l Level) String() string {
	return zerolog.Level(l).String()
}

// New creates a Logger writing to w.
func New(w io.Writer) Logger {
	return Logger{zl: zerolog.New(w)}
}

// Level returns a child logger with the minimum accepted level set to level.
func (l Logger) Level(level Level) Logger {
	return Logger{zl: l.zl.Level(zerolog.Level(level))}
}

// Debug starts a new message with debug level.
func (l Logger) Debug() Event {
	return Event{ze: l.zl.Debug()}
}

// Info starts a new message with info level.
func (l Logger) Info() Event {
	return Event{ze: l.zl.Info()}
}

// Warn starts a new message with warn level.
func (l Logger) Warn() Event {
	return Event{ze: l.zl.Warn()}
}

// Error starts a new message with error level.
func (l Logger) Error() Event {
	return Event{ze: l.zl.Error()}
}

// Str adds a string field to the event.
func (e Event) Str(key, val string) Event {
	return Event{ze: e.ze.Str(key, val)}
}

// Int adds an int field to the event.
func (e Event) Int(key string, val int) Event {
	return Event{ze: e.ze.Int(key, val)}
}

// Uint64 adds a uint64 field to the event.
func (e Event) Uint64(key string, val uint64) Event {
	return Event{ze: e.ze.Uint64(key, val)}
}

// Dur adds a duration field to the event.
func (e Event) Dur(key string, val time.Duration) Event {
	return Event{ze: e.ze.Dur(key, val)}
}

// Err adds an error field to the event.
func (e Event) Err(err error) Event {
	return Event{ze: e.ze.Err(err)}
}

// Interface adds an arbitrary field to the event.
func (e Event) Interface(key string, val interface{}) Event {
	return Event{ze: e.ze.Interface(key, val)}
}

// Msg sends the event with the given message.
func (e Event) Msg(msg string) {
	e.ze.Msg(msg)
}

// Debug starts a debug-level event on the default logger.
func Debug() Event {
	return DefaultLogger.Debug()
}

// Info starts an info-level event on the default logger.
func Info() Event {
	return DefaultLogger.Info()
}

// Warn starts a warn-level event on the default logger.
func Warn() Event {
	return DefaultLogger.Warn()
}

// Error starts an error-level event on the default logger.
func Error() Event {
	return DefaultLogger.Error()
}
