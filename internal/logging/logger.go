// Package logging adapts zerolog to the core.Logger interface.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const permission = 0o640

// Formats accepted by Build.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Build collects writer settings before a Logger is made.
type Build struct {
	writer io.Writer
	path   string
	level  string
	format string
}

// New starts a builder writing JSON at info level to stderr.
func New() *Build {
	return &Build{writer: os.Stderr, level: "info", format: FormatJSON}
}

// FromPath appends log lines to the file at path instead of the writer.
func (b *Build) FromPath(path string) *Build {
	b.path = path
	return b
}

// FromWriter sets the destination writer.
func (b *Build) FromWriter(w io.Writer) *Build {
	if w != nil {
		b.writer = w
	}
	return b
}

// Level sets the minimum level (debug, info, warn, error).
func (b *Build) Level(level string) *Build {
	b.level = level
	return b
}

// Format selects json or console output.
func (b *Build) Format(format string) *Build {
	b.format = format
	return b
}

// Make opens the destination and returns the logger.
func (b *Build) Make() (*Logger, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(b.level)))
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", b.level, err)
	}
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	out := &Logger{}
	w := b.writer
	if b.path != "" {
		out.file, err = os.OpenFile(b.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, permission)
		if err != nil {
			return nil, err
		}
		w = zerolog.SyncWriter(out.file)
	}
	switch b.format {
	case "", FormatJSON:
	case FormatConsole:
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: b.path != ""}
	default:
		if out.file != nil {
			_ = out.file.Close()
		}
		return nil, fmt.Errorf("unknown log format %q", b.format)
	}
	out.zl = zerolog.New(w).Level(level).With().Timestamp().Logger()
	return out, nil
}

// Logger implements core.Logger. Arguments after the message are key/value
// pairs.
type Logger struct {
	zl   zerolog.Logger
	file *os.File
}

// Zerolog exposes the underlying logger.
func (l *Logger) Zerolog() zerolog.Logger { return l.zl }

// With returns a child logger carrying the key/value pairs on every line.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{zl: l.zl.With().Fields(pairs(args)).Logger(), file: l.file}
}

func (l *Logger) Debug(msg string, args ...any) { l.zl.Debug().Fields(pairs(args)).Msg(msg) }
func (l *Logger) Info(msg string, args ...any)  { l.zl.Info().Fields(pairs(args)).Msg(msg) }
func (l *Logger) Warn(msg string, args ...any)  { l.zl.Warn().Fields(pairs(args)).Msg(msg) }
func (l *Logger) Error(msg string, args ...any) { l.zl.Error().Fields(pairs(args)).Msg(msg) }

// Close closes the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// pairs turns alternating key/value args into a field list. A trailing key
// without a value is kept under "!BADKEY".
func pairs(args []any) []any {
	if len(args) == 0 {
		return nil
	}
	out := make([]any, 0, len(args)+1)
	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			out = append(out, "!BADKEY", args[i])
			break
		}
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		out = append(out, key, args[i+1])
	}
	return out
}
