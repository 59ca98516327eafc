// Package logger implements the logging adapter on charmbracelet/log.
package logger

import (
	"errors"
	"io"
	"os"
	"strings"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/nvim-neorocks/lux/internal/core/ports"
)

// messager describes an error that can report its own message without the
// chain. This matches the Message() method of zerr.Error.
type messager interface {
	Message() string
}

// Logger implements ports.Logger.
type Logger struct {
	logger *charmlog.Logger
}

// New creates a Logger writing to stderr.
func New() *Logger {
	return NewWithWriter(os.Stderr)
}

// NewWithWriter creates a Logger writing to w.
func NewWithWriter(w io.Writer) *Logger {
	return &Logger{
		logger: charmlog.NewWithOptions(w, charmlog.Options{
			ReportTimestamp: true,
			TimeFormat:      time.Kitchen,
			Level:           charmlog.InfoLevel,
		}),
	}
}

// SetVerbose lowers the threshold to debug.
func (l *Logger) SetVerbose() {
	l.logger.SetLevel(charmlog.DebugLevel)
}

func (l *Logger) Debug(msg string, kv ...any) {
	l.logger.Debug(msg, kv...)
}

func (l *Logger) Info(msg string, kv ...any) {
	l.logger.Info(msg, kv...)
}

func (l *Logger) Warn(msg string, kv ...any) {
	l.logger.Warn(msg, kv...)
}

// Error logs the error with its cause chain flattened into one line per
// cause, so wrapped errors stay readable.
func (l *Logger) Error(err error, kv ...any) {
	if err == nil {
		return
	}

	var messages []string
	current := err
	for current != nil {
		if m, ok := current.(messager); ok {
			messages = append(messages, m.Message())
			current = errors.Unwrap(current)
			continue
		}
		messages = append(messages, current.Error())
		break
	}

	l.logger.Error(strings.Join(messages, ": "), kv...)
}

var _ ports.Logger = (*Logger)(nil)
