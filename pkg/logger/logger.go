// Package logger provides the process-wide logrus logger for Tactix.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// Log is the global logger. It is usable before Init (stdout, info level).
var Log = newDefault()

// Formatter renders entries as: [TIME] [LEVL] [file:line] msg key=value...
// The caller bracket is left out when the entry has no caller.
type Formatter struct{}

// Format implements logrus.Formatter.
func (f *Formatter) Format(entry *logrus.Entry) ([]byte, error) {
	var fileLine string
	if entry.HasCaller() {
		fileLine = fmt.Sprintf(" [%s:%d]", filepath.Base(entry.Caller.File), entry.Caller.Line)
	}

	level := strings.ToUpper(entry.Level.String())
	if len(level) > 4 {
		level = level[:4]
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] [%s]%s %s",
		entry.Time.Format("2006-01-02 15:04:05"), level, fileLine, entry.Message))

	for k, v := range entry.Data {
		sb.WriteString(fmt.Sprintf(" %s=%v", k, v))
	}
	sb.WriteByte('\n')

	return []byte(sb.String()), nil
}

func newDefault() *logrus.Logger {
	l := logrus.New()
	l.SetReportCaller(true)
	l.SetOutput(os.Stdout)
	l.SetFormatter(&Formatter{})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// Init configures the global logger. An unknown level falls back to info.
// When filePath is set, output goes to both stdout and the file.
func Init(levelStr, filePath string) error {
	l := logrus.New()
	l.SetReportCaller(true)
	l.SetFormatter(&Formatter{})

	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	writers := []io.Writer{os.Stdout}
	if filePath != "" {
		if dir := filepath.Dir(filePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create log directory: %w", err)
			}
		}

		file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		writers = append(writers, file)
	}
	l.SetOutput(io.MultiWriter(writers...))

	Log = l
	return nil
}

// With returns an entry carrying a component field.
func With(component string) *logrus.Entry {
	return Log.WithField("component", component)
}
