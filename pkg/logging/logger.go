// Package logging provides session-scoped file logging for conductor
// components. Every component in one run appends to the same
// ~/.forge/logs/<session-id>-conductor.log, tagged with its component name.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	sessionID     string
	sessionIDOnce sync.Once

	logDir     string
	logDirOnce sync.Once
	logDirErr  error
)

// SessionID returns the process-wide session id, generating it on first use.
func SessionID() string {
	sessionIDOnce.Do(func() {
		sessionID = uuid.New().String()
	})
	return sessionID
}

func ensureLogDir() (string, error) {
	logDirOnce.Do(func() {
		home, err := os.UserHomeDir()
		if err != nil {
			logDirErr = fmt.Errorf("failed to get home directory: %w", err)
			return
		}
		logDir = filepath.Join(home, ".forge", "logs")
		if err := os.MkdirAll(logDir, 0750); err != nil {
			logDirErr = fmt.Errorf("failed to create log directory: %w", err)
		}
	})
	return logDir, logDirErr
}

// Logger writes component-tagged entries to the session log file. All
// methods are safe for concurrent use.
type Logger struct {
	component string
	mu        sync.Mutex
	out       io.Writer
	file      *os.File
	path      string
	closeOnce sync.Once
}

// New creates a logger for a component. When the log directory or file is
// unavailable the logger falls back to stderr and returns the error so the
// caller can warn about degraded logging.
func New(component string) (*Logger, error) {
	dir, err := ensureLogDir()
	if err != nil {
		return &Logger{component: component, out: os.Stderr}, err
	}

	path := filepath.Join(dir, fmt.Sprintf("%s-conductor.log", SessionID()))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return &Logger{component: component, out: os.Stderr},
			fmt.Errorf("failed to open log file: %w", err)
	}

	return &Logger{component: component, out: file, file: file, path: path}, nil
}

func (l *Logger) log(level, format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	fmt.Fprintf(l.out, "[%s] [%s] [%s] %s\n",
		time.Now().Format("2006-01-02 15:04:05.000"),
		l.component, level, fmt.Sprintf(format, v...))
}

// Debugf logs a debug-level message.
func (l *Logger) Debugf(format string, v ...interface{}) { l.log("DEBUG", format, v...) }

// Infof logs an info-level message.
func (l *Logger) Infof(format string, v ...interface{}) { l.log("INFO", format, v...) }

// Warnf logs a warning-level message.
func (l *Logger) Warnf(format string, v ...interface{}) { l.log("WARN", format, v...) }

// Errorf logs an error-level message.
func (l *Logger) Errorf(format string, v ...interface{}) { l.log("ERROR", format, v...) }

// Writer exposes the raw destination, for streaming subprocess output into
// the session log.
func (l *Logger) Writer() io.Writer {
	if l.file != nil {
		return l.file
	}
	return os.Stderr
}

// Path returns the log file path, empty when falling back to stderr.
func (l *Logger) Path() string { return l.path }

// Close closes the underlying file. Safe to call more than once.
func (l *Logger) Close() error {
	var err error
	l.closeOnce.Do(func() {
		if l.file != nil {
			err = l.file.Close()
		}
	})
	return err
}
