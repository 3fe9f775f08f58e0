package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Logger provides leveled logging (info/warning/error) to per-level files and stdout/stderr.
type Logger struct {
	infoLog    zerolog.Logger
	warningLog zerolog.Logger
	errorLog   zerolog.Logger
	logDir     string
	mu         *sync.Mutex
}

// New creates a Logger writing to logDir and ensures the directory exists.
// level is one of debug, info, warn or error.
func New(logDir, level string) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	l := &Logger{logDir: logDir, mu: &sync.Mutex{}}
	if err := l.setupLoggers(parseLevel(level)); err != nil {
		return nil, err
	}
	return l, nil
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	nop := zerolog.Nop()
	return &Logger{infoLog: nop, warningLog: nop, errorLog: nop, mu: &sync.Mutex{}}
}

// NewWithWriter returns a Logger writing every level to w. Useful in tests.
func NewWithWriter(w io.Writer) *Logger {
	base := zerolog.New(w).With().Timestamp().Logger()
	return &Logger{
		infoLog:    base.Level(zerolog.InfoLevel),
		warningLog: base.Level(zerolog.InfoLevel),
		errorLog:   base.Level(zerolog.InfoLevel),
		mu:         &sync.Mutex{},
	}
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	}
	return zerolog.InfoLevel
}

// setupLoggers initializes writers and per-level loggers.
func (l *Logger) setupLoggers(level zerolog.Level) error {
	infoFile, err := l.openLogFile(filepath.Join(l.logDir, "info.log"))
	if err != nil {
		return err
	}
	warningFile, err := l.openLogFile(filepath.Join(l.logDir, "warning.log"))
	if err != nil {
		return err
	}
	errorFile, err := l.openLogFile(filepath.Join(l.logDir, "error.log"))
	if err != nil {
		return err
	}

	l.infoLog = zerolog.New(io.MultiWriter(os.Stdout, infoFile)).Level(level).With().Timestamp().Logger()
	l.warningLog = zerolog.New(io.MultiWriter(os.Stdout, warningFile)).Level(level).With().Timestamp().Logger()
	l.errorLog = zerolog.New(io.MultiWriter(os.Stderr, errorFile)).Level(level).With().Timestamp().Logger()
	return nil
}

// openLogFile opens or creates a log file for appending.
func (l *Logger) openLogFile(filename string) (*os.File, error) {
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", filename, err)
	}
	return file, nil
}

// With returns a child logger that adds key=value to every entry.
func (l *Logger) With(key, value string) *Logger {
	return &Logger{
		infoLog:    l.infoLog.With().Str(key, value).Logger(),
		warningLog: l.warningLog.With().Str(key, value).Logger(),
		errorLog:   l.errorLog.With().Str(key, value).Logger(),
		logDir:     l.logDir,
		mu:         l.mu,
	}
}

// Debug writes a formatted debug-level entry to the info log.
func (l *Logger) Debug(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infoLog.Debug().Msgf(format, v...)
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infoLog.Info().Msgf(format, v...)
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warningLog.Warn().Msgf(format, v...)
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errorLog.Error().Msgf(format, v...)
}

// Printf lets the logger stand in for log.Printf style sinks (golang-migrate, http.Server).
func (l *Logger) Printf(format string, v ...interface{}) {
	l.Info(format, v...)
}

// StdLogger adapts the error level to a *log.Logger for http.Server.ErrorLog.
func (l *Logger) StdLogger() *log.Logger {
	return log.New(errorWriter{l}, "", 0)
}

type errorWriter struct{ l *Logger }

func (w errorWriter) Write(p []byte) (int, error) {
	w.l.Error("%s", strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// CleanLogs truncates the specified log file.
func (l *Logger) CleanLogs(fileName string) error {
	if l.logDir == "" {
		return nil
	}
	filePath := filepath.Join(l.logDir, filepath.Base(fileName))
	file, err := os.OpenFile(filePath, os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		l.Error("Error opening file: %v", err)
		return err
	}
	defer file.Close()

	l.Info("File content has been cleared: %s", fileName)
	return nil
}

// Dir returns the directory holding the log files.
func (l *Logger) Dir() string {
	return l.logDir
}
