// Package logger owns the process-wide operator log: a charmbracelet/log
// logger writing to a rotating file, mirrored to stderr in debug mode.
package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the global logger instance. It is nil until Init runs.
var Logger *log.Logger

// Config holds logger configuration.
type Config struct {
	Debug   bool
	BaseDir string
	// Stderr receives the debug mirror. Nil means os.Stderr.
	Stderr io.Writer
}

// LogFile returns the path of the rotating log file under baseDir.
func LogFile(baseDir string) string {
	return filepath.Join(baseDir, "logs", "join.log")
}

// Init initializes the global logger.
func Init(cfg Config) error {
	logFile := LogFile(cfg.BaseDir)
	if err := os.MkdirAll(filepath.Dir(logFile), 0o750); err != nil {
		return err
	}

	fileWriter := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}

	level := log.InfoLevel
	var writer io.Writer = fileWriter
	if cfg.Debug {
		level = log.DebugLevel
		stderr := cfg.Stderr
		if stderr == nil {
			stderr = os.Stderr
		}
		writer = io.MultiWriter(stderr, fileWriter)
	}

	Logger = log.NewWithOptions(writer, log.Options{
		ReportCaller:    cfg.Debug,
		ReportTimestamp: true,
		Level:           level,
		Prefix:          "join",
	})
	return nil
}

// Named returns a child logger for a component. Before Init it returns a
// logger that discards everything, so components can be built in tests
// without touching the filesystem.
func Named(component string) *log.Logger {
	if Logger == nil {
		return Discard()
	}
	return Logger.WithPrefix("join/" + component)
}

// Discard returns a logger that writes nowhere.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}

// Debug logs a debug message.
func Debug(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Debug(msg, keyvals...)
	}
}

// Info logs an info message.
func Info(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Info(msg, keyvals...)
	}
}

// Warn logs a warning message.
func Warn(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Warn(msg, keyvals...)
	}
}

// Error logs an error message.
func Error(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Error(msg, keyvals...)
	}
}
