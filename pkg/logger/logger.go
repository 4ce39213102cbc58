// ==============================================================================
// LOGGER PACKAGE - pkg/logger/logger.go
// ==============================================================================
package logger

import (
	"encoding/json"
	"log"
	"os"
	"strings"
	"time"
)

// Logger is the structured logging interface used across all services.
type Logger interface {
	Info(message string, fields map[string]interface{})
	Error(message string, fields map[string]interface{})
	Warn(message string, fields map[string]interface{})
	Debug(message string, fields map[string]interface{})
	Fatal(message string, fields map[string]interface{})
}

type level int

const (
	levelDebug level = iota
	levelInfo
	levelWarn
	levelError
	levelFatal
)

func parseLevel(s string) level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return levelDebug
	case "warn", "warning":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

type jsonLogger struct {
	serviceName string
	minLevel    level
	static      map[string]interface{}
	logger      *log.Logger
}

// New creates a JSON logger for the named service. The minimum level is read
// from LOG_LEVEL (defaults to info).
func New(serviceName string) Logger {
	return &jsonLogger{
		serviceName: serviceName,
		minLevel:    parseLevel(os.Getenv("LOG_LEVEL")),
		logger:      log.New(os.Stdout, "", 0),
	}
}

// NewWithFields creates a logger that attaches the given fields to every entry.
func NewWithFields(serviceName string, static map[string]interface{}) Logger {
	return &jsonLogger{
		serviceName: serviceName,
		minLevel:    parseLevel(os.Getenv("LOG_LEVEL")),
		static:      static,
		logger:      log.New(os.Stdout, "", 0),
	}
}

func (l *jsonLogger) log(lv level, name, message string, fields map[string]interface{}) {
	if lv < l.minLevel {
		return
	}

	entry := map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"level":     name,
		"service":   l.serviceName,
		"message":   message,
	}
	for k, v := range l.static {
		entry[k] = v
	}
	for k, v := range fields {
		entry[k] = v
	}

	jsonData, _ := json.Marshal(entry)
	l.logger.Println(string(jsonData))
}

func (l *jsonLogger) Info(message string, fields map[string]interface{}) {
	l.log(levelInfo, "info", message, fields)
}

func (l *jsonLogger) Error(message string, fields map[string]interface{}) {
	l.log(levelError, "error", message, fields)
}

func (l *jsonLogger) Warn(message string, fields map[string]interface{}) {
	l.log(levelWarn, "warn", message, fields)
}

func (l *jsonLogger) Debug(message string, fields map[string]interface{}) {
	l.log(levelDebug, "debug", message, fields)
}

func (l *jsonLogger) Fatal(message string, fields map[string]interface{}) {
	l.log(levelFatal, "fatal", message, fields)
	os.Exit(1)
}

// NewNop returns a logger that discards everything. Used in tests.
func NewNop() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (l *nopLogger) Info(message string, fields map[string]interface{})  {}
func (l *nopLogger) Error(message string, fields map[string]interface{}) {}
func (l *nopLogger) Warn(message string, fields map[string]interface{})  {}
func (l *nopLogger) Debug(message string, fields map[string]interface{}) {}
func (l *nopLogger) Fatal(message string, fields map[string]interface{}) {}
