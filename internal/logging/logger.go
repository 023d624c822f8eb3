package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LogLevel represents the severity of a log entry.
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ContextKey for correlation ID
type contextKey string

const CorrelationIDKey contextKey = "correlation_id"

// LogEntry represents a structured log entry for JSON serialization.
type LogEntry struct {
	Timestamp     time.Time              `json:"@timestamp"`
	Level         string                 `json:"level"`
	Message       string                 `json:"message"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	Filter        string                 `json:"filter,omitempty"`
	Action        string                 `json:"action,omitempty"`
	Error         string                 `json:"error,omitempty"`
	Fields        map[string]interface{} `json:"fields,omitempty"`
}

// Logger is a structured, JSON-lines logger for filter diagnostics: the
// degraded-state warnings spec.md §7 calls for (E_NOT_FOUND, E_TOO_FULL) are
// the only things this module ever logs on its own behalf.
type Logger struct {
	level   LogLevel
	writers []io.Writer
	mu      sync.RWMutex
}

// Config configures a Logger.
type Config struct {
	Level         LogLevel
	LogFile       string
	EnableConsole bool
	EnableFile    bool
}

// NewLogger creates a new structured logger instance.
func NewLogger(config Config) *Logger {
	logger := &Logger{
		level:   config.Level,
		writers: make([]io.Writer, 0, 2),
	}

	if config.EnableConsole {
		logger.writers = append(logger.writers, os.Stdout)
	}

	if config.EnableFile && config.LogFile != "" {
		if file, err := os.OpenFile(config.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err == nil {
			logger.writers = append(logger.writers, file)
		} else {
			fmt.Fprintf(os.Stderr, "logging: failed to open log file %s: %v\n", config.LogFile, err)
		}
	}

	return logger
}

func (l *Logger) writeEntry(entry LogEntry) {
	data, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: failed to marshal log entry: %v\n", err)
		return
	}
	data = append(data, '\n')

	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, writer := range l.writers {
		writer.Write(data)
	}
}

// WithCorrelationID attaches a correlation ID to the context.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, CorrelationIDKey, correlationID)
}

// NewCorrelationID generates a new correlation ID.
func NewCorrelationID() string {
	return uuid.New().String()
}

// GetCorrelationID retrieves the correlation ID from context, if any.
func GetCorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(CorrelationIDKey).(string); ok {
		return id
	}
	return ""
}

func (l *Logger) log(ctx context.Context, level LogLevel, filterName, action, message string, fields map[string]interface{}, err error) {
	if level < l.level {
		return
	}

	entry := LogEntry{
		Timestamp: time.Now().UTC(),
		Level:     level.String(),
		Message:   message,
		Filter:    filterName,
		Action:    action,
		Fields:    fields,
	}

	if correlationID := GetCorrelationID(ctx); correlationID != "" {
		entry.CorrelationID = correlationID
	}
	if err != nil {
		entry.Error = err.Error()
	}

	l.writeEntry(entry)
}

func (l *Logger) Debug(ctx context.Context, filterName, action, message string, fields ...map[string]interface{}) {
	l.log(ctx, DEBUG, filterName, action, message, firstOrNil(fields), nil)
}

func (l *Logger) Info(ctx context.Context, filterName, action, message string, fields ...map[string]interface{}) {
	l.log(ctx, INFO, filterName, action, message, firstOrNil(fields), nil)
}

func (l *Logger) Warn(ctx context.Context, filterName, action, message string, fields ...map[string]interface{}) {
	l.log(ctx, WARN, filterName, action, message, firstOrNil(fields), nil)
}

func (l *Logger) Error(ctx context.Context, filterName, action, message string, err error, fields ...map[string]interface{}) {
	l.log(ctx, ERROR, filterName, action, message, firstOrNil(fields), err)
}

func firstOrNil(fields []map[string]interface{}) map[string]interface{} {
	if len(fields) > 0 {
		return fields[0]
	}
	return nil
}

// Close closes any file writers owned by the logger.
func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, writer := range l.writers {
		if closer, ok := writer.(io.Closer); ok && writer != os.Stdout && writer != os.Stderr {
			closer.Close()
		}
	}
}

// AddWriter adds an additional destination for log entries.
func (l *Logger) AddWriter(writer io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writers = append(l.writers, writer)
}

var (
	globalLogger *Logger
	loggerMutex  sync.RWMutex
)

// SetGlobalLogger sets the package-wide default logger.
func SetGlobalLogger(logger *Logger) {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()
	globalLogger = logger
}

// GetGlobalLogger returns the package-wide default logger, or nil if unset.
func GetGlobalLogger() *Logger {
	loggerMutex.RLock()
	defer loggerMutex.RUnlock()
	return globalLogger
}

func Debug(ctx context.Context, filterName, action, message string, fields ...map[string]interface{}) {
	if logger := GetGlobalLogger(); logger != nil {
		logger.Debug(ctx, filterName, action, message, fields...)
	}
}

func Info(ctx context.Context, filterName, action, message string, fields ...map[string]interface{}) {
	if logger := GetGlobalLogger(); logger != nil {
		logger.Info(ctx, filterName, action, message, fields...)
	}
}

func Warn(ctx context.Context, filterName, action, message string, fields ...map[string]interface{}) {
	if logger := GetGlobalLogger(); logger != nil {
		logger.Warn(ctx, filterName, action, message, fields...)
	}
}

func Error(ctx context.Context, filterName, action, message string, err error, fields ...map[string]interface{}) {
	if logger := GetGlobalLogger(); logger != nil {
		logger.Error(ctx, filterName, action, message, err, fields...)
	}
}
