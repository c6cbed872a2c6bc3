package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// LogLevel represents the severity of a log message.
type LogLevel int

// Log levels ordered by severity.
const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// ParseLevel converts a string representation to a LogLevel.
// Unrecognized levels default to InfoLevel.
func ParseLevel(level string) LogLevel {
	switch level {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// String returns the string representation used in serialized entries.
func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	default:
		return "unknown"
	}
}

// jsonLogger implements Logger with one JSON object per entry, structured
// for log aggregation systems. Entries carry timestamp, level, service,
// environment and hostname alongside the caller-supplied fields.
type jsonLogger struct {
	mu               sync.Mutex
	output           io.Writer
	serviceName      string
	environment      string
	hostname         string
	minLevel         LogLevel
	persistentFields Fields
}

func newJSONLogger(serviceName, environment, logLevel string, output io.Writer, persistentFields Fields) *jsonLogger {
	if output == nil {
		output = os.Stdout
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return &jsonLogger{
		output:           output,
		serviceName:      serviceName,
		environment:      environment,
		hostname:         hostname,
		minLevel:         ParseLevel(logLevel),
		persistentFields: persistentFields,
	}
}

func (l *jsonLogger) Debug(ctx context.Context, msg string, fields Fields) {
	l.log(ctx, DebugLevel, msg, nil, fields)
}

func (l *jsonLogger) Info(ctx context.Context, msg string, fields Fields) {
	l.log(ctx, InfoLevel, msg, nil, fields)
}

func (l *jsonLogger) Warn(ctx context.Context, msg string, fields Fields) {
	l.log(ctx, WarnLevel, msg, nil, fields)
}

func (l *jsonLogger) Error(ctx context.Context, msg string, err error, fields Fields) {
	l.log(ctx, ErrorLevel, msg, err, fields)
}

// WithFields returns a logger whose entries always carry the given fields
// in addition to the parent's persistent fields.
func (l *jsonLogger) WithFields(fields Fields) Logger {
	merged := make(Fields, len(l.persistentFields)+len(fields))
	for k, v := range l.persistentFields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &jsonLogger{
		output:           l.output,
		serviceName:      l.serviceName,
		environment:      l.environment,
		hostname:         l.hostname,
		minLevel:         l.minLevel,
		persistentFields: merged,
	}
}

func (l *jsonLogger) log(_ context.Context, level LogLevel, msg string, err error, fields Fields) {
	if level < l.minLevel {
		return
	}

	entry := make(map[string]interface{}, len(l.persistentFields)+len(fields)+7)
	for k, v := range l.persistentFields {
		entry[k] = v
	}
	for k, v := range fields {
		entry[k] = v
	}
	entry["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)
	entry["level"] = level.String()
	entry["service"] = l.serviceName
	entry["environment"] = l.environment
	entry["hostname"] = l.hostname
	entry["message"] = msg
	if err != nil {
		entry["error"] = err.Error()
	}

	data, jerr := json.Marshal(entry)
	if jerr != nil {
		// Fall back to a plain line rather than dropping the entry.
		data = []byte(fmt.Sprintf(`{"level":"error","message":"failed to marshal log entry: %v"}`, jerr))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.output.Write(append(data, '\n'))
}
