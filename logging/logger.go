package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// LogLevel is a thin enum for user friendly level configuration decoupled from slog.
type LogLevel int

const (
	// LogLevelDebug is the debug logging level.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is the informational logging level.
	LogLevelInfo
	// LogLevelWarn is the warning logging level.
	LogLevelWarn
	// LogLevelError is the error logging level.
	LogLevelError
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a configuration string ("debug", "info", ...) into a LogLevel.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug, nil
	case "", "info":
		return LogLevelInfo, nil
	case "warn", "warning":
		return LogLevelWarn, nil
	case "error":
		return LogLevelError, nil
	default:
		return LogLevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Logger defines the minimal logging interface used across the pipeline.
// Args are alternating key/value pairs, as with slog.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// OrNoOp returns l, or a NoOpLogger when l is nil.
func OrNoOp(l Logger) Logger {
	if l == nil {
		return NoOpLogger{}
	}
	return l
}

// PipelineLogger wraps slog.Logger adding contextual cloning helpers and
// domain convenience methods. It is cheap to copy via the With* methods.
type PipelineLogger struct {
	logger    *slog.Logger
	level     LogLevel
	context   map[string]any
	component string
	runID     string
	subject   string
}

// LoggerConfig configures construction of a PipelineLogger.
type LoggerConfig struct {
	Level       LogLevel
	Format      string // json or text
	Output      io.Writer
	AddSource   bool
	Component   string
	CustomAttrs map[string]any
}

// DefaultLoggerConfig returns a baseline JSON info level configuration.
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{Level: LogLevelInfo, Format: "json", Output: os.Stderr, CustomAttrs: map[string]any{}}
}

// NewLogger builds a PipelineLogger from a config (or defaults if nil).
func NewLogger(cfg *LoggerConfig) *PipelineLogger {
	if cfg == nil {
		cfg = DefaultLoggerConfig()
	}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: slogLevel(cfg.Level), AddSource: cfg.AddSource}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}
	ctx := make(map[string]any, len(cfg.CustomAttrs))
	for k, v := range cfg.CustomAttrs {
		ctx[k] = v
	}
	return &PipelineLogger{logger: slog.New(handler), level: cfg.Level, context: ctx, component: cfg.Component}
}

func slogLevel(l LogLevel) slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *PipelineLogger) clone() *PipelineLogger {
	nl := *l
	nl.context = make(map[string]any, len(l.context))
	for k, v := range l.context {
		nl.context[k] = v
	}
	return &nl
}

// WithContext adds a key/value attribute that will be attached to every log entry.
func (l *PipelineLogger) WithContext(key string, value any) *PipelineLogger {
	nl := l.clone()
	nl.context[key] = value
	return nl
}

// WithComponent sets the logical component (graph, memory, runner, ...).
func (l *PipelineLogger) WithComponent(c string) *PipelineLogger {
	nl := l.clone()
	nl.component = c
	return nl
}

// WithRun attaches run and subject identifiers.
func (l *PipelineLogger) WithRun(runID, subject string) *PipelineLogger {
	nl := l.clone()
	nl.runID = runID
	nl.subject = subject
	return nl
}

func (l *PipelineLogger) buildAttrs() []slog.Attr {
	attrs := make([]slog.Attr, 0, len(l.context)+3)
	if l.component != "" {
		attrs = append(attrs, slog.String("component", l.component))
	}
	if l.runID != "" {
		attrs = append(attrs, slog.String("run_id", l.runID))
	}
	if l.subject != "" {
		attrs = append(attrs, slog.String("subject", l.subject))
	}
	for k, v := range l.context {
		attrs = append(attrs, slog.Any(k, v))
	}
	return attrs
}

func (l *PipelineLogger) log(level slog.Level, allowed bool, msg string, args ...any) {
	if !allowed {
		return
	}
	r := slog.NewRecord(time.Now(), level, msg, 0)
	r.AddAttrs(l.buildAttrs()...)
	r.Add(args...)
	_ = l.logger.Handler().Handle(context.Background(), r)
}

// Debug logs at debug level.
func (l *PipelineLogger) Debug(msg string, args ...any) {
	l.log(slog.LevelDebug, l.level <= LogLevelDebug, msg, args...)
}

// Info logs at info level.
func (l *PipelineLogger) Info(msg string, args ...any) {
	l.log(slog.LevelInfo, l.level <= LogLevelInfo, msg, args...)
}

// Warn logs at warn level.
func (l *PipelineLogger) Warn(msg string, args ...any) {
	l.log(slog.LevelWarn, l.level <= LogLevelWarn, msg, args...)
}

// Error logs at error level.
func (l *PipelineLogger) Error(msg string, args ...any) {
	l.log(slog.LevelError, l.level <= LogLevelError, msg, args...)
}

func emit(l Logger, event string, err error, args ...any) {
	if err != nil {
		l.Error(event+".failed", append(args, "error", err.Error())...)
		return
	}
	l.Info(event+".completed", args...)
}

// LogNodeExecution records one graph step.
func LogNodeExecution(l Logger, node string, step int, dur time.Duration, err error) {
	emit(OrNoOp(l), "graph.node", err, "node", node, "step", step, "duration", dur)
}

// LogModelCall records model call latency, attempts and success.
func LogModelCall(l Logger, model string, attempts int, dur time.Duration, err error) {
	emit(OrNoOp(l), "model.call", err, "model", model, "attempts", attempts, "duration", dur)
}

// LogToolCall records one tool invocation made on behalf of caller.
func LogToolCall(l Logger, caller, tool, callID string, dur time.Duration, err error) {
	emit(OrNoOp(l), "tool.call", err, "sender", caller, "tool", tool, "call_id", callID, "duration", dur)
}

// LogMemoryOp records a memory store operation and the number of affected entries.
func LogMemoryOp(l Logger, collection, op string, count int, dur time.Duration) {
	OrNoOp(l).Debug("memory.op", "collection", collection, "operation", op, "count", count, "duration", dur)
}

// NoOpLogger discards all log messages. Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// Debug logs a debug message.
func (NoOpLogger) Debug(string, ...any) {}

// Info logs an informational message.
func (NoOpLogger) Info(string, ...any) {}

// Warn logs a warning message.
func (NoOpLogger) Warn(string, ...any) {}

// Error logs an error message.
func (NoOpLogger) Error(string, ...any) {}
