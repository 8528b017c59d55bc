// Package logging provides a minimal logging interface and adapters for the
// investment pipeline.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the graph engine, memory layer and node factories use for observability.
// This package includes:
//
//   - Logger interface for dependency injection
//   - PipelineLogger over log/slog with run/subject/component context
//   - LogNodeExecution, LogModelCall, LogToolCall and LogMemoryOp event helpers
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelInfo, Format: "json"})
//	registry := memory.NewRegistry(func(o *memory.RegistryOptions) { o.Logger = logger.WithComponent("memory") })
//
// Arguments after the message are slog style key/value pairs.
package logging
