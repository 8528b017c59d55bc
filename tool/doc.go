// Package tool lets analyst models call data sources.
//
// A Tool is named, carries a JSON schema for its arguments and receives a
// core.ToolContext scoped to the run's subject and date. FunctionTool adapts
// plain functions. A Toolkit assigns a Set of tools to each analyst, and
// NewNode turns it into the graph node that executes pending tool calls and
// appends one tool message per call.
package tool
