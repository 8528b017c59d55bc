// Package core provides the foundational domain types shared by the graph
// engine, routing policy, node factories and tools. It defines:
//
//   - AgentState, the record threaded through one pipeline run
//   - Update, the partial update a node returns, and the declared per-field
//     merge schema (overwrite | append | increment) that folds it into state
//   - RunConfig, the configuration surface consumed by routing and the engine
//   - StepLimiter, the per-run step budget counter
//   - ToolContext, the scoped surface handed to tool implementations
//
// The package performs no I/O. Concrete persistence (memory), orchestration
// (graph) and reasoning (agent, model) live in their own packages.
package core
