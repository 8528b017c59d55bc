// Package routing holds the pure decision functions that pick the next node
// of the pipeline graph. Every route declares the closed set of branches it
// can produce so the graph can verify its branch maps at compile time.
//
//   - ShouldContinue: "tools" while the last message has pending tool calls
//   - ToolReturn: back to the analyst recorded in Sender, with a logged fallback
//   - Debate: bull/bear alternation bounded by max_debate_rounds*2
//   - PreScreen: rejected subjects skip the debate
//   - RiskSequence: the fixed risky -> safe -> neutral -> judge chain
//
// Routes perform no I/O.
package routing
