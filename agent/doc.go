// Package agent contains the node factories of the trading pipeline.
//
// Every factory returns a graph node (Node) that renders its prompt from an
// Instruction, runs one model turn and returns a partial core.Update:
//
//  1. Analysts (market, social, news, fundamentals) gather data through tools
//     and write a report.
//  2. The pre-screen node checks the fundamentals for red flags.
//  3. Bull and bear researchers debate; the research manager judges and
//     writes the investment plan.
//  4. The trader proposes a transaction.
//  5. Risky, safe and neutral analysts debate the proposal; the risk judge
//     writes the final decision.
//
// Nodes that learn from the past consult their role store through Memories
// when the run enables memory. Reflect writes outcomes back. ExtractDecision
// reduces the final text to a BUY, SELL or HOLD signal.
package agent
