// Package graph implements the StateGraph execution engine.
//
// A graph is a set of named nodes joined by edges. Static edges name their
// destination; conditional edges evaluate a Route (a pure function returning
// a Branch key from a closed, declared set) and resolve it through a
// BranchMap. Compile checks the structure once:
//
//   - the entry node exists and every node has exactly one outgoing edge
//   - every destination is a registered node or END
//   - every declared outcome of a route is present in its branch map
//
// Invoke then loops: run the current node, merge its partial update into the
// state, resolve the outgoing edge, repeat until END. The loop is bounded by
// the run's step budget:
//
//	g := graph.New(core.Merge).
//	    AddNode("analyst", analyst).
//	    AddNode("tools", tools).
//	    SetEntry("analyst").
//	    AddConditionalEdge("analyst", routing.ShouldContinueRoute(), graph.BranchMap{
//	        routing.BranchTools:    "tools",
//	        routing.BranchContinue: graph.END,
//	    }).
//	    AddEdge("tools", "analyst")
//	pipeline, err := g.Compile()
//	final, err := pipeline.Invoke(ctx, core.NewAgentState("AAPL", "2024-05-10"), cfg)
//
// Failure modes are distinguishable with errors.Is / errors.As:
// ErrStepBudgetExceeded (runaway loop), ErrUnmappedBranch (routing defect)
// and *NodeError (a node returned an error).
//
// The engine performs no I/O; node bodies are the only suspension points.
package graph
