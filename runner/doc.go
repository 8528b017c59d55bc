// Package runner executes trading pipeline runs for many subjects at once.
//
// A Runner bounds how many runs execute concurrently and queues the rest.
// Each run gets an ID when it is queued; Stop cancels it by that ID whether it
// is still waiting or already executing, and ActiveRuns lists both kinds.
//
//	r := runner.New(pipeline, func(o *runner.Options) { o.MaxConcurrentRuns = 3 })
//	results := r.Run(ctx, []runner.Request{{Subject: "AAPL"}, {Subject: "MSFT"}})
//
// Runs share the pipeline and therefore the process wide model rate limiter
// and memory registry it was built with.
package runner
