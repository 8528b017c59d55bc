// Package model defines the provider agnostic abstractions for talking to
// language models from pipeline nodes.
//
// A Model turns a Request (instructions, the node's message view and the
// tool definitions it may call) into a final Response carrying one assistant
// core.Message. Providers live in sub packages (openai, anthropic) and wrap
// their SDK errors in ProviderError.
//
// Guard adds the cross cutting call discipline every node relies on: a
// process wide RateLimiter, a per attempt timeout and bounded retries on
// transient failures. MockModel replays scripted turns for tests and offline
// runs.
package model
