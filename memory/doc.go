// Package memory implements per-subject, per-role vector memory for the
// pipeline's researchers, trader and judges.
//
// A Store is one isolated chromem-go collection scoped to a (subject, role)
// pair. Stores never fail construction: when the embedding backend or the
// vector database cannot be reached the store reports Available() == false
// and every operation degrades to a no-op (false / empty / 0). Memory is an
// enhancement, never a correctness dependency of a run.
//
// A Registry creates the role stores of a subject under structurally distinct
// collection names ("{sanitized}_{role}_memory"), offers bulk cleanup and
// aggregate stats, and hands out a single explicitly named unscoped fallback
// per role that warns on every use.
//
// Isolation is enforced by the collection namespace only; queries never
// filter results after the fact.
//
// Concurrency: stores hold no cross-call locks. Mutating the same named
// collection from two callers at once requires external synchronization.
package memory
