// Package orchestrator assembles token-budgeted context from ingested documents.
//
// A ContextManager owns the chunk store and wires the pipeline stages
// together:
//
//	AddDocument:     scrub -> chunk -> dedup -> store
//	GenerateContext: rank snapshot -> advise budget -> pack -> order -> join
//
// Every stage is an injected strategy. Chunker and Retriever are required; a
// Deduplicator is required only when dedup is enabled. Without a governor the
// budget is never reduced.
//
// Packing is greedy and skips chunks that would overflow the budget, so a
// later, smaller chunk may still fit. Accepted chunks are emitted in document
// insertion order and position, not relevance order.
//
// Ingestion of several documents runs concurrently but commits in input
// order, so document sequence numbers and chunk ids are deterministic. Queries
// read immutable store snapshots and never observe a half-ingested document.
package orchestrator
