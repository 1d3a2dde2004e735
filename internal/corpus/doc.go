// Package corpus holds the ingested documents and their chunks.
//
// The Store is an append-only arena: each document owns a contiguous index
// range of chunks, eviction tombstones indices, and compaction runs once more
// than half of the arena is tombstoned. Every mutation publishes a new
// immutable Snapshot through an atomic pointer, so readers never observe a
// half-written document.
package corpus
