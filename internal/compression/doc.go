// Package compression removes semantically redundant text units.
//
// SemanticDeduplicator embeds every unit in one batch and clusters greedily in
// input order: a unit whose cosine similarity to any kept representative
// reaches the threshold is discarded, otherwise it becomes a representative.
// The first member of a cluster always survives, and each unit is compared
// only against the representatives kept so far.
//
// The same algorithm runs over plain units (Compress), chunk contents
// (CompressChunks) and raw text segmented into sentences (CompressText).
package compression
