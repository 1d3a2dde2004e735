// Package chunking splits document text into token-bounded chunks.
//
// Text is first segmented into sentence-like units at terminal punctuation
// and blank-line paragraph breaks. SemanticChunker then packs consecutive
// units into chunks of at most ChunkSize tokens without ever splitting a
// unit, so a single oversized unit becomes a chunk of its own.
package chunking
