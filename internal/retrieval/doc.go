// Package retrieval ranks chunks by relevance to a query.
//
// Two strategies implement Retriever. CPUOptimizedRetriever scores every
// candidate exhaustively and caches chunk embeddings on the chunks
// themselves, tracked by an LRU whose evictions release the vectors.
// IndexedRetriever keeps vectors in an in-memory chromem-go collection.
//
// Both apply the same total order (see Rank), so equal inputs always produce
// identical rankings.
package retrieval
