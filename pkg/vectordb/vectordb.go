// Package vectordb defines the similarity-search interface the retrieval
// tool queries, plus a client for a Chroma vector database server.
package vectordb

import "context"

// Filter restricts a query to documents whose metadata matches every entry
// (e.g. doc_type=QA).
type Filter map[string]string

// QueryResult holds ranked similarity-search results. The three slices are
// parallel; Distances are cosine-type (lower = more similar).
type QueryResult struct {
	Documents []string
	Metadatas []map[string]any
	Distances []float64
}

// Store is a similarity-search engine. Implementations must be safe for
// concurrent read access, since independent conversations share one handle.
type Store interface {
	Query(ctx context.Context, text string, nResults int, where Filter) (QueryResult, error)
}

// Embedder converts text to an embedding vector. The Chroma client needs one
// because the server ranks by vector, not by raw text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}
