// Package document contains the core retrieval entities shared between the
// retriever, the embedding client and the vector stores.
package document

// Document is a full source text loaded from disk, before splitting.
type Document struct {
	Content  string
	Metadata map[string]string
}

// Passage is a bounded-length excerpt of a document, the unit of retrieval.
// Immutable after creation.
type Passage struct {
	ID        string
	Content   string
	Metadata  map[string]string
	Embedding []float32
}

// SearchResult is a passage matched by similarity search.
type SearchResult struct {
	Passage Passage
	Score   float32
}
