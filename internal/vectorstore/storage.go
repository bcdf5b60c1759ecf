// Package vectorstore defines the vector index boundary of the engine.
package vectorstore

import (
	"context"

	"github.com/bmedi/chatgse-go/internal/document"
)

// Storage persists embedded passages and supports similarity search.
// Implementations must be safe for concurrent upserts and searches, since
// the index is shared between sessions.
type Storage interface {
	Upsert(ctx context.Context, passages []document.Passage) error
	Search(ctx context.Context, vector []float32, k int) ([]document.SearchResult, error)
}
