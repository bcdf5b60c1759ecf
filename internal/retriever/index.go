// Package retriever answers "top-k passages relevant to this query" over a
// set of indexed documents. The index is a shared resource: multiple
// sessions may index and search concurrently.
package retriever

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/bmedi/chatgse-go/internal/document"
	"github.com/bmedi/chatgse-go/internal/logger"
	"github.com/bmedi/chatgse-go/internal/vectorstore"
)

// ErrNotReady is returned by SimilaritySearch before any document has been
// indexed, as opposed to a valid empty result.
var ErrNotReady = errors.New("no document has been indexed yet")

// Embedder converts passage text into vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Index wraps the loader, the splitter, the embedder and the vector store.
type Index struct {
	embedder Embedder
	store    vectorstore.Storage

	mu       sync.RWMutex
	splitter *Splitter
	indexed  int
}

// New creates an index with the default splitter configuration.
func New(embedder Embedder, store vectorstore.Storage) *Index {
	return &Index{
		embedder: embedder,
		store:    store,
		splitter: NewSplitter(1000, 0, nil),
	}
}

// SetChunkSize reconfigures the splitter. Passages already stored keep the
// boundaries they were indexed with.
func (ix *Index) SetChunkSize(n int) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.splitter = NewSplitter(n, ix.splitter.chunkOverlap, ix.splitter.separators)
}

// SetChunkOverlap reconfigures the splitter for subsequent documents.
func (ix *Index) SetChunkOverlap(n int) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.splitter = NewSplitter(ix.splitter.chunkSize, n, ix.splitter.separators)
}

// SetSeparators reconfigures the splitter for subsequent documents.
func (ix *Index) SetSeparators(seps []string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.splitter = NewSplitter(ix.splitter.chunkSize, ix.splitter.chunkOverlap, seps)
}

// Ready reports whether at least one document has been indexed.
func (ix *Index) Ready() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.indexed > 0
}

// IndexDocument loads the document at path, splits it into passages, embeds
// them and upserts them into the vector store. It returns the number of
// passages stored.
func (ix *Index) IndexDocument(ctx context.Context, path string) (int, error) {
	doc, err := LoadDocument(path)
	if err != nil {
		return 0, err
	}

	ix.mu.RLock()
	splitter := ix.splitter
	ix.mu.RUnlock()

	texts := splitter.Split(doc.Content)
	if len(texts) == 0 {
		logger.L.Warn("document is empty, nothing to index", "path", path)
		return 0, nil
	}

	vectors, err := ix.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, err
	}

	passages := make([]document.Passage, len(texts))
	for i, text := range texts {
		meta := make(map[string]string, len(doc.Metadata)+1)
		for k, v := range doc.Metadata {
			meta[k] = v
		}
		meta["chunk"] = strconv.Itoa(i)
		passages[i] = document.Passage{
			ID:        uuid.NewString(),
			Content:   text,
			Metadata:  meta,
			Embedding: vectors[i],
		}
	}

	if err := ix.store.Upsert(ctx, passages); err != nil {
		return 0, err
	}

	ix.mu.Lock()
	ix.indexed++
	ix.mu.Unlock()

	logger.L.Info("document indexed", "path", path, "passages", len(passages))
	return len(passages), nil
}

// SimilaritySearch returns up to k passages ranked by non-increasing
// similarity to the query text.
func (ix *Index) SimilaritySearch(ctx context.Context, query string, k int) ([]document.SearchResult, error) {
	if !ix.Ready() {
		return nil, ErrNotReady
	}
	vectors, err := ix.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, errors.New("query embedding is empty")
	}
	return ix.store.Search(ctx, vectors[0], k)
}
