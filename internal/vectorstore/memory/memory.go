// Package memory is a brute-force in-process vector store, used as the
// default backend and in tests.
package memory

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"

	"github.com/bmedi/chatgse-go/internal/document"
)

// Storage ranks passages by cosine similarity over an in-memory slice.
type Storage struct {
	mu       sync.RWMutex
	passages []document.Passage
}

func NewStorage() *Storage { return &Storage{} }

func (s *Storage) Upsert(_ context.Context, passages []document.Passage) error {
	for _, p := range passages {
		if len(p.Embedding) == 0 {
			return errors.New("passage without embedding")
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passages = append(s.passages, passages...)
	return nil
}

func (s *Storage) Search(_ context.Context, vector []float32, k int) ([]document.SearchResult, error) {
	if k <= 0 {
		k = 3
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]document.SearchResult, 0, len(s.passages))
	for _, p := range s.passages {
		results = append(results, document.SearchResult{
			Passage: p,
			Score:   cosine(p.Embedding, vector),
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

func cosine(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
