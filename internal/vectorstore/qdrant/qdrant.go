// Package qdrant is a minimal REST client to a Qdrant vector index.
// It assumes cosine distance and creates the collection on first upsert.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bmedi/chatgse-go/internal/document"
)

// Storage talks to a single Qdrant collection.
type Storage struct {
	url        string
	collection string
	client     *http.Client

	mu      sync.Mutex
	created bool
}

// Config contains the connection parameters of the index.
type Config struct {
	Host       string
	Port       int
	Collection string
	Timeout    time.Duration
}

func NewStorage(cfg Config) *Storage {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 6333
	}
	if cfg.Collection == "" {
		cfg.Collection = "documents"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Storage{
		url:        fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port),
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

func (s *Storage) Upsert(ctx context.Context, passages []document.Passage) error {
	if len(passages) == 0 {
		return nil
	}
	if err := s.ensureCollection(ctx, len(passages[0].Embedding)); err != nil {
		return err
	}

	points := make([]map[string]any, len(passages))
	for i, p := range passages {
		if len(p.Embedding) == 0 {
			return errors.New("passage without embedding")
		}
		payload := map[string]any{"content": p.Content}
		for k, v := range p.Metadata {
			payload[k] = v
		}
		points[i] = map[string]any{
			"id":      p.ID,
			"vector":  p.Embedding,
			"payload": payload,
		}
	}
	body := map[string]any{"points": points}
	return s.putJSON(ctx, fmt.Sprintf("%s/collections/%s/points?wait=true", s.url, s.collection), body, nil)
}

func (s *Storage) Search(ctx context.Context, vector []float32, k int) ([]document.SearchResult, error) {
	if k <= 0 {
		k = 3
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			ID      string         `json:"id"`
			Score   float32        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := s.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points/search", s.url, s.collection), req, &resp); err != nil {
		return nil, err
	}

	results := make([]document.SearchResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		p := document.Passage{ID: r.ID, Metadata: make(map[string]string)}
		for k, v := range r.Payload {
			str, ok := v.(string)
			if !ok {
				continue
			}
			if k == "content" {
				p.Content = str
			} else {
				p.Metadata[k] = str
			}
		}
		results = append(results, document.SearchResult{Passage: p, Score: r.Score})
	}
	return results, nil
}

// ensureCollection creates the collection once, sized to the embedding
// dimension of the first batch.
func (s *Storage) ensureCollection(ctx context.Context, dimension int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.created {
		return nil
	}
	if dimension <= 0 {
		return errors.New("invalid embedding dimension")
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	// Qdrant returns 200 OK if the collection already exists with the same
	// schema; a real error is propagated.
	if err := s.putJSON(ctx, fmt.Sprintf("%s/collections/%s", s.url, s.collection), body, nil); err != nil {
		return err
	}
	s.created = true
	return nil
}

func (s *Storage) putJSON(ctx context.Context, url string, body, out any) error {
	return s.doJSON(ctx, http.MethodPut, url, body, out)
}

func (s *Storage) postJSON(ctx context.Context, url string, body, out any) error {
	return s.doJSON(ctx, http.MethodPost, url, body, out)
}

func (s *Storage) doJSON(ctx context.Context, method, url string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant %s %s failed: %s", method, url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
