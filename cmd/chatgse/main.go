package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/joho/godotenv"

	"github.com/bmedi/chatgse-go/internal/config"
	"github.com/bmedi/chatgse-go/internal/conversation"
	"github.com/bmedi/chatgse-go/internal/embedding"
	"github.com/bmedi/chatgse-go/internal/llm"
	"github.com/bmedi/chatgse-go/internal/logger"
	"github.com/bmedi/chatgse-go/internal/retriever"
	"github.com/bmedi/chatgse-go/internal/usage"
	"github.com/bmedi/chatgse-go/internal/vectorstore"
	"github.com/bmedi/chatgse-go/internal/vectorstore/memory"
	"github.com/bmedi/chatgse-go/internal/vectorstore/qdrant"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logger.L.Debug("no .env file loaded", "error", err)
	}
	logger.SetLevel(os.Getenv("LOG_LEVEL"))

	cfg, err := config.Load()
	if err != nil {
		logger.L.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	apiKey := os.Getenv("OPENAI_API_KEY")
	if cfg.LLM.Provider == "huggingface" {
		apiKey = os.Getenv("HUGGINGFACEHUB_API_TOKEN")
	}

	var store vectorstore.Storage
	switch cfg.VectorDB.Type {
	case "qdrant":
		store = qdrant.NewStorage(qdrant.Config{
			Host:       cfg.VectorDB.Host,
			Port:       cfg.VectorDB.Port,
			Collection: cfg.VectorDB.Collection,
			Timeout:    time.Duration(cfg.VectorDB.TimeoutSecs) * time.Second,
		})
	default:
		store = memory.NewStorage()
	}

	embedder := embedding.NewClient(llm.NewClient(os.Getenv("OPENAI_API_KEY"), cfg.LLM.BaseURL), "")
	index := retriever.New(embedder, store)
	index.SetChunkSize(cfg.Retriever.ChunkSize)
	index.SetChunkOverlap(cfg.Retriever.ChunkOverlap)
	index.SetSeparators(cfg.Retriever.Separators)

	usageStore := usage.New(cfg.Usage.DBPath)
	defer usageStore.Close()

	var conv conversation.Conversation
	switch cfg.LLM.Provider {
	case "huggingface":
		bloom := conversation.NewBloomConversation(cfg.LLM, cfg.Prompts)
		bloom.AttachIndex(index, cfg.Retriever.NResults)
		conv = bloom
	default:
		gpt, err := conversation.NewGptConversation(cfg.LLM, cfg.Prompts)
		if err != nil {
			logger.L.Error("failed to initialize conversation", "error", err)
			os.Exit(1)
		}
		gpt.SetUsageStore(usageStore)
		gpt.AttachIndex(index, cfg.Retriever.NResults)
		conv = gpt
	}

	ok, err := conv.SetAPIKey(context.Background(), apiKey, cfg.Session.User)
	if err != nil {
		logger.L.Error("backend probe failed", "error", err)
		os.Exit(1)
	}
	if !ok {
		logger.L.Error("backend authentication failed")
		os.Exit(1)
	}
	conv.Setup(cfg.Session.Context)

	mux := newServeMux(conv, index)

	serverAddr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	logger.L.Info("starting server", "address", serverAddr)
	if err := http.ListenAndServe(serverAddr, mux); err != nil {
		logger.L.Error("failed to start server", "error", err)
		os.Exit(1)
	}
}

// newServeMux wires the HTTP front for the single process-wide conversation
// session. Handler goroutines run concurrently, but the session holds
// unsynchronized transcript state, so its queries and transcript reads are
// serialized behind one mutex. The document index synchronizes itself.
func newServeMux(conv conversation.Conversation, index *retriever.Index) *http.ServeMux {
	mux := http.NewServeMux()
	var mu sync.Mutex

	// main query endpoint: plain-text user prompt in, query result out
	mux.HandleFunc("POST /", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}

		mu.Lock()
		res := conv.Query(r.Context(), string(body))
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(res); err != nil {
			logger.L.Error("failed to encode response", "error", err)
		}
	})

	// index a document by path
	mux.HandleFunc("POST /documents", func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Query().Get("path")
		if path == "" {
			http.Error(w, "missing path parameter", http.StatusBadRequest)
			return
		}
		n, err := index.IndexDocument(r.Context(), path)
		if err != nil {
			logger.L.Error("indexing failed", "path", path, "error", err)
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		fmt.Fprintf(w, "indexed %d passages\n", n)
	})

	// transcript export for logging / audit
	mux.HandleFunc("GET /transcript", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		data, err := conv.TranscriptJSON()
		mu.Unlock()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})

	return mux
}
