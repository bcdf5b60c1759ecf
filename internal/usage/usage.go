// Package usage records token consumption per model per query.
// Counters are persisted in SQLite; if opening the DB or executing queries
// fails, the package falls back to in-memory counters.
package usage

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"github.com/bmedi/chatgse-go/internal/chat"
	"github.com/bmedi/chatgse-go/internal/logger"
)

// Store accumulates token counters keyed by (day, user, model, field).
// Increments are atomic at the storage boundary via a SQLite UPSERT.
type Store struct {
	mu  sync.Mutex
	db  *sql.DB
	mem map[string]int // fallback when the DB is unavailable

	now func() time.Time
}

// New opens (or creates) the counter database at path. A failure to open is
// logged and the store degrades to in-memory counting.
func New(path string) *Store {
	s := &Store{
		mem: make(map[string]int),
		now: time.Now,
	}

	db, err := sql.Open("sqlite", "file:"+path+"?_busy_timeout=10000")
	if err != nil {
		logger.L.Warn("sqlite open failed; using in-memory usage counters", "error", err)
		return s
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS usage_counters (
        day TEXT,
        user TEXT,
        model TEXT,
        field TEXT,
        tokens INTEGER NOT NULL DEFAULT 0,
        PRIMARY KEY (day, user, model, field)
    );`); err != nil {
		logger.L.Warn("sqlite table creation failed; using in-memory usage counters", "error", err)
		db.Close()
		return s
	}
	s.db = db
	return s
}

// Record adds one query's token usage to the counters of the given user and
// model. Each call is a fresh increment; idempotency is not required.
func (s *Store) Record(user, model string, u chat.TokenUsage) {
	day := s.now().UTC().Format("2006-01-02")
	fields := map[string]int{
		"prompt_tokens":     u.PromptTokens,
		"completion_tokens": u.CompletionTokens,
		"total_tokens":      u.TotalTokens,
	}
	for field, tokens := range fields {
		s.increment(day, user, model, field, tokens)
	}
}

// Total returns the accumulated counter for one key, for reporting.
func (s *Store) Total(day, user, model, field string) int {
	if s.db != nil {
		var tokens int
		err := s.db.QueryRow(
			`SELECT tokens FROM usage_counters WHERE day = ? AND user = ? AND model = ? AND field = ?;`,
			day, user, model, field,
		).Scan(&tokens)
		if err == nil {
			return tokens
		}
		if err != sql.ErrNoRows {
			logger.L.Warn("usage counter read failed", "error", err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mem[memKey(day, user, model, field)]
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) increment(day, user, model, field string, tokens int) {
	if s.db != nil {
		_, err := s.db.Exec(`INSERT INTO usage_counters (day, user, model, field, tokens)
            VALUES (?,?,?,?,?)
            ON CONFLICT (day, user, model, field) DO UPDATE SET tokens = tokens + excluded.tokens;`,
			day, user, model, field, tokens)
		if err == nil {
			return
		}
		logger.L.Error("failed to store usage counter in sqlite; falling back to memory", "error", err)
	}
	s.mu.Lock()
	s.mem[memKey(day, user, model, field)] += tokens
	s.mu.Unlock()
}

func memKey(day, user, model, field string) string {
	return fmt.Sprintf("%s:%s:%s:%s", day, user, model, field)
}
