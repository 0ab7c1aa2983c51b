// Package storage persists the request log and activity trail in SQLite.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/Sol-I/stark-ai/internal/dispatch"
)

const schema = `
CREATE TABLE IF NOT EXISTS llm_requests (
	id TEXT PRIMARY KEY,
	created_at TIMESTAMP NOT NULL,
	caller TEXT NOT NULL DEFAULT '',
	provider TEXT NOT NULL,
	model TEXT NOT NULL DEFAULT '',
	success INTEGER NOT NULL,
	error_kind TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL,
	prompt_tokens INTEGER NOT NULL DEFAULT 0,
	completion_tokens INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_llm_requests_created ON llm_requests(created_at);
CREATE INDEX IF NOT EXISTS idx_llm_requests_provider ON llm_requests(provider);

CREATE TABLE IF NOT EXISTS activity_logs (
	id TEXT PRIMARY KEY,
	created_at TIMESTAMP NOT NULL,
	level TEXT NOT NULL,
	message TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_activity_logs_created ON activity_logs(created_at);
`

// RequestRecord is one persisted provider attempt.
type RequestRecord struct {
	ID               string    `json:"id"`
	CreatedAt        time.Time `json:"created_at"`
	Caller           string    `json:"caller"`
	Provider         string    `json:"provider"`
	Model            string    `json:"model"`
	Success          bool      `json:"success"`
	ErrorKind        string    `json:"error_kind,omitempty"`
	ErrorMessage     string    `json:"error_message,omitempty"`
	DurationMs       int64     `json:"duration_ms"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
}

// ActivityRecord is one persisted activity log line.
type ActivityRecord struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
}

// UsageStats aggregates the request log per provider.
type UsageStats struct {
	Provider      string  `json:"provider"`
	Requests      int64   `json:"requests"`
	Failures      int64   `json:"failures"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
	TotalTokens   int64   `json:"total_tokens"`
}

// Store is the SQLite-backed request log. It implements
// dispatch.AttemptObserver so every provider attempt lands in the database
// without coupling dispatch to persistence.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates or opens the database at path and applies the schema.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// modernc.org/sqlite serializes writes; one connection avoids
	// SQLITE_BUSY under concurrent observers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// ObserveAttempt persists one provider attempt. Errors are swallowed after
// counting: a broken request log must not fail live dispatches.
func (s *Store) ObserveAttempt(rec dispatch.AttemptRecord) {
	_, _ = s.db.Exec(
		`INSERT INTO llm_requests
		 (id, created_at, caller, provider, model, success, error_kind, error_message, duration_ms, prompt_tokens, completion_tokens)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), s.now().UTC(), rec.Caller, rec.Provider, rec.Model,
		boolToInt(rec.Success), rec.ErrorKind, rec.ErrorMessage,
		rec.Duration.Milliseconds(), rec.PromptTokens, rec.CompletionTokens,
	)
}

// LogActivity appends a line to the activity trail.
func (s *Store) LogActivity(ctx context.Context, level, message string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO activity_logs (id, created_at, level, message) VALUES (?, ?, ?, ?)`,
		uuid.NewString(), s.now().UTC(), level, message,
	)
	return err
}

// RecentRequests returns up to limit request records, newest first.
func (s *Store) RecentRequests(ctx context.Context, limit int) ([]RequestRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, caller, provider, model, success, error_kind, error_message, duration_ms, prompt_tokens, completion_tokens
		 FROM llm_requests ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RequestRecord
	for rows.Next() {
		var r RequestRecord
		var success int
		if err := rows.Scan(&r.ID, &r.CreatedAt, &r.Caller, &r.Provider, &r.Model,
			&success, &r.ErrorKind, &r.ErrorMessage, &r.DurationMs,
			&r.PromptTokens, &r.CompletionTokens); err != nil {
			return nil, err
		}
		r.Success = success != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecentActivity returns up to limit activity records, newest first.
func (s *Store) RecentActivity(ctx context.Context, limit int) ([]ActivityRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, level, message FROM activity_logs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ActivityRecord
	for rows.Next() {
		var r ActivityRecord
		if err := rows.Scan(&r.ID, &r.CreatedAt, &r.Level, &r.Message); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Stats aggregates the request log per provider.
func (s *Store) Stats(ctx context.Context) ([]UsageStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT provider,
		        COUNT(*),
		        SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END),
		        AVG(duration_ms),
		        SUM(prompt_tokens + completion_tokens)
		 FROM llm_requests GROUP BY provider ORDER BY provider`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []UsageStats
	for rows.Next() {
		var st UsageStats
		if err := rows.Scan(&st.Provider, &st.Requests, &st.Failures, &st.AvgDurationMs, &st.TotalTokens); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
