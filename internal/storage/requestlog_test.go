package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Sol-I/stark-ai/internal/dispatch"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_ObserveAndRecentRequests(t *testing.T) {
	s := newTestStore(t)

	s.ObserveAttempt(dispatch.AttemptRecord{
		Caller:       "user-1",
		Provider:     "openrouter",
		Model:        "llama-3",
		Success:      false,
		ErrorKind:    "rate_limit",
		ErrorMessage: "http 429",
		Duration:     120 * time.Millisecond,
		PromptTokens: 12,
	})
	s.ObserveAttempt(dispatch.AttemptRecord{
		Caller:           "user-1",
		Provider:         "anthropic",
		Model:            "claude-sonnet",
		Success:          true,
		Duration:         340 * time.Millisecond,
		PromptTokens:     12,
		CompletionTokens: 25,
	})

	got, err := s.RecentRequests(context.Background(), 10)
	if err != nil {
		t.Fatalf("RecentRequests() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("records = %d, want 2", len(got))
	}

	for _, r := range got {
		if r.ID == "" {
			t.Error("record has empty id")
		}
		switch r.Provider {
		case "openrouter":
			if r.Success || r.ErrorKind != "rate_limit" {
				t.Errorf("openrouter record = %+v, want failed rate_limit", r)
			}
		case "anthropic":
			if !r.Success || r.CompletionTokens != 25 {
				t.Errorf("anthropic record = %+v, want success with 25 completion tokens", r)
			}
		default:
			t.Errorf("unexpected provider %s", r.Provider)
		}
	}
}

func TestStore_Stats(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 3; i++ {
		s.ObserveAttempt(dispatch.AttemptRecord{
			Provider:         "openrouter",
			Success:          i != 0,
			Duration:         100 * time.Millisecond,
			PromptTokens:     10,
			CompletionTokens: 10,
		})
	}

	stats, err := s.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if len(stats) != 1 {
		t.Fatalf("stats rows = %d, want 1", len(stats))
	}
	st := stats[0]
	if st.Provider != "openrouter" || st.Requests != 3 || st.Failures != 1 {
		t.Errorf("stats = %+v, want 3 requests with 1 failure", st)
	}
	if st.TotalTokens != 60 {
		t.Errorf("TotalTokens = %d, want 60", st.TotalTokens)
	}
}

func TestStore_Activity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.LogActivity(ctx, "info", "service started"); err != nil {
		t.Fatalf("LogActivity() error = %v", err)
	}
	if err := s.LogActivity(ctx, "warn", "provider openrouter cooling down"); err != nil {
		t.Fatalf("LogActivity() error = %v", err)
	}

	got, err := s.RecentActivity(ctx, 10)
	if err != nil {
		t.Fatalf("RecentActivity() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("records = %d, want 2", len(got))
	}
}
