package handler

import (
	"testing"
	"time"
)

func TestSessionStore_AppendAndHistory(t *testing.T) {
	s := NewSessionStore()

	s.Append("user-1", "hello", "hi there")
	s.Append("user-1", "how are you?", "fine")

	got := s.History("user-1")
	if len(got) != 4 {
		t.Fatalf("history length = %d, want 4", len(got))
	}
	if got[0].Content != "hello" || got[3].Content != "fine" {
		t.Errorf("history order wrong: %+v", got)
	}

	if h := s.History("unknown"); h != nil {
		t.Errorf("History(unknown) = %v, want nil", h)
	}
}

func TestSessionStore_HistoryReturnsCopy(t *testing.T) {
	s := NewSessionStore()
	s.Append("user-1", "original", "answer")

	got := s.History("user-1")
	got[0].Content = "mutated"

	if s.History("user-1")[0].Content != "original" {
		t.Error("mutating the returned history leaked into the store")
	}
}

func TestSessionStore_MaxTurnsTrimsOldest(t *testing.T) {
	s := NewSessionStore(WithSessionMaxTurns(4))

	s.Append("u", "q1", "a1")
	s.Append("u", "q2", "a2")
	s.Append("u", "q3", "a3")

	got := s.History("u")
	if len(got) != 4 {
		t.Fatalf("history length = %d, want 4", len(got))
	}
	if got[0].Content != "q2" {
		t.Errorf("oldest kept turn = %q, want q2", got[0].Content)
	}
}

func TestSessionStore_Clear(t *testing.T) {
	s := NewSessionStore()
	s.Append("user-1", "hello", "hi")

	if !s.Clear("user-1") {
		t.Error("Clear(user-1) = false, want true")
	}
	if s.Clear("user-1") {
		t.Error("second Clear(user-1) = true, want false")
	}
	if got := s.History("user-1"); got != nil {
		t.Errorf("History after Clear = %v, want nil", got)
	}
}

func TestSessionStore_SweepExpiresIdleSessions(t *testing.T) {
	s := NewSessionStore(WithSessionTTL(10 * time.Minute))

	s.Append("stale", "hello", "hi")
	s.Append("fresh", "hello", "hi")

	// Age the stale session past the TTL.
	s.mu.Lock()
	s.sessions["stale"].lastActive = time.Now().Add(-11 * time.Minute)
	s.mu.Unlock()

	s.sweep()

	if s.History("stale") != nil {
		t.Error("stale session survived the sweep")
	}
	if s.History("fresh") == nil {
		t.Error("fresh session was swept")
	}
	if n := s.ActiveSessions(); n != 1 {
		t.Errorf("ActiveSessions() = %d, want 1", n)
	}
}

func TestSessionStore_ConcurrentAccess(t *testing.T) {
	s := NewSessionStore()
	done := make(chan struct{})

	for i := 0; i < 4; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				s.Append("user", "q", "a")
				s.History("user")
			}
		}()
	}
	for i := 0; i < 4; i++ {
		<-done
	}

	if len(s.History("user")) != 800 {
		t.Errorf("history length = %d, want 800", len(s.History("user")))
	}
}
