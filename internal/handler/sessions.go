// Package handler provides the HTTP API for the dispatch service.
package handler

import (
	"log/slog"
	"sync"
	"time"

	"github.com/Sol-I/stark-ai/internal/domain"
)

const (
	// DefaultSessionTTL is how long an idle conversation survives.
	DefaultSessionTTL = 60 * time.Minute

	// sweepInterval is how often the session sweeper runs.
	sweepInterval = 1 * time.Minute
)

// session holds one user's in-memory conversation.
type session struct {
	history    domain.History
	lastActive time.Time
}

// SessionStore keeps per-user conversation history in memory with an idle
// TTL. Conversations are ephemeral: a restart or sweep clears them, and the
// persistent layer keeps only the request log, never message content.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*session
	ttl      time.Duration
	maxTurns int
	logger   *slog.Logger
}

// SessionStoreOption is a functional option for configuring SessionStore.
type SessionStoreOption func(*SessionStore)

// WithSessionTTL sets a custom idle TTL for conversations.
func WithSessionTTL(ttl time.Duration) SessionStoreOption {
	return func(s *SessionStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithSessionMaxTurns bounds how many turns are kept per conversation;
// older turns are dropped as new ones arrive. Zero keeps everything until
// the TTL sweep.
func WithSessionMaxTurns(n int) SessionStoreOption {
	return func(s *SessionStore) {
		if n > 0 {
			s.maxTurns = n
		}
	}
}

// WithSessionLogger sets a custom logger.
func WithSessionLogger(logger *slog.Logger) SessionStoreOption {
	return func(s *SessionStore) {
		s.logger = logger
	}
}

// NewSessionStore creates a session store and starts its background sweeper.
func NewSessionStore(opts ...SessionStoreOption) *SessionStore {
	s := &SessionStore{
		sessions: make(map[string]*session),
		ttl:      DefaultSessionTTL,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.startSweeper()

	return s
}

// History returns a copy of the user's conversation history.
func (s *SessionStore) History(userID string) domain.History {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[userID]
	if !ok {
		return nil
	}
	out := make(domain.History, len(sess.history))
	copy(out, sess.history)
	return out
}

// Append records a completed exchange on the user's conversation.
func (s *SessionStore) Append(userID, message, answer string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	if !ok {
		sess = &session{}
		s.sessions[userID] = sess
	}
	sess.history = append(sess.history,
		domain.Turn{Role: domain.RoleUser, Content: message},
		domain.Turn{Role: domain.RoleAssistant, Content: answer},
	)
	if s.maxTurns > 0 && len(sess.history) > s.maxTurns {
		trimmed := make(domain.History, s.maxTurns)
		copy(trimmed, sess.history[len(sess.history)-s.maxTurns:])
		sess.history = trimmed
	}
	sess.lastActive = time.Now()
}

// Clear drops the user's conversation. It reports whether one existed.
func (s *SessionStore) Clear(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.sessions[userID]
	delete(s.sessions, userID)
	return existed
}

// ActiveSessions returns the number of live conversations.
func (s *SessionStore) ActiveSessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// startSweeper periodically drops conversations idle past the TTL.
func (s *SessionStore) startSweeper() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for range ticker.C {
		s.sweep()
	}
}

// sweep removes all expired sessions.
func (s *SessionStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-s.ttl)
	expired := 0

	for id, sess := range s.sessions {
		if sess.lastActive.Before(cutoff) {
			delete(s.sessions, id)
			expired++
		}
	}

	if expired > 0 && s.logger != nil {
		s.logger.Debug("session sweep",
			slog.Int("expired_sessions", expired),
			slog.Int("remaining_sessions", len(s.sessions)),
		)
	}
}
