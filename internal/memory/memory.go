// Package memory maintains per-user rolling conversation windows.
//
// Each user session owns an append-only log of turns exposed as "the last N
// turns". Clearing is an explicit destructive operation triggered only by the
// reserved control phrase; there is no automatic expiry. Backends: Redis for
// deployments that survive restarts, and an in-memory manager whose per-user
// state is guarded by per-key locks.
package memory

import (
	"context"
	"sync"

	"github.com/healthbook/healthbook/internal/models"
)

// Manager is the conversation memory interface.
type Manager interface {
	// Append adds a turn to the user's log.
	Append(ctx context.Context, userID string, turn models.Turn) error

	// Recent returns the most recent n turns in chronological order.
	Recent(ctx context.Context, userID string, n int) ([]models.Turn, error)

	// Clear removes the user's entire log.
	Clear(ctx context.Context, userID string) error
}

// InMemoryManager keeps conversation logs in process memory. Sessions are
// lazily materialized on first append; each user's log has its own lock so
// concurrent webhook deliveries for different users never contend.
type InMemoryManager struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

type session struct {
	mu    sync.Mutex
	turns []models.Turn
}

// NewInMemoryManager creates an empty in-memory conversation manager.
func NewInMemoryManager() *InMemoryManager {
	return &InMemoryManager{sessions: make(map[string]*session)}
}

// getOrCreate returns the session for a user, creating it if absent.
// Idempotent; the session/partition store models implicit session creation
// explicitly as upsert-or-get.
func (m *InMemoryManager) getOrCreate(userID string) *session {
	m.mu.RLock()
	s, ok := m.sessions[userID]
	m.mu.RUnlock()
	if ok {
		return s
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok = m.sessions[userID]; ok {
		return s
	}
	s = &session{}
	m.sessions[userID] = s
	return s
}

// Append adds a turn to the user's log.
func (m *InMemoryManager) Append(ctx context.Context, userID string, turn models.Turn) error {
	if userID == "" {
		return models.ErrEmptyUserID
	}
	s := m.getOrCreate(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, turn)
	return nil
}

// Recent returns the most recent n turns in chronological order.
func (m *InMemoryManager) Recent(ctx context.Context, userID string, n int) ([]models.Turn, error) {
	if userID == "" {
		return nil, models.ErrEmptyUserID
	}
	m.mu.RLock()
	s, ok := m.sessions[userID]
	m.mu.RUnlock()
	if !ok {
		return []models.Turn{}, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	start := len(s.turns) - n
	if start < 0 {
		start = 0
	}
	out := make([]models.Turn, len(s.turns)-start)
	copy(out, s.turns[start:])
	return out, nil
}

// Clear removes the user's entire log.
func (m *InMemoryManager) Clear(ctx context.Context, userID string) error {
	if userID == "" {
		return models.ErrEmptyUserID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
	return nil
}
