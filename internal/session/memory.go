package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/driftloom/loomcore/pkg/models"
)

// ErrNotFound is returned when a session ID has no matching state.
var ErrNotFound = errors.New("session: not found")

// MemoryStore is an in-process Store implementation, suitable for
// tests and short-lived processes that don't need durability.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.SessionState
}

// NewMemoryStore builds an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*models.SessionState)}
}

func (m *MemoryStore) Create(_ context.Context, s *models.SessionState) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := time.Now()
	s.CreatedAt = now
	s.UpdatedAt = now

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = clone(s)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*models.SessionState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(s), nil
}

func (m *MemoryStore) Update(_ context.Context, s *models.SessionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.sessions[s.ID]
	if !ok {
		return ErrNotFound
	}
	s.CreatedAt = existing.CreatedAt
	s.UpdatedAt = time.Now()
	m.sessions[s.ID] = clone(s)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, id)
	return nil
}

func (m *MemoryStore) List(_ context.Context) ([]*models.SessionState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.SessionState, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, clone(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func clone(s *models.SessionState) *models.SessionState {
	cp := *s
	cp.History.Turns = append([]models.Turn(nil), s.History.Turns...)
	cp.Accounting = append([]models.TurnAccounting(nil), s.Accounting...)
	cp.SessionBlacklist = append([]string(nil), s.SessionBlacklist...)
	cp.SessionWhitelist = append([]string(nil), s.SessionWhitelist...)
	return &cp
}
