package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/PabloGalante/farum-sos/internal/domain"
)

// SessionStore is the in-process session registry. It keeps snapshots in
// creation order and never forgets a session.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]domain.Session
	order    []domain.SessionID
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[domain.SessionID]domain.Session),
	}
}

func (s *SessionStore) CreateSession(_ context.Context, session domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.ID]; exists {
		return errors.New("session already exists")
	}

	s.sessions[session.ID] = session.Snapshot()
	s.order = append(s.order, session.ID)
	return nil
}

func (s *SessionStore) UpdateSession(_ context.Context, session domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.ID]; !exists {
		return domain.ErrSessionNotFound
	}

	s.sessions[session.ID] = session.Snapshot()
	return nil
}

func (s *SessionStore) GetSession(_ context.Context, id domain.SessionID) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}

	return sess.Snapshot(), nil
}

// ListSessions returns sessions newest first. limit <= 0 returns all.
func (s *SessionStore) ListSessions(_ context.Context, limit int) ([]domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Session, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		sess := s.sessions[s.order[i]]
		result = append(result, sess.Snapshot())
		if limit > 0 && len(result) >= limit {
			break
		}
	}

	return result, nil
}
