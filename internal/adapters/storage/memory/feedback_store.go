package memory

import (
	"context"
	"sync"

	"github.com/PabloGalante/farum-sos/internal/domain"
)

// FeedbackStore is a simple in-memory implementation of domain.FeedbackStore.
// It is NOT persistent and is only suitable for development / local mode.
type FeedbackStore struct {
	mu          sync.RWMutex
	entries     map[domain.FeedbackID]domain.Feedback
	bySessionID map[domain.SessionID][]domain.FeedbackID
}

// NewFeedbackStore creates a new in-memory FeedbackStore.
func NewFeedbackStore() *FeedbackStore {
	return &FeedbackStore{
		entries:     make(map[domain.FeedbackID]domain.Feedback),
		bySessionID: make(map[domain.SessionID][]domain.FeedbackID),
	}
}

// AppendFeedback saves a survey answer. The caller assigns the id.
func (s *FeedbackStore) AppendFeedback(_ context.Context, f domain.Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[f.ID] = f
	s.bySessionID[f.SessionID] = append(s.bySessionID[f.SessionID], f.ID)

	return nil
}

// ListFeedbackBySession returns every answer for a session, oldest first.
func (s *FeedbackStore) ListFeedbackBySession(_ context.Context, sessionID domain.SessionID) ([]domain.Feedback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.bySessionID[sessionID]
	out := make([]domain.Feedback, 0, len(ids))
	for _, id := range ids {
		if f, ok := s.entries[id]; ok {
			out = append(out, f)
		}
	}

	return out, nil
}
