// Package feedback records the survey a user fills in after a conversation.
package feedback

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PabloGalante/farum-sos/internal/domain"
	"github.com/PabloGalante/farum-sos/internal/observability"
)

// Service validates and stores survey answers.
type Service struct {
	store    domain.FeedbackStore
	sessions domain.SessionStore
	now      func() time.Time
}

// NewService creates a feedback service. sessions is used to check that the
// answered session exists.
func NewService(store domain.FeedbackStore, sessions domain.SessionStore) *Service {
	return &Service{
		store:    store,
		sessions: sessions,
		now:      time.Now,
	}
}

type SubmitInput struct {
	SessionID domain.SessionID
	NPS       int
	Rating    int
	Comment   string
}

func (s *Service) Submit(ctx context.Context, in SubmitInput) (domain.Feedback, error) {
	f := domain.Feedback{
		ID:        domain.NewFeedbackID(),
		SessionID: in.SessionID,
		NPS:       in.NPS,
		Rating:    in.Rating,
		Comment:   strings.TrimSpace(in.Comment),
		CreatedAt: s.now(),
	}
	if err := f.Validate(); err != nil {
		return domain.Feedback{}, err
	}

	if _, err := s.sessions.GetSession(ctx, in.SessionID); err != nil {
		return domain.Feedback{}, fmt.Errorf("feedback for %s: %w", in.SessionID, err)
	}

	log := observability.LoggerFromContext(ctx)
	if err := s.store.AppendFeedback(ctx, f); err != nil {
		log.Error().Err(err).Str("session_id", string(f.SessionID)).Msg("failed to store feedback")
		return domain.Feedback{}, fmt.Errorf("append feedback: %w", err)
	}

	log.Info().
		Str("session_id", string(f.SessionID)).
		Int("nps", f.NPS).
		Int("rating", f.Rating).
		Msg("feedback recorded")
	return f, nil
}

// ListBySession returns the answers for a session, oldest first.
// If limit <= 0, a reasonable default value is used.
func (s *Service) ListBySession(ctx context.Context, sessionID domain.SessionID, limit int) ([]domain.Feedback, error) {
	if limit <= 0 {
		limit = 20
	}

	out, err := s.store.ListFeedbackBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}
