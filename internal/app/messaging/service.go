// Package messaging is the remote counterpart of a check-in conversation:
// it triages the initial mood and produces chat replies through an LLM.
package messaging

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PabloGalante/farum-sos/internal/domain"
	"github.com/PabloGalante/farum-sos/internal/observability"
)

// historyLimit is how many past turns the LLM sees when sharing is allowed.
const historyLimit = 20

type Service struct {
	llm            domain.LLMClient
	messageStore   domain.MessageStore
	initialReplies map[domain.MoodLevel]string
	now            func() time.Time

	shareHistory atomic.Bool

	mu    sync.RWMutex
	risks map[domain.SessionID]domain.RiskLevel
}

var _ domain.MessagingService = (*Service)(nil)

func NewService(
	llm domain.LLMClient,
	messageStore domain.MessageStore,
	initialReplies map[domain.MoodLevel]string,
) *Service {
	return &Service{
		llm:            llm,
		messageStore:   messageStore,
		initialReplies: initialReplies,
		now:            time.Now,
		risks:          make(map[domain.SessionID]domain.RiskLevel),
	}
}

// SetShareHistory records whether the user allows past turns to be sent to the AI.
func (s *Service) SetShareHistory(allowed bool) {
	s.shareHistory.Store(allowed)
}

func (s *Service) ShareHistory() bool {
	return s.shareHistory.Load()
}

func (s *Service) SubmitInitialCheckin(ctx context.Context, mood domain.MoodLevel) (domain.CheckinResult, error) {
	risk, err := domain.RiskForMood(mood)
	if err != nil {
		return domain.CheckinResult{}, err
	}

	id := domain.NewSessionID()
	log := observability.LoggerFromContext(ctx).With().
		Str("session_id", string(id)).
		Int("mood", int(mood)).
		Str("risk", string(risk)).
		Logger()

	reply, ok := s.initialReplies[mood]
	if !ok {
		reply = s.initialReplies[3]
	}

	s.mu.Lock()
	s.risks[id] = risk
	s.mu.Unlock()

	if err := s.remember(ctx, id, reply, domain.SenderAI); err != nil {
		log.Error().Err(err).Msg("failed to store initial reply")
		return domain.CheckinResult{}, err
	}

	log.Info().Msg("check-in triaged")
	return domain.CheckinResult{
		SessionID:    id,
		InitialReply: reply,
		RiskLevel:    risk,
	}, nil
}

func (s *Service) SendChatMessage(ctx context.Context, sessionID domain.SessionID, risk domain.RiskLevel, text string) (string, error) {
	log := observability.LoggerFromContext(ctx).With().
		Str("session_id", string(sessionID)).
		Bool("share_history", s.ShareHistory()).
		Logger()

	if err := s.remember(ctx, sessionID, text, domain.SenderUser); err != nil {
		log.Error().Err(err).Msg("failed to store user message")
		return "", err
	}

	if risk == "" {
		s.mu.RLock()
		risk = s.risks[sessionID]
		s.mu.RUnlock()
	}
	log = log.With().Str("risk", string(risk)).Logger()

	convCtx := domain.ConversationContext{
		SessionID: sessionID,
		RiskLevel: risk,
	}
	if s.ShareHistory() {
		history, err := s.messageStore.GetMessagesBySession(ctx, sessionID, historyLimit)
		if err != nil {
			log.Error().Err(err).Msg("failed to load history")
			return "", err
		}
		convCtx.History = history
	}

	start := s.now()
	reply, err := s.llm.GenerateReply(ctx, text, convCtx)
	if err != nil {
		log.Error().Err(err).Msg("llm reply failed")
		return "", fmt.Errorf("generate reply: %w", err)
	}

	if err := s.remember(ctx, sessionID, reply, domain.SenderAI); err != nil {
		log.Error().Err(err).Msg("failed to store reply")
		return "", err
	}

	log.Info().Dur("elapsed", s.now().Sub(start)).Msg("reply generated")
	return reply, nil
}

func (s *Service) remember(ctx context.Context, sessionID domain.SessionID, text string, sender domain.Sender) error {
	msg := domain.Message{
		ID:        domain.NewMessageID(),
		SessionID: sessionID,
		Text:      text,
		Sender:    sender,
		Timestamp: s.now(),
	}
	if err := s.messageStore.AppendMessage(ctx, msg); err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}
