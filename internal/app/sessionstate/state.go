// Package sessionstate holds the mutable record of the current check-in
// session and the registry of every session the process created.
//
// State is not safe for concurrent use; the conversation orchestrator calls it
// from its single event loop. Every mutation takes the session handle and is a
// silent no-op when the handle is not the current session.
package sessionstate

import (
	"context"
	"sort"
	"time"

	"github.com/PabloGalante/farum-sos/internal/domain"
	"github.com/PabloGalante/farum-sos/internal/observability"
)

type State struct {
	registry domain.SessionStore
	now      func() time.Time

	current *domain.Session
}

func New(registry domain.SessionStore, now func() time.Time) *State {
	if now == nil {
		now = time.Now
	}
	return &State{
		registry: registry,
		now:      now,
	}
}

// Create starts a new session, makes it current and records it in the registry.
// A previous current session is left in the registry untouched.
func (s *State) Create(ctx context.Context) domain.SessionID {
	session := &domain.Session{
		ID:        domain.NewSessionID(),
		CreatedAt: s.now(),
	}
	s.current = session

	if err := s.registry.CreateSession(ctx, session.Snapshot()); err != nil {
		log := observability.LoggerFromContext(ctx)
		log.Error().Err(err).Str("session_id", string(session.ID)).Msg("failed to register session")
	}
	return session.ID
}

// CurrentID returns the current session id, or "" when there is none.
func (s *State) CurrentID() domain.SessionID {
	if s.current == nil {
		return ""
	}
	return s.current.ID
}

func (s *State) lookup(h domain.SessionID) *domain.Session {
	if s.current == nil || h == "" || s.current.ID != h {
		return nil
	}
	return s.current
}

// Snapshot returns a detached copy of the session if h is current.
func (s *State) Snapshot(h domain.SessionID) (domain.Session, bool) {
	session := s.lookup(h)
	if session == nil {
		return domain.Session{}, false
	}
	return session.Snapshot(), true
}

// SetMood records the mood once; later calls and invalid levels are ignored.
func (s *State) SetMood(h domain.SessionID, level domain.MoodLevel) bool {
	session := s.lookup(h)
	if session == nil || !level.Valid() || session.MoodLevel != 0 {
		return false
	}
	session.MoodLevel = level
	return true
}

// SetRisk sets the risk level. It is the explicit override path (SOS); nothing
// calls it to demote risk automatically.
func (s *State) SetRisk(h domain.SessionID, level domain.RiskLevel) bool {
	session := s.lookup(h)
	if session == nil || !level.Valid() {
		return false
	}
	session.RiskLevel = level
	return true
}

func (s *State) SetRemoteID(h, remote domain.SessionID) bool {
	session := s.lookup(h)
	if session == nil {
		return false
	}
	session.RemoteID = remote
	return true
}

// SetConnectionStatus reports whether the flag changed.
func (s *State) SetConnectionStatus(h domain.SessionID, connected bool) bool {
	session := s.lookup(h)
	if session == nil || session.IsConnected == connected {
		return false
	}
	session.IsConnected = connected
	return true
}

func (s *State) SetVideoCallStatus(h domain.SessionID, inCall bool) bool {
	session := s.lookup(h)
	if session == nil || session.InVideoCall == inCall {
		return false
	}
	session.InVideoCall = inCall
	return true
}

// AppendMessage adds a turn to the current session's log.
func (s *State) AppendMessage(h domain.SessionID, text string, sender domain.Sender) (domain.Message, bool) {
	session := s.lookup(h)
	if session == nil {
		return domain.Message{}, false
	}
	return session.Messages.Append(session.ID, text, sender, s.now()), true
}

func (s *State) MarkRead(h domain.SessionID, id domain.MessageID) bool {
	session := s.lookup(h)
	if session == nil {
		return false
	}
	return session.Messages.MarkRead(id)
}

func (s *State) UnreadIDs(h domain.SessionID) []domain.MessageID {
	session := s.lookup(h)
	if session == nil {
		return nil
	}
	return session.Messages.UnreadIDs()
}

func (s *State) MessageCount(h domain.SessionID) int {
	session := s.lookup(h)
	if session == nil {
		return 0
	}
	return len(session.Messages)
}

// IncrementWaitTime adds one second while the session is disconnected and
// returns the new total. Connected sessions keep their frozen value.
func (s *State) IncrementWaitTime(h domain.SessionID) (int, bool) {
	session := s.lookup(h)
	if session == nil || session.IsConnected {
		return 0, false
	}
	session.WaitTime++
	return session.WaitTime, true
}

// Sync writes the current snapshot to the registry.
func (s *State) Sync(ctx context.Context, h domain.SessionID) {
	session := s.lookup(h)
	if session == nil {
		return
	}
	if err := s.registry.UpdateSession(ctx, session.Snapshot()); err != nil {
		log := observability.LoggerFromContext(ctx)
		log.Error().Err(err).Str("session_id", string(h)).Msg("failed to sync session")
	}
}

// End stamps the session, stores its final snapshot and clears the current reference.
func (s *State) End(ctx context.Context, h domain.SessionID) bool {
	session := s.lookup(h)
	if session == nil {
		return false
	}
	session.EndedAt = s.now()
	s.Sync(ctx, h)
	s.current = nil
	return true
}

// History lists registered sessions newest first, with the current one live.
func (s *State) History(ctx context.Context, limit int) ([]domain.Session, error) {
	sessions, err := s.registry.ListSessions(ctx, 0)
	if err != nil {
		return nil, err
	}

	if s.current != nil {
		found := false
		for i := range sessions {
			if sessions[i].ID == s.current.ID {
				sessions[i] = s.current.Snapshot()
				found = true
			}
		}
		if !found {
			sessions = append(sessions, s.current.Snapshot())
		}
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	if limit > 0 && len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions, nil
}

// Lookup returns the registry entry for any session, preferring the live current one.
func (s *State) Lookup(ctx context.Context, id domain.SessionID) (domain.Session, error) {
	if session := s.lookup(id); session != nil {
		return session.Snapshot(), nil
	}
	return s.registry.GetSession(ctx, id)
}
