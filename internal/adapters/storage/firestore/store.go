package firestore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/PabloGalante/farum-sos/internal/domain"
)

// Store implements domain.SessionStore, domain.MessageStore and
// domain.FeedbackStore on Firestore.
type Store struct {
	client *firestore.Client
}

var (
	_ domain.SessionStore  = (*Store)(nil)
	_ domain.MessageStore  = (*Store)(nil)
	_ domain.FeedbackStore = (*Store)(nil)
)

// NewStore creates a Firestore store.
// Uses the project passed (FARUM_GCP_PROJECT).
func NewStore(ctx context.Context, projectID string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return &Store{client: client}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

func (s *Store) sessionsCol() *firestore.CollectionRef {
	return s.client.Collection("sessions")
}

func (s *Store) sessionDoc(id domain.SessionID) *firestore.DocumentRef {
	return s.sessionsCol().Doc(string(id))
}

// Chat history is keyed by the messaging service's session id, which is not
// the registry id, so it lives in its own collection.
func (s *Store) messagesCol(sessionID domain.SessionID) *firestore.CollectionRef {
	return s.client.Collection("conversations").Doc(string(sessionID)).Collection("messages")
}

func (s *Store) messageDoc(sessionID domain.SessionID, msgID domain.MessageID) *firestore.DocumentRef {
	return s.messagesCol(sessionID).Doc(string(msgID))
}

func (s *Store) feedbackCol() *firestore.CollectionRef {
	return s.client.Collection("feedback")
}

func notFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// ─────────────────────────────────────────
// Firestore Types
// ─────────────────────────────────────────

type sessionDoc struct {
	RemoteID    string       `firestore:"remote_id"`
	MoodLevel   int          `firestore:"mood_level"`
	RiskLevel   string       `firestore:"risk_level"`
	Messages    []messageDoc `firestore:"messages"`
	WaitTime    int          `firestore:"wait_time"`
	IsConnected bool         `firestore:"is_connected"`
	InVideoCall bool         `firestore:"in_video_call"`
	CreatedAt   time.Time    `firestore:"created_at"`
	EndedAt     time.Time    `firestore:"ended_at"`
}

type messageDoc struct {
	ID        string    `firestore:"id"`
	SessionID string    `firestore:"session_id"`
	Sender    string    `firestore:"sender"`
	Text      string    `firestore:"text"`
	Read      bool      `firestore:"read"`
	CreatedAt time.Time `firestore:"created_at"`
}

type feedbackDoc struct {
	SessionID string    `firestore:"session_id"`
	NPS       int       `firestore:"nps"`
	Rating    int       `firestore:"rating"`
	Comment   string    `firestore:"comment"`
	CreatedAt time.Time `firestore:"created_at"`
}

func toSessionDoc(session domain.Session) sessionDoc {
	msgs := make([]messageDoc, 0, len(session.Messages))
	for _, m := range session.Messages {
		msgs = append(msgs, toMessageDoc(m))
	}
	return sessionDoc{
		RemoteID:    string(session.RemoteID),
		MoodLevel:   int(session.MoodLevel),
		RiskLevel:   string(session.RiskLevel),
		Messages:    msgs,
		WaitTime:    session.WaitTime,
		IsConnected: session.IsConnected,
		InVideoCall: session.InVideoCall,
		CreatedAt:   session.CreatedAt,
		EndedAt:     session.EndedAt,
	}
}

func (d sessionDoc) toDomain(id domain.SessionID) domain.Session {
	msgs := make(domain.MessageLog, 0, len(d.Messages))
	for _, m := range d.Messages {
		msgs = append(msgs, m.toDomain())
	}
	return domain.Session{
		ID:          id,
		RemoteID:    domain.SessionID(d.RemoteID),
		MoodLevel:   domain.MoodLevel(d.MoodLevel),
		RiskLevel:   domain.RiskLevel(d.RiskLevel),
		Messages:    msgs,
		WaitTime:    d.WaitTime,
		IsConnected: d.IsConnected,
		InVideoCall: d.InVideoCall,
		CreatedAt:   d.CreatedAt,
		EndedAt:     d.EndedAt,
	}
}

func toMessageDoc(m domain.Message) messageDoc {
	return messageDoc{
		ID:        string(m.ID),
		SessionID: string(m.SessionID),
		Sender:    string(m.Sender),
		Text:      m.Text,
		Read:      m.Read,
		CreatedAt: m.Timestamp,
	}
}

func (d messageDoc) toDomain() domain.Message {
	return domain.Message{
		ID:        domain.MessageID(d.ID),
		SessionID: domain.SessionID(d.SessionID),
		Sender:    domain.Sender(d.Sender),
		Text:      d.Text,
		Read:      d.Read,
		Timestamp: d.CreatedAt,
	}
}

// ─────────────────────────────────────────
// SessionStore implementation
// ─────────────────────────────────────────

func (s *Store) CreateSession(ctx context.Context, session domain.Session) error {
	_, err := s.sessionDoc(session.ID).Create(ctx, toSessionDoc(session))
	if err != nil {
		return fmt.Errorf("firestore CreateSession: %w", err)
	}
	return nil
}

// UpdateSession replaces the stored snapshot. Only existing sessions are updated.
func (s *Store) UpdateSession(ctx context.Context, session domain.Session) error {
	ref := s.sessionDoc(session.ID)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(ref); err != nil {
			return err
		}
		return tx.Set(ref, toSessionDoc(session))
	})
	if err != nil {
		if notFound(err) {
			return fmt.Errorf("%s: %w", session.ID, domain.ErrSessionNotFound)
		}
		return fmt.Errorf("firestore UpdateSession: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, id domain.SessionID) (domain.Session, error) {
	snap, err := s.sessionDoc(id).Get(ctx)
	if err != nil {
		if notFound(err) {
			return domain.Session{}, fmt.Errorf("%s: %w", id, domain.ErrSessionNotFound)
		}
		return domain.Session{}, fmt.Errorf("firestore GetSession: %w", err)
	}

	var doc sessionDoc
	if err := snap.DataTo(&doc); err != nil {
		return domain.Session{}, fmt.Errorf("firestore GetSession decode: %w", err)
	}
	return doc.toDomain(id), nil
}

// ListSessions returns sessions newest first; limit <= 0 means all.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]domain.Session, error) {
	q := s.sessionsCol().OrderBy("created_at", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []domain.Session
	for {
		snap, err := iter.Next()
		if err != nil {
			if errors.Is(err, iterator.Done) {
				break
			}
			return nil, fmt.Errorf("firestore ListSessions: %w", err)
		}

		var doc sessionDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode sessionDoc: %w", err)
		}
		out = append(out, doc.toDomain(domain.SessionID(snap.Ref.ID)))
	}
	return out, nil
}

// ─────────────────────────────────────────
// MessageStore implementation
// ─────────────────────────────────────────

func (s *Store) AppendMessage(ctx context.Context, msg domain.Message) error {
	_, err := s.messageDoc(msg.SessionID, msg.ID).Set(ctx, toMessageDoc(msg))
	if err != nil {
		return fmt.Errorf("firestore AppendMessage: %w", err)
	}
	return nil
}

// GetMessagesBySession returns the last limit messages, oldest first.
func (s *Store) GetMessagesBySession(ctx context.Context, sessionID domain.SessionID, limit int) ([]domain.Message, error) {
	q := s.messagesCol(sessionID).OrderBy("created_at", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []domain.Message
	for {
		snap, err := iter.Next()
		if err != nil {
			if errors.Is(err, iterator.Done) {
				break
			}
			return nil, fmt.Errorf("firestore GetMessagesBySession: %w", err)
		}

		var doc messageDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode messageDoc: %w", err)
		}
		out = append(out, doc.toDomain())
	}
	slices.Reverse(out)
	return out, nil
}

// ─────────────────────────────────────────
// FeedbackStore implementation
// ─────────────────────────────────────────

func (s *Store) AppendFeedback(ctx context.Context, f domain.Feedback) error {
	doc := feedbackDoc{
		SessionID: string(f.SessionID),
		NPS:       f.NPS,
		Rating:    f.Rating,
		Comment:   f.Comment,
		CreatedAt: f.CreatedAt,
	}
	if _, err := s.feedbackCol().Doc(string(f.ID)).Create(ctx, doc); err != nil {
		return fmt.Errorf("firestore AppendFeedback: %w", err)
	}
	return nil
}

func (s *Store) ListFeedbackBySession(ctx context.Context, sessionID domain.SessionID) ([]domain.Feedback, error) {
	q := s.feedbackCol().Where("session_id", "==", string(sessionID)).OrderBy("created_at", firestore.Asc)

	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []domain.Feedback
	for {
		snap, err := iter.Next()
		if err != nil {
			if errors.Is(err, iterator.Done) {
				break
			}
			return nil, fmt.Errorf("firestore ListFeedbackBySession: %w", err)
		}

		var doc feedbackDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode feedbackDoc: %w", err)
		}
		out = append(out, domain.Feedback{
			ID:        domain.FeedbackID(snap.Ref.ID),
			SessionID: domain.SessionID(doc.SessionID),
			NPS:       doc.NPS,
			Rating:    doc.Rating,
			Comment:   doc.Comment,
			CreatedAt: doc.CreatedAt,
		})
	}
	return out, nil
}
