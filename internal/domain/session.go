package domain

import "slices"

// Message is one conversation turn. Text, Sender and Timestamp never change
// after the message is appended to a log.
type Message struct {
	ID        MessageID
	SessionID SessionID
	Text      string
	Sender    Sender
	Timestamp Timestamp

	// Read is only meaningful for SenderAI. It goes false -> true once.
	Read bool
}

func (m Message) Unread() bool {
	return m.Sender == SenderAI && !m.Read
}

// MessageLog is the append-only, insertion-ordered record of a session's turns.
type MessageLog []Message

// Append creates a message with a fresh id and adds it to the end of the log.
func (l *MessageLog) Append(sessionID SessionID, text string, sender Sender, now Timestamp) Message {
	msg := Message{
		ID:        NewMessageID(),
		SessionID: sessionID,
		Text:      text,
		Sender:    sender,
		Timestamp: now,
	}
	*l = append(*l, msg)
	return msg
}

// MarkRead flips an unread AI message to read. It reports whether anything changed;
// unknown ids and already-read messages are a no-op.
func (l MessageLog) MarkRead(id MessageID) bool {
	for i := range l {
		if l[i].ID != id {
			continue
		}
		if !l[i].Unread() {
			return false
		}
		l[i].Read = true
		return true
	}
	return false
}

// UnreadIDs lists unread AI messages in log order.
func (l MessageLog) UnreadIDs() []MessageID {
	var ids []MessageID
	for _, m := range l {
		if m.Unread() {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

// Session is one check-in episode.
type Session struct {
	ID SessionID
	// RemoteID is the id the messaging service assigned at check-in, if any.
	RemoteID SessionID

	MoodLevel MoodLevel
	RiskLevel RiskLevel

	Messages    MessageLog
	WaitTime    int // seconds spent disconnected
	IsConnected bool
	InVideoCall bool

	CreatedAt Timestamp
	EndedAt   Timestamp
}

// EmergencyBanner is true only for high risk sessions.
func (s *Session) EmergencyBanner() bool {
	return s.RiskLevel == RiskHigh
}

func (s *Session) Ended() bool {
	return !s.EndedAt.IsZero()
}

// ServiceID is the id used when talking to the messaging service.
func (s *Session) ServiceID() SessionID {
	if s.RemoteID != "" {
		return s.RemoteID
	}
	return s.ID
}

// Snapshot returns a copy that shares no mutable state with s.
func (s *Session) Snapshot() Session {
	c := *s
	c.Messages = slices.Clone(s.Messages)
	return c
}
