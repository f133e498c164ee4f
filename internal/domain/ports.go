package domain

import "context"

// LLMClient defines how the core application interacts with an LLM service.
type LLMClient interface {
	GenerateReply(ctx context.Context, prompt string, convCtx ConversationContext) (string, error)
}

// ConversationContext gives the LLM minimal context about the conversation.
type ConversationContext struct {
	SessionID SessionID
	RiskLevel RiskLevel
	History   []Message // empty unless the user allowed sharing
}

// CheckinResult is what the messaging service returns for a mood submission.
type CheckinResult struct {
	SessionID    SessionID
	InitialReply string
	RiskLevel    RiskLevel
}

// MessagingService is the remote counterpart of a conversation. Both calls may fail.
// SendChatMessage receives the session's current risk, which may have been
// escalated after check-in; an empty risk leaves the one recorded at check-in.
type MessagingService interface {
	SubmitInitialCheckin(ctx context.Context, mood MoodLevel) (CheckinResult, error)
	SendChatMessage(ctx context.Context, sessionID SessionID, risk RiskLevel, text string) (string, error)
}

// ChannelEventKind enumerates what a realtime channel reports to its subscriber.
type ChannelEventKind string

const (
	ChannelConnected    ChannelEventKind = "connected"
	ChannelDisconnected ChannelEventKind = "disconnected"
	ChannelInbound      ChannelEventKind = "inbound"
)

type ChannelEvent struct {
	Kind      ChannelEventKind
	SessionID SessionID
	Text      string
}

// RealtimeChannel is the connection to a human/AI responder for one session at a time.
// Implementations deliver events to the sink passed to Bind. After Unbind or a rebind
// the old sink receives at most one final ChannelDisconnected.
// A non-simulated channel must fail Send when it is not connected.
type RealtimeChannel interface {
	Bind(sessionID SessionID, sink func(ChannelEvent))
	Unbind()
	Send(ctx context.Context, text string) error
	Connected() bool
}

// SessionStore is the registry of every session created by the process.
// It holds snapshots; the orchestrator owns the live session.
type SessionStore interface {
	CreateSession(ctx context.Context, session Session) error
	UpdateSession(ctx context.Context, session Session) error
	GetSession(ctx context.Context, id SessionID) (Session, error)
	ListSessions(ctx context.Context, limit int) ([]Session, error)
}

// MessageStore keeps the conversation history the messaging service may share with the LLM.
type MessageStore interface {
	AppendMessage(ctx context.Context, msg Message) error
	GetMessagesBySession(ctx context.Context, sessionID SessionID, limit int) ([]Message, error)
}
