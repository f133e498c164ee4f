package conversation

import (
	"sync"
	"time"

	"github.com/PabloGalante/farum-sos/internal/domain"
	"github.com/PabloGalante/farum-sos/internal/observability"
)

type EventKind string

const (
	EventSessionStarted          EventKind = "session_started"
	EventMessageAppended         EventKind = "message_appended"
	EventMessageRead             EventKind = "message_read"
	EventConnectionChanged       EventKind = "connection_changed"
	EventWaitTimeChanged         EventKind = "wait_time_changed"
	EventAIHelpOffered           EventKind = "ai_help_offered"
	EventTopicSuggestions        EventKind = "topic_suggestions"
	EventTopicSuggestionsCleared EventKind = "topic_suggestions_cleared"
	EventAgentTyping             EventKind = "agent_typing"
	EventSendFailed              EventKind = "send_failed"
	EventSubmissionFailed        EventKind = "submission_failed"
	EventNavigate                EventKind = "navigate"
	EventSessionEnded            EventKind = "session_ended"
)

// Navigation targets carried by EventNavigate.
const (
	NavigateConversation = "conversation"
	NavigateHome         = "home"
)

// Event is a read-only signal for the presentation layer.
type Event struct {
	Kind      EventKind        `json:"kind"`
	SessionID domain.SessionID `json:"session_id,omitempty"`
	At        time.Time        `json:"at"`

	Message   *domain.Message  `json:"message,omitempty"`
	MessageID domain.MessageID `json:"message_id,omitempty"`
	Connected bool             `json:"connected,omitempty"`
	WaitTime  int              `json:"wait_time,omitempty"`
	Topics    []string         `json:"topics,omitempty"`
	Target    string           `json:"target,omitempty"`

	// Error and Input describe a failed request; Input is what the user
	// submitted, kept so they can retry.
	Error string `json:"error,omitempty"`
	Input string `json:"input,omitempty"`
}

// hub fans events out to subscribers without ever blocking the event loop.
type hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
}

func newHub() *hub {
	return &hub{subs: make(map[int]chan Event)}
}

func (h *hub) subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.subs[id] = ch
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

func (h *hub) publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			log := observability.Logger()
			log.Warn().
				Int("subscriber", id).
				Str("kind", string(ev.Kind)).
				Msg("subscriber buffer full, event dropped")
		}
	}
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
