package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/PabloGalante/farum-sos/internal/adapters/http/sse"
	"github.com/PabloGalante/farum-sos/internal/app/conversation"
	"github.com/PabloGalante/farum-sos/internal/app/feedback"
	"github.com/PabloGalante/farum-sos/internal/domain"
	"github.com/PabloGalante/farum-sos/internal/observability"
)

// Preferences is the AI data-sharing switch.
type Preferences interface {
	SetShareHistory(allowed bool)
	ShareHistory() bool
}

// Scheduler lists and books appointments.
type Scheduler interface {
	ListAvailable(ctx context.Context, day time.Time) ([]domain.Appointment, error)
	Book(ctx context.Context, id string) (domain.Appointment, error)
}

type Deps struct {
	Conversation *conversation.Orchestrator
	Feedback     *feedback.Service
	Scheduler    Scheduler
	Preferences  Preferences
}

type Server struct {
	conv        *conversation.Orchestrator
	feedback    *feedback.Service
	scheduler   Scheduler
	preferences Preferences
	events      *sse.Broadcaster
	router      chi.Router
	now         func() time.Time
}

func NewServer(deps Deps) *Server {
	s := &Server{
		conv:        deps.Conversation,
		feedback:    deps.Feedback,
		scheduler:   deps.Scheduler,
		preferences: deps.Preferences,
		events:      sse.NewBroadcaster(),
		now:         time.Now,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer, withRequestLogging, withCORS)

	r.Get("/healthz", s.handleHealthz)

	r.Post("/checkins", s.handleCheckin)
	r.Post("/sos", s.handleSOS)

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.handleListSessions)
		r.Get("/current", s.handleCurrentSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Post("/messages", s.handleSendMessage)
			r.Post("/ai-help", s.handleAcceptAIHelp)
			r.Put("/video-call", s.handleVideoCall)
			r.Post("/end", s.handleEndSession)
			r.Post("/feedback", s.handleSubmitFeedback)
			r.Get("/feedback", s.handleListFeedback)
		})
	})

	r.Get("/appointments", s.handleListAppointments)
	r.Post("/appointments/{id}/book", s.handleBookAppointment)

	r.Get("/preferences/data-sharing", s.handleGetDataSharing)
	r.Put("/preferences/data-sharing", s.handleSetDataSharing)

	r.Get("/events", s.events.HandleSSE)

	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) { methodNotAllowed(w) })
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) { notFound(w, "not found") })

	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// StreamEvents forwards orchestrator events to SSE clients until ctx ends.
func (s *Server) StreamEvents(ctx context.Context) error {
	events, cancel := s.conv.Subscribe(256)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			s.events.Broadcast(string(ev.Kind), toEventResponse(ev))
		}
	}
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type checkinRequest struct {
	Mood int `json:"mood"`
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

type videoCallRequest struct {
	Active bool `json:"active"`
}

type feedbackRequest struct {
	NPS     *int   `json:"nps"`
	Rating  int    `json:"rating,omitempty"`
	Comment string `json:"comment,omitempty"`
}

type bookRequest struct {
	SessionID string `json:"session_id,omitempty"`
}

type dataSharingRequest struct {
	Allowed *bool `json:"allowed"`
}

type dataSharingResponse struct {
	Allowed bool `json:"allowed"`
}

type messageResponse struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Read      *bool     `json:"read,omitempty"` // ai messages only
	Timestamp time.Time `json:"timestamp"`
}

type sessionResponse struct {
	ID              string            `json:"id"`
	MoodLevel       int               `json:"mood_level,omitempty"`
	RiskLevel       string            `json:"risk_level,omitempty"`
	EmergencyBanner bool              `json:"emergency_banner"`
	WaitTime        int               `json:"wait_time"`
	IsConnected     bool              `json:"is_connected"`
	InVideoCall     bool              `json:"in_video_call"`
	CreatedAt       time.Time         `json:"created_at"`
	EndedAt         *time.Time        `json:"ended_at,omitempty"`
	Messages        []messageResponse `json:"messages"`
}

type viewResponse struct {
	Session          sessionResponse `json:"session"`
	Current          bool            `json:"current"`
	TopicSuggestions []string        `json:"topic_suggestions,omitempty"`
	AIHelpOffered    bool            `json:"ai_help_offered"`
}

type listSessionsResponse struct {
	Sessions []sessionResponse `json:"sessions"`
}

type checkinFailedResponse struct {
	Error     string `json:"error"`
	SessionID string `json:"session_id,omitempty"`
	Mood      int    `json:"mood"`
}

type eventResponse struct {
	Kind      string           `json:"kind"`
	SessionID string           `json:"session_id,omitempty"`
	At        time.Time        `json:"at"`
	Message   *messageResponse `json:"message,omitempty"`
	MessageID string           `json:"message_id,omitempty"`
	Connected *bool            `json:"connected,omitempty"`
	WaitTime  int              `json:"wait_time,omitempty"`
	Topics    []string         `json:"topics,omitempty"`
	Target    string           `json:"target,omitempty"`
	Error     string           `json:"error,omitempty"`
	Input     string           `json:"input,omitempty"`
}

// ─────────────────────────────────────────────
// Concrete handlers
// ─────────────────────────────────────────────

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCheckin(w http.ResponseWriter, r *http.Request) {
	var req checkinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	id, err := s.conv.SubmitMood(r.Context(), domain.MoodLevel(req.Mood))
	if errors.Is(err, domain.ErrSubmissionFailed) {
		// The mood is echoed back so the client can retry.
		writeJSON(w, http.StatusBadGateway, checkinFailedResponse{
			Error:     "check-in submission failed, please try again",
			SessionID: string(id),
			Mood:      req.Mood,
		})
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.writeView(w, r, id, http.StatusCreated)
}

func (s *Server) handleSOS(w http.ResponseWriter, r *http.Request) {
	id, err := s.conv.TriggerSOS(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeView(w, r, id, http.StatusCreated)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		badRequest(w, "limit must be an integer")
		return
	}

	sessions, err := s.conv.History(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := listSessionsResponse{Sessions: make([]sessionResponse, 0, len(sessions))}
	for _, session := range sessions {
		resp.Sessions = append(resp.Sessions, toSessionResponse(session))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCurrentSession(w http.ResponseWriter, r *http.Request) {
	view, err := s.conv.Current(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toViewResponse(view))
}

// handleGetSession serves the live view of the current session, or the
// archived snapshot of any other.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)

	view, err := s.conv.Snapshot(r.Context(), id)
	if err == nil {
		writeJSON(w, http.StatusOK, toViewResponse(view))
		return
	}
	if !errors.Is(err, domain.ErrNoActiveSession) {
		writeError(w, r, err)
		return
	}

	session, err := s.conv.Lookup(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewResponse{Session: toSessionResponse(session)})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		badRequest(w, "text is required")
		return
	}

	msg, err := s.conv.SendMessage(r.Context(), sessionID(r), req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}

	// The reply arrives later on the event stream.
	writeJSON(w, http.StatusAccepted, toMessageResponse(msg))
}

func (s *Server) handleAcceptAIHelp(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)
	if err := s.conv.AcceptAIHelp(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	s.writeView(w, r, id, http.StatusOK)
}

func (s *Server) handleVideoCall(w http.ResponseWriter, r *http.Request) {
	var req videoCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	id := sessionID(r)
	if err := s.conv.SetVideoCall(r.Context(), id, req.Active); err != nil {
		writeError(w, r, err)
		return
	}
	s.writeView(w, r, id, http.StatusOK)
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)
	if err := s.conv.EndConversation(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}

	session, err := s.conv.Lookup(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

func (s *Server) handleSubmitFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if req.NPS == nil {
		badRequest(w, "nps is required")
		return
	}

	f, err := s.feedback.Submit(r.Context(), feedback.SubmitInput{
		SessionID: sessionID(r),
		NPS:       *req.NPS,
		Rating:    req.Rating,
		Comment:   req.Comment,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (s *Server) handleListFeedback(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		badRequest(w, "limit must be an integer")
		return
	}

	list, err := s.feedback.ListBySession(r.Context(), sessionID(r), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"feedback": list})
}

func (s *Server) handleListAppointments(w http.ResponseWriter, r *http.Request) {
	day := s.now()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			badRequest(w, "date must be YYYY-MM-DD")
			return
		}
		day = parsed
	}

	list, err := s.scheduler.ListAvailable(r.Context(), day)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": list})
}

func (s *Server) handleBookAppointment(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "invalid JSON body")
			return
		}
	}

	apt, err := s.scheduler.Book(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.conv.BookingCompleted(r.Context(), domain.SessionID(req.SessionID), apt.ID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, apt)
}

func (s *Server) handleGetDataSharing(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, dataSharingResponse{Allowed: s.preferences.ShareHistory()})
}

func (s *Server) handleSetDataSharing(w http.ResponseWriter, r *http.Request) {
	var req dataSharingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if req.Allowed == nil {
		badRequest(w, "allowed is required")
		return
	}

	s.preferences.SetShareHistory(*req.Allowed)

	log := observability.LoggerFromContext(r.Context())
	log.Info().Bool("allowed", *req.Allowed).Msg("data sharing preference updated")
	writeJSON(w, http.StatusOK, dataSharingResponse{Allowed: *req.Allowed})
}

func (s *Server) writeView(w http.ResponseWriter, r *http.Request, id domain.SessionID, status int) {
	view, err := s.conv.Snapshot(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, status, toViewResponse(view))
}

// ─────────────────────────────────────────────
// Conversation Helpers
// ─────────────────────────────────────────────

func sessionID(r *http.Request) domain.SessionID {
	return domain.SessionID(chi.URLParam(r, "id"))
}

func toViewResponse(v conversation.View) viewResponse {
	return viewResponse{
		Session:          toSessionResponse(v.Session),
		Current:          true,
		TopicSuggestions: v.TopicSuggestions,
		AIHelpOffered:    v.AIHelpOffered,
	}
}

func toSessionResponse(s domain.Session) sessionResponse {
	resp := sessionResponse{
		ID:              string(s.ID),
		MoodLevel:       int(s.MoodLevel),
		RiskLevel:       string(s.RiskLevel),
		EmergencyBanner: s.EmergencyBanner(),
		WaitTime:        s.WaitTime,
		IsConnected:     s.IsConnected,
		InVideoCall:     s.InVideoCall,
		CreatedAt:       s.CreatedAt,
		Messages:        toMessagesResponse(s.Messages),
	}
	if s.Ended() {
		ended := s.EndedAt
		resp.EndedAt = &ended
	}
	return resp
}

func toMessageResponse(m domain.Message) messageResponse {
	resp := messageResponse{
		ID:        string(m.ID),
		SessionID: string(m.SessionID),
		Sender:    string(m.Sender),
		Text:      m.Text,
		Timestamp: m.Timestamp,
	}
	if m.Sender == domain.SenderAI {
		read := m.Read
		resp.Read = &read
	}
	return resp
}

func toMessagesResponse(msgs []domain.Message) []messageResponse {
	out := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageResponse(m))
	}
	return out
}

func toEventResponse(ev conversation.Event) eventResponse {
	resp := eventResponse{
		Kind:      string(ev.Kind),
		SessionID: string(ev.SessionID),
		At:        ev.At,
		MessageID: string(ev.MessageID),
		WaitTime:  ev.WaitTime,
		Topics:    ev.Topics,
		Target:    ev.Target,
		Error:     ev.Error,
		Input:     ev.Input,
	}
	if ev.Message != nil {
		m := toMessageResponse(*ev.Message)
		resp.Message = &m
	}
	if ev.Kind == conversation.EventConnectionChanged {
		connected := ev.Connected
		resp.Connected = &connected
	}
	return resp
}

// ─────────────────────────────────────────────
// HTTP Helpers
// ─────────────────────────────────────────────

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to status codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidMood),
		errors.Is(err, domain.ErrEmptyMessage),
		errors.Is(err, domain.ErrInvalidFeedback):
		badRequest(w, err.Error())
	case errors.Is(err, domain.ErrNoActiveSession),
		errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrAppointmentNotFound):
		notFound(w, err.Error())
	case errors.Is(err, domain.ErrAppointmentBooked):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrSendFailed), errors.Is(err, domain.ErrSubmissionFailed):
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
	case errors.Is(err, conversation.ErrStopped):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "service is shutting down"})
	default:
		internalError(w, r, err)
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error": msg,
	})
}

func notFound(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": msg,
	})
}

func internalError(w http.ResponseWriter, r *http.Request, err error) {
	log := observability.LoggerFromContext(r.Context())
	log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")

	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error": "internal server error",
	})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{
		"error": "method not allowed",
	})
}
