package conversation

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/PabloGalante/farum-sos/internal/domain"
	"github.com/PabloGalante/farum-sos/internal/observability"
)

const (
	originCheckin = "checkin"
	originSOS     = "sos"
)

// View is a session snapshot plus the signals derived from it.
type View struct {
	Session         domain.Session `json:"session"`
	EmergencyBanner bool           `json:"emergency_banner"`
	// TopicSuggestions is non-empty while suggestions are on screen.
	TopicSuggestions []string `json:"topic_suggestions,omitempty"`
	AIHelpOffered    bool     `json:"ai_help_offered"`
}

// SubmitMood starts a check-in session for mood. The session is created and
// the mood recorded before the messaging service is asked to triage it; when
// that request fails the session keeps its mood, gets no risk level and the
// error wraps domain.ErrSubmissionFailed.
func (o *Orchestrator) SubmitMood(ctx context.Context, mood domain.MoodLevel) (domain.SessionID, error) {
	if !mood.Valid() {
		return "", fmt.Errorf("mood %d: %w", mood, domain.ErrInvalidMood)
	}

	var h domain.SessionID
	if err := o.call(ctx, func() {
		h = o.startSession(ctx, originCheckin)
		o.state.SetMood(h, mood)
	}); err != nil {
		return "", err
	}

	log := observability.LoggerFromContext(ctx).With().
		Str("session_id", string(h)).
		Int("mood", int(mood)).
		Logger()

	res, err := o.messaging.SubmitInitialCheckin(ctx, mood)
	if err != nil {
		log.Error().Err(err).Msg("initial check-in failed")
		o.metrics.SubmissionFailed(ctx)
		o.post(func() {
			o.publish(Event{
				Kind:      EventSubmissionFailed,
				SessionID: h,
				Error:     err.Error(),
				Input:     strconv.Itoa(int(mood)),
			})
		})
		return h, fmt.Errorf("%w: %w", domain.ErrSubmissionFailed, err)
	}

	var applied bool
	if err := o.call(ctx, func() {
		applied = o.completeCheckin(ctx, h, mood, res)
	}); err != nil {
		return h, err
	}
	if !applied {
		log.Warn().Msg("session replaced before check-in completed")
		return h, domain.ErrNoActiveSession
	}

	log.Info().Str("remote_session_id", string(res.SessionID)).Msg("check-in completed")
	return h, nil
}

func (o *Orchestrator) completeCheckin(ctx context.Context, h domain.SessionID, mood domain.MoodLevel, res domain.CheckinResult) bool {
	if o.state.CurrentID() != h {
		return false
	}

	risk, _ := domain.RiskForMood(mood)
	if res.RiskLevel != "" && res.RiskLevel != risk {
		log := o.logger(h)
		log.Warn().
			Str("service_risk", string(res.RiskLevel)).
			Str("risk", string(risk)).
			Msg("messaging service disagrees on risk, keeping fixed mapping")
	}
	o.state.SetRisk(h, risk)
	o.state.SetRemoteID(h, res.SessionID)

	o.appendMessage(h, o.script.CheckinGreeting, domain.SenderAI)
	o.appendMessage(h, o.script.MoodStatements[mood], domain.SenderUser)
	if res.InitialReply != "" {
		o.appendMessage(h, res.InitialReply, domain.SenderAI)
	} else {
		o.appendMessage(h, o.script.CheckinFollowUp, domain.SenderAI)
	}

	o.bindChannel(h)
	o.state.Sync(ctx, h)
	o.publish(Event{Kind: EventNavigate, SessionID: h, Target: NavigateConversation})
	return true
}

// TriggerSOS opens a counselor session straight away, bypassing the mood check-in.
func (o *Orchestrator) TriggerSOS(ctx context.Context) (domain.SessionID, error) {
	var h domain.SessionID
	err := o.call(ctx, func() {
		h = o.startSession(ctx, originSOS)
		o.state.SetRisk(h, domain.RiskMedium)
		o.appendMessage(h, o.script.CounselorGreeting, domain.SenderAI)
		o.bindChannel(h)
		o.state.Sync(ctx, h)
		o.publish(Event{Kind: EventNavigate, SessionID: h, Target: NavigateConversation})
	})
	if err != nil {
		return "", err
	}

	log := observability.LoggerFromContext(ctx)
	log.Info().Str("session_id", string(h)).Msg("sos session started")
	return h, nil
}

// SendMessage appends the user's text at once and acknowledges it on the
// channel. The reply is requested now when connected, otherwise once the
// session connects. Reply failures are published as send_failed events.
func (o *Orchestrator) SendMessage(ctx context.Context, h domain.SessionID, text string) (domain.Message, error) {
	if strings.TrimSpace(text) == "" {
		return domain.Message{}, domain.ErrEmptyMessage
	}

	var (
		msg domain.Message
		ok  bool
	)
	if err := o.call(ctx, func() {
		msg, ok = o.appendMessage(h, text, domain.SenderUser)
		if !ok {
			return
		}
		o.clearTopics(h)

		snap, _ := o.state.Snapshot(h)
		if snap.IsConnected {
			o.requestReply(h, snap, text)
		} else {
			o.pending = append(o.pending, pendingReply{session: h, text: text})
		}
	}); err != nil {
		return domain.Message{}, err
	}
	if !ok {
		return domain.Message{}, domain.ErrNoActiveSession
	}

	log := observability.LoggerFromContext(ctx).With().Str("session_id", string(h)).Logger()
	if err := o.channel.Send(ctx, text); err != nil {
		log.Error().Err(err).Msg("channel send failed")
		o.metrics.SendFailed(ctx)
		o.post(func() {
			o.publish(Event{Kind: EventSendFailed, SessionID: h, Error: err.Error(), Input: text})
		})
		return msg, fmt.Errorf("%w: %w", domain.ErrSendFailed, err)
	}

	log.Debug().Str("message_id", string(msg.ID)).Msg("user message appended")
	return msg, nil
}

// AcceptAIHelp switches a waiting session to the AI responder.
func (o *Orchestrator) AcceptAIHelp(ctx context.Context, h domain.SessionID) error {
	var ok bool
	if err := o.call(ctx, func() {
		if o.state.CurrentID() != h || h == "" {
			return
		}
		ok = true

		o.counter.Stop()
		o.offerPending = false
		o.offerArmed = false
		if o.state.SetConnectionStatus(h, true) {
			o.publish(Event{Kind: EventConnectionChanged, SessionID: h, Connected: true})
		}
		o.appendMessage(h, o.script.AIHelpGreeting, domain.SenderAI)
		o.showTopics(h)
		o.flushPending(h)
	}); err != nil {
		return err
	}
	if !ok {
		return domain.ErrNoActiveSession
	}

	log := observability.LoggerFromContext(ctx)
	log.Info().Str("session_id", string(h)).Msg("ai help accepted")
	return nil
}

func (o *Orchestrator) SetVideoCall(ctx context.Context, h domain.SessionID, active bool) error {
	var ok bool
	if err := o.call(ctx, func() {
		if o.state.CurrentID() != h || h == "" {
			return
		}
		ok = true
		o.state.SetVideoCallStatus(h, active)
	}); err != nil {
		return err
	}
	if !ok {
		return domain.ErrNoActiveSession
	}
	return nil
}

// BookingCompleted is called once an appointment has been booked. It sends the
// user back to the conversation, or home when there is none.
func (o *Orchestrator) BookingCompleted(ctx context.Context, h domain.SessionID, appointmentID string) error {
	err := o.call(ctx, func() {
		target := NavigateHome
		if h != "" && o.state.CurrentID() == h {
			target = NavigateConversation
		}
		o.publish(Event{Kind: EventNavigate, SessionID: h, Target: target})
	})
	if err != nil {
		return err
	}

	log := observability.LoggerFromContext(ctx)
	log.Info().Str("session_id", string(h)).Str("appointment_id", appointmentID).Msg("booking completed")
	return nil
}

// EndConversation closes the session: the channel is unbound, every timer is
// cancelled, and the final snapshot is archived in the registry.
func (o *Orchestrator) EndConversation(ctx context.Context, h domain.SessionID) error {
	var ok bool
	if err := o.call(ctx, func() {
		if o.state.CurrentID() != h || h == "" {
			return
		}
		ok = true
		o.teardown()
		o.state.End(ctx, h)
		o.publish(Event{Kind: EventSessionEnded, SessionID: h})
	}); err != nil {
		return err
	}
	if !ok {
		return domain.ErrNoActiveSession
	}

	log := observability.LoggerFromContext(ctx)
	log.Info().Str("session_id", string(h)).Msg("conversation ended")
	return nil
}

// Snapshot returns the live view of h, which must be the current session.
func (o *Orchestrator) Snapshot(ctx context.Context, h domain.SessionID) (View, error) {
	var (
		view View
		ok   bool
	)
	if err := o.call(ctx, func() {
		view, ok = o.view(h)
	}); err != nil {
		return View{}, err
	}
	if !ok {
		return View{}, domain.ErrNoActiveSession
	}
	return view, nil
}

func (o *Orchestrator) Current(ctx context.Context) (View, error) {
	var (
		view View
		ok   bool
	)
	if err := o.call(ctx, func() {
		view, ok = o.view(o.state.CurrentID())
	}); err != nil {
		return View{}, err
	}
	if !ok {
		return View{}, domain.ErrNoActiveSession
	}
	return view, nil
}

// Lookup returns any session the process created, live or archived.
func (o *Orchestrator) Lookup(ctx context.Context, id domain.SessionID) (domain.Session, error) {
	var (
		session domain.Session
		lookErr error
	)
	if err := o.call(ctx, func() {
		session, lookErr = o.state.Lookup(ctx, id)
	}); err != nil {
		return domain.Session{}, err
	}
	return session, lookErr
}

// History lists sessions newest first.
func (o *Orchestrator) History(ctx context.Context, limit int) ([]domain.Session, error) {
	var (
		sessions []domain.Session
		histErr  error
	)
	if err := o.call(ctx, func() {
		sessions, histErr = o.state.History(ctx, limit)
	}); err != nil {
		return nil, err
	}
	return sessions, histErr
}

func (o *Orchestrator) view(h domain.SessionID) (View, bool) {
	snap, ok := o.state.Snapshot(h)
	if !ok {
		return View{}, false
	}
	v := View{
		Session:         snap,
		EmergencyBanner: snap.EmergencyBanner(),
		AIHelpOffered:   o.offerPending,
	}
	if o.topicsShown {
		v.TopicSuggestions = append([]string(nil), o.script.Topics...)
	}
	return v, true
}
