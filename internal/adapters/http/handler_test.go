package httpadapter_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	httpadapter "github.com/PabloGalante/farum-sos/internal/adapters/http"
	"github.com/PabloGalante/farum-sos/internal/adapters/llm"
	"github.com/PabloGalante/farum-sos/internal/adapters/realtime"
	"github.com/PabloGalante/farum-sos/internal/adapters/storage/memory"
	"github.com/PabloGalante/farum-sos/internal/app/conversation"
	"github.com/PabloGalante/farum-sos/internal/app/feedback"
	"github.com/PabloGalante/farum-sos/internal/app/messaging"
	"github.com/PabloGalante/farum-sos/internal/app/scheduling"
	"github.com/PabloGalante/farum-sos/internal/app/sessionstate"
	"github.com/PabloGalante/farum-sos/internal/app/waittime"
	"github.com/PabloGalante/farum-sos/internal/clock"
	"github.com/PabloGalante/farum-sos/internal/config"
	"github.com/PabloGalante/farum-sos/internal/domain"
)

// failingMessaging rejects every check-in.
type failingMessaging struct{ domain.MessagingService }

func (failingMessaging) SubmitInitialCheckin(context.Context, domain.MoodLevel) (domain.CheckinResult, error) {
	return domain.CheckinResult{}, errors.New("upstream unavailable")
}

type testServer struct {
	*httpadapter.Server
	messaging *messaging.Service
}

func newTestServer(t *testing.T, override domain.MessagingService) testServer {
	t.Helper()

	script := config.DefaultScript()
	clk := clock.NewManual(time.Now())
	sessionStore := memory.NewSessionStore()

	msgSvc := messaging.NewService(llm.NewMockLLM(script.ChatReplies, 0, 1), memory.NewMessageStore(), script.InitialReplies)
	var svc domain.MessagingService = msgSvc
	if override != nil {
		svc = override
	}

	orch := conversation.New(conversation.Deps{
		State:     sessionstate.New(sessionStore, clk.Now),
		Counter:   waittime.New(clk, time.Second),
		Channel:   realtime.NewSimulated(clk, realtime.Options{Candidates: script.InboundCandidates}),
		Messaging: svc,
		Clock:     clk,
	}, conversation.WithScript(script))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = orch.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	srv := httpadapter.NewServer(httpadapter.Deps{
		Conversation: orch,
		Feedback:     feedback.NewService(memory.NewFeedbackStore(), sessionStore),
		Scheduler:    scheduling.NewService(time.Now),
		Preferences:  msgSvc,
	})
	return testServer{Server: srv, messaging: msgSvc}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

type sessionBody struct {
	ID              string     `json:"id"`
	RiskLevel       string     `json:"risk_level"`
	MoodLevel       int        `json:"mood_level"`
	EmergencyBanner bool       `json:"emergency_banner"`
	EndedAt         *time.Time `json:"ended_at"`
	Messages        []struct {
		Sender string `json:"sender"`
		Text   string `json:"text"`
		Read   *bool  `json:"read"`
	} `json:"messages"`
}

type viewBody struct {
	Session sessionBody `json:"session"`
	Current bool        `json:"current"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, nil)

	w := do(t, srv, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected a request id header")
	}
}

func TestCheckinAndSendMessage(t *testing.T) {
	srv := newTestServer(t, nil)

	w := do(t, srv, http.MethodPost, "/checkins", `{"mood":1}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d, body=%s", w.Code, w.Body.String())
	}
	view := decode[viewBody](t, w)
	if view.Session.RiskLevel != "high" || !view.Session.EmergencyBanner {
		t.Fatalf("expected high risk with banner, got %+v", view.Session)
	}
	if len(view.Session.Messages) != 3 {
		t.Fatalf("expected 3 seeded messages, got %d", len(view.Session.Messages))
	}
	if view.Session.Messages[1].Sender != "user" || view.Session.Messages[1].Read != nil {
		t.Fatalf("mood statement should be an unflagged user message: %+v", view.Session.Messages[1])
	}

	w = do(t, srv, http.MethodPost, "/sessions/"+view.Session.ID+"/messages", `{"text":"hello"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d, body=%s", w.Code, w.Body.String())
	}

	w = do(t, srv, http.MethodGet, "/sessions/current", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	current := decode[viewBody](t, w)
	if n := len(current.Session.Messages); n != 4 || current.Session.Messages[3].Text != "hello" {
		t.Fatalf("expected hello as 4th message, got %+v", current.Session.Messages)
	}

	w = do(t, srv, http.MethodPost, "/sessions/"+view.Session.ID+"/messages", `{"text":"  "}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty text, got %d", w.Code)
	}
}

func TestCheckinValidation(t *testing.T) {
	srv := newTestServer(t, nil)

	for _, body := range []string{`{"mood":0}`, `{"mood":6}`, `not json`} {
		w := do(t, srv, http.MethodPost, "/checkins", body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", body, w.Code)
		}
	}

	w := do(t, srv, http.MethodGet, "/sessions/current", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without a session, got %d", w.Code)
	}
}

func TestCheckinFailureEchoesMood(t *testing.T) {
	srv := newTestServer(t, failingMessaging{})

	w := do(t, srv, http.MethodPost, "/checkins", `{"mood":2}`)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
	body := decode[map[string]any](t, w)
	require.Equal(t, float64(2), body["mood"])
	require.NotEmpty(t, body["session_id"])
}

func TestSOSThenEnd(t *testing.T) {
	srv := newTestServer(t, nil)

	w := do(t, srv, http.MethodPost, "/sos", "")
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	view := decode[viewBody](t, w)
	require.Equal(t, "medium", view.Session.RiskLevel)
	require.False(t, view.Session.EmergencyBanner)
	id := view.Session.ID

	w = do(t, srv, http.MethodPut, "/sessions/"+id+"/video-call", `{"active":true}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, srv, http.MethodPost, "/sessions/"+id+"/end", "")
	require.Equal(t, http.StatusOK, w.Code)
	ended := decode[sessionBody](t, w)
	require.NotNil(t, ended.EndedAt)

	w = do(t, srv, http.MethodGet, "/sessions/current", "")
	require.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, srv, http.MethodGet, "/sessions/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	archived := decode[viewBody](t, w)
	require.False(t, archived.Current)
	require.Equal(t, id, archived.Session.ID)

	w = do(t, srv, http.MethodPost, "/sessions/"+id+"/messages", `{"text":"still there?"}`)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, srv, http.MethodGet, "/sessions/unknown", "")
	require.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, srv, http.MethodGet, "/sessions", "")
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Sessions []sessionBody `json:"sessions"`
	}](t, w)
	require.Len(t, list.Sessions, 1)
}

func TestFeedback(t *testing.T) {
	srv := newTestServer(t, nil)

	view := decode[viewBody](t, do(t, srv, http.MethodPost, "/sos", ""))
	id := view.Session.ID
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/sessions/"+id+"/end", "").Code)

	w := do(t, srv, http.MethodPost, "/sessions/"+id+"/feedback", `{"nps":9,"rating":4,"comment":"thanks"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	require.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, "/sessions/"+id+"/feedback", `{"rating":4}`).Code)
	require.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, "/sessions/"+id+"/feedback", `{"nps":11}`).Code)
	require.Equal(t, http.StatusNotFound, do(t, srv, http.MethodPost, "/sessions/nope/feedback", `{"nps":5}`).Code)

	w = do(t, srv, http.MethodGet, "/sessions/"+id+"/feedback", "")
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Feedback []domain.Feedback `json:"feedback"`
	}](t, w)
	require.Len(t, list.Feedback, 1)
	require.Equal(t, 9, list.Feedback[0].NPS)
}

func TestAppointments(t *testing.T) {
	srv := newTestServer(t, nil)

	w := do(t, srv, http.MethodGet, "/appointments?date=2030-01-02", "")
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Appointments []domain.Appointment `json:"appointments"`
	}](t, w)
	require.Len(t, list.Appointments, scheduling.SlotsPerDay)

	id := list.Appointments[0].ID
	w = do(t, srv, http.MethodPost, "/appointments/"+id+"/book", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.True(t, decode[domain.Appointment](t, w).Booked)

	require.Equal(t, http.StatusConflict, do(t, srv, http.MethodPost, "/appointments/"+id+"/book", "").Code)
	require.Equal(t, http.StatusNotFound, do(t, srv, http.MethodPost, "/appointments/apt-bogus/book", "").Code)
	require.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodGet, "/appointments?date=tomorrow", "").Code)
}

func TestDataSharingPreference(t *testing.T) {
	srv := newTestServer(t, nil)

	w := do(t, srv, http.MethodPut, "/preferences/data-sharing", `{"allowed":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, srv.messaging.ShareHistory())

	w = do(t, srv, http.MethodGet, "/preferences/data-sharing", "")
	require.JSONEq(t, `{"allowed":true}`, w.Body.String())

	require.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPut, "/preferences/data-sharing", `{}`).Code)
	require.Equal(t, http.StatusMethodNotAllowed, do(t, srv, http.MethodDelete, "/preferences/data-sharing", "").Code)
}

func TestEventStream(t *testing.T) {
	srv := newTestServer(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go func() { _ = srv.StreamEvents(ctx) }()

	hs := httptest.NewServer(srv)
	defer hs.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, hs.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "event: connected\n", line)

	// The stream forwarder subscribes asynchronously; retry until it is live.
	seen := make(chan string, 1)
	go func() {
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			if strings.HasPrefix(line, "event: session_started") {
				seen <- line
				return
			}
		}
	}()

	for {
		require.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/sos", "").Code)
		select {
		case <-seen:
			return
		case <-time.After(100 * time.Millisecond):
		case <-ctx.Done():
			t.Fatal("no session_started event on the stream")
		}
	}
}
