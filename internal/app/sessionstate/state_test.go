package sessionstate_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/PabloGalante/farum-sos/internal/adapters/storage/memory"
	"github.com/PabloGalante/farum-sos/internal/app/sessionstate"
	"github.com/PabloGalante/farum-sos/internal/domain"
)

type StateSuite struct {
	suite.Suite
	ctx      context.Context
	now      time.Time
	registry *memory.SessionStore
	state    *sessionstate.State
}

func (s *StateSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	s.registry = memory.NewSessionStore()
	s.state = sessionstate.New(s.registry, func() time.Time { return s.now })
}

func TestStateSuite(t *testing.T) {
	suite.Run(t, new(StateSuite))
}

func (s *StateSuite) TestCreateStartsEmptyAndCurrent() {
	h := s.state.Create(s.ctx)
	s.Equal(h, s.state.CurrentID())

	snap, ok := s.state.Snapshot(h)
	s.Require().True(ok)
	s.Empty(snap.Messages)
	s.Zero(snap.WaitTime)
	s.False(snap.IsConnected)
	s.False(snap.InVideoCall)
	s.Equal(s.now, snap.CreatedAt)
	s.Zero(snap.MoodLevel)
	s.Empty(snap.RiskLevel)
	s.False(snap.EmergencyBanner())

	registered, err := s.registry.GetSession(s.ctx, h)
	s.Require().NoError(err)
	s.Equal(h, registered.ID)
}

func (s *StateSuite) TestMutationsWithoutCurrentSessionAreNoOps() {
	s.False(s.state.SetMood("nope", 3))
	s.False(s.state.SetRisk("nope", domain.RiskHigh))
	s.False(s.state.SetConnectionStatus("nope", true))
	s.False(s.state.SetVideoCallStatus("nope", true))
	_, ok := s.state.AppendMessage("nope", "hi", domain.SenderUser)
	s.False(ok)
	_, ok = s.state.IncrementWaitTime("nope")
	s.False(ok)
	s.False(s.state.End(s.ctx, "nope"))
	s.Empty(s.state.CurrentID())
}

func (s *StateSuite) TestStaleHandleDoesNotTouchNewSession() {
	old := s.state.Create(s.ctx)
	h := s.state.Create(s.ctx)

	s.False(s.state.SetMood(old, 2))
	snap, _ := s.state.Snapshot(h)
	s.Zero(snap.MoodLevel)
}

func (s *StateSuite) TestMoodIsImmutableOnceRecorded() {
	h := s.state.Create(s.ctx)
	s.True(s.state.SetMood(h, 2))
	s.False(s.state.SetMood(h, 5))
	s.False(s.state.SetMood(h, 9))

	snap, _ := s.state.Snapshot(h)
	s.Equal(domain.MoodLevel(2), snap.MoodLevel)
}

func (s *StateSuite) TestRiskOverride() {
	h := s.state.Create(s.ctx)
	s.True(s.state.SetRisk(h, domain.RiskLow))
	s.True(s.state.SetRisk(h, domain.RiskMedium))
	s.False(s.state.SetRisk(h, "severe"))

	snap, _ := s.state.Snapshot(h)
	s.Equal(domain.RiskMedium, snap.RiskLevel)
}

func (s *StateSuite) TestWaitTimeFreezesWhileConnected() {
	h := s.state.Create(s.ctx)
	for range 3 {
		s.state.IncrementWaitTime(h)
	}
	s.True(s.state.SetConnectionStatus(h, true))
	_, ok := s.state.IncrementWaitTime(h)
	s.False(ok)

	snap, _ := s.state.Snapshot(h)
	s.Equal(3, snap.WaitTime)

	s.True(s.state.SetConnectionStatus(h, false))
	n, ok := s.state.IncrementWaitTime(h)
	s.True(ok)
	s.Equal(4, n, "reconnecting freezes, it does not reset")
}

func (s *StateSuite) TestMessagesAndReceipts() {
	h := s.state.Create(s.ctx)
	ai, ok := s.state.AppendMessage(h, "hello", domain.SenderAI)
	s.Require().True(ok)
	_, ok = s.state.AppendMessage(h, "hi", domain.SenderUser)
	s.Require().True(ok)

	s.Equal(2, s.state.MessageCount(h))
	s.Equal([]domain.MessageID{ai.ID}, s.state.UnreadIDs(h))
	s.True(s.state.MarkRead(h, ai.ID))
	s.False(s.state.MarkRead(h, ai.ID))
	s.Empty(s.state.UnreadIDs(h))
}

func (s *StateSuite) TestEndKeepsHistory() {
	first := s.state.Create(s.ctx)
	s.state.AppendMessage(first, "bye", domain.SenderUser)
	s.now = s.now.Add(time.Minute)
	s.True(s.state.End(s.ctx, first))
	s.Empty(s.state.CurrentID())

	s.now = s.now.Add(time.Minute)
	second := s.state.Create(s.ctx)

	history, err := s.state.History(s.ctx, 0)
	s.Require().NoError(err)
	s.Require().Len(history, 2)
	s.Equal(second, history[0].ID)
	s.Equal(first, history[1].ID)
	s.True(history[1].Ended())
	s.Len(history[1].Messages, 1)

	got, err := s.state.Lookup(s.ctx, first)
	s.Require().NoError(err)
	s.Equal(first, got.ID)
}
