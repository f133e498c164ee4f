package firestore

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/PabloGalante/farum-sos/internal/domain"
)

func TestSessionDocRoundTripKeepsLog(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	session := domain.Session{
		ID:          "session-1",
		RemoteID:    "remote-1",
		MoodLevel:   2,
		RiskLevel:   domain.RiskMedium,
		WaitTime:    42,
		IsConnected: true,
		CreatedAt:   now,
		EndedAt:     now.Add(time.Minute),
	}
	session.Messages.Append(session.ID, "hello", domain.SenderAI, now)
	session.Messages.Append(session.ID, "hi", domain.SenderUser, now)
	session.Messages.MarkRead(session.Messages[0].ID)

	got := toSessionDoc(session).toDomain(session.ID)
	assert.Equal(t, session, got)
}

func TestNotFoundRecognisesGRPCStatus(t *testing.T) {
	assert.True(t, notFound(status.Error(codes.NotFound, "missing")))
	assert.False(t, notFound(status.Error(codes.Unavailable, "down")))
	assert.False(t, notFound(errors.New("plain")))
}
