package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type SessionID string
type MessageID string

// Sender identifies who wrote a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

// MoodLevel is the self-reported mood, 1 (worst) to 5 (best). Zero means not recorded.
type MoodLevel int

const (
	MoodMin MoodLevel = 1
	MoodMax MoodLevel = 5
)

func (m MoodLevel) Valid() bool {
	return m >= MoodMin && m <= MoodMax
}

// RiskLevel is the triage signal derived from the mood. Empty means not assessed.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// RiskForMood is the fixed triage mapping applied once at mood submission.
func RiskForMood(m MoodLevel) (RiskLevel, error) {
	switch {
	case m == 1:
		return RiskHigh, nil
	case m == 2:
		return RiskMedium, nil
	case m >= 3 && m <= 5:
		return RiskLow, nil
	default:
		return "", fmt.Errorf("%w: %d", ErrInvalidMood, m)
	}
}

type Timestamp = time.Time

// NewSessionID returns a unique session id. UUIDv7 carries a millisecond
// timestamp plus random bits, so ids created in the same millisecond differ.
func NewSessionID() SessionID {
	return SessionID("session-" + newUUID())
}

func NewMessageID() MessageID {
	return MessageID("msg-" + newUUID())
}

func newUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func NewFeedbackID() FeedbackID {
	return FeedbackID("fb-" + newUUID())
}
