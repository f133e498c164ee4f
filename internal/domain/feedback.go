package domain

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"
)

type FeedbackID string

const (
	NPSMin           = 0
	NPSMax           = 10
	RatingMax        = 5
	MaxCommentLength = 140
)

// Feedback is the survey a user fills in after ending a conversation.
type Feedback struct {
	ID        FeedbackID `json:"id"`
	SessionID SessionID  `json:"session_id"`

	// NPS is required, 0-10.
	NPS int `json:"nps"`
	// Rating is optional (0 = not given), otherwise 1-5 stars.
	Rating  int    `json:"rating,omitempty"`
	Comment string `json:"comment,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func (f Feedback) Validate() error {
	if f.SessionID == "" {
		return fmt.Errorf("%w: session id is required", ErrInvalidFeedback)
	}
	if f.NPS < NPSMin || f.NPS > NPSMax {
		return fmt.Errorf("%w: nps must be between %d and %d", ErrInvalidFeedback, NPSMin, NPSMax)
	}
	if f.Rating < 0 || f.Rating > RatingMax {
		return fmt.Errorf("%w: rating must be between 1 and %d", ErrInvalidFeedback, RatingMax)
	}
	if utf8.RuneCountInString(f.Comment) > MaxCommentLength {
		return fmt.Errorf("%w: comment exceeds %d characters", ErrInvalidFeedback, MaxCommentLength)
	}
	return nil
}

// FeedbackStore defines the minimum operations to persist survey answers.
type FeedbackStore interface {
	AppendFeedback(ctx context.Context, f Feedback) error
	ListFeedbackBySession(ctx context.Context, sessionID SessionID) ([]Feedback, error)
}
