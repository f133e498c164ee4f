package domain

import "errors"

var (
	// ErrSubmissionFailed means the initial mood/risk request failed.
	ErrSubmissionFailed = errors.New("check-in submission failed")
	// ErrSendFailed means a chat message round trip failed.
	ErrSendFailed = errors.New("message send failed")
	// ErrNoActiveSession means the handle does not refer to the current session.
	ErrNoActiveSession = errors.New("no active session")

	ErrSessionNotFound     = errors.New("session not found")
	ErrInvalidMood         = errors.New("mood level must be between 1 and 5")
	ErrEmptyMessage        = errors.New("message text is empty")
	ErrInvalidFeedback     = errors.New("invalid feedback")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrAppointmentBooked   = errors.New("appointment already booked")
)
