package domain

import (
	"context"
	"time"
)

// TrainingSession is a single logged training session. Sessions are
// append-only; deletion is a hard remove.
type TrainingSession struct {
	ID              string    `json:"id"`
	Timestamp       time.Time `json:"timestamp"`
	SportType       string    `json:"sportType"`
	DurationMinutes *int      `json:"durationMinutes,omitempty"`
	Notes           string    `json:"notes,omitempty"`
}

// SessionRepository is the port for training session persistence.
type SessionRepository interface {
	AddSession(ctx context.Context, s TrainingSession) (TrainingSession, error)
	DeleteSession(ctx context.Context, id string) error
	AllSessions(ctx context.Context, since time.Time) ([]TrainingSession, error)
}
