package app

import (
	"context"
	"strings"
	"time"

	"fightlog/internal/domain"

	"github.com/sirupsen/logrus"
)

// SessionInput is a training session as entered by the user.
type SessionInput struct {
	Timestamp       time.Time
	SportType       string
	DurationMinutes *int
	Notes           string
}

// SessionService encapsulates training session use cases.
type SessionService struct {
	repo domain.SessionRepository
	log  logrus.FieldLogger
	now  func() time.Time
}

// NewSessionService creates a SessionService backed by the given repository.
func NewSessionService(repo domain.SessionRepository, log logrus.FieldLogger) *SessionService {
	return &SessionService{repo: repo, log: log, now: time.Now}
}

// Record stores a training session. A zero timestamp means now.
func (s *SessionService) Record(ctx context.Context, in SessionInput) (domain.TrainingSession, error) {
	sport := strings.ToLower(strings.TrimSpace(in.SportType))
	if sport == "" {
		return domain.TrainingSession{}, domain.Invalid("sport type is required")
	}
	if in.DurationMinutes != nil && (*in.DurationMinutes < 0 || *in.DurationMinutes > 24*60) {
		return domain.TrainingSession{}, domain.Invalid("duration must be within [0, 1440] minutes")
	}
	ts := in.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	return s.repo.AddSession(ctx, domain.TrainingSession{
		Timestamp:       ts,
		SportType:       sport,
		DurationMinutes: in.DurationMinutes,
		Notes:           strings.TrimSpace(in.Notes),
	})
}

// Delete removes the session with the given id.
func (s *SessionService) Delete(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}

// All returns every readable session, oldest first.
func (s *SessionService) All(ctx context.Context) ([]domain.TrainingSession, error) {
	sessions, err := s.repo.AllSessions(ctx, time.Time{})
	return sessions, tolerate(s.log, err)
}

// ListRecent returns the most recent sessions up to limit, newest first.
func (s *SessionService) ListRecent(ctx context.Context, limit int) ([]domain.TrainingSession, error) {
	sessions, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	return newestFirst(sessions, limit), nil
}

// UndoLast deletes the most recent session.
func (s *SessionService) UndoLast(ctx context.Context) (bool, string, error) {
	items, err := s.ListRecent(ctx, 1)
	if err != nil {
		return false, "", err
	}
	if len(items) == 0 {
		return false, "", nil
	}
	if err := s.repo.DeleteSession(ctx, items[0].ID); err != nil {
		return false, "", err
	}
	return true, items[0].ID, nil
}
