package repository

import (
	"context"
	"errors"
	"time"

	"fightlog/internal/domain"
)

// AddSession validates and stores a training session.
func (r *Repository) AddSession(ctx context.Context, s domain.TrainingSession) (domain.TrainingSession, error) {
	if err := validateSession(s); err != nil {
		return domain.TrainingSession{}, err
	}
	s.ID = domain.NewID()

	rec, err := sessionCodec.encode(s)
	if err != nil {
		return domain.TrainingSession{}, err
	}

	mu := r.lock(domain.CollectionSessions)
	mu.Lock()
	defer mu.Unlock()
	if err := r.put(ctx, rec); err != nil {
		return domain.TrainingSession{}, err
	}
	return s, nil
}

// DeleteSession hard-removes a session.
func (r *Repository) DeleteSession(ctx context.Context, id string) error {
	mu := r.lock(domain.CollectionSessions)
	mu.Lock()
	defer mu.Unlock()
	return r.delete(ctx, domain.CollectionSessions, id)
}

// AllSessions returns sessions at or after since, oldest first.
func (r *Repository) AllSessions(ctx context.Context, since time.Time) ([]domain.TrainingSession, error) {
	out, err := listAll(ctx, r, sessionCodec, since)
	if err != nil && !errors.Is(err, domain.ErrSchema) {
		return nil, err
	}
	sortByTime(out,
		func(s domain.TrainingSession) time.Time { return s.Timestamp },
		func(s domain.TrainingSession) string { return s.ID },
	)
	return out, err
}
