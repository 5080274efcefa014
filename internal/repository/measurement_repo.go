package repository

import (
	"context"
	"errors"
	"time"

	"fightlog/internal/domain"
)

// AddMeasurement validates and stores a new measurement. The id is assigned
// here and the derived body composition is computed from the inputs.
func (r *Repository) AddMeasurement(ctx context.Context, m domain.Measurement) (domain.Measurement, error) {
	if err := validateMeasurement(m); err != nil {
		return domain.Measurement{}, err
	}
	m.ID = domain.NewID()
	m.Revision = 1
	m.Derive()

	rec, err := measurementCodec.encode(m)
	if err != nil {
		return domain.Measurement{}, err
	}

	mu := r.lock(domain.CollectionMeasurements)
	mu.Lock()
	defer mu.Unlock()
	if err := r.put(ctx, rec); err != nil {
		return domain.Measurement{}, err
	}
	return m, nil
}

// EditMeasurement replaces an existing measurement, keeping its id and
// bumping its revision.
func (r *Repository) EditMeasurement(ctx context.Context, m domain.Measurement) (domain.Measurement, error) {
	if m.ID == "" {
		return domain.Measurement{}, domain.Invalid("measurement id is required")
	}
	if err := validateMeasurement(m); err != nil {
		return domain.Measurement{}, err
	}

	mu := r.lock(domain.CollectionMeasurements)
	mu.Lock()
	defer mu.Unlock()

	cur, err := r.store.Get(ctx, domain.CollectionMeasurements, m.ID)
	if err != nil {
		return domain.Measurement{}, err
	}
	prev, _, err := measurementCodec.decode(cur, r.loc)
	if err != nil {
		return domain.Measurement{}, err
	}

	m.Revision = prev.Revision + 1
	m.Derive()
	rec, err := measurementCodec.encode(m)
	if err != nil {
		return domain.Measurement{}, err
	}
	if err := r.put(ctx, rec); err != nil {
		return domain.Measurement{}, err
	}
	return m, nil
}

// DeleteMeasurement removes a measurement. Missing ids yield domain.ErrNotFound.
func (r *Repository) DeleteMeasurement(ctx context.Context, id string) error {
	mu := r.lock(domain.CollectionMeasurements)
	mu.Lock()
	defer mu.Unlock()
	return r.delete(ctx, domain.CollectionMeasurements, id)
}

// LatestMeasurement returns the most recent measurement, or nil when there is none.
func (r *Repository) LatestMeasurement(ctx context.Context) (*domain.Measurement, error) {
	all, err := r.AllMeasurements(ctx, time.Time{})
	if err != nil && !IsSchemaOnly(err) {
		return nil, err
	}
	if len(all) == 0 {
		return nil, nil
	}
	latest := all[len(all)-1]
	return &latest, nil
}

// AllMeasurements returns measurements taken at or after since, oldest first.
// The error may combine schema errors for skipped records while the slice
// still holds every readable measurement; see IsSchemaOnly.
func (r *Repository) AllMeasurements(ctx context.Context, since time.Time) ([]domain.Measurement, error) {
	out, err := listAll(ctx, r, measurementCodec, since)
	if err != nil && !errors.Is(err, domain.ErrSchema) {
		return nil, err
	}
	sortByTime(out,
		func(m domain.Measurement) time.Time { return m.Timestamp },
		func(m domain.Measurement) string { return m.ID },
	)
	return out, err
}
