package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fightlog/internal/domain"
)

// Unlocks returns every persisted unlock, oldest first.
func (r *Repository) Unlocks(ctx context.Context) ([]domain.Unlock, error) {
	out, err := listAll(ctx, r, unlockCodec, time.Time{})
	if err != nil && !errors.Is(err, domain.ErrSchema) {
		return nil, err
	}
	sortByTime(out,
		func(u domain.Unlock) time.Time { return u.UnlockedAt },
		func(u domain.Unlock) string { return u.ID },
	)
	return out, err
}

// RecordUnlocks persists unlocks in one batch: all of them or none. Ids that
// are already unlocked keep their original unlock time.
func (r *Repository) RecordUnlocks(ctx context.Context, unlocks []domain.Unlock) error {
	if len(unlocks) == 0 {
		return nil
	}

	mu := r.lock(domain.CollectionUnlocks)
	mu.Lock()
	defer mu.Unlock()

	recs := make([]domain.Record, 0, len(unlocks))
	seen := make(map[string]bool, len(unlocks))
	for _, u := range unlocks {
		if u.ID == "" {
			return domain.Invalid("unlock id is required")
		}
		if seen[u.ID] {
			continue
		}
		seen[u.ID] = true
		if _, err := r.store.Get(ctx, domain.CollectionUnlocks, u.ID); err == nil {
			continue
		} else if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("record unlocks: %w", err)
		}
		rec, err := unlockCodec.encode(u)
		if err != nil {
			return err
		}
		recs = append(recs, rec)
	}
	if len(recs) == 0 {
		return nil
	}

	_, err := r.store.PutAll(ctx, recs)
	r.obs.ObserveWrite(domain.CollectionUnlocks, err)
	if err != nil {
		return fmt.Errorf("record unlocks: %w", err)
	}
	return nil
}

// AddDismissal stores a plateau dismissal. Dismissing the same window again
// only refreshes DismissedAt.
func (r *Repository) AddDismissal(ctx context.Context, d domain.PlateauDismissal) (domain.PlateauDismissal, error) {
	if err := validateWindow(d.Window); err != nil {
		return domain.PlateauDismissal{}, err
	}
	if d.DismissedAt.IsZero() {
		d.DismissedAt = r.now()
	}
	rec, err := dismissalCodec.encode(d)
	if err != nil {
		return domain.PlateauDismissal{}, err
	}

	mu := r.lock(domain.CollectionPlateauDismissals)
	mu.Lock()
	defer mu.Unlock()
	if err := r.put(ctx, rec); err != nil {
		return domain.PlateauDismissal{}, err
	}
	return d, nil
}

// Dismissals returns every stored plateau dismissal.
func (r *Repository) Dismissals(ctx context.Context) ([]domain.PlateauDismissal, error) {
	out, err := listAll(ctx, r, dismissalCodec, time.Time{})
	if err != nil && !errors.Is(err, domain.ErrSchema) {
		return nil, err
	}
	return out, err
}
