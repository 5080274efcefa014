package repository

import (
	"context"
	"errors"

	"fightlog/internal/domain"
)

// Profile returns the profile singleton, or nil when none was saved yet.
// A legacy profile is migrated and rewritten.
func (r *Repository) Profile(ctx context.Context) (*domain.Profile, error) {
	mu := r.lock(domain.CollectionProfile)
	mu.RLock()
	rec, err := r.store.Get(ctx, domain.CollectionProfile, profileID)
	mu.RUnlock()
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	p, migrated, err := profileCodec.decode(rec, r.loc)
	if err != nil {
		r.obs.ObserveSchemaError(domain.CollectionProfile)
		return nil, err
	}
	if migrated {
		rewrite(ctx, r, profileCodec, []migration[domain.Profile]{{from: rec.SchemaVersion, id: profileID, value: p}})
	}
	return &p, nil
}

// UpdateProfile applies patch to the stored profile, creating it when absent.
func (r *Repository) UpdateProfile(ctx context.Context, patch domain.ProfilePatch) (domain.Profile, error) {
	// Resolve legacy shapes before taking the write lock.
	cur, err := r.Profile(ctx)
	if err != nil {
		return domain.Profile{}, err
	}

	mu := r.lock(domain.CollectionProfile)
	mu.Lock()
	defer mu.Unlock()

	now := r.now()
	p := domain.Profile{Unit: domain.UnitKg, CreatedAt: now}
	if rec, err := r.store.Get(ctx, domain.CollectionProfile, profileID); err == nil {
		if latest, _, err := profileCodec.decode(rec, r.loc); err == nil {
			p = latest
		}
	} else if cur != nil {
		p = *cur
	}

	patch.Apply(&p)
	if p.Unit == "" {
		p.Unit = domain.UnitKg
	}
	if err := validateProfile(p); err != nil {
		return domain.Profile{}, err
	}
	p.UpdatedAt = now

	rec, err := profileCodec.encode(p)
	if err != nil {
		return domain.Profile{}, err
	}
	if err := r.put(ctx, rec); err != nil {
		return domain.Profile{}, err
	}
	return p, nil
}
