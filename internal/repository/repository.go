// Package repository maps storage records to domain entities. It owns schema
// versions, migrates legacy payloads on read, validates input and serializes
// writers per collection.
package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"fightlog/internal/domain"

	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

// Observer receives storage outcomes. metrics.Manager implements it.
type Observer interface {
	ObserveWrite(collection string, err error)
	ObserveSchemaError(collection string)
	ObserveMigration(collection string)
}

type nopObserver struct{}

func (nopObserver) ObserveWrite(string, error) {}
func (nopObserver) ObserveSchemaError(string)  {}
func (nopObserver) ObserveMigration(string)    {}

// Repository implements the domain repository ports on top of a domain.Store.
type Repository struct {
	store domain.Store
	log   logrus.FieldLogger
	obs   Observer
	loc   *time.Location
	now   func() time.Time
	locks map[string]*sync.RWMutex
}

// Option configures a Repository.
type Option func(*Repository)

// WithObserver reports write outcomes and schema problems to o.
func WithObserver(o Observer) Option {
	return func(r *Repository) {
		if o != nil {
			r.obs = o
		}
	}
}

// WithLocation sets the location legacy date-only strings are parsed in.
func WithLocation(loc *time.Location) Option {
	return func(r *Repository) {
		if loc != nil {
			r.loc = loc
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		if now != nil {
			r.now = now
		}
	}
}

// Ensure interfaces are met.
var (
	_ domain.MeasurementRepository = (*Repository)(nil)
	_ domain.SessionRepository     = (*Repository)(nil)
	_ domain.ProfileRepository     = (*Repository)(nil)
	_ domain.UnlockRepository      = (*Repository)(nil)
	_ domain.DismissalRepository   = (*Repository)(nil)
)

// New creates a Repository over store.
func New(store domain.Store, log logrus.FieldLogger, opts ...Option) *Repository {
	r := &Repository{
		store: store,
		log:   log,
		obs:   nopObserver{},
		loc:   time.UTC,
		now:   time.Now,
		locks: make(map[string]*sync.RWMutex, len(domain.Collections)),
	}
	for _, c := range domain.Collections {
		r.locks[c] = &sync.RWMutex{}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Repository) lock(coll string) *sync.RWMutex {
	return r.locks[coll]
}

func (r *Repository) put(ctx context.Context, rec domain.Record) error {
	_, err := r.store.Put(ctx, rec)
	r.obs.ObserveWrite(rec.Collection, err)
	if err != nil {
		return fmt.Errorf("put %s: %w", rec.Collection, err)
	}
	return nil
}

func (r *Repository) delete(ctx context.Context, coll, id string) error {
	err := r.store.Delete(ctx, coll, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrNotFound
	}
	r.obs.ObserveWrite(coll, err)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", coll, id, err)
	}
	return nil
}

// listAll decodes every record of a collection. Records without a migration
// path are skipped and reported as a combined error next to the decoded
// values. Legacy records are rewritten at the current version before
// listAll returns.
func listAll[T any](ctx context.Context, r *Repository, c codec[T], since time.Time) ([]T, error) {
	mu := r.lock(c.collection)
	mu.RLock()
	recs, err := r.store.List(ctx, c.collection, domain.ListFilter{Since: since, OrderByTimestamp: true})
	if err != nil {
		mu.RUnlock()
		return nil, fmt.Errorf("list %s: %w", c.collection, err)
	}

	var (
		out       = make([]T, 0, len(recs))
		schemaErr error
		legacy    []migration[T]
	)
	for _, rec := range recs {
		v, migrated, err := c.decode(rec, r.loc)
		if err != nil {
			r.obs.ObserveSchemaError(c.collection)
			r.log.WithError(err).WithField("collection", c.collection).Warn("skipping unreadable record")
			schemaErr = multierr.Append(schemaErr, err)
			continue
		}
		if migrated {
			legacy = append(legacy, migration[T]{from: rec.SchemaVersion, id: rec.ID, value: v})
		}
		out = append(out, v)
	}
	mu.RUnlock()

	if len(legacy) > 0 {
		rewrite(ctx, r, c, legacy)
	}
	return out, schemaErr
}

type migration[T any] struct {
	from  int
	id    string
	value T
}

// rewrite stores migrated values at the current version. A record changed
// by a writer since it was read is left alone. Failures are logged; the
// legacy record stays readable and is migrated again on the next read.
func rewrite[T any](ctx context.Context, r *Repository, c codec[T], legacy []migration[T]) {
	mu := r.lock(c.collection)
	mu.Lock()
	defer mu.Unlock()

	for _, m := range legacy {
		log := r.log.WithFields(logrus.Fields{"collection": c.collection, "id": m.id, "from": m.from, "to": c.version})
		cur, err := r.store.Get(ctx, c.collection, m.id)
		if err != nil || cur.SchemaVersion != m.from {
			continue
		}
		rec, err := c.encode(m.value)
		if err != nil {
			log.WithError(err).Warn("encode migrated record")
			continue
		}
		rec.ID = m.id
		if err := r.put(ctx, rec); err != nil {
			log.WithError(err).Warn("rewrite migrated record")
			continue
		}
		r.obs.ObserveMigration(c.collection)
		log.Debug("migrated record")
	}
}

// IsSchemaOnly reports whether every error combined in err is a schema
// error, meaning the accompanying result is usable.
func IsSchemaOnly(err error) bool {
	if err == nil {
		return false
	}
	for _, e := range multierr.Errors(err) {
		if !errors.Is(e, domain.ErrSchema) {
			return false
		}
	}
	return true
}

func sortByTime[T any](items []T, ts func(T) time.Time, id func(T) string) {
	sort.SliceStable(items, func(i, j int) bool {
		ti, tj := ts(items[i]), ts(items[j])
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return id(items[i]) < id(items[j])
	})
}
