package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"fightlog/internal/adapter/memory"
	"fightlog/internal/domain"
	"fightlog/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/multierr"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func ptr[T any](v T) *T { return &v }

func newTestRepo(t *testing.T, opts ...Option) (*Repository, *memory.Store) {
	t.Helper()
	store := memory.New(memory.Options{})
	log, _ := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	return New(store, log, opts...), store
}

func day(d int) time.Time {
	return time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC).AddDate(0, 0, d)
}

func TestMeasurements_SortedAndFiltered(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	for _, d := range []int{4, 0, 2} {
		_, err := repo.AddMeasurement(ctx, domain.Measurement{Timestamp: day(d), Weight: 80 - float64(d)/10})
		require.NoError(t, err)
	}

	all, err := repo.AllMeasurements(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].Timestamp.Equal(day(0)))
	assert.True(t, all[1].Timestamp.Equal(day(2)))
	assert.True(t, all[2].Timestamp.Equal(day(4)))
	for _, m := range all {
		assert.NotEmpty(t, m.ID)
		assert.Equal(t, 1, m.Revision)
	}

	recent, err := repo.AllMeasurements(ctx, day(2))
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	latest, err := repo.LatestMeasurement(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.True(t, latest.Timestamp.Equal(day(4)))
}

func TestMeasurements_SameTimestampOrderedByID(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	first, err := repo.AddMeasurement(ctx, domain.Measurement{Timestamp: day(1), Weight: 80})
	require.NoError(t, err)
	second, err := repo.AddMeasurement(ctx, domain.Measurement{Timestamp: day(1), Weight: 79})
	require.NoError(t, err)

	all, err := repo.AllMeasurements(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Less(t, all[0].ID, all[1].ID)
	assert.ElementsMatch(t, []string{first.ID, second.ID}, []string{all[0].ID, all[1].ID})
}

func TestAddMeasurement_Validation(t *testing.T) {
	repo, store := newTestRepo(t)
	ctx := context.Background()

	cases := map[string]domain.Measurement{
		"zero weight":     {Timestamp: day(0), Weight: 0},
		"negative weight": {Timestamp: day(0), Weight: -3},
		"huge weight":     {Timestamp: day(0), Weight: 600},
		"no timestamp":    {Weight: 80},
		"body fat > 100":  {Timestamp: day(0), Weight: 80, BodyFatPct: ptr(120.0)},
		"visceral fat":    {Timestamp: day(0), Weight: 80, VisceralFat: ptr(75.0)},
	}
	for name, m := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := repo.AddMeasurement(ctx, m)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
	assert.Zero(t, store.Used(), "rejected input must not reach the store")
}

func TestAddMeasurement_Derived(t *testing.T) {
	repo, _ := newTestRepo(t)

	m, err := repo.AddMeasurement(context.Background(), domain.Measurement{
		Timestamp:  day(0),
		Weight:     80,
		BodyFatPct: ptr(20.0),
		WaterPct:   ptr(55.0),
	})
	require.NoError(t, err)
	require.NotNil(t, m.Derived)
	assert.InDelta(t, 16.0, *m.Derived.FatMassKg, 1e-9)
	assert.InDelta(t, 64.0, *m.Derived.LeanMassKg, 1e-9)
	assert.InDelta(t, 44.0, *m.Derived.WaterKg, 1e-9)
}

func TestEditAndDeleteMeasurement(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	m, err := repo.AddMeasurement(ctx, domain.Measurement{Timestamp: day(0), Weight: 80})
	require.NoError(t, err)

	m.Weight = 79.5
	edited, err := repo.EditMeasurement(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, m.ID, edited.ID)
	assert.Equal(t, 2, edited.Revision)

	all, err := repo.AllMeasurements(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 79.5, all[0].Weight)

	_, err = repo.EditMeasurement(ctx, domain.Measurement{ID: "missing", Timestamp: day(0), Weight: 80})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, repo.DeleteMeasurement(ctx, m.ID))
	assert.ErrorIs(t, repo.DeleteMeasurement(ctx, m.ID), domain.ErrNotFound)

	latest, err := repo.LatestMeasurement(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestLegacyMeasurement_MigratedAndRewritten(t *testing.T) {
	mgr := metrics.NewTestManager()
	repo, store := newTestRepo(t, WithObserver(mgr))
	ctx := context.Background()

	_, err := store.Put(ctx, domain.Record{
		Collection:    domain.CollectionMeasurements,
		ID:            "legacy-1",
		SchemaVersion: 1,
		Timestamp:     time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Payload:       []byte(`{"weight":82.5,"fat_percent":18,"visceral_fat":7,"date":"2024-01-02"}`),
	})
	require.NoError(t, err)

	all, err := repo.AllMeasurements(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	m := all[0]
	assert.Equal(t, "legacy-1", m.ID)
	assert.Equal(t, 82.5, m.Weight)
	assert.Equal(t, 18.0, *m.BodyFatPct)
	assert.Equal(t, 7.0, *m.VisceralFat)
	assert.True(t, m.Timestamp.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)))
	require.NotNil(t, m.Derived)

	rec, err := store.Get(ctx, domain.CollectionMeasurements, "legacy-1")
	require.NoError(t, err)
	assert.Equal(t, MeasurementVersion, rec.SchemaVersion)
	assert.Equal(t, 1.0, testutil.ToFloat64(mgr.CounterMigrations.WithLabelValues(domain.CollectionMeasurements)))

	// second read decodes the current shape with identical values
	again, err := repo.AllMeasurements(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, m.Weight, again[0].Weight)
	assert.Equal(t, 1.0, testutil.ToFloat64(mgr.CounterMigrations.WithLabelValues(domain.CollectionMeasurements)))
}

func TestLegacySession_Migrated(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	repo, store := newTestRepo(t, WithLocation(loc))
	ctx := context.Background()

	_, err := store.Put(ctx, domain.Record{
		Collection:    domain.CollectionSessions,
		ID:            "s-legacy",
		SchemaVersion: 1,
		Timestamp:     time.Date(2024, 3, 5, 17, 30, 0, 0, time.UTC),
		Payload:       []byte(`{"sport":"jjb","date":"2024-03-05","start_time":"18:30","duration_minutes":90}`),
	})
	require.NoError(t, err)

	all, err := repo.AllSessions(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "jjb", all[0].SportType)
	assert.Equal(t, 90, *all[0].DurationMinutes)
	assert.True(t, all[0].Timestamp.Equal(time.Date(2024, 3, 5, 18, 30, 0, 0, loc)))
}

func TestUnknownSchemaVersion_Skipped(t *testing.T) {
	mgr := metrics.NewTestManager()
	repo, store := newTestRepo(t, WithObserver(mgr))
	ctx := context.Background()

	good, err := repo.AddSession(ctx, domain.TrainingSession{Timestamp: day(0), SportType: "boxing"})
	require.NoError(t, err)
	_, err = store.Put(ctx, domain.Record{Collection: domain.CollectionSessions, ID: "future", SchemaVersion: 9, Timestamp: day(1), Payload: []byte(`{}`)})
	require.NoError(t, err)
	_, err = store.Put(ctx, domain.Record{Collection: domain.CollectionSessions, ID: "garbage", SchemaVersion: SessionVersion, Timestamp: day(2), Payload: []byte(`not json`)})
	require.NoError(t, err)

	all, err := repo.AllSessions(ctx, time.Time{})
	require.Error(t, err)
	assert.True(t, IsSchemaOnly(err))
	assert.Len(t, multierr.Errors(err), 2)

	var schemaErr *domain.SchemaError
	require.True(t, errors.As(err, &schemaErr))
	require.Len(t, all, 1)
	assert.Equal(t, good.ID, all[0].ID)
	assert.Equal(t, 2.0, testutil.ToFloat64(mgr.CounterSchemaErrors.WithLabelValues(domain.CollectionSessions)))

	assert.False(t, IsSchemaOnly(nil))
	assert.False(t, IsSchemaOnly(multierr.Append(err, errors.New("io"))))
}

func TestSessions_AddDelete(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.AddSession(ctx, domain.TrainingSession{Timestamp: day(0)})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = repo.AddSession(ctx, domain.TrainingSession{Timestamp: day(0), SportType: "mma", DurationMinutes: ptr(-5)})
	assert.ErrorIs(t, err, domain.ErrValidation)

	s, err := repo.AddSession(ctx, domain.TrainingSession{Timestamp: day(0), SportType: "mma", DurationMinutes: ptr(60), Notes: "sparring"})
	require.NoError(t, err)
	require.NoError(t, repo.DeleteSession(ctx, s.ID))

	all, err := repo.AllSessions(ctx, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestProfile_CreateAndPatch(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	repo, _ := newTestRepo(t, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	p, err := repo.Profile(ctx)
	require.NoError(t, err)
	assert.Nil(t, p)

	created, err := repo.UpdateProfile(ctx, domain.ProfilePatch{Username: ptr("Yuki"), TargetWeight: ptr(72.0)})
	require.NoError(t, err)
	assert.Equal(t, "Yuki", created.Username)
	assert.Equal(t, domain.UnitKg, created.Unit)
	assert.True(t, created.CreatedAt.Equal(now))

	now = now.Add(time.Hour)
	cut := domain.PhaseCut
	updated, err := repo.UpdateProfile(ctx, domain.ProfilePatch{Phase: &cut, WeeklyRate: ptr(0.5)})
	require.NoError(t, err)
	assert.Equal(t, "Yuki", updated.Username)
	assert.Equal(t, 72.0, *updated.Goals.TargetWeight)
	assert.Equal(t, domain.PhaseCut, updated.Goals.Phase)
	assert.True(t, updated.CreatedAt.Before(updated.UpdatedAt))

	_, err = repo.UpdateProfile(ctx, domain.ProfilePatch{Unit: ptr("stone")})
	assert.ErrorIs(t, err, domain.ErrValidation)

	stored, err := repo.Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.UnitKg, stored.Unit)
}

func TestProfile_LegacyMigrated(t *testing.T) {
	repo, store := newTestRepo(t)
	ctx := context.Background()

	_, err := store.Put(ctx, domain.Record{
		Collection:    domain.CollectionProfile,
		ID:            "profile",
		SchemaVersion: 1,
		Timestamp:     day(0),
		Payload:       []byte(`{"name":"Kenji","target_weight":70,"weight_goal":"lose","start_date":"2026-03-01","avatar_gender":"homme"}`),
	})
	require.NoError(t, err)

	p, err := repo.Profile(ctx)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Kenji", p.Username)
	assert.Equal(t, domain.PhaseCut, p.Goals.Phase)
	require.NotNil(t, p.Goals.PhaseStart)
	assert.True(t, p.Goals.PhaseStart.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)))

	rec, err := store.Get(ctx, domain.CollectionProfile, "profile")
	require.NoError(t, err)
	assert.Equal(t, ProfileVersion, rec.SchemaVersion)
}

func TestRecordUnlocks_Idempotent(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	first := day(0)

	require.NoError(t, repo.RecordUnlocks(ctx, []domain.Unlock{
		{ID: "streak_3", Category: domain.CategoryBadge, UnlockedAt: first},
		{ID: "first_session", Category: domain.CategoryBadge, UnlockedAt: first},
	}))
	require.NoError(t, repo.RecordUnlocks(ctx, []domain.Unlock{
		{ID: "streak_3", Category: domain.CategoryBadge, UnlockedAt: day(5)},
	}))

	all, err := repo.Unlocks(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, u := range all {
		assert.True(t, u.UnlockedAt.Equal(first), "unlock time of %s must not move", u.ID)
	}
}

func TestRecordUnlocks_AllOrNothing(t *testing.T) {
	probe, err := unlockCodec.encode(domain.Unlock{ID: "quest_a", Category: domain.CategoryQuest, UnlockedAt: day(0)})
	require.NoError(t, err)

	store := memory.New(memory.Options{MaxBytes: probe.Size() + probe.Size()/2})
	log, _ := test.NewNullLogger()
	repo := New(store, log)
	ctx := context.Background()

	err = repo.RecordUnlocks(ctx, []domain.Unlock{
		{ID: "quest_a", Category: domain.CategoryQuest, UnlockedAt: day(0)},
		{ID: "quest_b", Category: domain.CategoryQuest, UnlockedAt: day(0)},
	})
	require.ErrorIs(t, err, domain.ErrCapacity)

	all, err := repo.Unlocks(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestDismissals(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	w := domain.PlateauWindow{Metric: domain.MetricWeight, Start: day(0), End: day(14)}

	_, err := repo.AddDismissal(ctx, domain.PlateauDismissal{Window: w})
	require.NoError(t, err)
	_, err = repo.AddDismissal(ctx, domain.PlateauDismissal{Window: w})
	require.NoError(t, err)
	_, err = repo.AddDismissal(ctx, domain.PlateauDismissal{Window: domain.PlateauWindow{Metric: "height", Start: day(0), End: day(1)}})
	assert.ErrorIs(t, err, domain.ErrValidation)

	all, err := repo.Dismissals(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].Window.Equal(w))
	assert.False(t, all[0].DismissedAt.IsZero())
}
