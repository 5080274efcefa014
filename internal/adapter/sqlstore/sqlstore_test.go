package sqlstore

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"fightlog/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), Options{
		Driver: DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "fightlog.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), Options{Driver: "mysql", DSN: "x"})
	require.Error(t, err)
}

func TestRebind(t *testing.T) {
	lite := &DB{driver: DriverSQLite}
	pg := &DB{driver: DriverPostgres}
	query := "SELECT 1 FROM records WHERE collection=$1 AND id=$2 LIMIT $3;"

	assert.Equal(t, "SELECT 1 FROM records WHERE collection=? AND id=? LIMIT ?;", lite.q(query))
	assert.Equal(t, query, pg.q(query))
}

func TestDB_PutGetDelete(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	ts := time.Date(2026, 3, 14, 7, 30, 0, 0, time.UTC)

	rec, err := db.Put(ctx, domain.Record{
		Collection:    domain.CollectionMeasurements,
		SchemaVersion: 2,
		Timestamp:     ts,
		Payload:       []byte(`{"weight":81.4}`),
	})
	require.NoError(t, err)
	require.NotEmpty(t, rec.ID)
	assert.EqualValues(t, 1, rec.Seq)

	got, err := db.Get(ctx, domain.CollectionMeasurements, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, 2, got.SchemaVersion)
	assert.True(t, got.Timestamp.Equal(ts))
	assert.JSONEq(t, `{"weight":81.4}`, string(got.Payload))

	// overwrite keeps the sequence
	rec.Payload = []byte(`{"weight":81.0}`)
	again, err := db.Put(ctx, rec)
	require.NoError(t, err)
	assert.EqualValues(t, 1, again.Seq)

	require.NoError(t, db.Delete(ctx, domain.CollectionMeasurements, rec.ID))
	_, err = db.Get(ctx, domain.CollectionMeasurements, rec.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, db.Delete(ctx, domain.CollectionMeasurements, rec.ID), domain.ErrNotFound)
}

func TestDB_ListOrderSinceLimit(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, day := range []int{5, 1, 3} {
		_, err := db.Put(ctx, domain.Record{
			Collection: domain.CollectionSessions,
			ID:         []string{"a", "b", "c"}[i],
			Timestamp:  base.AddDate(0, 0, day),
			Payload:    []byte("{}"),
		})
		require.NoError(t, err)
	}

	ids := func(rs []domain.Record) []string {
		out := make([]string, 0, len(rs))
		for _, r := range rs {
			out = append(out, r.ID)
		}
		return out
	}

	inserted, err := db.List(ctx, domain.CollectionSessions, domain.ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(inserted))

	byTime, err := db.List(ctx, domain.CollectionSessions, domain.ListFilter{OrderByTimestamp: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "a"}, ids(byTime))

	since, err := db.List(ctx, domain.CollectionSessions, domain.ListFilter{Since: base.AddDate(0, 0, 3), OrderByTimestamp: true, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, ids(since))

	empty, err := db.List(ctx, domain.CollectionUnlocks, domain.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestDB_PutAllRollsBack(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.PutAll(ctx, []domain.Record{
		{Collection: domain.CollectionUnlocks, ID: "streak_7", Timestamp: time.Now(), Payload: []byte("{}")},
		{Collection: "", ID: "broken"},
	})
	require.ErrorIs(t, err, domain.ErrValidation)

	all, err := db.List(ctx, domain.CollectionUnlocks, domain.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)

	out, err := db.PutAll(ctx, []domain.Record{
		{Collection: domain.CollectionUnlocks, ID: "streak_7", Timestamp: time.Now(), Payload: []byte("{}")},
		{Collection: domain.CollectionUnlocks, ID: "first_session", Timestamp: time.Now(), Payload: []byte("{}")},
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.EqualValues(t, 1, out[0].Seq)
	assert.EqualValues(t, 2, out[1].Seq)
}

func TestDB_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fightlog.db")
	ctx := context.Background()

	db, err := Open(ctx, Options{Driver: DriverSQLite, DSN: path})
	require.NoError(t, err)
	_, err = db.Put(ctx, domain.Record{Collection: domain.CollectionProfile, ID: "profile", Payload: []byte(`{"username":"rin"}`)})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(ctx, Options{Driver: DriverSQLite, DSN: path})
	require.NoError(t, err)
	defer db.Close()

	got, err := db.Get(ctx, domain.CollectionProfile, "profile")
	require.NoError(t, err)
	assert.True(t, got.Timestamp.IsZero())
	assert.JSONEq(t, `{"username":"rin"}`, string(got.Payload))

	// sequence continues after reopen
	next, err := db.Put(ctx, domain.Record{Collection: domain.CollectionProfile, ID: "other", Payload: []byte("{}")})
	require.NoError(t, err)
	assert.EqualValues(t, 2, next.Seq)
}

func TestDB_ConcurrentWriters(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_, err := db.Put(ctx, domain.Record{Collection: domain.CollectionSessions, Timestamp: time.Now(), Payload: []byte("{}")})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	all, err := db.List(ctx, domain.CollectionSessions, domain.ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 80)
	for i, r := range all {
		assert.EqualValues(t, i+1, r.Seq)
	}
}
