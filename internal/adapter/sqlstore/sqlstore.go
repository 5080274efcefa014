// Package sqlstore implements the durable domain.Store over database/sql.
// The same queries run on sqlite (modernc.org/sqlite) and PostgreSQL
// (github.com/lib/pq); placeholders are written in $N form and rebound for
// sqlite.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"fightlog/internal/domain"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const sqlitePragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

// Options configures Open.
type Options struct {
	Driver string
	DSN    string
	// MaxOpenConns applies to postgres only; sqlite always uses one connection.
	MaxOpenConns int
}

// DB wraps a *sql.DB and implements domain.Store.
type DB struct {
	sql    *sql.DB
	driver string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Ensure interfaces are met.
var _ domain.Store = (*DB)(nil)

// Open connects, pings, and runs migrations.
func Open(ctx context.Context, opts Options) (*DB, error) {
	dsn := opts.DSN
	switch opts.Driver {
	case DriverSQLite:
		if !strings.Contains(dsn, "_pragma") {
			sep := "?"
			if strings.Contains(dsn, "?") {
				sep = "&"
			}
			dsn += sep + sqlitePragmas
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", opts.Driver)
	}

	s, err := sql.Open(opts.Driver, dsn)
	if err != nil {
		return nil, err
	}
	if opts.Driver == DriverSQLite {
		s.SetMaxOpenConns(1)
	} else {
		maxOpen := opts.MaxOpenConns
		if maxOpen <= 0 {
			maxOpen = 10
		}
		s.SetMaxOpenConns(maxOpen)
		s.SetMaxIdleConns(maxOpen / 2)
		s.SetConnMaxLifetime(5 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.PingContext(pingCtx); err != nil {
		_ = s.Close()
		return nil, err
	}

	d := &DB{sql: s, driver: opts.Driver, locks: make(map[string]*sync.Mutex)}
	if err := d.migrate(pingCtx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

func (d *DB) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS records (
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			schema_version INTEGER NOT NULL,
			ts BIGINT NOT NULL,
			seq BIGINT NOT NULL,
			payload TEXT NOT NULL,
			PRIMARY KEY (collection, id)
		);`,
		"CREATE INDEX IF NOT EXISTS idx_records_collection_ts ON records(collection, ts);",
		"CREATE INDEX IF NOT EXISTS idx_records_collection_seq ON records(collection, seq);",
		"CREATE TABLE IF NOT EXISTS collection_seq (collection TEXT PRIMARY KEY, seq BIGINT NOT NULL);",
	}
	for _, stmt := range stmts {
		if _, err := d.sql.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

var placeholderRe = regexp.MustCompile(`\$\d+`)

// q adapts a query written with $N placeholders to the active driver. Every
// query in this package uses each placeholder once, in ascending order.
func (d *DB) q(query string) string {
	if d.driver == DriverSQLite {
		return placeholderRe.ReplaceAllString(query, "?")
	}
	return query
}

// Get returns the record with the given id.
func (d *DB) Get(ctx context.Context, coll, id string) (domain.Record, error) {
	row := d.sql.QueryRowContext(ctx, d.q(
		"SELECT id, schema_version, ts, seq, payload FROM records WHERE collection=$1 AND id=$2;"),
		coll, id,
	)
	r, err := scanRecord(row, coll)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Record{}, domain.ErrNotFound
	}
	return r, err
}

// List returns the records of a collection filtered and ordered by f.
func (d *DB) List(ctx context.Context, coll string, f domain.ListFilter) ([]domain.Record, error) {
	query := "SELECT id, schema_version, ts, seq, payload FROM records WHERE collection=$1"
	args := []any{coll}
	if !f.Since.IsZero() {
		query += " AND ts >= $2"
		args = append(args, encodeTime(f.Since))
	}
	if f.OrderByTimestamp {
		query += " ORDER BY ts, seq"
	} else {
		query += " ORDER BY seq"
	}
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, f.Limit)
	}

	rows, err := d.sql.QueryContext(ctx, d.q(query+";"), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Record, 0)
	for rows.Next() {
		r, err := scanRecord(rows, coll)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Put inserts or replaces a single record in its own transaction.
func (d *DB) Put(ctx context.Context, rec domain.Record) (domain.Record, error) {
	out, err := d.PutAll(ctx, []domain.Record{rec})
	if err != nil {
		return domain.Record{}, err
	}
	return out[0], nil
}

// PutAll writes the batch in one transaction. The call returns after commit.
func (d *DB) PutAll(ctx context.Context, recs []domain.Record) (out []domain.Record, err error) {
	colls := make([]string, 0, len(recs))
	for _, r := range recs {
		if r.Collection == "" {
			return nil, fmt.Errorf("put: %w", domain.Invalid("record without collection"))
		}
		colls = append(colls, r.Collection)
	}
	unlock := d.lockCollections(colls)
	defer unlock()

	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("put: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	out = make([]domain.Record, len(recs))
	for i, r := range recs {
		r = r.Clone()
		if r.ID == "" {
			r.ID = domain.NewID()
		}
		if r.Seq, err = d.seqFor(ctx, tx, r.Collection, r.ID); err != nil {
			return nil, fmt.Errorf("put %s/%s: %w", r.Collection, r.ID, err)
		}
		if _, err = tx.ExecContext(ctx, d.q(
			`INSERT INTO records(collection, id, schema_version, ts, seq, payload) VALUES($1, $2, $3, $4, $5, $6)
			ON CONFLICT(collection, id) DO UPDATE SET schema_version=excluded.schema_version, ts=excluded.ts, seq=excluded.seq, payload=excluded.payload;`),
			r.Collection, r.ID, r.SchemaVersion, encodeTime(r.Timestamp), r.Seq, string(r.Payload),
		); err != nil {
			return nil, fmt.Errorf("put %s/%s: %w", r.Collection, r.ID, err)
		}
		out[i] = r
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("put: commit: %w", err)
	}
	return out, nil
}

// Delete removes a record. Missing records yield domain.ErrNotFound.
func (d *DB) Delete(ctx context.Context, coll, id string) error {
	unlock := d.lockCollections([]string{coll})
	defer unlock()

	res, err := d.sql.ExecContext(ctx, d.q("DELETE FROM records WHERE collection=$1 AND id=$2;"), coll, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", coll, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", coll, id, err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// seqFor keeps the sequence of an existing record and allocates the next one
// for a new record.
func (d *DB) seqFor(ctx context.Context, tx *sql.Tx, coll, id string) (int64, error) {
	var seq int64
	err := tx.QueryRowContext(ctx, d.q("SELECT seq FROM records WHERE collection=$1 AND id=$2;"), coll, id).Scan(&seq)
	if err == nil {
		return seq, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	err = tx.QueryRowContext(ctx, d.q("SELECT seq FROM collection_seq WHERE collection=$1;"), coll).Scan(&seq)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	seq++
	if _, err := tx.ExecContext(ctx, d.q(
		"INSERT INTO collection_seq(collection, seq) VALUES($1, $2) ON CONFLICT(collection) DO UPDATE SET seq=excluded.seq;"),
		coll, seq,
	); err != nil {
		return 0, err
	}
	return seq, nil
}

// lockCollections serializes writers per collection within the process.
// Locks are taken in name order so batches spanning collections cannot
// deadlock.
func (d *DB) lockCollections(colls []string) func() {
	names := make([]string, 0, len(colls))
	seen := make(map[string]bool, len(colls))
	for _, c := range colls {
		if !seen[c] {
			seen[c] = true
			names = append(names, c)
		}
	}
	sort.Strings(names)

	d.mu.Lock()
	held := make([]*sync.Mutex, 0, len(names))
	for _, n := range names {
		l, ok := d.locks[n]
		if !ok {
			l = &sync.Mutex{}
			d.locks[n] = l
		}
		held = append(held, l)
	}
	d.mu.Unlock()

	for _, l := range held {
		l.Lock()
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner, coll string) (domain.Record, error) {
	var (
		r       domain.Record
		ts      int64
		payload string
	)
	if err := s.Scan(&r.ID, &r.SchemaVersion, &ts, &r.Seq, &payload); err != nil {
		return domain.Record{}, err
	}
	r.Collection = coll
	r.Timestamp = decodeTime(ts)
	r.Payload = []byte(payload)
	return r, nil
}

// Timestamps are stored as unix nanoseconds; 0 stands for the zero time.
func encodeTime(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func decodeTime(ns int64) time.Time {
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns).UTC()
}
