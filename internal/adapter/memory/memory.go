// Package memory implements the degraded key-value fallback store. It keeps
// every record in memory, optionally mirrors them to a snapshot file, and
// enforces a byte cap by rejecting writes rather than evicting.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"fightlog/internal/domain"
)

var errClosed = errors.New("memory store closed")

// Options configures a Store.
type Options struct {
	// MaxBytes caps the total accounted size of stored records. 0 disables the cap.
	MaxBytes int
	// Path, when set, is a snapshot file rewritten after every write.
	Path string
}

// Store implements domain.Store in memory.
type Store struct {
	mu     sync.RWMutex
	opts   Options
	colls  map[string]*collection
	used   int
	closed bool
}

type collection struct {
	Seq     int64                    `json:"seq"`
	Records map[string]domain.Record `json:"records"`
}

type snapshot struct {
	Version     int                    `json:"version"`
	Collections map[string]*collection `json:"collections"`
}

const snapshotVersion = 1

// Ensure interfaces are met.
var _ domain.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New(opts Options) *Store {
	return &Store{
		opts:  opts,
		colls: make(map[string]*collection),
	}
}

// Open creates a store and loads the snapshot at opts.Path if one exists.
func Open(opts Options) (*Store, error) {
	s := New(opts)
	if opts.Path == "" {
		return s, nil
	}
	data, err := os.ReadFile(opts.Path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("snapshot version %d: %w", snap.Version, domain.ErrSchema)
	}
	for name, c := range snap.Collections {
		if c.Records == nil {
			c.Records = make(map[string]domain.Record)
		}
		for _, r := range c.Records {
			s.used += r.Size()
		}
		s.colls[name] = c
	}
	return s, nil
}

// Used returns the accounted byte size of all stored records.
func (s *Store) Used() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.used
}

// Close marks the store closed. Later calls fail.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Get returns a copy of the record with the given id.
func (s *Store) Get(ctx context.Context, coll, id string) (domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return domain.Record{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return domain.Record{}, errClosed
	}

	c, ok := s.colls[coll]
	if !ok {
		return domain.Record{}, domain.ErrNotFound
	}
	r, ok := c.Records[id]
	if !ok {
		return domain.Record{}, domain.ErrNotFound
	}
	return r.Clone(), nil
}

// List returns copies of the records of a collection, in insertion order
// unless the filter asks for timestamp order.
func (s *Store) List(ctx context.Context, coll string, f domain.ListFilter) ([]domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}

	c, ok := s.colls[coll]
	if !ok {
		return []domain.Record{}, nil
	}

	result := make([]domain.Record, 0, len(c.Records))
	for _, r := range c.Records {
		if !f.Since.IsZero() && r.Timestamp.Before(f.Since) {
			continue
		}
		result = append(result, r.Clone())
	}

	if f.OrderByTimestamp {
		sort.Slice(result, func(i, j int) bool {
			if !result[i].Timestamp.Equal(result[j].Timestamp) {
				return result[i].Timestamp.Before(result[j].Timestamp)
			}
			return result[i].Seq < result[j].Seq
		})
	} else {
		sort.Slice(result, func(i, j int) bool {
			return result[i].Seq < result[j].Seq
		})
	}

	if f.Limit > 0 && len(result) > f.Limit {
		result = result[:f.Limit]
	}
	return result, nil
}

// Put inserts or replaces a single record.
func (s *Store) Put(ctx context.Context, rec domain.Record) (domain.Record, error) {
	out, err := s.PutAll(ctx, []domain.Record{rec})
	if err != nil {
		return domain.Record{}, err
	}
	return out[0], nil
}

// PutAll writes every record or none. The capacity check covers the whole
// batch before anything is applied.
func (s *Store) PutAll(ctx context.Context, recs []domain.Record) ([]domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, r := range recs {
		if r.Collection == "" {
			return nil, fmt.Errorf("put: %w", domain.Invalid("record without collection"))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errClosed
	}

	// Size the batch against the current contents. Records repeated within
	// the batch replace each other, so only the last one counts.
	pending := make(map[[2]string]domain.Record, len(recs))
	out := make([]domain.Record, len(recs))
	for i, r := range recs {
		r = r.Clone()
		if r.ID == "" {
			r.ID = domain.NewID()
		}
		out[i] = r
		pending[[2]string{r.Collection, r.ID}] = r
	}
	delta := 0
	for key, r := range pending {
		delta += r.Size()
		if old, ok := s.lookup(key[0], key[1]); ok {
			delta -= old.Size()
		}
	}
	if s.opts.MaxBytes > 0 && delta > 0 && s.used+delta > s.opts.MaxBytes {
		return nil, &domain.CapacityError{Limit: s.opts.MaxBytes, Used: s.used, Need: delta}
	}

	undo := make([]func(), 0, len(out))
	for i := range out {
		undo = append(undo, s.apply(&out[i]))
	}
	s.used += delta

	if err := s.persist(); err != nil {
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
		s.used -= delta
		return nil, fmt.Errorf("put: %w", err)
	}

	result := make([]domain.Record, len(out))
	for i, r := range out {
		result[i] = r.Clone()
	}
	return result, nil
}

// Delete removes a record. Missing records yield domain.ErrNotFound.
func (s *Store) Delete(ctx context.Context, coll, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}

	c, ok := s.colls[coll]
	if !ok {
		return domain.ErrNotFound
	}
	old, ok := c.Records[id]
	if !ok {
		return domain.ErrNotFound
	}
	delete(c.Records, id)
	s.used -= old.Size()

	if err := s.persist(); err != nil {
		c.Records[id] = old
		s.used += old.Size()
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

func (s *Store) lookup(coll, id string) (domain.Record, bool) {
	c, ok := s.colls[coll]
	if !ok {
		return domain.Record{}, false
	}
	r, ok := c.Records[id]
	return r, ok
}

// apply writes r into its collection, assigning Seq, and returns a function
// that reverts the write. Caller holds s.mu.
func (s *Store) apply(r *domain.Record) func() {
	c, ok := s.colls[r.Collection]
	if !ok {
		c = &collection{Records: make(map[string]domain.Record)}
		s.colls[r.Collection] = c
	}
	prevSeq := c.Seq
	old, existed := c.Records[r.ID]
	if existed {
		r.Seq = old.Seq
	} else {
		c.Seq++
		r.Seq = c.Seq
	}
	c.Records[r.ID] = *r

	return func() {
		if existed {
			c.Records[r.ID] = old
		} else {
			delete(c.Records, r.ID)
		}
		c.Seq = prevSeq
	}
}

// persist rewrites the snapshot file atomically. Caller holds s.mu.
func (s *Store) persist() error {
	if s.opts.Path == "" {
		return nil
	}
	data, err := json.Marshal(snapshot{Version: snapshotVersion, Collections: s.colls})
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.opts.Path), filepath.Base(s.opts.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.opts.Path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}
