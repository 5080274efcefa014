// Package domain contains the core entities, the storage port and the error taxonomy.
package domain

import (
	"context"
	"time"
)

// Collection names of the persisted layout. One logical collection per entity type.
const (
	CollectionMeasurements      = "measurements"
	CollectionSessions          = "sessions"
	CollectionProfile           = "profile"
	CollectionUnlocks           = "unlocks"
	CollectionPlateauDismissals = "plateauDismissals"
)

// Collections lists every collection the engine persists.
var Collections = []string{
	CollectionMeasurements,
	CollectionSessions,
	CollectionProfile,
	CollectionUnlocks,
	CollectionPlateauDismissals,
}

// Record is the raw unit of storage. Payload is an opaque encoded entity whose
// shape is described by SchemaVersion.
type Record struct {
	Collection    string    `json:"collection"`
	ID            string    `json:"id"`
	SchemaVersion int       `json:"schemaVersion"`
	Timestamp     time.Time `json:"timestamp"`
	// Seq is assigned by the store on first insert and kept on overwrite; it
	// defines insertion order.
	Seq     int64  `json:"seq"`
	Payload []byte `json:"payload"`
}

// Size is the number of bytes a record accounts for in capacity-bounded stores.
func (r Record) Size() int {
	// fixed part: seq, version, timestamp
	return len(r.Collection) + len(r.ID) + len(r.Payload) + 24
}

// Clone returns a deep copy so callers never alias a store's buffers.
func (r Record) Clone() Record {
	out := r
	if r.Payload != nil {
		out.Payload = append([]byte(nil), r.Payload...)
	}
	return out
}

// ListFilter narrows and orders a List call. The zero value lists everything
// in insertion order.
type ListFilter struct {
	// Since keeps records whose Timestamp is not before it.
	Since time.Time
	// OrderByTimestamp sorts by Timestamp, then insertion order.
	OrderByTimestamp bool
	// Limit keeps the first Limit records after ordering when > 0.
	Limit int
}

// Store is the storage port. Implementations must make each write durable
// before returning and must never expose a partially written record.
type Store interface {
	Get(ctx context.Context, collection, id string) (Record, error)
	List(ctx context.Context, collection string, filter ListFilter) ([]Record, error)
	Put(ctx context.Context, rec Record) (Record, error)
	// PutAll writes every record or none of them.
	PutAll(ctx context.Context, recs []Record) ([]Record, error)
	Delete(ctx context.Context, collection, id string) error
	Close() error
}
