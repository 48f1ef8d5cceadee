package repository

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"github.com/lyzr/mediacatalog/cmd/catalog/models"
	"github.com/lyzr/mediacatalog/common/db"
)

// AtomicAllocator counts up from 1 in process memory
type AtomicAllocator struct {
	last atomic.Int64
}

// NewAtomicAllocator creates an allocator whose first id is 1
func NewAtomicAllocator() *AtomicAllocator {
	return &AtomicAllocator{}
}

// Next returns the next id
func (a *AtomicAllocator) Next(ctx context.Context) (int64, error) {
	return a.last.Add(1), nil
}

// SequenceAllocator draws ids from a Postgres sequence
type SequenceAllocator struct {
	db db.Querier
}

// NewSequenceAllocator creates a sequence-backed allocator
func NewSequenceAllocator(q db.Querier) *SequenceAllocator {
	return &SequenceAllocator{db: q}
}

// Next returns nextval of catalog_entry_id_seq
func (a *SequenceAllocator) Next(ctx context.Context) (int64, error) {
	var id int64
	if err := a.db.QueryRow(ctx, `SELECT nextval('catalog_entry_id_seq')`).Scan(&id); err != nil {
		return 0, fmt.Errorf("%w: allocate id: %w", models.ErrStorageFailure, err)
	}
	return id, nil
}

const identitySequenceKey = "seq:entry_id"

// identityLease is how many ids badger reserves per disk write. Ids leased
// but not handed out before a restart are skipped, never reused.
const identityLease = 100

// BadgerAllocator draws ids from a badger sequence
type BadgerAllocator struct {
	seq *badger.Sequence
}

// NewBadgerAllocator creates an allocator persisted in kv
func NewBadgerAllocator(kv *badger.DB) (*BadgerAllocator, error) {
	seq, err := kv.GetSequence([]byte(identitySequenceKey), identityLease)
	if err != nil {
		return nil, fmt.Errorf("open id sequence: %w", err)
	}
	return &BadgerAllocator{seq: seq}, nil
}

// Next returns the next id. Badger sequences start at 0, so ids are shifted by one.
func (a *BadgerAllocator) Next(ctx context.Context) (int64, error) {
	n, err := a.seq.Next()
	if err != nil {
		return 0, fmt.Errorf("%w: allocate id: %w", models.ErrStorageFailure, err)
	}
	return int64(n) + 1, nil
}

// Release returns unused leased ids to the store
func (a *BadgerAllocator) Release() error {
	return a.seq.Release()
}
