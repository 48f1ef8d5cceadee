package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/lyzr/mediacatalog/cmd/catalog/models"
)

const entryKeyPrefix = "entry:"

// entryKey zero-pads so lexical key order equals numeric id order
func entryKey(id int64) []byte {
	return []byte(fmt.Sprintf("%s%020d", entryKeyPrefix, id))
}

// storedEntry is the on-disk form; derived fields are not persisted
type storedEntry struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Duration    int64     `json:"duration"`
	ContentType string    `json:"contentType"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (s storedEntry) entry() *models.Entry {
	return &models.Entry{
		ID:          s.ID,
		Title:       s.Title,
		Duration:    s.Duration,
		ContentType: s.ContentType,
		CreatedAt:   s.CreatedAt,
	}
}

// BadgerCatalogStore keeps entries in an embedded badger database
type BadgerCatalogStore struct {
	db *badger.DB
}

// NewBadgerCatalogStore creates a store over kv
func NewBadgerCatalogStore(kv *badger.DB) *BadgerCatalogStore {
	return &BadgerCatalogStore{db: kv}
}

// Insert stores entry unless its id is taken
func (s *BadgerCatalogStore) Insert(ctx context.Context, entry *models.Entry) (*models.Entry, error) {
	rec := storedEntry{
		ID:          entry.ID,
		Title:       entry.Title,
		Duration:    entry.Duration,
		ContentType: entry.ContentType,
		CreatedAt:   entry.CreatedAt,
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		key := entryKey(rec.ID)
		if _, err := txn.Get(key); err == nil {
			return models.ErrDuplicateIdentity
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return putEntry(txn, key, rec)
	})
	if err != nil {
		return nil, storageErr("insert entry", err)
	}

	return rec.entry(), nil
}

// Get returns the entry with id
func (s *BadgerCatalogStore) Get(ctx context.Context, id int64) (*models.Entry, error) {
	var rec storedEntry
	err := s.db.View(func(txn *badger.Txn) error {
		return getEntry(txn, entryKey(id), &rec)
	})
	if err != nil {
		return nil, storageErr("get entry", err)
	}
	return rec.entry(), nil
}

// All returns every entry in ascending id order
func (s *BadgerCatalogStore) All(ctx context.Context) ([]*models.Entry, error) {
	return s.scan(ctx, func(*storedEntry) bool { return true })
}

// FindByTitle returns entries whose title equals title exactly
func (s *BadgerCatalogStore) FindByTitle(ctx context.Context, title string) ([]*models.Entry, error) {
	return s.scan(ctx, func(e *storedEntry) bool { return e.Title == title })
}

// FindByDurationLessThan returns entries with duration strictly below threshold
func (s *BadgerCatalogStore) FindByDurationLessThan(ctx context.Context, threshold int64) ([]*models.Entry, error) {
	return s.scan(ctx, func(e *storedEntry) bool { return e.Duration < threshold })
}

func (s *BadgerCatalogStore) scan(ctx context.Context, keep func(*storedEntry) bool) ([]*models.Entry, error) {
	out := make([]*models.Entry, 0)
	prefix := []byte(entryKeyPrefix)

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec storedEntry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			if keep(&rec) {
				out = append(out, rec.entry())
			}
		}
		return nil
	})
	if err != nil {
		return nil, storageErr("scan entries", err)
	}
	return out, nil
}

// UpdateContentType sets the content type of an existing entry
func (s *BadgerCatalogStore) UpdateContentType(ctx context.Context, id int64, contentType string) error {
	return s.update(id, "update content type", func(e *storedEntry) { e.ContentType = contentType })
}

// UpdateDetails replaces title and duration of an existing entry
func (s *BadgerCatalogStore) UpdateDetails(ctx context.Context, id int64, title string, duration int64) error {
	return s.update(id, "update details", func(e *storedEntry) {
		e.Title = title
		e.Duration = duration
	})
}

func (s *BadgerCatalogStore) update(id int64, op string, mutate func(*storedEntry)) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		key := entryKey(id)
		var rec storedEntry
		if err := getEntry(txn, key, &rec); err != nil {
			return err
		}
		mutate(&rec)
		return putEntry(txn, key, rec)
	})
	return storageErr(op, err)
}

func getEntry(txn *badger.Txn, key []byte, rec *storedEntry) error {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return models.ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, rec)
	})
}

func putEntry(txn *badger.Txn, key []byte, rec storedEntry) error {
	val, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return txn.Set(key, val)
}
