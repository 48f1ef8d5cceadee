package repository

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/lyzr/mediacatalog/cmd/catalog/models"
)

// MemoryCatalogStore keeps entries in a map guarded by an RWMutex
type MemoryCatalogStore struct {
	mu      sync.RWMutex
	entries map[int64]*models.Entry
	ids     []int64 // sorted ascending
}

// NewMemoryCatalogStore creates an empty store
func NewMemoryCatalogStore() *MemoryCatalogStore {
	return &MemoryCatalogStore{
		entries: make(map[int64]*models.Entry),
	}
}

// Insert stores a copy of entry
func (s *MemoryCatalogStore) Insert(ctx context.Context, entry *models.Entry) (*models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[entry.ID]; exists {
		return nil, models.ErrDuplicateIdentity
	}

	stored := entry.Clone()
	stored.DataURL = ""
	stored.Likes = 0
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	s.entries[stored.ID] = stored

	// Allocated ids arrive in ascending order, so this is almost always an append
	pos, _ := slices.BinarySearch(s.ids, stored.ID)
	s.ids = slices.Insert(s.ids, pos, stored.ID)

	return stored.Clone(), nil
}

// Get returns the entry with id
func (s *MemoryCatalogStore) Get(ctx context.Context, id int64) (*models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return entry.Clone(), nil
}

// All returns every entry in ascending id order
func (s *MemoryCatalogStore) All(ctx context.Context) ([]*models.Entry, error) {
	return s.filter(func(*models.Entry) bool { return true }), nil
}

// FindByTitle returns entries whose title equals title exactly
func (s *MemoryCatalogStore) FindByTitle(ctx context.Context, title string) ([]*models.Entry, error) {
	return s.filter(func(e *models.Entry) bool { return e.Title == title }), nil
}

// FindByDurationLessThan returns entries with duration strictly below threshold
func (s *MemoryCatalogStore) FindByDurationLessThan(ctx context.Context, threshold int64) ([]*models.Entry, error) {
	return s.filter(func(e *models.Entry) bool { return e.Duration < threshold }), nil
}

func (s *MemoryCatalogStore) filter(keep func(*models.Entry) bool) []*models.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Entry, 0)
	for _, id := range s.ids {
		if e := s.entries[id]; keep(e) {
			out = append(out, e.Clone())
		}
	}
	return out
}

// UpdateContentType sets the content type of an existing entry
func (s *MemoryCatalogStore) UpdateContentType(ctx context.Context, id int64, contentType string) error {
	return s.update(id, func(e *models.Entry) { e.ContentType = contentType })
}

// UpdateDetails replaces title and duration of an existing entry
func (s *MemoryCatalogStore) UpdateDetails(ctx context.Context, id int64, title string, duration int64) error {
	return s.update(id, func(e *models.Entry) {
		e.Title = title
		e.Duration = duration
	})
}

func (s *MemoryCatalogStore) update(id int64, mutate func(*models.Entry)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok {
		return models.ErrNotFound
	}
	mutate(entry)
	return nil
}
