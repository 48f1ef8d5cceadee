package repository

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/lyzr/mediacatalog/cmd/catalog/models"
)

type engagementRecord struct {
	mu     sync.Mutex
	likers map[string]struct{}
}

// MemoryEngagementRegistry keeps one mutex-guarded liker set per entry
type MemoryEngagementRegistry struct {
	mu      sync.RWMutex
	records map[int64]*engagementRecord
}

// NewMemoryEngagementRegistry creates an empty registry
func NewMemoryEngagementRegistry() *MemoryEngagementRegistry {
	return &MemoryEngagementRegistry{
		records: make(map[int64]*engagementRecord),
	}
}

// Register creates the empty record for id, replacing any earlier one
func (r *MemoryEngagementRegistry) Register(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records[id] = &engagementRecord{likers: make(map[string]struct{})}
	return nil
}

func (r *MemoryEngagementRegistry) record(id int64) (*engagementRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return rec, nil
}

// Like adds caller to the likers of id and returns the new count
func (r *MemoryEngagementRegistry) Like(ctx context.Context, id int64, caller string) (int64, error) {
	rec, err := r.record(id)
	if err != nil {
		return 0, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if _, liked := rec.likers[caller]; liked {
		return 0, models.ErrAlreadyLiked
	}
	rec.likers[caller] = struct{}{}
	return int64(len(rec.likers)), nil
}

// Unlike removes caller from the likers of id and returns the new count
func (r *MemoryEngagementRegistry) Unlike(ctx context.Context, id int64, caller string) (int64, error) {
	rec, err := r.record(id)
	if err != nil {
		return 0, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if _, liked := rec.likers[caller]; !liked {
		return 0, models.ErrNotLiked
	}
	delete(rec.likers, caller)
	return int64(len(rec.likers)), nil
}

// LikedBy returns the likers of id sorted ascending
func (r *MemoryEngagementRegistry) LikedBy(ctx context.Context, id int64) ([]string, error) {
	rec, err := r.record(id)
	if err != nil {
		return nil, err
	}

	rec.mu.Lock()
	out := make([]string, 0, len(rec.likers))
	for caller := range rec.likers {
		out = append(out, caller)
	}
	rec.mu.Unlock()

	sort.Strings(out)
	return out, nil
}

// Count returns the number of likers of id
func (r *MemoryEngagementRegistry) Count(ctx context.Context, id int64) (int64, error) {
	rec, err := r.record(id)
	if err != nil {
		return 0, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	return int64(len(rec.likers)), nil
}

// Counts returns the like count for each id
func (r *MemoryEngagementRegistry) Counts(ctx context.Context, ids []int64) (map[int64]int64, error) {
	out := make(map[int64]int64, len(ids))
	for _, id := range ids {
		n, err := r.Count(ctx, id)
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		out[id] = n
	}
	return out, nil
}
