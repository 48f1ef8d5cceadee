package repository

import (
	"context"
	"fmt"

	"github.com/lyzr/mediacatalog/cmd/catalog/models"
	"github.com/lyzr/mediacatalog/common/db"
)

// PostgresEngagementRegistry stores one entry_likes row per (entry, caller).
// The catalog_entries row is the engagement record, so Register is a no-op.
type PostgresEngagementRegistry struct {
	db db.Querier
}

// NewPostgresEngagementRegistry creates a new likes repository
func NewPostgresEngagementRegistry(q db.Querier) *PostgresEngagementRegistry {
	return &PostgresEngagementRegistry{db: q}
}

// Register is satisfied by the catalog row
func (r *PostgresEngagementRegistry) Register(ctx context.Context, id int64) error {
	return nil
}

// Like inserts the (id, caller) row and returns the new count.
// The primary key rejects a second like; the foreign key rejects unknown ids.
func (r *PostgresEngagementRegistry) Like(ctx context.Context, id int64, caller string) (int64, error) {
	// The outer SELECT sees the snapshot before the insert
	query := `
		WITH ins AS (
			INSERT INTO entry_likes (entry_id, user_id) VALUES ($1, $2)
			RETURNING entry_id
		)
		SELECT COUNT(*) + (SELECT COUNT(*) FROM ins) FROM entry_likes WHERE entry_id = $1
	`

	var count int64
	err := r.db.QueryRow(ctx, query, id, caller).Scan(&count)
	if err != nil {
		switch {
		case db.IsCode(err, db.CodeUniqueViolation):
			return 0, models.ErrAlreadyLiked
		case db.IsCode(err, db.CodeForeignKeyViolation):
			return 0, models.ErrNotFound
		}
		return 0, fmt.Errorf("%w: like: %w", models.ErrStorageFailure, err)
	}

	return count, nil
}

// Unlike deletes the (id, caller) row and returns the new count
func (r *PostgresEngagementRegistry) Unlike(ctx context.Context, id int64, caller string) (int64, error) {
	query := `
		WITH del AS (
			DELETE FROM entry_likes WHERE entry_id = $1 AND user_id = $2
			RETURNING user_id
		)
		SELECT
			EXISTS (SELECT 1 FROM catalog_entries WHERE id = $1),
			(SELECT COUNT(*) FROM del),
			(SELECT COUNT(*) FROM entry_likes WHERE entry_id = $1)
	`

	var (
		exists          bool
		removed, before int64
	)
	if err := r.db.QueryRow(ctx, query, id, caller).Scan(&exists, &removed, &before); err != nil {
		return 0, fmt.Errorf("%w: unlike: %w", models.ErrStorageFailure, err)
	}

	switch {
	case !exists:
		return 0, models.ErrNotFound
	case removed == 0:
		return 0, models.ErrNotLiked
	}
	return before - removed, nil
}

// LikedBy lists the likers of id in byte order
func (r *PostgresEngagementRegistry) LikedBy(ctx context.Context, id int64) ([]string, error) {
	if _, err := r.Count(ctx, id); err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx,
		`SELECT user_id FROM entry_likes WHERE entry_id = $1 ORDER BY user_id COLLATE "C"`, id)
	if err != nil {
		return nil, fmt.Errorf("%w: liked by: %w", models.ErrStorageFailure, err)
	}
	defer rows.Close()

	likers := make([]string, 0)
	for rows.Next() {
		var user string
		if err := rows.Scan(&user); err != nil {
			return nil, fmt.Errorf("%w: scan liker: %w", models.ErrStorageFailure, err)
		}
		likers = append(likers, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: liked by: %w", models.ErrStorageFailure, err)
	}

	return likers, nil
}

// Count returns the number of likers of id
func (r *PostgresEngagementRegistry) Count(ctx context.Context, id int64) (int64, error) {
	query := `
		SELECT
			EXISTS (SELECT 1 FROM catalog_entries WHERE id = $1),
			(SELECT COUNT(*) FROM entry_likes WHERE entry_id = $1)
	`

	var (
		exists bool
		count  int64
	)
	if err := r.db.QueryRow(ctx, query, id).Scan(&exists, &count); err != nil {
		return 0, fmt.Errorf("%w: count likes: %w", models.ErrStorageFailure, err)
	}
	if !exists {
		return 0, models.ErrNotFound
	}
	return count, nil
}

// Counts returns the like count for each id in one query
func (r *PostgresEngagementRegistry) Counts(ctx context.Context, ids []int64) (map[int64]int64, error) {
	out := make(map[int64]int64, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	for _, id := range ids {
		out[id] = 0
	}

	rows, err := r.db.Query(ctx,
		`SELECT entry_id, COUNT(*) FROM entry_likes WHERE entry_id = ANY($1) GROUP BY entry_id`, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: count likes: %w", models.ErrStorageFailure, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, n int64
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("%w: scan count: %w", models.ErrStorageFailure, err)
		}
		out[id] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: count likes: %w", models.ErrStorageFailure, err)
	}

	return out, nil
}
