package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/lyzr/mediacatalog/cmd/catalog/models"
	"github.com/lyzr/mediacatalog/common/db"
)

// PostgresCatalogStore handles database operations for catalog entries
type PostgresCatalogStore struct {
	db db.Querier
}

// NewPostgresCatalogStore creates a new catalog repository
func NewPostgresCatalogStore(q db.Querier) *PostgresCatalogStore {
	return &PostgresCatalogStore{db: q}
}

const entryColumns = `id, title, duration_seconds, content_type, created_at`

// Insert inserts a new entry
func (r *PostgresCatalogStore) Insert(ctx context.Context, entry *models.Entry) (*models.Entry, error) {
	query := `
		INSERT INTO catalog_entries (id, title, duration_seconds, content_type)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`

	stored := entry.Clone()
	stored.DataURL = ""
	stored.Likes = 0

	err := r.db.QueryRow(ctx, query,
		stored.ID,
		stored.Title,
		stored.Duration,
		stored.ContentType,
	).Scan(&stored.CreatedAt)

	if err != nil {
		if db.IsCode(err, db.CodeUniqueViolation) {
			return nil, models.ErrDuplicateIdentity
		}
		return nil, fmt.Errorf("%w: insert entry: %w", models.ErrStorageFailure, err)
	}

	return stored, nil
}

// Get retrieves an entry by id
func (r *PostgresCatalogStore) Get(ctx context.Context, id int64) (*models.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM catalog_entries WHERE id = $1`

	entry := &models.Entry{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&entry.ID,
		&entry.Title,
		&entry.Duration,
		&entry.ContentType,
		&entry.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("%w: get entry: %w", models.ErrStorageFailure, err)
	}

	return entry, nil
}

// All lists every entry in ascending id order
func (r *PostgresCatalogStore) All(ctx context.Context) ([]*models.Entry, error) {
	return r.list(ctx, `SELECT `+entryColumns+` FROM catalog_entries ORDER BY id`)
}

// FindByTitle lists entries whose title matches exactly
func (r *PostgresCatalogStore) FindByTitle(ctx context.Context, title string) ([]*models.Entry, error) {
	return r.list(ctx, `SELECT `+entryColumns+` FROM catalog_entries WHERE title = $1 ORDER BY id`, title)
}

// FindByDurationLessThan lists entries shorter than threshold
func (r *PostgresCatalogStore) FindByDurationLessThan(ctx context.Context, threshold int64) ([]*models.Entry, error) {
	return r.list(ctx, `SELECT `+entryColumns+` FROM catalog_entries WHERE duration_seconds < $1 ORDER BY id`, threshold)
}

func (r *PostgresCatalogStore) list(ctx context.Context, query string, args ...any) ([]*models.Entry, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list entries: %w", models.ErrStorageFailure, err)
	}
	defer rows.Close()

	entries := make([]*models.Entry, 0)
	for rows.Next() {
		entry := &models.Entry{}
		if err := rows.Scan(
			&entry.ID,
			&entry.Title,
			&entry.Duration,
			&entry.ContentType,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("%w: scan entry: %w", models.ErrStorageFailure, err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list entries: %w", models.ErrStorageFailure, err)
	}

	return entries, nil
}

// UpdateContentType records the content type of a bound payload
func (r *PostgresCatalogStore) UpdateContentType(ctx context.Context, id int64, contentType string) error {
	return r.exec(ctx, "update content type",
		`UPDATE catalog_entries SET content_type = $2 WHERE id = $1`,
		id, contentType)
}

// UpdateDetails replaces title and duration
func (r *PostgresCatalogStore) UpdateDetails(ctx context.Context, id int64, title string, duration int64) error {
	return r.exec(ctx, "update details",
		`UPDATE catalog_entries SET title = $2, duration_seconds = $3 WHERE id = $1`,
		id, title, duration)
}

func (r *PostgresCatalogStore) exec(ctx context.Context, op, query string, args ...any) error {
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", models.ErrStorageFailure, op, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
