package repository

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/lyzr/mediacatalog/cmd/catalog/models"
)

// IdentityAllocator hands out entry ids. Ids are strictly positive,
// strictly increasing and never reused, even when the create that
// requested them fails.
type IdentityAllocator interface {
	Next(ctx context.Context) (int64, error)
}

// CatalogStore keeps entry metadata. Returned entries are copies.
type CatalogStore interface {
	Insert(ctx context.Context, entry *models.Entry) (*models.Entry, error)
	Get(ctx context.Context, id int64) (*models.Entry, error)
	// All returns every entry in ascending id order
	All(ctx context.Context) ([]*models.Entry, error)
	FindByTitle(ctx context.Context, title string) ([]*models.Entry, error)
	FindByDurationLessThan(ctx context.Context, threshold int64) ([]*models.Entry, error)
	UpdateContentType(ctx context.Context, id int64, contentType string) error
	UpdateDetails(ctx context.Context, id int64, title string, duration int64) error
}

// Payload is one stored payload opened for reading. ContentType and Body
// always come from the same Save. Callers must close Body.
type Payload struct {
	ContentType string
	Size        int64
	Body        io.ReadCloser
}

// PayloadStore keeps the binary content bound to an entry.
// Save is all-or-nothing: readers never observe a partial payload.
type PayloadStore interface {
	Save(ctx context.Context, id int64, contentType string, r io.Reader) (int64, error)
	Has(ctx context.Context, id int64) (bool, error)
	// Open returns ErrNotFound when nothing is stored for id
	Open(ctx context.Context, id int64) (*Payload, error)
}

// EngagementRegistry records which callers like which entries.
// Every operation on one id is linearizable; the count is always the
// size of the liker set.
type EngagementRegistry interface {
	// Register starts id with no likers
	Register(ctx context.Context, id int64) error
	Like(ctx context.Context, id int64, caller string) (int64, error)
	Unlike(ctx context.Context, id int64, caller string) (int64, error)
	// LikedBy returns the likers sorted ascending
	LikedBy(ctx context.Context, id int64) ([]string, error)
	Count(ctx context.Context, id int64) (int64, error)
	// Counts returns the like count per id; ids without likers count 0
	Counts(ctx context.Context, ids []int64) (map[int64]int64, error)
}

// storageErr passes domain errors through and wraps everything else
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range []error{
		models.ErrNotFound,
		models.ErrDuplicateIdentity,
		models.ErrAlreadyLiked,
		models.ErrNotLiked,
		models.ErrStorageFailure,
	} {
		if errors.Is(err, kind) {
			return err
		}
	}
	return fmt.Errorf("%w: %s: %w", models.ErrStorageFailure, op, err)
}
