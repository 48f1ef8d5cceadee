package repository

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/lyzr/mediacatalog/common/db"
)

//go:embed schema.sql
var schemaSQL string

// Migrate creates the catalog tables and id sequence if they do not exist
func Migrate(ctx context.Context, q db.Querier) error {
	if _, err := q.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply catalog schema: %w", err)
	}
	return nil
}
