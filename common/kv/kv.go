package kv

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/lyzr/mediacatalog/common/logger"
)

// KV wraps an embedded badger database
type KV struct {
	*badger.DB
	log *logger.Logger
}

// Open opens (or creates) a badger database under dir.
// An empty dir opens an in-memory database.
func Open(dir string, log *logger.Logger) (*KV, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", dir, err)
	}

	log.Info("kv store opened", "dir", dir, "in_memory", dir == "")

	return &KV{DB: db, log: log}, nil
}

// Close closes the database
func (k *KV) Close() error {
	k.log.Info("closing kv store")
	return k.DB.Close()
}

// Health reports an error when the database has been closed
func (k *KV) Health() error {
	if k.DB.IsClosed() {
		return fmt.Errorf("kv store is closed")
	}
	return nil
}
