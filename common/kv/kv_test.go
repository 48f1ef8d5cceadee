package kv

import (
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/lyzr/mediacatalog/common/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_InMemory(t *testing.T) {
	store, err := Open("", logger.Nop())
	require.NoError(t, err)

	require.NoError(t, store.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte("k"), []byte("v"))
	}))
	assert.NoError(t, store.Health())

	require.NoError(t, store.Close())
	assert.Error(t, store.Health())
}

func TestOpen_OnDiskSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(dir, logger.Nop())
	require.NoError(t, err)
	require.NoError(t, store.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte("k"), []byte("v"))
	}))
	require.NoError(t, store.Close())

	store, err = Open(dir, logger.Nop())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("k"))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			assert.Equal(t, "v", string(val))
			return nil
		})
	}))
}
