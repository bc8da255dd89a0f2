package commands

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenStorageDefaultsToMemory(t *testing.T) {
	storageBackend = ""
	table, err := openStorage()
	require.NoError(t, err)
	defer table.Close()

	require.NoError(t, table.Put([]byte("k"), []byte("v")))
	v, err := table.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), v)
}

func TestOpenStorageBadger(t *testing.T) {
	rootDir = t.TempDir()
	storageBackend = "badger"
	t.Cleanup(func() { storageBackend = "memory" })

	table, err := openStorage()
	require.NoError(t, err)
	defer table.Close()

	require.NoError(t, table.Put([]byte("k"), []byte("v")))
	keys, err := table.Keys()
	require.NoError(t, err)
	require.Len(t, keys, 1)
}

func TestOpenStorageRejectsUnknownBackend(t *testing.T) {
	storageBackend = "nope"
	t.Cleanup(func() { storageBackend = "memory" })

	_, err := openStorage()
	require.Error(t, err)
}
