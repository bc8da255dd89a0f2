package commands

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chuxmalux/vaultd/internal/authtable"
	"github.com/chuxmalux/vaultd/internal/server"
)

func TestLoadAuthTableTreatsMissingFileAsEmpty(t *testing.T) {
	rootDir = t.TempDir()

	table, path, err := loadAuthTable()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(rootDir, server.AuthFileName), path)
	require.Equal(t, 0, table.Len())
}

func TestLoadAuthTableReadsExistingDump(t *testing.T) {
	rootDir = t.TempDir()
	path := filepath.Join(rootDir, server.AuthFileName)

	seed := authtable.New()
	require.NoError(t, seed.Put("alice", authtable.DefaultHash([]byte("hunter2")), 1))
	require.NoError(t, seed.Dump(path))

	table, _, err := loadAuthTable()
	require.NoError(t, err)
	require.Equal(t, 1, table.Len())

	entry, err := table.Lookup("alice")
	require.NoError(t, err)
	require.Equal(t, uint8(1), entry.Permissions)
}
