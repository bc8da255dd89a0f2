package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryPutGetDelete(t *testing.T) {
	var tbl Table = NewMemory()

	require.NoError(t, tbl.Put([]byte("k1"), []byte("v1")))
	v, err := tbl.Get([]byte("k1"))
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), v)

	require.NoError(t, tbl.Delete([]byte("k1")))
	_, err = tbl.Get([]byte("k1"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryGetReturnsACopy(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Put([]byte("k"), []byte("original")))

	v, err := m.Get([]byte("k"))
	require.NoError(t, err)
	v[0] = 'X'

	v2, err := m.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("original"), v2)
}

func TestMemoryBadInput(t *testing.T) {
	m := NewMemory()
	_, err := m.Get(nil)
	require.ErrorIs(t, err, ErrBadInput)
	require.ErrorIs(t, m.Put(nil, []byte("v")), ErrBadInput)
	require.ErrorIs(t, m.Delete(nil), ErrBadInput)
}

func TestMemoryKeys(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Put([]byte("a"), []byte("1")))
	require.NoError(t, m.Put([]byte("b"), []byte("2")))

	keys, err := m.Keys()
	require.NoError(t, err)
	require.ElementsMatch(t, [][]byte{[]byte("a"), []byte("b")}, keys)
}

func TestMemoryClear(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Put([]byte("a"), []byte("1")))
	require.NoError(t, m.Put([]byte("b"), []byte("2")))
	require.NoError(t, m.Clear())
	require.Equal(t, 0, m.Len())
}
