package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAddAssignsUniqueIDsAndChecksPermissions(t *testing.T) {
	r := New()

	id1, err := r.Add(5, "alice")
	require.NoError(t, err)
	id2, err := r.Add(7, "bob")
	require.NoError(t, err)
	require.NotEqual(t, id1, id2)

	require.Equal(t, uint8(5), r.Check(id1))
	require.Equal(t, uint8(7), r.Check(id2))
	require.Equal(t, uint8(0), r.Check(id1+id2+1000))
}

func TestAddRejectsBadUsername(t *testing.T) {
	r := New()
	_, err := r.Add(1, "")
	require.ErrorIs(t, err, ErrBadInput)

	big := make([]byte, MaxUsernameLen+1)
	_, err = r.Add(1, string(big))
	require.ErrorIs(t, err, ErrBadInput)
}

// TestRegistryCapacity mirrors scenario S4: MaxSessions live sessions fill
// the registry and the next Add fails with ErrFull.
func TestRegistryCapacity(t *testing.T) {
	r := New()
	for i := 0; i < MaxSessions; i++ {
		if _, err := r.Add(1, "u"); err != nil {
			require.Failf(t, "unexpected Add failure", "at i=%d: %v", i, err)
		}
	}
	_, err := r.Add(1, "overflow")
	require.ErrorIs(t, err, ErrFull)
}

func TestDestroyAndFind(t *testing.T) {
	r := New()
	id, err := r.Add(3, "carol")
	require.NoError(t, err)

	rec, err := r.Find(id)
	require.NoError(t, err)
	require.Equal(t, "carol", rec.Username)

	require.NoError(t, r.Destroy(id))
	_, err = r.Find(id)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, r.Destroy(id), ErrNotFound)
}

func TestExpireOldestFIFO(t *testing.T) {
	r := New()
	idA, _ := r.Add(1, "a")
	_, _ = r.Add(1, "b")

	require.NoError(t, r.ExpireOldest())
	_, err := r.Find(idA)
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, 1, r.Len())
}

func TestExpireIdleBefore(t *testing.T) {
	r := New()
	_, _ = r.Add(1, "stale")
	id2, _ := r.Add(1, "fresh")

	cutoff := time.Now().Add(time.Millisecond)
	time.Sleep(2 * time.Millisecond)
	r.Touch(id2)

	evicted := r.ExpireIdleBefore(cutoff)
	require.Equal(t, 1, evicted)
	require.Equal(t, 1, r.Len())
	_, err := r.Find(id2)
	require.NoError(t, err)
}

func TestRegistryConcurrentAdd(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	ids := make(chan uint32, 200)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := r.Add(1, "concurrent")
			require.NoError(t, err)
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[uint32]bool)
	for id := range ids {
		require.False(t, seen[id], "duplicate session id %d", id)
		seen[id] = true
	}
}
