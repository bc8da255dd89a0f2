package authtable

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPutLookupRemove(t *testing.T) {
	tbl := New()
	require.NoError(t, tbl.Put("alice", DefaultHash([]byte("hunter2")), 7))

	e, err := tbl.Lookup("alice")
	require.NoError(t, err)
	require.Equal(t, uint8(7), e.Permissions)

	require.NoError(t, tbl.Remove("alice"))
	_, err = tbl.Lookup("alice")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPutRejectsBadInput(t *testing.T) {
	tbl := New()
	require.ErrorIs(t, tbl.Put("", DefaultHash(nil), 1), ErrBadInput)
	require.ErrorIs(t, tbl.Put("bob", DefaultHash(nil), 0), ErrBadInput)
}

// TestDumpLoadRoundTrip mirrors scenario S6: populate, dump, clear, load,
// and the table must come back identical.
func TestDumpLoadRoundTrip(t *testing.T) {
	tbl := New()
	require.NoError(t, tbl.Put("alice", DefaultHash([]byte("p1")), 5))
	require.NoError(t, tbl.Put("bob", DefaultHash([]byte("p2")), 3))

	path := filepath.Join(t.TempDir(), "auth_users")
	require.NoError(t, tbl.Dump(path))

	tbl.Clear()
	require.Equal(t, 0, tbl.Len())

	require.NoError(t, tbl.Load(path))
	require.Equal(t, 2, tbl.Len())

	alice, err := tbl.Lookup("alice")
	require.NoError(t, err)
	require.Equal(t, DefaultHash([]byte("p1")), alice.PasswordHash)
	require.Equal(t, uint8(5), alice.Permissions)

	bob, err := tbl.Lookup("bob")
	require.NoError(t, err)
	require.Equal(t, uint8(3), bob.Permissions)
	_ = bob
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	tbl := New()
	require.NoError(t, tbl.Load(filepath.Join(t.TempDir(), "does-not-exist")))
	require.Equal(t, 0, tbl.Len())
}

func TestBcryptHashDiffersFromDefault(t *testing.T) {
	alt := BcryptHash(bcryptTestCost)
	require.NotEqual(t, DefaultHash([]byte("password")), alt([]byte("password")))
}

// TestBcryptHashVerifyRoundTrips guards against the salted-digest trap a
// bare equality comparison falls into: BcryptHash must never be compared to
// a freshly recomputed hash, only checked with BcryptVerify.
func TestBcryptHashVerifyRoundTrips(t *testing.T) {
	hash := BcryptHash(bcryptTestCost)
	digest := hash([]byte("password"))

	require.NotEqual(t, digest, hash([]byte("password")), "bcrypt digests must be salted, not deterministic")
	require.True(t, BcryptVerify([]byte("password"), digest))
	require.False(t, BcryptVerify([]byte("wrong"), digest))
}

func TestDefaultHashVerifyRoundTrips(t *testing.T) {
	digest := DefaultHash([]byte("password"))
	require.True(t, DefaultVerify([]byte("password"), digest))
	require.False(t, DefaultVerify([]byte("wrong"), digest))
}

// TestVerifyDispatchesByDigestFormat checks that the generic Verify picks
// the right scheme per entry, so a table can mix DefaultHash and BcryptHash
// rows (an operator migrating users to bcrypt one passwd at a time).
func TestVerifyDispatchesByDigestFormat(t *testing.T) {
	plain := DefaultHash([]byte("hunter2"))
	salted := BcryptHash(bcryptTestCost)([]byte("hunter2"))

	require.True(t, Verify([]byte("hunter2"), plain))
	require.True(t, Verify([]byte("hunter2"), salted))
	require.False(t, Verify([]byte("wrong"), plain))
	require.False(t, Verify([]byte("wrong"), salted))
}

// TestDumpLoadRoundTripMixedSchemes checks that a bcrypt digest survives
// Dump/Load unchanged: it must contain no whitespace, since Dump's on-disk
// format is space-delimited.
func TestDumpLoadRoundTripMixedSchemes(t *testing.T) {
	tbl := New()
	require.NoError(t, tbl.Put("alice", DefaultHash([]byte("p1")), 5))
	require.NoError(t, tbl.Put("carol", BcryptHash(bcryptTestCost)([]byte("p3")), 2))

	path := filepath.Join(t.TempDir(), "auth_users")
	require.NoError(t, tbl.Dump(path))
	tbl.Clear()
	require.NoError(t, tbl.Load(path))

	alice, err := tbl.Lookup("alice")
	require.NoError(t, err)
	require.True(t, Verify([]byte("p1"), alice.PasswordHash))

	carol, err := tbl.Lookup("carol")
	require.NoError(t, err)
	require.True(t, Verify([]byte("p3"), carol.PasswordHash))
}

const bcryptTestCost = 4
