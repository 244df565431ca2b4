package branch

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/warren-sync/pkg/crypto"
	"github.com/cuemby/warren-sync/pkg/storage"
	"github.com/cuemby/warren-sync/pkg/types"
)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	var repoID types.RepositoryID
	_, err := rand.Read(repoID[:])
	require.NoError(t, err)
	s, err := storage.Open(t.TempDir(), repoID, 0)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestSigner(t *testing.T) (*crypto.Signer, types.WriterID) {
	t.Helper()
	var seed [32]byte
	_, err := rand.Read(seed[:])
	require.NoError(t, err)
	signer, err := crypto.NewSigner(seed[:])
	require.NoError(t, err)
	var writerID types.WriterID
	copy(writerID[:], signer.PublicKey())
	return signer, writerID
}

// A freshly-created local branch has no root node yet, so its version
// vector reads as empty rather than erroring (branches start with no
// content until the first commit).
func TestLocalBranchStartsEmpty(t *testing.T) {
	store := newTestStore(t)
	signer, writerID := newTestSigner(t)

	br := Local(store, writerID, signer)
	require.True(t, br.Writable())

	vv, err := br.VersionVector()
	require.NoError(t, err)
	require.True(t, vv.IsEmpty())

	_, err = br.CurrentRoot()
	require.ErrorIs(t, err, storage.ErrEntryNotFound)
}

// A remote branch has no signer and is never writable.
func TestRemoteBranchNotWritable(t *testing.T) {
	store := newTestStore(t)
	_, writerID := newTestSigner(t)

	br := Remote(store, writerID)
	require.False(t, br.Writable())
	require.Nil(t, br.Signer())
}

// Bump merges delta into the branch's version vector and persists a new
// root node carrying the merged vector, which never goes backwards and
// advances only when delta is not already covered.
func TestBumpAdvancesVersionVector(t *testing.T) {
	store := newTestStore(t)
	signer, writerID := newTestSigner(t)
	br := Local(store, writerID, signer)

	otherWriter := types.WriterID{9}
	delta := types.NewVersionVector().Increment(otherWriter).Increment(otherWriter)

	root, err := br.Bump(delta)
	require.NoError(t, err)
	require.Equal(t, uint64(2), root.Proof.VersionVector[otherWriter])

	vv, err := br.VersionVector()
	require.NoError(t, err)
	require.Equal(t, uint64(2), vv[otherWriter])

	// Bumping again with the same (already-merged) delta is a no-op on
	// the version vector: merge is idempotent, so the vv never goes
	// backwards (P3: monotone, never decreasing in any writer's
	// component).
	root2, err := br.Bump(delta)
	require.NoError(t, err)
	require.Equal(t, types.Equal, root.Proof.VersionVector.Compare(root2.Proof.VersionVector))

	// Bumping with a strictly new delta advances it further.
	delta2 := delta.Clone().Increment(otherWriter)
	root3, err := br.Bump(delta2)
	require.NoError(t, err)
	require.Equal(t, types.Less, root2.Proof.VersionVector.Compare(root3.Proof.VersionVector))
}

// Bump on a read-only remote branch fails: only the holder of the write
// key can extend a branch's proof chain.
func TestBumpRejectedOnRemoteBranch(t *testing.T) {
	store := newTestStore(t)
	_, writerID := newTestSigner(t)
	br := Remote(store, writerID)

	_, err := br.Bump(types.NewVersionVector())
	require.Error(t, err)
}
