package joint

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/warren-sync/pkg/branch"
	"github.com/cuemby/warren-sync/pkg/crypto"
	"github.com/cuemby/warren-sync/pkg/directory"
	"github.com/cuemby/warren-sync/pkg/storage"
	"github.com/cuemby/warren-sync/pkg/types"
)

type fixture struct {
	store     *storage.Store
	cipher    *crypto.BlockCipher
	locCipher *crypto.LocatorCipher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	var repoID types.RepositoryID
	_, err := rand.Read(repoID[:])
	require.NoError(t, err)
	store, err := storage.Open(t.TempDir(), repoID, 0)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	var readKey [32]byte
	_, err = rand.Read(readKey[:])
	require.NoError(t, err)
	cipher, err := crypto.NewBlockCipher(readKey[:])
	require.NoError(t, err)
	locCipher, err := crypto.NewLocatorCipher(readKey[:])
	require.NoError(t, err)

	return &fixture{store: store, cipher: cipher, locCipher: locCipher}
}

func (fx *fixture) newWriter(t *testing.T) (types.WriterID, *crypto.Signer) {
	t.Helper()
	var seed [32]byte
	_, err := rand.Read(seed[:])
	require.NoError(t, err)
	signer, err := crypto.NewSigner(seed[:])
	require.NoError(t, err)
	var writerID types.WriterID
	copy(writerID[:], signer.PublicKey())
	return writerID, signer
}

func (fx *fixture) openRoot(t *testing.T, writerID types.WriterID, signer *crypto.Signer) *directory.Directory {
	t.Helper()
	br := branch.Local(fx.store, writerID, signer)
	dir, err := directory.OpenRoot(fx.store, fx.cipher, fx.locCipher, br)
	require.NoError(t, err)
	return dir
}

// TestBuildMergesDisjointNamesAcrossWriters verifies each writer's
// distinct entries all surface, unqualified, in the joint view when
// nothing is concurrent (§4.4 basic case).
func TestBuildMergesDisjointNamesAcrossWriters(t *testing.T) {
	fx := newFixture(t)
	w1, s1 := fx.newWriter(t)
	w2, s2 := fx.newWriter(t)

	dir1 := fx.openRoot(t, w1, s1)
	_, err := dir1.CreateFile("alice.txt")
	require.NoError(t, err)
	require.NoError(t, dir1.Flush())

	dir2 := fx.openRoot(t, w2, s2)
	_, err = dir2.CreateFile("bob.txt")
	require.NoError(t, err)
	require.NoError(t, dir2.Flush())

	jd := Build(map[types.WriterID]*directory.Directory{w1: dir1, w2: dir2})
	names := jd.UniqueNames()
	require.ElementsMatch(t, []string{"alice.txt", "bob.txt"}, names)

	v, err := jd.Lookup("alice.txt")
	require.NoError(t, err)
	require.Equal(t, w1, v.WriterID)
}

// TestBuildDisambiguatesConcurrentVersions covers §4.4/§8 scenario 5:
// two writers create unrelated files under the same name with no causal
// relationship between them, so both survive as writer-qualified names.
func TestBuildDisambiguatesConcurrentVersions(t *testing.T) {
	fx := newFixture(t)
	w1, s1 := fx.newWriter(t)
	w2, s2 := fx.newWriter(t)

	dir1 := fx.openRoot(t, w1, s1)
	_, err := dir1.CreateFile("same.txt")
	require.NoError(t, err)
	require.NoError(t, dir1.Flush())

	dir2 := fx.openRoot(t, w2, s2)
	_, err = dir2.CreateFile("same.txt")
	require.NoError(t, err)
	require.NoError(t, dir2.Flush())

	jd := Build(map[types.WriterID]*directory.Directory{w1: dir1, w2: dir2})

	_, err = jd.Lookup("same.txt")
	require.ErrorIs(t, err, directory.ErrAmbiguousEntry)

	names := jd.UniqueNames()
	require.Len(t, names, 2)
	for _, n := range names {
		require.Contains(t, n, "same.txt@")
	}

	v, err := jd.LookupUnique(names[0])
	require.NoError(t, err)
	require.True(t, v.WriterID == w1 || v.WriterID == w2)
}

func TestLookupMissingNameReturnsNotFound(t *testing.T) {
	fx := newFixture(t)
	w1, s1 := fx.newWriter(t)
	dir1 := fx.openRoot(t, w1, s1)

	jd := Build(map[types.WriterID]*directory.Directory{w1: dir1})
	_, err := jd.Lookup("missing.txt")
	require.ErrorIs(t, err, directory.ErrEntryNotFound)
}
