package repository

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/warren-sync/pkg/crypto"
	"github.com/cuemby/warren-sync/pkg/types"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()

	var repoID types.RepositoryID
	_, err := rand.Read(repoID[:])
	require.NoError(t, err)

	var readKey [32]byte
	_, err = rand.Read(readKey[:])
	require.NoError(t, err)

	var seed [32]byte
	_, err = rand.Read(seed[:])
	require.NoError(t, err)
	signer, err := crypto.NewSigner(seed[:])
	require.NoError(t, err)

	var writerID types.WriterID
	copy(writerID[:], signer.PublicKey())

	r, err := Open(Config{
		DataDir:        t.TempDir(),
		RepositoryID:   repoID,
		ReadKey:        readKey[:],
		WriteKeySeed:   seed[:],
		WritePublicKey: signer.PublicKey(),
		LocalWriterID:  writerID,
		RequestMode:    types.ModeLazy,
	})
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

// P9 (orphan GC): a block written with no referencing leaf is removed
// by the garbage collector's periodic sweep.
func TestGCCycleRemovesOrphanBlock(t *testing.T) {
	r := newTestRepo(t)

	var blockID types.BlockID
	_, err := rand.Read(blockID[:])
	require.NoError(t, err)
	var nonce types.BlockNonce
	_, err = rand.Read(nonce[:])
	require.NoError(t, err)

	tx, err := r.Store().BeginWrite()
	require.NoError(t, err)
	require.NoError(t, tx.WriteBlock(blockID, []byte("ciphertext"), nonce))
	require.NoError(t, tx.Commit())

	reader, err := r.Store().AcquireRead()
	require.NoError(t, err)
	require.True(t, reader.BlockExists(blockID))
	reader.Close()

	require.NoError(t, r.gcCycle())

	reader, err = r.Store().AcquireRead()
	require.NoError(t, err)
	defer reader.Close()
	require.False(t, reader.BlockExists(blockID))
}

// A gcCycle with nothing orphaned is a no-op (P2-style idempotence: safe
// to run redundantly).
func TestGCCycleNoOpWhenNothingOrphaned(t *testing.T) {
	r := newTestRepo(t)
	require.NoError(t, r.gcCycle())
	require.NoError(t, r.gcCycle())
}

// A read-only (non-writable) repository's merge cycle is a no-op: there
// is no local branch to merge into.
func TestMergeCycleNoOpWithoutWriteAccess(t *testing.T) {
	var repoID types.RepositoryID
	_, err := rand.Read(repoID[:])
	require.NoError(t, err)
	var readKey [32]byte
	_, err = rand.Read(readKey[:])
	require.NoError(t, err)
	var seed [32]byte
	_, err = rand.Read(seed[:])
	require.NoError(t, err)
	signer, err := crypto.NewSigner(seed[:])
	require.NoError(t, err)

	r, err := Open(Config{
		DataDir:        t.TempDir(),
		RepositoryID:   repoID,
		ReadKey:        readKey[:],
		WritePublicKey: signer.PublicKey(),
		RequestMode:    types.ModeLazy,
	})
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.mergeCycle())
}

// StartWorkers/StopWorkers can be started and stopped cleanly without
// panicking or deadlocking, even with nothing for them to do.
func TestStartStopWorkers(t *testing.T) {
	r := newTestRepo(t)
	r.StartWorkers()
	r.StopWorkers()
}
