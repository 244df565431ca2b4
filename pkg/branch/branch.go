package branch

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/cuemby/warren-sync/pkg/crypto"
	"github.com/cuemby/warren-sync/pkg/log"
	"github.com/cuemby/warren-sync/pkg/storage"
	"github.com/cuemby/warren-sync/pkg/types"
)

// Branch is the latest approved root node for a given writer id, plus the
// store handle needed to read or extend its tree (§3 Entities: Branch).
// Exactly one Branch exists per writer id per repository at any moment;
// callers obtain it fresh from Load rather than caching it across a
// receive, since a remote snapshot can replace it wholesale.
type Branch struct {
	store    *storage.Store
	writerID types.WriterID
	// signer is non-nil only for the branch this device holds the write
	// key for; remote branches are read-only here.
	signer *crypto.Signer
	log    zerolog.Logger
}

// Local opens the branch this device can write to.
func Local(store *storage.Store, writerID types.WriterID, signer *crypto.Signer) *Branch {
	return &Branch{
		store:    store,
		writerID: writerID,
		signer:   signer,
		log:      log.WithComponent("branch").With().Str("writer_id", writerID.String()).Logger(),
	}
}

// Remote opens a read-only view of another writer's branch.
func Remote(store *storage.Store, writerID types.WriterID) *Branch {
	return &Branch{
		store:    store,
		writerID: writerID,
		log:      log.WithComponent("branch").With().Str("writer_id", writerID.String()).Logger(),
	}
}

// WriterID returns the writer this branch belongs to.
func (b *Branch) WriterID() types.WriterID { return b.writerID }

// Writable reports whether this branch was opened with a signer, i.e.
// this device holds the write key for it.
func (b *Branch) Writable() bool { return b.signer != nil }

// Signer returns the branch's signer, or nil if this is a read-only view
// of a remote writer's branch.
func (b *Branch) Signer() *crypto.Signer { return b.signer }

// CurrentRoot returns the branch's current approved root node, or
// ErrEntryNotFound if the writer has never committed anything (§4.1
// load_root_node with FilterLatestApproved).
func (b *Branch) CurrentRoot() (storage.RootNode, error) {
	r, err := b.store.AcquireRead()
	if err != nil {
		return storage.RootNode{}, err
	}
	defer r.Close()
	return r.LoadRootNode(b.writerID, storage.FilterLatestApproved)
}

// VersionVector returns the branch's current version vector, or the
// empty vector if the branch has no content yet.
func (b *Branch) VersionVector() (types.VersionVector, error) {
	root, err := b.CurrentRoot()
	if err == storage.ErrEntryNotFound {
		return types.NewVersionVector(), nil
	}
	if err != nil {
		return nil, err
	}
	return root.Proof.VersionVector, nil
}

// Bump applies a version-vector-only change to the local branch: it
// merges delta into the branch's vv and writes a new root node that
// points at the same content (no leaf changed), per §4.3's "bump(vv)"
// used when merge only needs to record that this branch has observed a
// remote causal position, not that its content changed.
func (b *Branch) Bump(delta types.VersionVector) (storage.RootNode, error) {
	if b.signer == nil {
		return storage.RootNode{}, fmt.Errorf("branch: bump requires write access")
	}

	tx, err := b.store.BeginWrite()
	if err != nil {
		return storage.RootNode{}, err
	}
	defer tx.Rollback()

	root, err := tx.BumpVersionVector(b.writerID, delta, b.signer)
	if err != nil {
		return storage.RootNode{}, err
	}
	if err := tx.Commit(); err != nil {
		return storage.RootNode{}, err
	}
	return root, nil
}

// Log returns the branch's component-scoped logger, for use by callers
// (directory, joint) that perform operations on behalf of this branch.
func (b *Branch) Log() zerolog.Logger { return b.log }
