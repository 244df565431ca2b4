package storage

import (
	"encoding/json"
	"fmt"

	"github.com/cuemby/warren-sync/pkg/crypto"
	"github.com/cuemby/warren-sync/pkg/types"
)

// ApplyLocalLeafChange upserts (blockID != nil) or removes (blockID == nil)
// a single locator's leaf in writerID's own branch, recomputes only the
// affected bucket's hash and the root hash, bumps the branch's version
// vector, signs a new proof, and stores the result as an Approved root
// node — a local write is by definition fully known, so it never needs
// the Incomplete/Complete staging remote snapshots go through (§4.1
// Local writes, §3 invariant 2).
//
// The branch's previous root and bucket rows are left in place. The
// repository's pruner worker later deletes superseded root records
// (PruneStaleRoots); the old inner and leaf rows are not deleted, so the
// blocks they reference keep their reference counts.
func (t *WriteTransaction) ApplyLocalLeafChange(writerID types.WriterID, locator types.Locator, blockID *types.BlockID, signer *crypto.Signer) (RootNode, error) {
	r := t.reader()

	prevRoot, children, err := t.currentChildren(r, writerID)
	if err != nil {
		return RootNode{}, err
	}

	bucket := BucketIndex(locator)
	oldBucketHash := children[bucket]
	leaves, err := r.LeafNodes(oldBucketHash)
	if err != nil {
		return RootNode{}, err
	}
	leaves = upsertOrRemoveLeaf(leaves, locator, blockID)

	newBucketHash := hashLeafSet(leaves)
	for _, leaf := range leaves {
		if err := t.PutLeafNode(newBucketHash, leaf); err != nil {
			return RootNode{}, err
		}
	}
	children[bucket] = newBucketHash

	newRootHash := hashInnerSet(children)
	for b, h := range children {
		if h == ([32]byte{}) {
			continue
		}
		node := InnerNode{
			Bucket:  byte(b),
			Hash:    h,
			Summary: Summary{State: types.StateApproved, BlockPresence: types.Full()},
		}
		if err := t.PutInnerNode(newRootHash, node); err != nil {
			return RootNode{}, err
		}
	}

	vv := types.NewVersionVector()
	if prevRoot != nil {
		vv = prevRoot.Proof.VersionVector.Clone()
	}
	vv = vv.Increment(writerID)

	digest := proofDigest(writerID, vv, newRootHash)
	proof := Proof{
		WriterID:      writerID,
		VersionVector: vv,
		Hash:          newRootHash,
		Signature:     signer.Sign(digest),
	}
	root := RootNode{Proof: proof, Summary: Summary{State: types.StateApproved, BlockPresence: types.Full()}}

	if err := t.putRootNode(root, types.StateApproved); err != nil {
		return RootNode{}, err
	}
	return root, nil
}

// BumpVersionVector writes a new root node for writerID that points at
// the same content (no leaf changed) but whose version vector has been
// merged with delta, per §4.3's version-vector-only "bump(vv)" used when
// a merge only needs to record a causal position, not a content change.
func (t *WriteTransaction) BumpVersionVector(writerID types.WriterID, delta types.VersionVector, signer *crypto.Signer) (RootNode, error) {
	r := t.reader()

	prevRoot, children, err := t.currentChildren(r, writerID)
	if err != nil {
		return RootNode{}, err
	}

	rootHash := hashInnerSet(children)

	vv := types.NewVersionVector()
	if prevRoot != nil {
		vv = prevRoot.Proof.VersionVector.Clone()
	}
	vv = vv.Merge(delta)

	digest := proofDigest(writerID, vv, rootHash)
	proof := Proof{
		WriterID:      writerID,
		VersionVector: vv,
		Hash:          rootHash,
		Signature:     signer.Sign(digest),
	}
	root := RootNode{Proof: proof, Summary: Summary{State: types.StateApproved, BlockPresence: types.Full()}}

	if err := t.putRootNode(root, types.StateApproved); err != nil {
		return RootNode{}, err
	}
	return root, nil
}

// currentChildren returns writerID's current root node (nil if the
// branch has never written anything) and its 256 bucket hashes, zero for
// unpopulated buckets.
func (t *WriteTransaction) currentChildren(r *Reader, writerID types.WriterID) (*RootNode, [256][32]byte, error) {
	var children [256][32]byte

	root, err := r.LoadRootNode(writerID, FilterAny)
	if err == ErrEntryNotFound {
		return nil, children, nil
	}
	if err != nil {
		return nil, children, err
	}

	inner, err := r.InnerNodes(root.Proof.Hash)
	if err != nil {
		return nil, children, err
	}
	for _, n := range inner {
		children[n.Bucket] = n.Hash
	}
	return &root, children, nil
}

func (t *WriteTransaction) putRootNode(root RootNode, state types.NodeState) error {
	rec := rootRecord{Proof: root.Proof, Summary: root.Summary, State: state}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal root node: %w", err)
	}
	return t.tx.Bucket(bucketRoots).Put(rootKey(root.Proof.WriterID, root.Proof.Hash), data)
}

func upsertOrRemoveLeaf(leaves []LeafNode, locator types.Locator, blockID *types.BlockID) []LeafNode {
	out := leaves[:0:0]
	found := false
	for _, l := range leaves {
		if l.Locator == locator {
			found = true
			if blockID == nil {
				continue // drop it
			}
			l.BlockID = *blockID
			l.BlockPresence = types.Full()
		}
		out = append(out, l)
	}
	if !found && blockID != nil {
		out = append(out, LeafNode{Locator: locator, BlockID: *blockID, BlockPresence: types.Full()})
	}
	return out
}
