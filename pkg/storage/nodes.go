package storage

import (
	"encoding/json"
	"fmt"

	"github.com/cuemby/warren-sync/pkg/types"
)

// rootRecord is the JSON-on-disk shape of a root node, following the
// teacher's json.Marshal/Unmarshal convention for bucket values.
type rootRecord struct {
	Proof   Proof
	Summary Summary
	State   types.NodeState
}

// LoadRootNode returns the root node for writerID selected by filter
// (§4.1 load_root_node).
func (r *Reader) LoadRootNode(writerID types.WriterID, filter RootFilter) (RootNode, error) {
	b := r.tx.Bucket(bucketRoots)
	prefix := writerID[:]

	var best *rootRecord
	c := b.Cursor()
	for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
		var rec rootRecord
		if err := json.Unmarshal(v, &rec); err != nil {
			return RootNode{}, newCorruptionError(err)
		}
		if filter == FilterLatestApproved && rec.State != types.StateApproved {
			continue
		}
		if best == nil || rec.Proof.VersionVector.Compare(best.Proof.VersionVector) == types.Greater {
			cp := rec
			best = &cp
		}
	}
	if best == nil {
		return RootNode{}, ErrEntryNotFound
	}
	return RootNode{Proof: best.Proof, Summary: best.Summary}, nil
}

// ReceiveRootNode stores an incoming proof as an Incomplete candidate
// (§4.1 receive_root_node, §4.5.4 root node decision procedure). It is
// idempotent: re-receiving an already-known hash reports New=false and
// performs no write.
func (t *WriteTransaction) ReceiveRootNode(proof Proof) (ReceiveStatus, error) {
	b := t.tx.Bucket(bucketRoots)
	key := rootKey(proof.WriterID, proof.Hash)

	if b.Get(key) != nil {
		return ReceiveStatus{New: false}, nil
	}

	rec := rootRecord{
		Proof:   proof,
		Summary: Summary{State: types.StateIncomplete, BlockPresence: types.None()},
		State:   types.StateIncomplete,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return ReceiveStatus{}, fmt.Errorf("failed to marshal root node: %w", err)
	}
	if err := b.Put(key, data); err != nil {
		return ReceiveStatus{}, err
	}
	return ReceiveStatus{New: true}, nil
}

// LoadRootNodesInAnyState returns every root node currently stored,
// regardless of writer or admission state (§4.1 load_root_nodes_in_any_state),
// the input to the client's root-node decision procedure (§4.5.4), which
// needs visibility into Incomplete/Complete candidates too, not just the
// Approved branch heads.
func (r *Reader) LoadRootNodesInAnyState() ([]RootNode, error) {
	b := r.tx.Bucket(bucketRoots)
	var out []RootNode
	err := b.ForEach(func(k, v []byte) error {
		var rec rootRecord
		if err := json.Unmarshal(v, &rec); err != nil {
			return newCorruptionError(err)
		}
		out = append(out, RootNode{Proof: rec.Proof, Summary: rec.Summary})
		return nil
	})
	return out, err
}

// innerRecord is the JSON-on-disk shape of one of a parent's 256 slots.
type innerRecord struct {
	Hash    [32]byte
	Summary Summary
}

// PutInnerNode stores (or overwrites) one of parentHash's 256 children.
// Used both when applying a local write and when assembling nodes
// received over the wire via ChildNodes messages.
func (t *WriteTransaction) PutInnerNode(parentHash [32]byte, node InnerNode) error {
	b := t.tx.Bucket(bucketInner)
	data, err := json.Marshal(innerRecord{Hash: node.Hash, Summary: node.Summary})
	if err != nil {
		return fmt.Errorf("failed to marshal inner node: %w", err)
	}
	return b.Put(innerKey(parentHash, node.Bucket), data)
}

// InnerNodes returns all populated children of parentHash.
func (r *Reader) InnerNodes(parentHash [32]byte) ([]InnerNode, error) {
	b := r.tx.Bucket(bucketInner)
	var out []InnerNode
	c := b.Cursor()
	for k, v := c.Seek(parentHash[:]); k != nil && hasPrefix(k, parentHash[:]); k, v = c.Next() {
		if len(k) != len(parentHash)+1 {
			continue
		}
		var rec innerRecord
		if err := json.Unmarshal(v, &rec); err != nil {
			return nil, newCorruptionError(err)
		}
		out = append(out, InnerNode{Bucket: k[len(k)-1], Hash: rec.Hash, Summary: rec.Summary})
	}
	return out, nil
}

// leafRecord is the JSON-on-disk shape of a leaf.
type leafRecord struct {
	BlockID       types.BlockID
	BlockPresence types.MultiBlockPresence
}

// PutLeafNode inserts or replaces the leaf at locator under parentHash,
// bumping the referenced block's refcount (and releasing the prior
// block's, if this replaces an existing leaf) so orphaned blocks become
// eligible for GC (§6.1 deletion trigger, invariant 3).
func (t *WriteTransaction) PutLeafNode(parentHash [32]byte, leaf LeafNode) error {
	b := t.tx.Bucket(bucketLeaves)
	key := leafKey(parentHash, leaf.Locator)

	if existing := b.Get(key); existing != nil {
		var old leafRecord
		if err := json.Unmarshal(existing, &old); err != nil {
			return newCorruptionError(err)
		}
		if old.BlockID == leaf.BlockID {
			return nil
		}
		if err := t.decrementBlockRef(old.BlockID); err != nil {
			return err
		}
	}

	data, err := json.Marshal(leafRecord{BlockID: leaf.BlockID, BlockPresence: leaf.BlockPresence})
	if err != nil {
		return fmt.Errorf("failed to marshal leaf node: %w", err)
	}
	if err := b.Put(key, data); err != nil {
		return err
	}
	return t.incrementBlockRef(leaf.BlockID)
}

// RemoveLeafNode deletes the leaf at locator under parentHash, releasing
// its reference to the underlying block.
func (t *WriteTransaction) RemoveLeafNode(parentHash [32]byte, locator types.Locator) error {
	b := t.tx.Bucket(bucketLeaves)
	key := leafKey(parentHash, locator)

	existing := b.Get(key)
	if existing == nil {
		return ErrEntryNotFound
	}
	var old leafRecord
	if err := json.Unmarshal(existing, &old); err != nil {
		return newCorruptionError(err)
	}
	if err := b.Delete(key); err != nil {
		return err
	}
	return t.decrementBlockRef(old.BlockID)
}

// LeafNodes returns all leaves stored under parentHash.
func (r *Reader) LeafNodes(parentHash [32]byte) ([]LeafNode, error) {
	b := r.tx.Bucket(bucketLeaves)
	var out []LeafNode
	c := b.Cursor()
	for k, v := c.Seek(parentHash[:]); k != nil && hasPrefix(k, parentHash[:]); k, v = c.Next() {
		if len(k) != len(parentHash)+len(types.Locator{}) {
			continue
		}
		var rec leafRecord
		if err := json.Unmarshal(v, &rec); err != nil {
			return nil, newCorruptionError(err)
		}
		var loc types.Locator
		copy(loc[:], k[len(parentHash):])
		out = append(out, LeafNode{Locator: loc, BlockID: rec.BlockID, BlockPresence: rec.BlockPresence})
	}
	return out, nil
}

// FinalizeReceive recomputes the summary of writerID's root node rootHash
// from the summaries of its inner nodes, promoting it to Approved when
// every inner node is Complete or Approved and total stored bytes are
// within quota (§4.1 finalize_receive, Storage quota). The inner nodes'
// own summaries are used as stored; they are not recomputed from their
// leaves.
func (t *WriteTransaction) FinalizeReceive(writerID types.WriterID, rootHash [32]byte, quota int64) (FinalizeResult, error) {
	inner, err := t.reader().InnerNodes(rootHash)
	if err != nil {
		return FinalizeResult{}, err
	}

	complete := true
	presence := types.None()
	for _, n := range inner {
		if n.Summary.State != types.StateComplete && n.Summary.State != types.StateApproved {
			complete = false
		}
		if n.Summary.BlockPresence.Kind == types.PresenceFull {
			presence = types.Full()
		} else if presence.Kind == types.PresenceNone && n.Summary.BlockPresence.Kind != types.PresenceNone {
			presence = types.MultiBlockPresence{Kind: types.PresenceSome}
		}
	}

	b := t.tx.Bucket(bucketRoots)
	key := rootKey(writerID, rootHash)
	raw := b.Get(key)
	if raw == nil {
		return FinalizeResult{}, ErrParentNodeNotFound
	}
	var rec rootRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return FinalizeResult{}, newCorruptionError(err)
	}

	result := FinalizeResult{}
	oldState := rec.State

	if !complete {
		rec.State = types.StateIncomplete
	} else {
		total, err := t.reader().TotalBytes()
		if err != nil {
			return FinalizeResult{}, err
		}
		if quota > 0 && total > quota {
			rec.State = types.StateComplete // stays short of Approved; admission withheld (§4.1 Storage quota)
		} else {
			rec.State = types.StateApproved
		}
	}
	rec.Summary = Summary{State: rec.State, BlockPresence: presence}

	if oldState == types.StateApproved && rec.State != types.StateApproved {
		result.OldApproved = append(result.OldApproved, writerID)
	}
	if oldState != types.StateApproved && rec.State == types.StateApproved {
		result.NewApproved = append(result.NewApproved, writerID)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return FinalizeResult{}, fmt.Errorf("failed to marshal root node: %w", err)
	}
	if err := b.Put(key, data); err != nil {
		return FinalizeResult{}, err
	}
	return result, nil
}

// PruneStaleRoots deletes every root record for writerID except keepHash,
// the pruner worker's cleanup of the "Accepted limitation" noted in
// pkg/storage's grounding entry: a local commit leaves its superseded
// root rows behind until something removes them. Inner and leaf node
// rows are left untouched since they are addressed by content hash and
// may still be shared with the kept root or with another writer's tree;
// only the small root record itself is reclaimed here.
func (t *WriteTransaction) PruneStaleRoots(writerID types.WriterID, keepHash [32]byte) (int, error) {
	b := t.tx.Bucket(bucketRoots)
	prefix := writerID[:]

	var toDelete [][]byte
	c := b.Cursor()
	for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
		var rec rootRecord
		if err := json.Unmarshal(v, &rec); err != nil {
			return 0, newCorruptionError(err)
		}
		if rec.Proof.Hash == keepHash {
			continue
		}
		toDelete = append(toDelete, append([]byte(nil), k...))
	}
	for _, k := range toDelete {
		if err := b.Delete(k); err != nil {
			return 0, err
		}
	}
	return len(toDelete), nil
}

// reader wraps the write transaction's underlying bolt.Tx as a Reader so
// write-side code can reuse the read-only query helpers above.
func (t *WriteTransaction) reader() *Reader {
	return &Reader{tx: t.tx}
}

// Reader exposes the write transaction's read-only query helpers to
// other packages (e.g. pkg/client, deciding what to do with a response
// while still inside the same transaction that will store it).
func (t *WriteTransaction) Reader() *Reader {
	return t.reader()
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}
