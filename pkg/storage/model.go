package storage

import "github.com/cuemby/warren-sync/pkg/types"

// Summary is the per-subtree rollup of admission state and block presence
// used to decide whether a subtree needs to be fetched (§3 Entities:
// Inner node).
type Summary struct {
	State         types.NodeState
	BlockPresence types.MultiBlockPresence
}

// LeafNode pairs an encrypted locator with the block it addresses (§3
// Entities: Leaf node). A branch contains at most one leaf per locator
// (invariant 4).
type LeafNode struct {
	Locator       types.Locator
	BlockID       types.BlockID
	BlockPresence types.MultiBlockPresence
}

// InnerNode is one of the 256 fixed-fanout slots under a root or another
// inner node, indexed by the corresponding byte of the locator (§3
// Entities: Inner node).
type InnerNode struct {
	Bucket  byte
	Hash    [32]byte
	Summary Summary
}

// Proof authenticates a snapshot: who wrote it, its causal position, and
// a signature binding both to the tree's content hash (§3 Entities: Root
// node).
type Proof struct {
	WriterID      types.WriterID
	VersionVector types.VersionVector
	Hash          [32]byte
	Signature     []byte
}

// RootNode is the latest (or a historical) snapshot root for a writer
// (§3 Entities: Root node, Branch).
type RootNode struct {
	Proof   Proof
	Summary Summary
}

// RootFilter selects which root node(s) a query is interested in (§4.1
// load_root_node).
type RootFilter int

const (
	// FilterAny returns the root node with the greatest version vector
	// regardless of state.
	FilterAny RootFilter = iota
	// FilterLatest is an alias of FilterAny kept for symmetry with
	// FilterLatestApproved; "latest" here means "causally newest for this
	// writer", which is the same ordering FilterAny uses.
	FilterLatest
	// FilterLatestApproved returns the causally newest root node whose
	// state is Approved.
	FilterLatestApproved
)

// ReceiveStatus reports the outcome of receive_root_node (§4.1).
type ReceiveStatus struct {
	// New is true if this proof's hash had never been seen before for
	// this writer (a genuinely new snapshot candidate, not a re-send).
	New bool
}

// FinalizeResult reports the outcome of finalize_receive (§4.1): which
// writer branches transitioned to or away from Approved along the path
// recomputed from parentHash up to its root.
type FinalizeResult struct {
	OldApproved []types.WriterID
	NewApproved []types.WriterID
}
