package client

import (
	"github.com/cuemby/warren-sync/pkg/storage"
	"github.com/cuemby/warren-sync/pkg/types"
)

// decideRootNode implements the root-node decision procedure of §4.5.4:
// given an incoming (writer, version vector, hash, block presence) and
// every existing root node this repository already holds (across every
// branch, not just the incoming writer's), decide whether to insert the
// candidate and whether to request its children.
func decideRootNode(writerID types.WriterID, vv types.VersionVector, hash [32]byte, presence types.MultiBlockPresence, existing []storage.RootNode) (insert, requestChildren bool) {
	if vv.IsEmpty() {
		// Empty branches carry no content (§4.5.4 "if new.vv is empty,
		// ignore entirely"); the Non-goals open question resolves this
		// as "ignore", not "reject".
		return false, false
	}

	insert, requestChildren = true, true

	for _, ex := range existing {
		cmp := vv.Compare(ex.Proof.VersionVector)

		switch {
		case cmp == types.Less:
			// Strictly outdated: some existing branch already causally
			// dominates this candidate.
			return false, false

		case cmp == types.Equal && hash == ex.Proof.Hash:
			insert = false
			requestChildren = ex.Summary.BlockPresence.IsOutdatedVs(presence)

		case cmp == types.Equal && hash != ex.Proof.Hash:
			// Same causal position, different content: a known upstream
			// hazard (§9 "Concurrent roots with same vv and different
			// hash"). Keep both rather than rejecting; leave insert/
			// requestChildren at their defaults for this candidate.

		case cmp == types.Concurrent && ex.Proof.WriterID == writerID:
			// A writer producing concurrent snapshots of its own branch
			// violates invariant 1 (strictly increasing per-writer vv):
			// a protocol violation. Reject outright.
			return false, false
		}
	}

	return insert, requestChildren
}
