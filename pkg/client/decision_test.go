package client

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/warren-sync/pkg/storage"
	"github.com/cuemby/warren-sync/pkg/types"
)

func writerID(b byte) types.WriterID {
	var w types.WriterID
	w[0] = b
	return w
}

func vv(writer types.WriterID, n uint64) types.VersionVector {
	out := types.NewVersionVector()
	out[writer] = n
	return out
}

// §4.5.4: an empty incoming version vector is ignored outright.
func TestDecideRootNodeIgnoresEmptyVV(t *testing.T) {
	insert, request := decideRootNode(writerID(1), types.NewVersionVector(), [32]byte{}, types.Full(), nil)
	require.False(t, insert)
	require.False(t, request)
}

// With no existing root nodes at all, a non-empty candidate is accepted
// and its children requested.
func TestDecideRootNodeAcceptsWhenNoExisting(t *testing.T) {
	w := writerID(1)
	insert, request := decideRootNode(w, vv(w, 1), [32]byte{1}, types.Full(), nil)
	require.True(t, insert)
	require.True(t, request)
}

// If the candidate's vv is strictly less than an existing branch's vv,
// it is strictly outdated: never inserted, never worth requesting
// children for.
func TestDecideRootNodeRejectsStrictlyOutdated(t *testing.T) {
	w := writerID(1)
	existing := []storage.RootNode{
		{Proof: storage.Proof{WriterID: w, VersionVector: vv(w, 5), Hash: [32]byte{9}}},
	}
	insert, request := decideRootNode(w, vv(w, 2), [32]byte{1}, types.Full(), existing)
	require.False(t, insert)
	require.False(t, request)
}

// Same vv, same hash, and the existing summary already has full block
// presence: nothing new to do.
func TestDecideRootNodeSameVVSameHashUpToDate(t *testing.T) {
	w := writerID(1)
	hash := [32]byte{7}
	existing := []storage.RootNode{
		{
			Proof:   storage.Proof{WriterID: w, VersionVector: vv(w, 5), Hash: hash},
			Summary: storage.Summary{BlockPresence: types.Full()},
		},
	}
	insert, request := decideRootNode(w, vv(w, 5), hash, types.Full(), existing)
	require.False(t, insert)
	require.False(t, request)
}

// Same vv, same hash, but the incoming presence carries information the
// locally-stored summary doesn't: still worth requesting children, even
// though there's nothing new to insert.
func TestDecideRootNodeSameVVSameHashOutdatedPresence(t *testing.T) {
	w := writerID(1)
	hash := [32]byte{7}
	existing := []storage.RootNode{
		{
			Proof:   storage.Proof{WriterID: w, VersionVector: vv(w, 5), Hash: hash},
			Summary: storage.Summary{BlockPresence: types.None()},
		},
	}
	insert, request := decideRootNode(w, vv(w, 5), hash, types.Full(), existing)
	require.False(t, insert)
	require.True(t, request)
}

// Same vv, different hash: a known upstream hazard (§9). Both are kept,
// so the candidate is still inserted and its children requested.
func TestDecideRootNodeSameVVDifferentHashKeepsBoth(t *testing.T) {
	w := writerID(1)
	existing := []storage.RootNode{
		{Proof: storage.Proof{WriterID: w, VersionVector: vv(w, 5), Hash: [32]byte{1}}},
	}
	insert, request := decideRootNode(w, vv(w, 5), [32]byte{2}, types.Full(), existing)
	require.True(t, insert)
	require.True(t, request)
}

// A writer producing two concurrent (incomparable) snapshots of its own
// branch is a protocol violation: rejected outright.
func TestDecideRootNodeRejectsSameWriterConcurrentSnapshots(t *testing.T) {
	w := writerID(1)
	other := writerID(2)
	existing := []storage.RootNode{
		{Proof: storage.Proof{WriterID: w, VersionVector: vv(other, 3), Hash: [32]byte{1}}},
	}
	// existing vv has only `other`'s component set; candidate vv has only
	// `w`'s own component set -> incomparable (concurrent), same writer_id.
	insert, request := decideRootNode(w, vv(w, 1), [32]byte{2}, types.Full(), existing)
	require.False(t, insert)
	require.False(t, request)
}

// A candidate that is concurrent with an existing branch but from a
// *different* writer is not a protocol violation; it is inserted and
// its children requested, since incomparable-but-different-writer falls
// through to the "strictly greater or unrelated across writers" default.
func TestDecideRootNodeAcceptsConcurrentAcrossDifferentWriters(t *testing.T) {
	w1 := writerID(1)
	w2 := writerID(2)
	existing := []storage.RootNode{
		{Proof: storage.Proof{WriterID: w1, VersionVector: vv(w1, 3), Hash: [32]byte{1}}},
	}
	insert, request := decideRootNode(w2, vv(w2, 1), [32]byte{2}, types.Full(), existing)
	require.True(t, insert)
	require.True(t, request)
}
