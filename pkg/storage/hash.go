package storage

import (
	"encoding/binary"
	"sort"

	"golang.org/x/crypto/blake2b"

	"github.com/cuemby/warren-sync/pkg/types"
)

// hashLeafSet computes the content hash of a bucket's leaves: the sorted
// leaf set hashed together (§3 invariant 2: "leaf-set hashes equal hash
// of the sorted leaf set"). Two writers producing the same logical
// content converge to the same hash regardless of insertion order.
func hashLeafSet(leaves []LeafNode) [32]byte {
	sorted := make([]LeafNode, len(leaves))
	copy(sorted, leaves)
	sort.Slice(sorted, func(i, j int) bool {
		return lessLocator(sorted[i].Locator, sorted[j].Locator)
	})

	h, _ := blake2b.New256(nil)
	for _, leaf := range sorted {
		h.Write(leaf.Locator[:])
		h.Write(leaf.BlockID[:])
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// hashInnerSet computes a parent's content hash from its 256 children's
// hashes, using a fixed zero hash for empty slots so an empty bucket
// contributes a stable, content-addressable placeholder (§3 invariant 2:
// "inner hashes equal hash of their children").
func hashInnerSet(children [256][32]byte) [32]byte {
	h, _ := blake2b.New256(nil)
	for _, c := range children {
		h.Write(c[:])
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func lessLocator(a, b types.Locator) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// proofDigest is the exact byte layout signed by a writer's write key:
// hash(writer_id ++ version_vector ++ hash), per §3 Entities (Root node)
// and original_source/lib/src/protocol/proof.rs. The version vector is
// serialized sorted by writer id so the digest is deterministic
// regardless of map iteration order.
func proofDigest(writerID types.WriterID, vv types.VersionVector, treeHash [32]byte) []byte {
	return ProofDigest(writerID, vv, treeHash)
}

// ProofDigest is the exported form of proofDigest, used by pkg/client to
// recompute the exact bytes an incoming proof's signature must cover
// before trusting it (§4.5 "verify the proof's signature").
func ProofDigest(writerID types.WriterID, vv types.VersionVector, treeHash [32]byte) []byte {
	writers := make([]types.WriterID, 0, len(vv))
	for w := range vv {
		writers = append(writers, w)
	}
	sort.Slice(writers, func(i, j int) bool { return writers[i].Less(writers[j]) })

	h, _ := blake2b.New256(nil)
	h.Write(writerID[:])
	for _, w := range writers {
		h.Write(w[:])
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], vv[w])
		h.Write(n[:])
	}
	h.Write(treeHash[:])
	return h.Sum(nil)
}

// BlockContentID derives a BlockID from a block's plaintext content (§3
// Entities: Block — "Identified by BlockId = hash of plaintext content").
func BlockContentID(plaintext []byte) types.BlockID {
	var id types.BlockID
	sum := blake2b.Sum256(plaintext)
	copy(id[:], sum[:])
	return id
}
