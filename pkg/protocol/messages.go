package protocol

import "github.com/cuemby/warren-sync/pkg/types"

// WireProof is the not-yet-verified form of a root node's proof as it
// travels the wire (§4.5 "UntrustedProof"): the recipient must check its
// signature against the repository's public key before trusting it.
type WireProof struct {
	WriterID      types.WriterID
	VersionVector types.VersionVector
	Hash          [32]byte
	Signature     []byte
}

// WireInnerNode and WireLeafNode mirror pkg/storage's InnerNode/LeafNode
// shapes for wire transport, kept separate so the protocol package does
// not depend on pkg/storage's internal record types.
type WireInnerNode struct {
	Bucket        byte
	Hash          [32]byte
	State         types.NodeState
	BlockPresence types.MultiBlockPresence
}

type WireLeafNode struct {
	Locator       types.Locator
	BlockID       types.BlockID
	BlockPresence types.MultiBlockPresence
}

// Request variants (§4.5 Request).
type RootNodeRequest struct {
	WriterID types.WriterID
	DebugTag uint64
}

type ChildNodesRequest struct {
	ParentHash    [32]byte
	Disambiguator types.MultiBlockPresence
	DebugTag      uint64
}

type BlockRequest struct {
	BlockID  types.BlockID
	DebugTag uint64
}

// Response variants (§4.5 Response).
type RootNodeResponse struct {
	Proof         WireProof
	BlockPresence types.MultiBlockPresence
	DebugTag      uint64
}

type RootNodeErrorResponse struct {
	WriterID types.WriterID
	DebugTag uint64
}

type InnerNodesResponse struct {
	ParentHash    [32]byte
	Nodes         []WireInnerNode
	Disambiguator types.MultiBlockPresence
	DebugTag      uint64
}

type LeafNodesResponse struct {
	ParentHash    [32]byte
	Nodes         []WireLeafNode
	Disambiguator types.MultiBlockPresence
	DebugTag      uint64
}

type ChildNodesErrorResponse struct {
	Hash          [32]byte
	Disambiguator types.MultiBlockPresence
	DebugTag      uint64
}

type BlockOfferResponse struct {
	BlockID  types.BlockID
	DebugTag uint64
}

type BlockResponse struct {
	BlockID  types.BlockID
	Content  []byte
	Nonce    types.BlockNonce
	DebugTag uint64
}

type BlockErrorResponse struct {
	BlockID  types.BlockID
	DebugTag uint64
}

// Pex carries an opaque, out-of-band set of peer addresses for the
// channel's shared repository (§4.5 "Peer exchange").
type Pex struct {
	Payload []byte
}

// RequestKey identifies a pending request slot so responses — which may
// arrive out of send order, including unsolicited ones — can be matched
// to the slot that is waiting for them (§4.5.2 PendingRequests,
// §4.5 disambiguator).
type RequestKey struct {
	Kind          string
	WriterID      types.WriterID
	Hash          [32]byte
	BlockID       types.BlockID
	Disambiguator types.MultiBlockPresence
}

func rootNodeKey(writerID types.WriterID) RequestKey {
	return RequestKey{Kind: "root_node", WriterID: writerID}
}

func childNodesKey(hash [32]byte, disambiguator types.MultiBlockPresence) RequestKey {
	return RequestKey{Kind: "child_nodes", Hash: hash, Disambiguator: disambiguator}
}

func blockKey(id types.BlockID) RequestKey {
	return RequestKey{Kind: "block", BlockID: id}
}

// KeyOf returns the RequestKey a request variant is pending under.
func KeyOf(req any) RequestKey {
	switch r := req.(type) {
	case RootNodeRequest:
		return rootNodeKey(r.WriterID)
	case ChildNodesRequest:
		return childNodesKey(r.ParentHash, r.Disambiguator)
	case BlockRequest:
		return blockKey(r.BlockID)
	default:
		return RequestKey{}
	}
}

// ResponseKey returns the RequestKey a response variant resolves, so an
// unsolicited response (e.g. an unprompted RootNode push, §4.5.1) can
// still be matched against — or fail to match, and be treated as a fresh
// announcement rather than a reply — any pending slot (§4.5.2, §5
// "Unsolicited responses may overtake solicited ones").
func ResponseKey(resp any) RequestKey {
	switch r := resp.(type) {
	case RootNodeResponse:
		return rootNodeKey(r.Proof.WriterID)
	case RootNodeErrorResponse:
		return rootNodeKey(r.WriterID)
	case InnerNodesResponse:
		return childNodesKey(r.ParentHash, r.Disambiguator)
	case LeafNodesResponse:
		return childNodesKey(r.ParentHash, r.Disambiguator)
	case ChildNodesErrorResponse:
		return childNodesKey(r.Hash, r.Disambiguator)
	case BlockResponse:
		return blockKey(r.BlockID)
	case BlockErrorResponse:
		return blockKey(r.BlockID)
	default:
		return RequestKey{}
	}
}

