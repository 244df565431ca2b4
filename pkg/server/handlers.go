package server

import (
	"errors"
	"fmt"

	"github.com/cuemby/warren-sync/pkg/protocol"
	"github.com/cuemby/warren-sync/pkg/storage"
)

// handle dispatches one incoming message: a request is answered
// directly; a response or peer-exchange payload has nothing to do with
// this side of the channel and is ignored.
func (s *Server) handle(msg any) error {
	switch m := msg.(type) {
	case protocol.RootNodeRequest:
		return s.handleRootNodeRequest(m)
	case protocol.ChildNodesRequest:
		return s.handleChildNodesRequest(m)
	case protocol.BlockRequest:
		return s.handleBlockRequest(m)
	case protocol.Pex,
		protocol.RootNodeResponse, protocol.RootNodeErrorResponse,
		protocol.InnerNodesResponse, protocol.LeafNodesResponse,
		protocol.ChildNodesErrorResponse, protocol.BlockOfferResponse,
		protocol.BlockResponse, protocol.BlockErrorResponse:
		return nil
	default:
		return fmt.Errorf("server: unrecognized message type %T", msg)
	}
}

// handleRootNodeRequest answers with the requested writer's current root
// node, or a RootNodeErrorResponse if nothing is known for it yet.
func (s *Server) handleRootNodeRequest(req protocol.RootNodeRequest) error {
	reader, err := s.repo.Store().AcquireRead()
	if err != nil {
		return err
	}
	root, err := reader.LoadRootNode(req.WriterID, storage.FilterAny)
	reader.Close()
	if err == storage.ErrEntryNotFound {
		return s.channel.Send(protocol.Envelope{Message: protocol.RootNodeErrorResponse{
			WriterID: req.WriterID,
			DebugTag: req.DebugTag,
		}})
	}
	if err != nil {
		return err
	}

	return s.channel.Send(protocol.Envelope{Message: protocol.RootNodeResponse{
		Proof: protocol.WireProof{
			WriterID:      root.Proof.WriterID,
			VersionVector: root.Proof.VersionVector,
			Hash:          root.Proof.Hash,
			Signature:     root.Proof.Signature,
		},
		BlockPresence: root.Summary.BlockPresence,
		DebugTag:      req.DebugTag,
	}})
}

// handleChildNodesRequest answers with parentHash's inner nodes if it has
// any, else its leaf nodes, else a ChildNodesErrorResponse — mirroring
// the single-inner-layer tree shape of pkg/storage, where a hash's
// children are either exactly one generation of buckets or a leaf set,
// never both.
func (s *Server) handleChildNodesRequest(req protocol.ChildNodesRequest) error {
	reader, err := s.repo.Store().AcquireRead()
	if err != nil {
		return err
	}
	defer reader.Close()

	inner, err := reader.InnerNodes(req.ParentHash)
	if err != nil {
		return err
	}
	if len(inner) > 0 {
		nodes := make([]protocol.WireInnerNode, len(inner))
		for i, n := range inner {
			nodes[i] = protocol.WireInnerNode{
				Bucket:        n.Bucket,
				Hash:          n.Hash,
				State:         n.Summary.State,
				BlockPresence: n.Summary.BlockPresence,
			}
		}
		return s.channel.Send(protocol.Envelope{Message: protocol.InnerNodesResponse{
			ParentHash:    req.ParentHash,
			Nodes:         nodes,
			Disambiguator: req.Disambiguator,
			DebugTag:      req.DebugTag,
		}})
	}

	leaves, err := reader.LeafNodes(req.ParentHash)
	if err != nil {
		return err
	}
	if len(leaves) > 0 {
		nodes := make([]protocol.WireLeafNode, len(leaves))
		for i, n := range leaves {
			nodes[i] = protocol.WireLeafNode{
				Locator:       n.Locator,
				BlockID:       n.BlockID,
				BlockPresence: n.BlockPresence,
			}
		}
		return s.channel.Send(protocol.Envelope{Message: protocol.LeafNodesResponse{
			ParentHash:    req.ParentHash,
			Nodes:         nodes,
			Disambiguator: req.Disambiguator,
			DebugTag:      req.DebugTag,
		}})
	}

	return s.channel.Send(protocol.Envelope{Message: protocol.ChildNodesErrorResponse{
		Hash:          req.ParentHash,
		Disambiguator: req.Disambiguator,
		DebugTag:      req.DebugTag,
	}})
}

// handleBlockRequest answers with the requested block's ciphertext and
// nonce, or a BlockErrorResponse if this replica no longer has it (e.g.
// it was garbage collected between being offered and being asked for).
func (s *Server) handleBlockRequest(req protocol.BlockRequest) error {
	reader, err := s.repo.Store().AcquireRead()
	if err != nil {
		return err
	}
	ciphertext, nonce, err := reader.ReadBlock(req.BlockID)
	reader.Close()
	if errors.Is(err, storage.ErrBlockNotFound) {
		return s.channel.Send(protocol.Envelope{Message: protocol.BlockErrorResponse{
			BlockID:  req.BlockID,
			DebugTag: req.DebugTag,
		}})
	}
	if err != nil {
		return err
	}

	return s.channel.Send(protocol.Envelope{Message: protocol.BlockResponse{
		BlockID:  req.BlockID,
		Content:  ciphertext,
		Nonce:    nonce,
		DebugTag: req.DebugTag,
	}})
}
