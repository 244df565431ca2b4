package client

import (
	"fmt"

	"github.com/cuemby/warren-sync/pkg/protocol"
	"github.com/cuemby/warren-sync/pkg/storage"
	"github.com/cuemby/warren-sync/pkg/types"
)

// handle dispatches one incoming message: a request from the peer is
// answered by the server side (not this package); a response resolves
// (or fails to resolve, if unsolicited) a pending slot and drives
// whatever follow-up requests that response implies.
func (c *Client) handle(msg any) error {
	switch m := msg.(type) {
	case protocol.RootNodeResponse:
		return c.handleRootNode(m)
	case protocol.RootNodeErrorResponse:
		c.resolve(protocol.ResponseKey(m))
		return nil
	case protocol.InnerNodesResponse:
		return c.handleInnerNodes(m)
	case protocol.LeafNodesResponse:
		return c.handleLeafNodes(m)
	case protocol.ChildNodesErrorResponse:
		c.resolve(protocol.ResponseKey(m))
		return nil
	case protocol.BlockOfferResponse:
		c.handleBlockOffer(m)
		return nil
	case protocol.BlockResponse:
		return c.handleBlock(m)
	case protocol.BlockErrorResponse:
		c.handleBlockError(m)
		return nil
	case protocol.Pex:
		// Peer exchange payloads are routed by the dispatcher, not the
		// per-repository client; nothing to do here.
		return nil
	default:
		return fmt.Errorf("client: unrecognized message type %T", msg)
	}
}

// proofDigestFromWire recomputes the exact digest a WireProof's
// signature must cover, mirroring storage.ProofDigest so verification
// uses the identical byte layout signing did.
func proofDigestFromWire(p protocol.WireProof) []byte {
	return storage.ProofDigest(p.WriterID, p.VersionVector, p.Hash)
}

// resolve releases the permits held for key's pending slot, if any. A
// response with no matching slot is an unsolicited push (§5) and is
// still processed for its content, just without a slot to release.
func (c *Client) resolve(key protocol.RequestKey) {
	if slot, ok := c.pending.Take(key); ok {
		slot.release()
	}
}

// handleRootNode validates an incoming proof's signature, runs the
// §4.5.4 decision procedure against every root node already known for
// any writer, and on acceptance stores it, finalizes admission, and
// requests its children if the decision calls for it.
func (c *Client) handleRootNode(m protocol.RootNodeResponse) error {
	key := protocol.ResponseKey(m)
	defer c.resolve(key)

	digest := proofDigestFromWire(m.Proof)
	if !c.verifier.Verify(digest, m.Proof.Signature) {
		c.log.Warn().Str("writer", fmt.Sprintf("%x", m.Proof.WriterID)).Msg("dropping root node with invalid signature")
		return nil
	}

	reader, err := c.store.AcquireRead()
	if err != nil {
		return err
	}
	existing, err := reader.LoadRootNodesInAnyState()
	reader.Close()
	if err != nil {
		return err
	}

	insert, requestChildren := decideRootNode(m.Proof.WriterID, m.Proof.VersionVector, m.Proof.Hash, m.BlockPresence, existing)
	if !insert {
		if requestChildren {
			c.requestChildNodes(m.Proof.Hash, m.BlockPresence)
		}
		return nil
	}

	tx, err := c.store.BeginWrite()
	if err != nil {
		return err
	}

	fresh, err := c.recvFilter.Check(tx, m.Proof.Hash, m.BlockPresence)
	if err != nil {
		tx.Rollback()
		return err
	}
	if !fresh {
		tx.Rollback()
		return nil
	}

	proof := storage.Proof{
		WriterID:      m.Proof.WriterID,
		VersionVector: m.Proof.VersionVector,
		Hash:          m.Proof.Hash,
		Signature:     m.Proof.Signature,
	}
	status, err := tx.ReceiveRootNode(proof)
	if err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	if status.New && requestChildren {
		c.requestChildNodes(m.Proof.Hash, m.BlockPresence)
	}
	return nil
}

// handleInnerNodes stores the received inner nodes under their parent
// hash, then finalizes admission and, for any child whose summary is
// outdated relative to what we already know (or unknown entirely),
// requests it.
func (c *Client) handleInnerNodes(m protocol.InnerNodesResponse) error {
	key := protocol.ResponseKey(m)
	defer c.resolve(key)

	tx, err := c.store.BeginWrite()
	if err != nil {
		return err
	}

	for _, n := range m.Nodes {
		node := storage.InnerNode{
			Bucket:  n.Bucket,
			Hash:    n.Hash,
			Summary: storage.Summary{State: n.State, BlockPresence: n.BlockPresence},
		}
		if err := tx.PutInnerNode(m.ParentHash, node); err != nil {
			tx.Rollback()
			return err
		}
	}

	writers, err := c.finalizeAndNotify(tx, m.ParentHash)
	if err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	for _, n := range m.Nodes {
		if n.State != types.StateApproved {
			c.requestChildNodes(n.Hash, n.BlockPresence)
		}
	}
	c.reannounceApproved(writers)
	return nil
}

// handleLeafNodes stores the received leaves, registers each referenced
// block as offered by this peer (§4.5.3 "On receiving a leaf whose
// block is not already stored locally, register it with the tracker"),
// and finalizes admission along this subtree's path to root.
func (c *Client) handleLeafNodes(m protocol.LeafNodesResponse) error {
	key := protocol.ResponseKey(m)
	defer c.resolve(key)

	tx, err := c.store.BeginWrite()
	if err != nil {
		return err
	}

	reader := tx.Reader()
	var toOffer []types.BlockID
	for _, n := range m.Nodes {
		leaf := storage.LeafNode{Locator: n.Locator, BlockID: n.BlockID, BlockPresence: n.BlockPresence}
		if err := tx.PutLeafNode(m.ParentHash, leaf); err != nil {
			tx.Rollback()
			return err
		}
		if !reader.BlockExists(n.BlockID) {
			toOffer = append(toOffer, n.BlockID)
		}
	}

	writers, err := c.finalizeAndNotify(tx, m.ParentHash)
	if err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	// Offering registers the block regardless of mode; Greedy requires it
	// immediately via pumpAccepts below, Lazy leaves it merely offered
	// until something (e.g. a blob read miss) calls Require explicitly.
	for _, id := range toOffer {
		c.trackerClient.Offer(id)
	}
	c.pumpAccepts()
	c.reannounceApproved(writers)
	return nil
}

// finalizeAndNotify runs FinalizeReceive from parentHash up to its root
// for every writer whose branch currently points at parentHash's root,
// returning the set that newly became Approved so callers can re-ask
// peers for their root nodes (closing the §4.5.2 step-5 race where a
// branch's block GC races an in-flight child download).
func (c *Client) finalizeAndNotify(tx *storage.WriteTransaction, parentHash [32]byte) ([]types.WriterID, error) {
	reader := tx.Reader()
	roots, err := reader.LoadRootNodesInAnyState()
	if err != nil {
		return nil, err
	}

	var newlyApproved []types.WriterID
	for _, root := range roots {
		if root.Proof.Hash != parentHash {
			inner, err := reader.InnerNodes(root.Proof.Hash)
			if err != nil {
				return nil, err
			}
			under := false
			for _, n := range inner {
				under = under || n.Hash == parentHash
			}
			if !under {
				continue
			}
		}
		result, err := tx.FinalizeReceive(root.Proof.WriterID, root.Proof.Hash, c.quota)
		if err != nil {
			return nil, err
		}
		newlyApproved = append(newlyApproved, result.NewApproved...)
	}
	return newlyApproved, nil
}

// reannounceApproved re-requests the root node for every writer that
// just became Approved, since its content may already be stale relative
// to what this same peer holds (the download that made it Approved may
// have started several root advertisements ago).
func (c *Client) reannounceApproved(writers []types.WriterID) {
	for _, w := range writers {
		c.RequestRootNode(w)
	}
}

// pumpAccepts drains every block this client can non-blockingly accept
// right now and turns each into an outgoing Block request (§4.7
// accept(), §4.5.3 request flow).
func (c *Client) pumpAccepts() {
	for {
		accept, ok := c.trackerClient.TryAccept()
		if !ok {
			return
		}
		id := accept.Commit()
		c.requestBlock(id)
	}
}

// handleBlockOffer registers an unsolicited block offer (§4.5.1
// "BlockOffer messages announce a newly stored block without being
// asked") and, in Greedy mode, immediately tries to turn it into a
// request.
func (c *Client) handleBlockOffer(m protocol.BlockOfferResponse) {
	c.trackerClient.Offer(m.BlockID)
	c.pumpAccepts()
}

// handleBlock decrypts and verifies a received block, stores it, and
// completes its tracker reservation. A failed decryption (wrong nonce,
// tampered ciphertext, or content hash mismatch) drops the block
// silently rather than trusting it — the sender is untrusted until its
// content is verified against the locator's expected block id.
func (c *Client) handleBlock(m protocol.BlockResponse) error {
	key := protocol.ResponseKey(m)
	defer c.resolve(key)
	defer c.trackerClient.Cancel(m.BlockID)

	plaintext, err := c.cipher.Open(m.Nonce, m.BlockID, m.Content)
	if err != nil {
		c.log.Warn().Err(err).Str("block", fmt.Sprintf("%x", m.BlockID)).Msg("dropping block that failed to decrypt")
		return nil
	}
	if storage.BlockContentID(plaintext) != m.BlockID {
		c.log.Warn().Str("block", fmt.Sprintf("%x", m.BlockID)).Msg("dropping block whose content hash does not match its id")
		return nil
	}

	tx, err := c.store.BeginWrite()
	if err != nil {
		return err
	}
	if err := tx.WriteBlock(m.BlockID, m.Content, m.Nonce); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// handleBlockError drops the pending slot and the client's own
// now-worthless offer for the block; the tracker will still surface it
// from any other client offering it (P6).
func (c *Client) handleBlockError(m protocol.BlockErrorResponse) {
	c.resolve(protocol.ResponseKey(m))
	c.trackerClient.Cancel(m.BlockID)
}
