// Package server implements the serving half of the sync protocol
// (§4.5): answering a peer's requests for root nodes, child nodes, and
// blocks, and pushing unsolicited root/block announcements as local
// state changes. pkg/client drives the other half of the same channel.
package server

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/cuemby/warren-sync/pkg/log"
	"github.com/cuemby/warren-sync/pkg/noisechan"
	"github.com/cuemby/warren-sync/pkg/protocol"
	"github.com/cuemby/warren-sync/pkg/repository"
	"github.com/cuemby/warren-sync/pkg/storage"
)

// Config bundles what a Server needs to serve one (repository, peer)
// channel.
type Config struct {
	Repo    *repository.Repository
	Channel *noisechan.Channel
}

// Server answers one peer's requests over one channel and pushes
// unsolicited announcements when the repository's local state changes
// (§4.5.1). Unlike Client it holds no pending-request table: every
// message it sends is either a direct reply or an announcement, never
// something awaiting a response of its own.
type Server struct {
	repo    *repository.Repository
	channel *noisechan.Channel

	debugTag uint64
	log      zerolog.Logger
}

// New builds a Server for one channel.
func New(cfg Config) *Server {
	return &Server{
		repo:    cfg.Repo,
		channel: cfg.Channel,
		log:     log.WithComponent("server"),
	}
}

// Run drives the server until ctx is canceled or the channel closes: it
// concurrently answers incoming requests and pushes announcements
// triggered by the repository's event bus.
func (s *Server) Run(ctx context.Context) error {
	sub := s.repo.Events().Subscribe()
	defer s.repo.Events().Unsubscribe(sub)

	errCh := make(chan error, 2)
	go func() { errCh <- s.recvLoop(ctx) }()
	go func() { errCh <- s.announceLoop(ctx, sub) }()

	return <-errCh
}

func (s *Server) recvLoop(ctx context.Context) error {
	for {
		env, err := s.channel.Recv()
		if err != nil {
			return fmt.Errorf("server: recv failed: %w", err)
		}
		if err := s.handle(env.Message); err != nil {
			s.log.Warn().Err(err).Msg("closing channel after request handling error")
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// announceLoop pushes an unsolicited RootNode response whenever the
// local repository's own branch changes or a merge completes, and a
// BlockOffer whenever a new block becomes available — the proactive
// half of §4.5.1 that lets a peer discover new content without having to
// poll.
func (s *Server) announceLoop(ctx context.Context, sub repository.Subscriber) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-sub:
			if !ok {
				return nil
			}
			switch ev.Type {
			case repository.EventBranchChanged, repository.EventMergeCompleted, repository.EventBranchApproved:
				if err := s.announceLocalRoot(); err != nil {
					s.log.Warn().Err(err).Msg("failed to announce local root")
				}
			case repository.EventBlockReceived:
				if err := s.announceNewBlocks(); err != nil {
					s.log.Warn().Err(err).Msg("failed to announce new blocks")
				}
			}
		}
	}
}

// announceLocalRoot pushes this replica's current root node unasked.
func (s *Server) announceLocalRoot() error {
	if !s.repo.Writable() {
		return nil
	}
	reader, err := s.repo.Store().AcquireRead()
	if err != nil {
		return err
	}
	root, err := reader.LoadRootNode(s.repo.LocalWriterID(), storage.FilterAny)
	reader.Close()
	if err == storage.ErrEntryNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	return s.sendRootNode(root)
}

// announceNewBlocks pushes an offer for every block under each known
// writer's latest Approved root, without consulting the tracker, so
// blocks already offered are offered again; the receiving client
// deduplicates via its own tracker.Client.
func (s *Server) announceNewBlocks() error {
	reader, err := s.repo.Store().AcquireRead()
	if err != nil {
		return err
	}
	defer reader.Close()

	writers, err := s.repo.KnownWriters()
	if err != nil {
		return err
	}
	for _, w := range writers {
		root, err := reader.LoadRootNode(w, storage.FilterLatestApproved)
		if err == storage.ErrEntryNotFound {
			continue
		}
		if err != nil {
			return err
		}
		if err := s.announceBlocksUnder(reader, root.Proof.Hash); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) announceBlocksUnder(reader *storage.Reader, hash [32]byte) error {
	leaves, err := reader.LeafNodes(hash)
	if err != nil {
		return err
	}
	for _, leaf := range leaves {
		if !reader.BlockExists(leaf.BlockID) {
			continue
		}
		if err := s.channel.Send(protocol.Envelope{Message: protocol.BlockOfferResponse{
			BlockID:  leaf.BlockID,
			DebugTag: s.nextDebugTag(),
		}}); err != nil {
			return err
		}
	}
	if len(leaves) > 0 {
		return nil
	}

	inner, err := reader.InnerNodes(hash)
	if err != nil {
		return err
	}
	for _, n := range inner {
		if err := s.announceBlocksUnder(reader, n.Hash); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) nextDebugTag() uint64 {
	s.debugTag++
	return s.debugTag
}

func (s *Server) sendRootNode(root storage.RootNode) error {
	return s.channel.Send(protocol.Envelope{Message: protocol.RootNodeResponse{
		Proof: protocol.WireProof{
			WriterID:      root.Proof.WriterID,
			VersionVector: root.Proof.VersionVector,
			Hash:          root.Proof.Hash,
			Signature:     root.Proof.Signature,
		},
		BlockPresence: root.Summary.BlockPresence,
		DebugTag:      s.nextDebugTag(),
	}})
}
