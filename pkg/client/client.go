package client

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/warren-sync/pkg/crypto"
	"github.com/cuemby/warren-sync/pkg/log"
	"github.com/cuemby/warren-sync/pkg/noisechan"
	"github.com/cuemby/warren-sync/pkg/peernet"
	"github.com/cuemby/warren-sync/pkg/protocol"
	"github.com/cuemby/warren-sync/pkg/storage"
	"github.com/cuemby/warren-sync/pkg/tracker"
	"github.com/cuemby/warren-sync/pkg/types"
)

// queuedRequest is one entry of the client's unbounded FIFO send queue
// (§4.5.2 send_queue).
type queuedRequest struct {
	req        any
	enqueuedAt time.Time
}

// Config bundles what a Client needs to drive one (repository, peer)
// channel's sync.
type Config struct {
	Store         *storage.Store
	Cipher        *crypto.BlockCipher
	Verifier      *crypto.Verifier
	Channel       *noisechan.Channel
	Tracker       *tracker.Tracker
	Permits       *peernet.PermitPool
	Quota         int64
	RequestMode   types.BlockRequestMode
	RequestTimeout time.Duration
}

// Client drives the sync protocol client side for one channel: it keeps
// the pending-request table, the send queue, and reacts to every
// response by validating it, applying it to the store, and issuing
// follow-up requests (§4.5.2, §4.5.3, §4.5.4).
type Client struct {
	store    *storage.Store
	cipher   *crypto.BlockCipher
	verifier *crypto.Verifier
	channel  *noisechan.Channel
	permits  *peernet.PermitPool
	quota    int64
	timeout  time.Duration

	tracker       *tracker.Tracker
	trackerClient *tracker.Client

	recvFilter *storage.ReceiveFilter

	pending   *pendingRequests
	sendQueue chan queuedRequest

	debugTag atomic.Uint64

	log zerolog.Logger
}

// New builds a Client for one channel, registering it as a fresh
// tracker.Client and receive-filter connection.
func New(cfg Config) *Client {
	return &Client{
		store:         cfg.Store,
		cipher:        cfg.Cipher,
		verifier:      cfg.Verifier,
		channel:       cfg.Channel,
		permits:       cfg.Permits,
		quota:         cfg.Quota,
		timeout:       cfg.RequestTimeout,
		tracker:       cfg.Tracker,
		trackerClient: cfg.Tracker.NewClient(),
		recvFilter:    cfg.Store.NewReceiveFilter(),
		pending:       newPendingRequests(),
		sendQueue:     make(chan queuedRequest, 4096),
		log:           log.WithComponent("client"),
	}
}

// Run drives the client until ctx is canceled or the channel closes: it
// concurrently pumps the send queue and reacts to incoming responses, and
// requests every known writer's root node up front so a freshly opened
// channel starts discovering content immediately (§4.5.1's unsolicited
// pushes cover steady state; this covers the first message after connect).
func (c *Client) Run(ctx context.Context, knownWriters []types.WriterID) error {
	for _, w := range knownWriters {
		c.RequestRootNode(w)
	}

	errCh := make(chan error, 2)
	go func() { errCh <- c.sendLoop(ctx) }()
	go func() { errCh <- c.recvLoop(ctx) }()

	err := <-errCh
	c.pending.DrainAll()
	c.trackerClient.Drop()
	return err
}

func (c *Client) sendLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case q := <-c.sendQueue:
			if err := c.dispatch(ctx, q.req); err != nil {
				return err
			}
		}
	}
}

// dispatch acquires this request's permits (link then peer, §4.5.2
// "Acquire order"), records its pending slot, and sends it.
func (c *Client) dispatch(ctx context.Context, req any) error {
	key := protocol.KeyOf(req)
	if c.pending.Has(key) {
		// Already outstanding (e.g. re-enqueued while a response was
		// in flight); drop the duplicate rather than doubling permits.
		return nil
	}

	release, err := c.permits.Acquire(ctx)
	if err != nil {
		return err
	}

	if !c.pending.Insert(key, &pendingSlot{req: req, issuedAt: time.Now(), release: release}) {
		release()
		return nil
	}

	if err := c.channel.Send(protocol.Envelope{Message: req}); err != nil {
		if slot, ok := c.pending.Take(key); ok {
			slot.release()
		}
		return fmt.Errorf("client: send failed: %w", err)
	}
	return nil
}

func (c *Client) recvLoop(ctx context.Context) error {
	for {
		env, err := c.channel.Recv()
		if err != nil {
			return fmt.Errorf("client: recv failed: %w", err)
		}
		if err := c.handle(env.Message); err != nil {
			c.log.Warn().Err(err).Msg("closing channel after malformed response")
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// enqueue appends req to the send queue without blocking; the queue is
// sized generously (§4.5.2 calls it unbounded) so a burst of re-requests
// after a large snapshot never stalls the caller.
func (c *Client) enqueue(req any) {
	select {
	case c.sendQueue <- queuedRequest{req: req, enqueuedAt: time.Now()}:
	default:
		c.log.Warn().Msg("send queue full; dropping request (will be re-issued on next relevant event)")
	}
}

func (c *Client) nextDebugTag() uint64 {
	return c.debugTag.Add(1)
}

// RequestRootNode enqueues a RootNode request for writerID (§4.5 Request).
func (c *Client) RequestRootNode(writerID types.WriterID) {
	c.enqueue(protocol.RootNodeRequest{WriterID: writerID, DebugTag: c.nextDebugTag()})
}

// requestChildNodes enqueues a ChildNodes request for parentHash, tagged
// with disambiguator so the eventual response can be matched back to
// this exact request even if a newer one for the same hash supersedes it
// (§4.5 "disambiguator ... pairs each response to its exact request").
func (c *Client) requestChildNodes(parentHash [32]byte, disambiguator types.MultiBlockPresence) {
	c.enqueue(protocol.ChildNodesRequest{ParentHash: parentHash, Disambiguator: disambiguator, DebugTag: c.nextDebugTag()})
}

// requestBlock enqueues a Block request.
func (c *Client) requestBlock(id types.BlockID) {
	c.enqueue(protocol.BlockRequest{BlockID: id, DebugTag: c.nextDebugTag()})
}
