package tracker

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cuemby/warren-sync/pkg/log"
	"github.com/cuemby/warren-sync/pkg/metrics"
	"github.com/cuemby/warren-sync/pkg/types"
)

// blockEntry is one block's bookkeeping: whether it is required, and the
// set of clients currently offering it along with which one (if any) has
// an accepted reservation (§4.7 Data: missing_blocks, missing_block_offers).
type blockEntry struct {
	required bool
	offers   map[uuid.UUID]bool // clientID -> accepted
}

// Tracker coordinates which peer is currently fetching each missing
// block, guaranteeing at most one accepted offer per block at any instant
// (invariant P5) and making a block eligible for acceptance by another
// offering client as soon as the accepted one cancels or drops (P6).
type Tracker struct {
	mu      sync.Mutex
	cond    *sync.Cond
	mode    types.BlockRequestMode
	blocks  map[types.BlockID]*blockEntry
	log     zerolog.Logger
}

// New builds a Tracker operating in the given request mode (§4.7 Greedy
// vs lazy trade-off).
func New(mode types.BlockRequestMode) *Tracker {
	t := &Tracker{
		mode:   mode,
		blocks: make(map[types.BlockID]*blockEntry),
		log:    log.WithComponent("tracker"),
	}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// Mode returns the tracker's configured request mode.
func (t *Tracker) Mode() types.BlockRequestMode { return t.mode }

// MissingCount returns the number of distinct blocks currently tracked
// as missing (offered by at least one client but not yet stored
// locally), the input to the warrensync_tracker_missing_blocks gauge.
func (t *Tracker) MissingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.blocks)
}

// Client is one peer connection's handle into the tracker (§4.7
// Operations are all scoped to "self").
type Client struct {
	id      uuid.UUID
	tracker *Tracker
}

// NewClient registers a new client handle.
func (t *Tracker) NewClient() *Client {
	return &Client{id: uuid.New(), tracker: t}
}

// ID returns the client's identity, stable for the life of the
// connection.
func (c *Client) ID() uuid.UUID { return c.id }

// Offer records that this client has the given block available, per
// §4.7 offer(): inserting the missing_blocks row if absent (required
// defaults to true in Greedy mode) and this client's (unaccepted) offer
// row if absent.
func (c *Client) Offer(blockID types.BlockID) {
	t := c.tracker
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.blocks[blockID]
	if !ok {
		e = &blockEntry{required: t.mode == types.ModeGreedy, offers: map[uuid.UUID]bool{}}
		t.blocks[blockID] = e
	}
	if _, ok := e.offers[c.id]; !ok {
		e.offers[c.id] = false
		t.cond.Broadcast()
		metrics.TrackerOffersTotal.Inc()
	}
}

// Require marks blockID as required, so a pending offer for it becomes
// eligible for acceptance (§4.7 require()). In Greedy mode every offered
// block is already required by default, so this is a no-op there; in
// Lazy mode it is what promotes a block from merely offered to actually
// wanted, e.g. because a file read needs it (§4.5.3).
func (c *Client) Require(blockID types.BlockID) {
	t := c.tracker
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.blocks[blockID]
	if !ok {
		e = &blockEntry{offers: map[uuid.UUID]bool{}}
		t.blocks[blockID] = e
	}
	if !e.required {
		e.required = true
		t.cond.Broadcast()
	}
}

// Cancel removes this client's offer for blockID. If another client has
// an offer outstanding for the same block, it becomes eligible for
// acceptance without any additional Offer call (§4.7 cancel(), P6).
func (c *Client) Cancel(blockID types.BlockID) {
	t := c.tracker
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked(c.id, blockID)
}

func (t *Tracker) cancelLocked(client uuid.UUID, blockID types.BlockID) {
	e, ok := t.blocks[blockID]
	if !ok {
		return
	}
	delete(e.offers, client)
	if len(e.offers) == 0 {
		delete(t.blocks, blockID)
	}
	t.cond.Broadcast()
}

// Drop removes every offer belonging to this client, as if it had
// canceled each one — called when the client's connection closes
// (§4.7 "On client drop, remove all offers belonging to it").
func (c *Client) Drop() {
	t := c.tracker
	t.mu.Lock()
	defer t.mu.Unlock()
	for blockID, e := range t.blocks {
		if _, ok := e.offers[c.id]; ok {
			delete(e.offers, c.id)
			if len(e.offers) == 0 {
				delete(t.blocks, blockID)
			}
		}
	}
	t.cond.Broadcast()
}

// Accept is a two-phase handle on a block this client is eligible to
// fetch: acquired by TryAccept/Accept, not yet reserved until Commit is
// called. The split exists so selecting among several awaitables (e.g.
// tracker readiness vs. a cancellation) can keep the state-changing step
// cancel-safe by only ever calling Commit from the branch that was
// actually chosen (§9 "Two-phase accept").
type Accept struct {
	tracker *Tracker
	client  uuid.UUID
	blockID types.BlockID
}

// Commit reserves the block for this client, flipping its offer row to
// accepted and returning the block id. Not cancel-safe: call it only
// from the selected branch, never speculatively.
func (a *Accept) Commit() types.BlockID {
	t := a.tracker
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.blocks[a.blockID]; ok {
		if _, ok := e.offers[a.client]; ok {
			e.offers[a.client] = true
			metrics.TrackerAcceptsTotal.Inc()
		}
	}
	return a.blockID
}

// TryAccept performs §4.7's accept(): a non-blocking search for a block
// this client offers that is required and has no currently accepted
// offer. It returns false if nothing is eligible right now.
func (c *Client) TryAccept() (*Accept, bool) {
	t := c.tracker
	t.mu.Lock()
	defer t.mu.Unlock()
	return c.tryAcceptLocked()
}

func (c *Client) tryAcceptLocked() (*Accept, bool) {
	t := c.tracker
	for blockID, e := range t.blocks {
		if !e.required {
			continue
		}
		accepted, offered := e.offers[c.id]
		if !offered || accepted {
			continue
		}
		if anyAccepted(e) {
			continue
		}
		return &Accept{tracker: t, client: c.id, blockID: blockID}, true
	}
	return nil, false
}

func anyAccepted(e *blockEntry) bool {
	for _, accepted := range e.offers {
		if accepted {
			return true
		}
	}
	return false
}

// TryAcceptAndCommit is the single-call convenience used by callers (and
// by §8 scenario 6, "offer-race") that do not need the two-phase split:
// exactly one concurrent caller across all clients racing the same block
// gets a non-nil result (P5).
func (c *Client) TryAcceptAndCommit() (types.BlockID, bool) {
	t := c.tracker
	t.mu.Lock()
	defer t.mu.Unlock()
	a, ok := c.tryAcceptLocked()
	if !ok {
		return types.BlockID{}, false
	}
	if e, ok := t.blocks[a.blockID]; ok {
		e.offers[c.id] = true
		metrics.TrackerAcceptsTotal.Inc()
	}
	return a.blockID, true
}

// Accept blocks until a block becomes eligible for this client to fetch,
// or ctx is done. It is the awaiting counterpart to TryAccept, used
// inside a cooperative-scheduling select (§5 "Accept() awaits a change
// notification").
func (c *Client) Accept(ctx context.Context) (*Accept, error) {
	t := c.tracker

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			t.mu.Lock()
			t.cond.Broadcast()
			t.mu.Unlock()
		case <-done:
		}
	}()

	t.mu.Lock()
	defer t.mu.Unlock()
	for {
		if a, ok := c.tryAcceptLocked(); ok {
			return a, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t.cond.Wait()
	}
}
