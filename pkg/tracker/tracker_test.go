package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/warren-sync/pkg/types"
)

func blockID(b byte) types.BlockID {
	var id types.BlockID
	id[0] = b
	return id
}

func TestOfferRequiredByDefaultInGreedyMode(t *testing.T) {
	tr := New(types.ModeGreedy)
	c := tr.NewClient()
	id := blockID(1)

	c.Offer(id)

	accept, ok := c.TryAccept()
	require.True(t, ok)
	assert.Equal(t, id, accept.Commit())
}

func TestOfferNotEligibleInLazyModeUntilRequired(t *testing.T) {
	tr := New(types.ModeLazy)
	c := tr.NewClient()
	id := blockID(1)

	c.Offer(id)
	_, ok := c.TryAccept()
	assert.False(t, ok, "lazy mode should not accept an offer until Require is called")

	c.Require(id)
	accept, ok := c.TryAccept()
	require.True(t, ok)
	assert.Equal(t, id, accept.Commit())
}

// TestAtMostOneAcceptedOfferPerBlock is invariant P5: once one client's
// offer is committed, no other client's offer for the same block is
// eligible until the first is canceled or dropped.
func TestAtMostOneAcceptedOfferPerBlock(t *testing.T) {
	tr := New(types.ModeGreedy)
	a := tr.NewClient()
	b := tr.NewClient()
	id := blockID(7)

	a.Offer(id)
	b.Offer(id)

	accept, ok := a.TryAccept()
	require.True(t, ok)
	accept.Commit()

	_, ok = b.TryAccept()
	assert.False(t, ok, "a second client must not be able to accept an already-accepted block")
}

// TestCancelReleasesBlockToOtherOfferers is P6: canceling the accepted
// offer makes the block eligible to another offering client again.
func TestCancelReleasesBlockToOtherOfferers(t *testing.T) {
	tr := New(types.ModeGreedy)
	a := tr.NewClient()
	b := tr.NewClient()
	id := blockID(9)

	a.Offer(id)
	b.Offer(id)

	accept, ok := a.TryAccept()
	require.True(t, ok)
	accept.Commit()

	a.Cancel(id)

	accept2, ok := b.TryAccept()
	require.True(t, ok)
	assert.Equal(t, id, accept2.Commit())
}

func TestDropRemovesAllOffersForClient(t *testing.T) {
	tr := New(types.ModeGreedy)
	a := tr.NewClient()
	id1, id2 := blockID(1), blockID(2)

	a.Offer(id1)
	a.Offer(id2)
	assert.Equal(t, 2, tr.MissingCount())

	a.Drop()
	assert.Equal(t, 0, tr.MissingCount())
}

func TestTryAcceptAndCommitIsAtomic(t *testing.T) {
	tr := New(types.ModeGreedy)
	a := tr.NewClient()
	b := tr.NewClient()
	id := blockID(3)

	a.Offer(id)
	b.Offer(id)

	got, ok := a.TryAcceptAndCommit()
	require.True(t, ok)
	assert.Equal(t, id, got)

	_, ok = b.TryAcceptAndCommit()
	assert.False(t, ok)
}

func TestAcceptBlocksUntilOfferArrives(t *testing.T) {
	tr := New(types.ModeGreedy)
	c := tr.NewClient()
	id := blockID(5)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan *Accept, 1)
	go func() {
		accept, err := c.Accept(ctx)
		if err == nil {
			done <- accept
		} else {
			done <- nil
		}
	}()

	time.Sleep(10 * time.Millisecond)
	c.Offer(id)

	accept := <-done
	require.NotNil(t, accept)
	assert.Equal(t, id, accept.Commit())
}

func TestAcceptReturnsErrorWhenContextCanceled(t *testing.T) {
	tr := New(types.ModeGreedy)
	c := tr.NewClient()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Accept(ctx)
	assert.Error(t, err)
}

func TestMissingCountReflectsDistinctBlocks(t *testing.T) {
	tr := New(types.ModeGreedy)
	c := tr.NewClient()
	c.Offer(blockID(1))
	c.Offer(blockID(1))
	c.Offer(blockID(2))

	assert.Equal(t, 2, tr.MissingCount())
}
