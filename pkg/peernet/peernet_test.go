package peernet

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Reserve grants a fresh permit for a free (addr, direction) slot.
func TestDedupReserveGrantsFreshPermit(t *testing.T) {
	d := NewDedup()

	permit, waiter := d.Reserve("10.0.0.1:1234", Outgoing)
	require.NotNil(t, permit)
	require.Nil(t, waiter)
}

// A second Reserve on the same (addr, direction) while the first permit
// is still held returns no permit, only a wait channel for the existing
// holder's release (§5 "Reserve returns either a permit (new) or a
// waiter on the existing permit's drop").
func TestDedupReserveWaitsOnExistingHolder(t *testing.T) {
	d := NewDedup()

	permit, _ := d.Reserve("10.0.0.1:1234", Outgoing)
	require.NotNil(t, permit)

	second, waiter := d.Reserve("10.0.0.1:1234", Outgoing)
	require.Nil(t, second)
	require.NotNil(t, waiter)

	select {
	case <-waiter:
		t.Fatal("waiter fired before release")
	default:
	}

	permit.Release()

	select {
	case <-waiter:
	case <-time.After(time.Second):
		t.Fatal("waiter did not fire after release")
	}

	third, waiter3 := d.Reserve("10.0.0.1:1234", Outgoing)
	require.NotNil(t, third)
	require.Nil(t, waiter3)
}

// Incoming and outgoing directions to the same address are independent
// slots (§5: dedup is keyed by (peer_addr, direction)).
func TestDedupDirectionsAreIndependent(t *testing.T) {
	d := NewDedup()

	out, _ := d.Reserve("10.0.0.1:1234", Outgoing)
	in, _ := d.Reserve("10.0.0.1:1234", Incoming)
	require.NotNil(t, out)
	require.NotNil(t, in)
}

// Releasing a permit that has already been superseded (e.g. double
// Release) does not corrupt the registry for the next Reserve.
func TestDedupDoubleReleaseIsSafe(t *testing.T) {
	d := NewDedup()

	permit, _ := d.Reserve("peer", Outgoing)
	permit.Release()
	require.NotPanics(t, func() { permit.Release() })

	next, waiter := d.Reserve("peer", Outgoing)
	require.NotNil(t, next)
	require.Nil(t, waiter)
}

// A bounded semaphore blocks once exhausted and TryAcquire reports it
// without blocking.
func TestSemaphoreBoundsCapacity(t *testing.T) {
	sem := NewSemaphore(1)
	require.True(t, sem.TryAcquire())
	require.False(t, sem.TryAcquire())

	sem.Release()
	require.True(t, sem.TryAcquire())
}

// Acquire blocks until context cancellation if no slot frees up.
func TestSemaphoreAcquireRespectsContext(t *testing.T) {
	sem := NewSemaphore(1)
	require.NoError(t, sem.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := sem.Acquire(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

// PermitPool acquires link then peer, and release frees both in reverse
// order (§4.5.2 "Acquire order: link first, then peer").
func TestPermitPoolAcquireRelease(t *testing.T) {
	pool := &PermitPool{Link: NewSemaphore(1), Peer: NewSemaphore(1)}

	release, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	require.False(t, pool.Link.TryAcquire())
	require.False(t, pool.Peer.TryAcquire())

	release()
	require.True(t, pool.Link.TryAcquire())
	require.True(t, pool.Peer.TryAcquire())
}

// If the peer semaphore can't be acquired, the link slot already taken
// is released rather than leaked.
func TestPermitPoolReleasesLinkOnPeerFailure(t *testing.T) {
	pool := &PermitPool{Link: NewSemaphore(1), Peer: NewSemaphore(1)}
	require.True(t, pool.Peer.TryAcquire()) // starve the peer slot

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := pool.Acquire(ctx)
	require.Error(t, err)

	require.True(t, pool.Link.TryAcquire())
}
