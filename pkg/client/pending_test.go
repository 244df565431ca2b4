package client

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/warren-sync/pkg/protocol"
	"github.com/cuemby/warren-sync/pkg/types"
)

func testKey(n byte) protocol.RequestKey {
	return protocol.KeyOf(protocol.BlockRequest{BlockID: types.BlockID{n}})
}

// Insert succeeds for a fresh key and Has reports it outstanding.
func TestPendingRequestsInsertAndHas(t *testing.T) {
	p := newPendingRequests()
	key := testKey(1)
	require.False(t, p.Has(key))

	ok := p.Insert(key, &pendingSlot{release: func() {}})
	require.True(t, ok)
	require.True(t, p.Has(key))
}

// A second Insert for the same key is rejected rather than clobbering
// the original issuer's slot and permits.
func TestPendingRequestsRejectsDuplicateInsert(t *testing.T) {
	p := newPendingRequests()
	key := testKey(1)
	require.True(t, p.Insert(key, &pendingSlot{release: func() {}}))
	require.False(t, p.Insert(key, &pendingSlot{release: func() {}}))
}

// Take removes exactly the named slot, leaving others untouched — this
// is the mechanism P7 relies on: an outdated response whose disambiguator
// doesn't match any live key finds nothing to Take and the real slot
// survives.
func TestPendingRequestsTakeIsExact(t *testing.T) {
	p := newPendingRequests()
	k1, k2 := testKey(1), testKey(2)
	require.True(t, p.Insert(k1, &pendingSlot{release: func() {}}))
	require.True(t, p.Insert(k2, &pendingSlot{release: func() {}}))

	slot, ok := p.Take(k1)
	require.True(t, ok)
	require.NotNil(t, slot)
	require.False(t, p.Has(k1))
	require.True(t, p.Has(k2))

	// Taking an unknown key (e.g. a stale disambiguator) is a no-op.
	_, ok = p.Take(testKey(99))
	require.False(t, ok)
	require.True(t, p.Has(k2))
}

// Taking the same key twice only succeeds once.
func TestPendingRequestsTakeOnce(t *testing.T) {
	p := newPendingRequests()
	key := testKey(1)
	require.True(t, p.Insert(key, &pendingSlot{release: func() {}}))

	_, ok := p.Take(key)
	require.True(t, ok)
	_, ok = p.Take(key)
	require.False(t, ok)
}

// DrainAll releases every outstanding slot's permits and clears the map.
func TestPendingRequestsDrainAll(t *testing.T) {
	p := newPendingRequests()
	released := 0
	for i := byte(1); i <= 3; i++ {
		p.Insert(testKey(i), &pendingSlot{release: func() { released++ }})
	}

	p.DrainAll()
	require.Equal(t, 3, released)
	require.False(t, p.Has(testKey(1)))
	require.False(t, p.Has(testKey(2)))
	require.False(t, p.Has(testKey(3)))
}
