package client

import (
	"sync"
	"time"

	"github.com/cuemby/warren-sync/pkg/protocol"
)

// pendingSlot is one outstanding request, keyed by content identity
// rather than send order so a response — even an unsolicited one that
// overtakes earlier sends — resolves the right slot (§4.5.2
// PendingRequests, §5 "Unsolicited responses may overtake solicited
// ones").
type pendingSlot struct {
	req      any
	issuedAt time.Time
	release  func() // releases the link+peer permits this slot holds
}

// pendingRequests is the client's PendingRequests map (§4.5.2).
type pendingRequests struct {
	mu    sync.Mutex
	slots map[protocol.RequestKey]*pendingSlot
}

func newPendingRequests() *pendingRequests {
	return &pendingRequests{slots: make(map[protocol.RequestKey]*pendingSlot)}
}

// Insert records a newly sent request's slot. If a slot already exists
// for this key (e.g. a stale resend), the new one is rejected by the
// caller rather than clobbering the original issuer's permits.
func (p *pendingRequests) Insert(key protocol.RequestKey, slot *pendingSlot) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.slots[key]; exists {
		return false
	}
	p.slots[key] = slot
	return true
}

// Take removes and returns the slot for key, if any, so its permits can
// be released exactly once.
func (p *pendingRequests) Take(key protocol.RequestKey) (*pendingSlot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	slot, ok := p.slots[key]
	if ok {
		delete(p.slots, key)
	}
	return slot, ok
}

// Has reports whether a slot is outstanding for key, without consuming
// it — used by P7's disambiguator check to decide whether a response
// still matches something we're waiting on.
func (p *pendingRequests) Has(key protocol.RequestKey) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.slots[key]
	return ok
}

// DrainAll releases and removes every outstanding slot, e.g. on channel
// close, so their permits go back to the pool instead of leaking.
func (p *pendingRequests) DrainAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for key, slot := range p.slots {
		slot.release()
		delete(p.slots, key)
	}
}
