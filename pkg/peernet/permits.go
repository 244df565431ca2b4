package peernet

import "context"

// Semaphore is a simple bounded counting semaphore used for the
// per-link and per-peer pending-request limits of §4.5.2. Acquire order
// is always link first, then peer (see pkg/client), so one slow
// repository sharing a connection with others can't starve them.
type Semaphore struct {
	slots chan struct{}
}

// NewSemaphore builds a semaphore with the given capacity.
func NewSemaphore(capacity int) *Semaphore {
	return &Semaphore{slots: make(chan struct{}, capacity)}
}

// Acquire blocks until a slot is available or ctx is done.
func (s *Semaphore) Acquire(ctx context.Context) error {
	select {
	case s.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire acquires a slot without blocking.
func (s *Semaphore) TryAcquire() bool {
	select {
	case s.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release frees a previously acquired slot.
func (s *Semaphore) Release() {
	select {
	case <-s.slots:
	default:
		panic("peernet: Semaphore.Release called without a matching Acquire")
	}
}

// PermitPool bundles the two semaphores a client needs per peer
// connection: one capped per link (this repository's share of one
// connection) and one capped per peer (across every repository shared
// with that peer), per §4.5.2 "Acquire order: link first, then peer".
type PermitPool struct {
	Link *Semaphore
	Peer *Semaphore
}

// Acquire reserves one link slot and then one peer slot, in that order,
// releasing the link slot if acquiring the peer slot fails or is
// canceled.
func (p *PermitPool) Acquire(ctx context.Context) (release func(), err error) {
	if err := p.Link.Acquire(ctx); err != nil {
		return nil, err
	}
	if err := p.Peer.Acquire(ctx); err != nil {
		p.Link.Release()
		return nil, err
	}
	return func() {
		p.Peer.Release()
		p.Link.Release()
	}, nil
}
