package guda

import "sync"

// Barrier is a reusable rendezvous point for a fixed number of goroutines.
// Each call to Wait blocks until all parties have arrived, then the barrier
// resets for the next round.
type Barrier struct {
	mu         sync.Mutex
	cond       *sync.Cond
	parties    int
	waiting    int
	generation uint64
	broken     bool
}

// NewBarrier creates a barrier for the given number of parties.
func NewBarrier(parties int) *Barrier {
	b := &Barrier{parties: parties}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Wait blocks until every party has called Wait for the current round. It
// returns ErrBarrierBroken if the barrier was broken before the round
// completed.
func (b *Barrier) Wait() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.broken {
		return ErrBarrierBroken
	}

	gen := b.generation
	b.waiting++
	if b.waiting == b.parties {
		b.waiting = 0
		b.generation++
		b.cond.Broadcast()
		return nil
	}

	for gen == b.generation && !b.broken {
		b.cond.Wait()
	}
	if gen == b.generation {
		return ErrBarrierBroken
	}
	return nil
}

// Break releases all current waiters with ErrBarrierBroken and makes every
// later Wait fail immediately.
func (b *Barrier) Break() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.broken = true
	b.cond.Broadcast()
}

// Broken reports whether Break has been called.
func (b *Barrier) Broken() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.broken
}
