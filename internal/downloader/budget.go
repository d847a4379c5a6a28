package downloader

import "sync"

// Budget caps the number of images counted in a run. A slot is reserved
// before a post is handled and then either committed (the image counts) or
// released (the download failed). Reservations never let committed plus
// in-flight exceed the maximum.
type Budget struct {
	mu       sync.Mutex
	cond     *sync.Cond
	max      int
	done     int
	inflight int
}

// NewBudget creates a budget for max images
func NewBudget(max int) *Budget {
	b := &Budget{max: max}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Reserve claims a slot. It blocks while in-flight work could still fill the
// budget, and returns false once the budget is reached.
func (b *Budget) Reserve() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.done+b.inflight >= b.max && b.inflight > 0 {
		b.cond.Wait()
	}
	if b.done >= b.max {
		return false
	}
	b.inflight++
	return true
}

// Commit settles a reservation as counted and returns the new count
func (b *Budget) Commit() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.inflight--
	b.done++
	b.cond.Broadcast()
	return b.done
}

// Release gives a reservation back without counting it
func (b *Budget) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.inflight--
	b.cond.Broadcast()
}

// Count returns the number of committed images
func (b *Budget) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.done
}

// Reached reports whether the committed count has hit the maximum
func (b *Budget) Reached() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.done >= b.max
}
