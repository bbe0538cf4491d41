package remote

import (
	"slices"
	"sync"
)

// Broadcaster fans auth events out to subscribers. The zero value is
// ready to use.
type Broadcaster struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(AuthEvent)
}

// Subscribe registers fn and returns a function removing it. Calling the
// returned function more than once is harmless.
func (b *Broadcaster) Subscribe(fn func(AuthEvent)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs == nil {
		b.subs = make(map[int]func(AuthEvent))
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = fn

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Emit delivers ev to every subscriber on the calling goroutine, in
// subscription order.
func (b *Broadcaster) Emit(ev AuthEvent) {
	b.mu.Lock()
	ids := make([]int, 0, len(b.subs))
	for id := range b.subs {
		ids = append(ids, id)
	}
	fns := make([]func(AuthEvent), 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		fns = append(fns, b.subs[id])
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
