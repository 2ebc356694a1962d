package session

import "sync"

// granted is handed to a caller that got the in-flight slot without waiting.
var granted = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// gate admits one generation at a time and queues up to depth callers behind
// it. Waiters are served strictly in the order they entered.
type gate struct {
	mu      sync.Mutex
	busy    bool
	waiters []chan struct{}
	depth   int
}

func newGate(depth int) *gate { return &gate{depth: depth} }

// enter returns a channel that is closed once the caller holds the in-flight
// slot. ok is false when the queue is full. force ignores the depth limit.
func (g *gate) enter(force bool) (ch chan struct{}, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.busy {
		g.busy = true
		return granted, true
	}
	if !force && len(g.waiters) >= g.depth {
		return nil, false
	}
	ch = make(chan struct{})
	g.waiters = append(g.waiters, ch)
	return ch, true
}

// leave frees the in-flight slot, handing it to the oldest waiter if any.
func (g *gate) leave() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.waiters) == 0 {
		g.busy = false
		return
	}
	next := g.waiters[0]
	g.waiters = g.waiters[1:]
	close(next)
}

// abandon withdraws a waiter. If the slot was already handed to it, the slot
// is passed on.
func (g *gate) abandon(ch chan struct{}) {
	g.mu.Lock()
	for i, w := range g.waiters {
		if w == ch {
			g.waiters = append(g.waiters[:i], g.waiters[i+1:]...)
			g.mu.Unlock()
			return
		}
	}
	g.mu.Unlock()
	g.leave()
}

func (g *gate) stats() (inflight, queued int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.busy {
		inflight = 1
	}
	return inflight, len(g.waiters)
}
