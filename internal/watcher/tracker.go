package watcher

import "sync"

// tracker marks paths whose handler is running. An event acquires all of its
// paths at once, so a move never runs alongside an edit of either end.
type tracker struct {
	mu     sync.Mutex
	cond   *sync.Cond
	busy   map[string]struct{}
	closed bool
}

func newTracker() *tracker {
	t := &tracker{busy: make(map[string]struct{})}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// acquire blocks until none of paths is busy, then marks them all. It returns
// false once the tracker is closed.
func (t *tracker) acquire(paths []string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for !t.closed && t.anyBusy(paths) {
		t.cond.Wait()
	}
	if t.closed {
		return false
	}
	for _, p := range paths {
		t.busy[p] = struct{}{}
	}
	return true
}

func (t *tracker) anyBusy(paths []string) bool {
	for _, p := range paths {
		if _, ok := t.busy[p]; ok {
			return true
		}
	}
	return false
}

func (t *tracker) release(paths []string) {
	t.mu.Lock()
	for _, p := range paths {
		delete(t.busy, p)
	}
	t.mu.Unlock()
	t.cond.Broadcast()
}

func (t *tracker) inFlight() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.busy)
}

func (t *tracker) close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.cond.Broadcast()
}
