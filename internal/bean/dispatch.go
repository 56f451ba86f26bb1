package bean

import "sync"

// Dispatcher runs mutations one at a time. Stores that share a
// Dispatcher apply timer-driven writes through it, and callers on other
// goroutines wrap their writes in Do, so a Set and the listener round it
// triggers never interleave with another Set.
//
// Do is not reentrant: listeners already run inside Do and must call Set
// directly.
type Dispatcher struct {
	mu sync.Mutex
}

// NewDispatcher returns an idle dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Do runs fn while holding the dispatcher. A nil Dispatcher runs fn
// directly.
func (d *Dispatcher) Do(fn func()) {
	if d == nil {
		fn()
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	fn()
}
