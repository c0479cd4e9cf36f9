// Package reactor implements the per-instance waker table: the map
// from a Handle to the most recently registered callback that should
// run when that handle next makes progress.
package reactor

import (
	"sync"

	"github.com/machinefabric/meshkernel-go/meshaddr"
)

// Waker is invoked by the bridge when the handle it was registered
// against becomes ready. It carries no arguments; the guest task it
// represents recovers context from its own closure.
type Waker func()

// Reactor maps a Handle to the latest Waker a guest task registered
// while observing Pending on that handle. Registering a new waker for
// a handle that already has one replaces it silently: at most one
// waker is live per handle at any instant.
type Reactor struct {
	mu     sync.Mutex
	wakers map[meshaddr.Handle]Waker
}

// New constructs an empty Reactor.
func New() *Reactor {
	return &Reactor{wakers: make(map[meshaddr.Handle]Waker)}
}

// Register installs w as the waker for h, replacing any waker
// previously registered for that handle.
func (r *Reactor) Register(h meshaddr.Handle, w Waker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wakers[h] = w
}

// Wake consumes and invokes the waker registered for h, if any. A
// handle with no registered waker is a silent no-op: it means no
// guest task is currently blocked on it.
func (r *Reactor) Wake(h meshaddr.Handle) {
	r.mu.Lock()
	w, ok := r.wakers[h]
	if ok {
		delete(r.wakers, h)
	}
	r.mu.Unlock()
	if ok {
		w()
	}
}

// Forget removes any waker registered for h without invoking it. The
// bridge calls this when a handle is closed so a stale waker cannot
// fire after the handle it described is gone.
func (r *Reactor) Forget(h meshaddr.Handle) {
	r.mu.Lock()
	delete(r.wakers, h)
	r.mu.Unlock()
}
