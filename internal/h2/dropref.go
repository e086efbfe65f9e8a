package h2

import (
	"sync/atomic"
)

// connDropRef lets the connection task learn that every request-sending
// handle and every in-flight body pipe is gone. The session engine does not
// notice on its own, so without this the connection would sit open until the
// peer hung up.
//
// It carries no values. Only the release of the last reference matters.
type connDropRef struct {
	sig      *dropSignal
	released atomic.Bool
}

type dropSignal struct {
	refs   atomic.Int64
	closed chan struct{}
}

func newConnDropRef() (*connDropRef, <-chan struct{}) {
	sig := &dropSignal{closed: make(chan struct{})}
	sig.refs.Store(1)
	return &connDropRef{sig: sig}, sig.closed
}

// Clone adds a reference. Cloning a released reference is a bug.
func (r *connDropRef) Clone() *connDropRef {
	if r.released.Load() {
		panic("h2: clone of released connDropRef")
	}
	r.sig.refs.Add(1)
	return &connDropRef{sig: r.sig}
}

// Release drops this reference. Only the first call counts.
func (r *connDropRef) Release() {
	if r.released.Swap(true) {
		return
	}
	if r.sig.refs.Add(-1) == 0 {
		close(r.sig.closed)
	}
}
