// Package dispatch carries requests from callers to a connection driver and
// responses back, one write-once slot per request.
package dispatch

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Send once either side has closed, and by Recv once
// the sender has closed and every queued item has been received.
var ErrClosed = errors.New("dispatch: channel closed")

// Result is what a Callback delivers to its Promise.
type Result[U any] struct {
	Value U
	Err   error
}

// Callback is the driver's half of a response slot.
type Callback[U any] struct {
	ch       chan Result[U]
	canceled chan struct{}

	// mu orders Send against Cancel: once Cancel returns, a value that was
	// accepted is already in ch.
	mu         sync.Mutex
	sent       bool
	isCanceled bool
}

// Promise is the caller's half of a response slot.
type Promise[U any] struct {
	cb *Callback[U]
}

func newSlot[U any]() (*Callback[U], *Promise[U]) {
	cb := &Callback[U]{
		ch:       make(chan Result[U], 1),
		canceled: make(chan struct{}),
	}
	return cb, &Promise[U]{cb: cb}
}

// Canceled reports whether the caller has given up on the response.
func (cb *Callback[U]) Canceled() bool {
	select {
	case <-cb.canceled:
		return true
	default:
		return false
	}
}

// Send completes the slot. It reports false if the slot was already completed
// or the caller canceled; the value is then discarded.
func (cb *Callback[U]) Send(v U, err error) bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.sent || cb.isCanceled {
		return false
	}
	cb.sent = true
	cb.ch <- Result[U]{Value: v, Err: err}
	return true
}

func (cb *Callback[U]) cancel() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if !cb.isCanceled {
		cb.isCanceled = true
		close(cb.canceled)
	}
}

// Cancel marks the slot canceled. A request not yet dispatched is dropped by
// the driver; one already dispatched is unaffected.
func (p *Promise[U]) Cancel() {
	p.cb.cancel()
}

// Done returns a channel that yields the result once.
func (p *Promise[U]) Done() <-chan Result[U] {
	return p.cb.ch
}

// Wait blocks for the result. If ctx ends first the promise is canceled and
// ctx.Err() returned, unless the result raced in.
func (p *Promise[U]) Wait(ctx context.Context) (U, error) {
	select {
	case r := <-p.cb.ch:
		return r.Value, r.Err
	case <-ctx.Done():
		p.Cancel()
		select {
		case r := <-p.cb.ch:
			return r.Value, r.Err
		default:
		}
		var zero U
		return zero, ctx.Err()
	}
}

type envelope[T, U any] struct {
	v  T
	cb *Callback[U]
}

type queue[T, U any] struct {
	mu       sync.Mutex
	items    []envelope[T, U]
	txClosed bool
	rxClosed bool
	notify   chan struct{}
}

func (q *queue[T, U]) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Sender enqueues requests. It is safe for concurrent use.
type Sender[T, U any] struct {
	q *queue[T, U]
}

// Receiver is owned by a single driver goroutine.
type Receiver[T, U any] struct {
	q *queue[T, U]
}

// Channel returns the two ends of an unbounded request queue.
func Channel[T, U any]() (*Sender[T, U], *Receiver[T, U]) {
	q := &queue[T, U]{notify: make(chan struct{}, 1)}
	return &Sender[T, U]{q: q}, &Receiver[T, U]{q: q}
}

// Send enqueues v and returns the promise for its response.
func (s *Sender[T, U]) Send(v T) (*Promise[U], error) {
	cb, p := newSlot[U]()
	s.q.mu.Lock()
	if s.q.txClosed || s.q.rxClosed {
		s.q.mu.Unlock()
		return nil, ErrClosed
	}
	s.q.items = append(s.q.items, envelope[T, U]{v: v, cb: cb})
	s.q.mu.Unlock()
	s.q.wake()
	return p, nil
}

// Close stops further sends. Items already queued are still received.
func (s *Sender[T, U]) Close() {
	s.q.mu.Lock()
	s.q.txClosed = true
	s.q.mu.Unlock()
	s.q.wake()
}

// IsClosed reports whether Send would fail.
func (s *Sender[T, U]) IsClosed() bool {
	s.q.mu.Lock()
	defer s.q.mu.Unlock()
	return s.q.txClosed || s.q.rxClosed
}

// Recv returns the next item in arrival order. It returns ErrClosed when the
// queue is closed and drained, or ctx.Err() if ctx ends first.
func (r *Receiver[T, U]) Recv(ctx context.Context) (T, *Callback[U], error) {
	var zero T
	for {
		r.q.mu.Lock()
		if len(r.q.items) > 0 {
			e := r.q.items[0]
			r.q.items[0] = envelope[T, U]{}
			r.q.items = r.q.items[1:]
			r.q.mu.Unlock()
			return e.v, e.cb, nil
		}
		if r.q.txClosed || r.q.rxClosed {
			r.q.mu.Unlock()
			return zero, nil, ErrClosed
		}
		r.q.mu.Unlock()

		select {
		case <-r.q.notify:
		case <-ctx.Done():
			return zero, nil, ctx.Err()
		}
	}
}

// Len is the number of queued items.
func (r *Receiver[T, U]) Len() int {
	r.q.mu.Lock()
	defer r.q.mu.Unlock()
	return len(r.q.items)
}

// Close refuses further sends and fails every queued item with err.
func (r *Receiver[T, U]) Close(err error) {
	r.q.mu.Lock()
	r.q.rxClosed = true
	items := r.q.items
	r.q.items = nil
	r.q.mu.Unlock()
	r.q.wake()

	var zero U
	for _, e := range items {
		e.cb.Send(zero, err)
	}
}
