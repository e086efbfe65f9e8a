package tests

import (
	"io"
	"sync"
)

type NeverEnding byte

func (b NeverEnding) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(b)
	}
	return len(p), nil
}

// GatedBody is a request body whose chunks are released one at a time
// by the test through Push, and which ends when Finish is called.
type GatedBody struct {
	ch       chan []byte
	err      chan error
	closed   chan struct{}
	closeOne sync.Once
	pending  []byte
}

func NewGatedBody() *GatedBody {
	return &GatedBody{
		ch:     make(chan []byte),
		err:    make(chan error, 1),
		closed: make(chan struct{}),
	}
}

// Push hands p to the next Read. It blocks until the body is read or closed.
func (b *GatedBody) Push(p []byte) {
	select {
	case b.ch <- p:
	case <-b.closed:
	}
}

// Finish makes the body return err (io.EOF if nil) once pushed chunks are read.
func (b *GatedBody) Finish(err error) {
	if err == nil {
		err = io.EOF
	}
	b.err <- err
}

func (b *GatedBody) Read(p []byte) (int, error) {
	if len(b.pending) > 0 {
		n := copy(p, b.pending)
		b.pending = b.pending[n:]
		return n, nil
	}
	select {
	case chunk := <-b.ch:
		n := copy(p, chunk)
		b.pending = chunk[n:]
		return n, nil
	case err := <-b.err:
		return 0, err
	case <-b.closed:
		return 0, io.ErrClosedPipe
	}
}

func (b *GatedBody) Close() error {
	b.closeOne.Do(func() { close(b.closed) })
	return nil
}

// Closed reports whether Close has been called.
func (b *GatedBody) Closed() bool {
	select {
	case <-b.closed:
		return true
	default:
		return false
	}
}
