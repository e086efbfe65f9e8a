package h2

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
)

// fakeSession is a scripted session engine. Unless told otherwise it always
// has capacity and answers every request with 200 and the request path as
// the body.
type fakeSession struct {
	mu           sync.Mutex
	sent         []*http.Request
	streams      []*fakeStream
	handshakes   int
	readyCalls   int
	closedBodies int

	handshakeErr error
	readyErr     error
	permits      chan struct{} // nil means always ready
	sendErr      func(req *http.Request) error
	hold         chan struct{} // responses wait for this when set
	noStream     bool          // hand out no SendStream even for bodies

	conn *fakeConn
}

func newFakeSession() *fakeSession {
	return &fakeSession{conn: newFakeConn()}
}

func (f *fakeSession) Handshake(ctx context.Context, c net.Conn) (SendRequester, Connection, error) {
	f.mu.Lock()
	f.handshakes++
	f.mu.Unlock()
	if f.handshakeErr != nil {
		return nil, nil, f.handshakeErr
	}
	return f, f.conn, nil
}

func (f *fakeSession) Ready(ctx context.Context) error {
	f.mu.Lock()
	f.readyCalls++
	f.mu.Unlock()
	if f.readyErr != nil {
		return f.readyErr
	}
	if f.permits == nil {
		return nil
	}
	select {
	case <-f.permits:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeSession) SendRequest(req *http.Request, endStream bool) (ResponseFuture, SendStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, req)
	if f.sendErr != nil {
		if err := f.sendErr(req); err != nil {
			return nil, nil, err
		}
	}
	fut := &fakeFuture{f: f, req: req}
	if endStream || f.noStream {
		return fut, nil, nil
	}
	st := newFakeStream()
	f.streams = append(f.streams, st)
	return fut, st, nil
}

func (f *fakeSession) sentPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	paths := make([]string, 0, len(f.sent))
	for _, r := range f.sent {
		paths = append(paths, r.URL.Path)
	}
	return paths
}

func (f *fakeSession) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeSession) readyCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readyCalls
}

func (f *fakeSession) stream(i int) *fakeStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streams[i]
}

type fakeFuture struct {
	f   *fakeSession
	req *http.Request
}

func (fut *fakeFuture) Await() (*http.Response, error) {
	if fut.f.hold != nil {
		<-fut.f.hold
	}
	body := &trackedBody{Reader: strings.NewReader(fut.req.URL.Path), onClose: func() {
		fut.f.mu.Lock()
		fut.f.closedBodies++
		fut.f.mu.Unlock()
	}}
	return &http.Response{
		StatusCode: 200,
		Header:     make(http.Header),
		Body:       body,
		Request:    fut.req,
	}, nil
}

type trackedBody struct {
	io.Reader
	once    sync.Once
	onClose func()
}

func (b *trackedBody) Close() error {
	b.once.Do(b.onClose)
	return nil
}

type fakeStream struct {
	mu       sync.Mutex
	data     bytes.Buffer
	ended    bool
	trailer  http.Header
	resetErr error
	sendErr  error
	err      error
	done     chan struct{}
	doneOnce sync.Once
}

func newFakeStream() *fakeStream {
	return &fakeStream{done: make(chan struct{})}
}

func (s *fakeStream) finish() {
	s.doneOnce.Do(func() { close(s.done) })
}

func (s *fakeStream) SendData(p []byte, endStream bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.data.Write(p)
	if endStream {
		s.ended = true
		s.finish()
	}
	return nil
}

func (s *fakeStream) SendTrailers(trailer http.Header) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trailer = trailer
	s.ended = true
	s.finish()
	return nil
}

func (s *fakeStream) Reset(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetErr = err
	s.finish()
}

func (s *fakeStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *fakeStream) snapshot() (string, bool, http.Header, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.String(), s.ended, s.trailer, s.resetErr
}

type fakeConn struct {
	done      chan struct{}
	closeOnce sync.Once
	shutdown  atomic.Bool
	err       error
}

func newFakeConn() *fakeConn {
	return &fakeConn{done: make(chan struct{})}
}

func (c *fakeConn) Done() <-chan struct{} { return c.done }

func (c *fakeConn) Err() error { return c.err }

func (c *fakeConn) Shutdown(ctx context.Context) error {
	c.shutdown.Store(true)
	return c.Close()
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

// stubConn stands in for the transport; only Close is ever called on it.
type stubConn struct {
	net.Conn
	closed atomic.Bool
}

func (c *stubConn) Close() error {
	c.closed.Store(true)
	return nil
}

// trackingExec runs tasks on goroutines and lets tests wait for all of them.
type trackingExec struct {
	wg sync.WaitGroup
}

func (e *trackingExec) Execute(fn func()) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		fn()
	}()
}

func (e *trackingExec) wait() {
	e.wg.Wait()
}

var errRefused = errors.New("refused stream")
