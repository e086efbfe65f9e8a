package h2

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/armon/go-metrics"
	"github.com/jpillora/backoff"
	"golang.org/x/net/http2"

	"github.com/imroc/h2conn/internal/common"
)

var (
	errNoStreamCapacity = errors.New("h2: no stream capacity available")
	errStreamClosed     = errors.New("h2: request stream closed")
)

// aLongTimeAgo is a non-zero time, far in the past, used for immediate
// cancellation of network operations.
var aLongTimeAgo = time.Unix(1, 0)

const (
	defaultMinCapacityWait = 5 * time.Millisecond
	defaultMaxCapacityWait = 250 * time.Millisecond
)

// XNetHandshaker runs sessions on golang.org/x/net/http2.
type XNetHandshaker struct {
	Transport *http2.Transport

	// MinCapacityWait and MaxCapacityWait bound the backoff between
	// capacity checks while the peer's concurrent stream limit is reached.
	MinCapacityWait time.Duration
	MaxCapacityWait time.Duration
}

// NewXNetHandshaker returns a handshaker with the session settings of t, or
// the x/net defaults when t is nil. t itself is never modified or used to
// dial.
func NewXNetHandshaker(t *http2.Transport) *XNetHandshaker {
	return &XNetHandshaker{
		Transport:       sessionTransport(t),
		MinCapacityWait: defaultMinCapacityWait,
		MaxCapacityWait: defaultMaxCapacityWait,
	}
}

// sessionTransport copies the session settings of t onto a transport of its
// own. Connections are handed over already established, with or without
// TLS. The peer's stream limit is always strict: Ready keeps the driver
// under it, and a request racing a lowered limit waits in x/net instead of
// failing.
func sessionTransport(t *http2.Transport) *http2.Transport {
	st := &http2.Transport{
		AllowHTTP:                  true,
		StrictMaxConcurrentStreams: true,
	}
	if t != nil {
		st.DisableCompression = t.DisableCompression
		st.MaxHeaderListSize = t.MaxHeaderListSize
		st.MaxReadFrameSize = t.MaxReadFrameSize
		st.MaxDecoderHeaderTableSize = t.MaxDecoderHeaderTableSize
		st.MaxEncoderHeaderTableSize = t.MaxEncoderHeaderTableSize
		st.IdleConnTimeout = t.IdleConnTimeout
		st.ReadIdleTimeout = t.ReadIdleTimeout
		st.PingTimeout = t.PingTimeout
		st.WriteByteTimeout = t.WriteByteTimeout
		st.CountError = t.CountError
	}
	if st.CountError == nil {
		st.CountError = func(errType string) {
			metrics.IncrCounter([]string{"h2conn", "h2", "error", errType}, 1)
		}
	}
	return st
}

// Handshake writes the client preface and initial settings, and starts the
// session's read loop.
func (h *XNetHandshaker) Handshake(ctx context.Context, c net.Conn) (SendRequester, Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	tc := newTrackedConn(c)
	stop := context.AfterFunc(ctx, func() {
		c.SetDeadline(aLongTimeAgo)
	})
	cc, err := h.Transport.NewClientConn(tc.netConn())
	if !stop() {
		if cc != nil {
			cc.Close()
		}
		return nil, nil, ctx.Err()
	}
	if err != nil {
		return nil, nil, err
	}
	tx := &xnetSendRequest{
		cc:         cc,
		streamDone: make(chan struct{}, 1),
		minWait:    h.MinCapacityWait,
		maxWait:    h.MaxCapacityWait,
	}
	return tx, &xnetConn{cc: cc, tc: tc}, nil
}

// trackedConn reports when the session closes its transport, and why.
type trackedConn struct {
	net.Conn
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error

	mu      sync.Mutex
	readErr error
}

type connectionStater interface {
	ConnectionState() tls.ConnectionState
}

// trackedTLSConn keeps ConnectionState visible so responses carry
// their TLS state.
type trackedTLSConn struct {
	*trackedConn
	cs connectionStater
}

func (c trackedTLSConn) ConnectionState() tls.ConnectionState {
	return c.cs.ConnectionState()
}

func newTrackedConn(c net.Conn) *trackedConn {
	return &trackedConn{Conn: c, done: make(chan struct{})}
}

func (c *trackedConn) netConn() net.Conn {
	if cs, ok := c.Conn.(connectionStater); ok {
		return trackedTLSConn{trackedConn: c, cs: cs}
	}
	return c
}

func (c *trackedConn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	if err != nil {
		c.mu.Lock()
		if c.readErr == nil {
			c.readErr = err
		}
		c.mu.Unlock()
	}
	return n, err
}

func (c *trackedConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.Conn.Close()
		close(c.done)
	})
	return c.closeErr
}

// Err is the first read error, unless it only reports an orderly close.
func (c *trackedConn) Err() error {
	c.mu.Lock()
	err := c.readErr
	c.mu.Unlock()
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return nil
	}
	return err
}

type xnetConn struct {
	cc *http2.ClientConn
	tc *trackedConn
}

func (c *xnetConn) Done() <-chan struct{} { return c.tc.done }

func (c *xnetConn) Err() error { return c.tc.Err() }

func (c *xnetConn) Shutdown(ctx context.Context) error { return c.cc.Shutdown(ctx) }

func (c *xnetConn) Close() error { return c.cc.Close() }

type xnetSendRequest struct {
	cc *http2.ClientConn

	// streamDone is signaled, best effort, whenever a stream of this
	// connection finishes and capacity may have been freed.
	streamDone chan struct{}
	minWait    time.Duration
	maxWait    time.Duration
}

func (s *xnetSendRequest) notify() {
	select {
	case s.streamDone <- struct{}{}:
	default:
	}
}

// hasCapacity reports whether one more stream fits under the peer's limit.
// A request is counted as reserved, pending or active from the moment
// SendRequest takes it. The limit reads zero until the peer's SETTINGS
// have arrived.
func hasCapacity(st http2.ClientConnState) bool {
	inUse := st.StreamsActive + st.StreamsReserved + st.StreamsPending
	return st.MaxConcurrentStreams > 0 && inUse < int(st.MaxConcurrentStreams)
}

// Ready waits until the session can take one more stream. It holds no
// reservation: nothing is counted against the peer's limit until
// SendRequest.
func (s *xnetSendRequest) Ready(ctx context.Context) error {
	b := &backoff.Backoff{
		Factor: 2,
		Jitter: true,
		Min:    s.minWait,
		Max:    s.maxWait,
	}
	for {
		st := s.cc.State()
		if st.Closed || st.Closing {
			return common.ErrConnClosed
		}
		if hasCapacity(st) {
			return nil
		}
		t := time.NewTimer(b.Duration())
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-s.streamDone:
			t.Stop()
			b.Reset()
		case <-t.C:
		}
	}
}

func (s *xnetSendRequest) SendRequest(req *http.Request, endStream bool) (ResponseFuture, SendStream, error) {
	// counted from here until RoundTrip turns it into a stream
	if !s.cc.ReserveNewRequest() {
		return nil, nil, errNoStreamCapacity
	}

	var stream *xnetSendStream
	if endStream {
		req.Body = nil
		req.GetBody = nil
		req.ContentLength = 0
	} else {
		pr, pw := io.Pipe()
		body := &streamBody{
			PipeReader: pr,
			started:    make(chan struct{}),
			closed:     make(chan struct{}),
		}
		stream = &xnetSendStream{pw: pw, body: body, trailer: req.Trailer}
		req.Body = body
		req.GetBody = nil
	}

	fut := &xnetResponse{ch: make(chan roundTripResult, 1)}
	go func() {
		res, err := s.cc.RoundTrip(req)
		if err != nil {
			if stream != nil {
				stream.pw.CloseWithError(err)
			}
			s.notify()
			fut.ch <- roundTripResult{err: err}
			return
		}
		res.Body = &notifyBody{ReadCloser: res.Body, notify: s.notify}
		fut.ch <- roundTripResult{res: res}
	}()

	if stream == nil {
		return fut, nil, nil
	}
	return fut, stream, nil
}

type roundTripResult struct {
	res *http.Response
	err error
}

type xnetResponse struct {
	ch chan roundTripResult
}

func (r *xnetResponse) Await() (*http.Response, error) {
	rt := <-r.ch
	return rt.res, rt.err
}

// streamBody is the request body the session reads from. The session closes
// it when the stream is done with it.
type streamBody struct {
	*io.PipeReader
	startOnce sync.Once
	started   chan struct{}
	closeOnce sync.Once
	closed    chan struct{}
}

func (b *streamBody) Read(p []byte) (int, error) {
	b.startOnce.Do(func() { close(b.started) })
	return b.PipeReader.Read(p)
}

func (b *streamBody) Close() error {
	b.closeOnce.Do(func() { close(b.closed) })
	return b.PipeReader.Close()
}

type xnetSendStream struct {
	pw      *io.PipeWriter
	body    *streamBody
	trailer http.Header
}

// SendData blocks until the session has taken p, which it only does while
// it has flow-control window for the stream.
func (s *xnetSendStream) SendData(p []byte, endStream bool) error {
	if len(p) > 0 {
		if _, err := s.pw.Write(p); err != nil {
			return err
		}
	}
	if endStream {
		return s.pw.Close()
	}
	return nil
}

// SendTrailers fills in the trailer values announced with the headers. The
// session reads the map after the body ends, and the announced keys when it
// writes the headers, so values are only set once it has started reading
// the body.
func (s *xnetSendStream) SendTrailers(trailer http.Header) error {
	select {
	case <-s.body.started:
	case <-s.body.closed:
		return errStreamClosed
	}
	if s.trailer != nil {
		for k, vv := range trailer {
			s.trailer[k] = vv
		}
	}
	return s.pw.Close()
}

func (s *xnetSendStream) Reset(err error) {
	s.pw.CloseWithError(err)
}

func (s *xnetSendStream) Err() error {
	select {
	case <-s.body.closed:
		return errStreamClosed
	default:
		return nil
	}
}

// notifyBody signals once when the response body is finished with.
type notifyBody struct {
	io.ReadCloser
	once   sync.Once
	notify func()
}

func (b *notifyBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if err != nil {
		b.once.Do(b.notify)
	}
	return n, err
}

func (b *notifyBody) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(b.notify)
	return err
}
