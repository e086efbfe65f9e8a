package h2conn

import (
	"context"
	"errors"
	"net/http"

	"github.com/imroc/h2conn/internal/common"
	"github.com/imroc/h2conn/internal/compress"
	"github.com/imroc/h2conn/internal/dispatch"
	"github.com/imroc/h2conn/internal/h2"
	"github.com/imroc/h2conn/internal/header"
)

// Promise is the pending response of a request handed to Send.
type Promise = dispatch.Promise[*http.Response]

// Sender queues requests for one connection. It is safe for concurrent use.
type Sender struct {
	tx             *dispatch.Sender[*http.Request, *http.Response]
	autoDecompress bool
}

var _ http.RoundTripper = (*Sender)(nil)

// Send queues req and returns its pending response. Requests are sent in
// the order they were queued. Canceling the promise, or the request's
// context, before the request is sent drops it.
func (s *Sender) Send(req *http.Request) (*Promise, error) {
	if s.autoDecompress && req.Method != http.MethodHead && req.Header.Get(header.AcceptEncoding) == "" {
		// shallow copy: the trailer map must stay the caller's
		r := *req
		r.Header = req.Header.Clone()
		if r.Header == nil {
			r.Header = make(http.Header)
		}
		r.Header.Set(header.AcceptEncoding, compress.AcceptEncoding)
		req = &r
	}
	p, err := s.tx.Send(req)
	if errors.Is(err, dispatch.ErrClosed) {
		return nil, common.NewError(common.KindClosed, common.ErrConnClosed)
	}
	return p, err
}

// RoundTrip sends req and waits for its response, or for the request's
// context to end.
func (s *Sender) RoundTrip(req *http.Request) (*http.Response, error) {
	p, err := s.Send(req)
	if err != nil {
		return nil, err
	}
	return p.Wait(req.Context())
}

// Close stops accepting requests. Requests already queued are still sent.
func (s *Sender) Close() {
	s.tx.Close()
}

// IsClosed reports whether Send would fail.
func (s *Sender) IsClosed() bool {
	return s.tx.IsClosed()
}

// Conn is the driver of one connection.
type Conn struct {
	driver *h2.Client
}

// Run performs the handshake and then sends queued requests until the
// Sender is closed and drained (nil), the connection stops taking requests,
// the handshake fails or ctx ends. Requests still queued at that point fail
// with ErrConnClosed. The connection is shut down in the background once
// every request body has been sent.
//
// Run must not be called concurrently with itself; a later call returns
// the result of the first.
func (c *Conn) Run(ctx context.Context) error {
	return c.driver.Run(ctx)
}

// Pending returns how many sent requests are still waiting for a stream.
func (c *Conn) Pending() int {
	return c.driver.Pending()
}
