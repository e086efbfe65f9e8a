// Package h2 drives the client side of one HTTP/2 connection: it performs
// the handshake, then takes requests off a queue in order and dispatches
// each one onto the session, handing bodies and responses to background
// tasks.
package h2

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/imroc/h2conn/internal/common"
	"github.com/imroc/h2conn/internal/dispatch"
	"github.com/imroc/h2conn/internal/dump"
	"github.com/imroc/h2conn/internal/logging"
)

// ClientRx is the driver's end of the request queue.
type ClientRx = dispatch.Receiver[*http.Request, *http.Response]

type callback = dispatch.Callback[*http.Response]

// Config holds what a Client needs besides its transport and queue.
type Config struct {
	Handshaker Handshaker
	Exec       Exec
	Logger     logging.Logger
	Dumper     *dump.Dumper

	// WrapResponse, if set, replaces res.Body with the caller-facing body
	// before delivery.
	WrapResponse func(res *http.Response)

	// BodyBufferSize is the largest chunk read from a request body at once.
	BodyBufferSize int

	// ShutdownTimeout bounds the graceful shutdown started once every
	// request handle is gone. Zero waits for open streams indefinitely.
	ShutdownTimeout time.Duration
}

// Client is the connection driver. Run must be called from one goroutine
// at a time; the state is owned by that goroutine.
type Client struct {
	exec            Exec
	rx              *ClientRx
	state           state
	log             logging.Logger
	dumper          *dump.Dumper
	wrapResponse    func(*http.Response)
	bodyBufferSize  int
	shutdownTimeout time.Duration
}

type state interface {
	isState()
}

type handshaking struct {
	hs Handshaker
	io net.Conn
}

type ready struct {
	tx          SendRequester
	connDropRef *connDropRef
}

type closed struct {
	err error
}

func (*handshaking) isState() {}
func (*ready) isState()       {}
func (*closed) isState()      {}

// NewClient returns a driver that will handshake over io and then serve rx.
func NewClient(io net.Conn, rx *ClientRx, cfg Config) *Client {
	c := &Client{
		exec:            cfg.Exec,
		rx:              rx,
		state:           &handshaking{hs: cfg.Handshaker, io: io},
		log:             cfg.Logger,
		dumper:          cfg.Dumper,
		wrapResponse:    cfg.WrapResponse,
		bodyBufferSize:  cfg.BodyBufferSize,
		shutdownTimeout: cfg.ShutdownTimeout,
	}
	if c.exec == nil {
		c.exec = GoExec{}
	}
	if c.log == nil {
		c.log = logging.Disabled()
	}
	if c.bodyBufferSize <= 0 {
		c.bodyBufferSize = defaultBodyBufferSize
	}
	return c
}

// Run drives the connection until the request queue is closed, the session
// stops accepting streams, the handshake fails or ctx ends. A closed queue is
// the normal end and yields nil. Once Run has returned, later calls return
// the same result without touching the session.
func (c *Client) Run(ctx context.Context) error {
	for {
		switch st := c.state.(type) {
		case *handshaking:
			next, err := c.handshake(ctx, st)
			if err != nil {
				return c.finish(err)
			}
			c.state = next
		case *ready:
			if err := st.tx.Ready(ctx); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return c.finish(ctxErr)
				}
				return c.finish(common.NewError(common.KindClosed, err))
			}
			req, cb, err := c.rx.Recv(ctx)
			if err != nil {
				if errors.Is(err, dispatch.ErrClosed) {
					c.log.Debugf("request queue closed")
					return c.finish(nil)
				}
				return c.finish(err)
			}
			c.dispatch(st, req, cb)
		case *closed:
			return st.err
		}
	}
}

// Pending is the number of requests queued but not yet dispatched.
func (c *Client) Pending() int {
	return c.rx.Len()
}

func (c *Client) finish(err error) error {
	if st, ok := c.state.(*ready); ok {
		st.connDropRef.Release()
	}
	c.state = &closed{err: err}
	c.rx.Close(common.NewError(common.KindCanceled, common.ErrConnClosed))
	return err
}

func (c *Client) handshake(ctx context.Context, st *handshaking) (state, error) {
	tx, conn, err := st.hs.Handshake(ctx, st.io)
	if err != nil {
		st.io.Close()
		return nil, common.NewError(common.KindHandshake, err)
	}
	ref, dropped := newConnDropRef()
	c.exec.Execute(func() {
		c.watchConn(conn, dropped)
	})
	incr(metricConnReady)
	return &ready{tx: tx, connDropRef: ref}, nil
}

// watchConn runs until the connection is done. If every handle is dropped
// first, it starts a graceful shutdown and keeps waiting.
func (c *Client) watchConn(conn Connection, dropped <-chan struct{}) {
	select {
	case <-conn.Done():
		c.connDone(conn)
		return
	case <-dropped:
	}

	c.log.Debugf("send_request dropped, starting conn shutdown")
	incr(metricConnShutdown)
	ctx := context.Background()
	if c.shutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.shutdownTimeout)
		defer cancel()
	}
	if err := conn.Shutdown(ctx); err != nil {
		c.log.Debugf("connection shutdown error: %v", err)
		conn.Close()
	}
	<-conn.Done()
	c.connDone(conn)
}

func (c *Client) connDone(conn Connection) {
	if err := conn.Err(); err != nil {
		c.log.Debugf("connection error: %v", err)
		return
	}
	c.log.Debugf("connection complete")
}

func (c *Client) dispatch(st *ready, req *http.Request, cb *callback) {
	if cb.Canceled() || req.Context().Err() != nil {
		c.log.Debugf("request canceled")
		incr(metricCanceled)
		closeBody(req)
		err := req.Context().Err()
		if err == nil {
			err = common.ErrRequestCanceled
		}
		cb.Send(nil, common.NewError(common.KindCanceled, err))
		return
	}

	wire, stripped := prepareRequest(req)
	for _, k := range stripped {
		c.log.Debugf("connection header illegal in HTTP/2: %s", k)
	}
	eos := isEndStream(wire)
	c.dumper.DumpRequestHeader(wire)

	fut, stream, err := st.tx.SendRequest(wire, eos)
	if err != nil {
		c.log.Debugf("client send request error: %v", err)
		incr(metricDispatchError)
		closeBody(req)
		cb.Send(nil, common.NewError(common.KindSession, err))
		return
	}
	incr(metricDispatched)

	if !eos && stream != nil {
		ref := st.connDropRef.Clone()
		pipe := &pipeToSendStream{
			body:    req.Body,
			trailer: req.Trailer,
			stream:  stream,
			bufSize: c.bodyBufferSize,
			dumper:  c.dumper,
		}
		c.exec.Execute(func() {
			defer ref.Release()
			if err := pipe.run(); err != nil {
				c.log.Debugf("client request body error: %v", err)
				incr(metricBodyError)
			}
		})
	} else if !eos {
		c.log.Debugf("session returned no send stream for request body, dropping body")
		closeBody(req)
	}

	c.exec.Execute(func() {
		c.deliver(fut, cb)
	})
}

// deliver waits for the response and completes the slot. A caller that
// stopped listening is not an error.
func (c *Client) deliver(fut ResponseFuture, cb *callback) {
	res, err := fut.Await()
	if err != nil {
		c.log.Debugf("client response error: %v", err)
		incr(metricResponseError)
		cb.Send(nil, common.NewError(common.KindSession, err))
		return
	}
	if res.Body == nil {
		res.Body = http.NoBody
	}
	c.dumper.DumpResponseHeader(res)
	res.Body = c.dumper.WrapResponseBodyReadCloser(res.Body)
	if c.wrapResponse != nil {
		c.wrapResponse(res)
	}
	if !cb.Send(res, nil) {
		res.Body.Close()
	}
}

func closeBody(req *http.Request) {
	if req.Body != nil && req.Body != http.NoBody {
		req.Body.Close()
	}
}
