package h2

import (
	"context"
	"net"
	"net/http"
)

// Handshaker establishes an HTTP/2 session over an already connected
// transport.
type Handshaker interface {
	Handshake(ctx context.Context, c net.Conn) (SendRequester, Connection, error)
}

// SendRequester opens exchanges on an established session. It is safe to
// share between goroutines.
type SendRequester interface {
	// Ready blocks until the session can take one more stream. A non-nil
	// error means it never will.
	Ready(ctx context.Context) error

	// SendRequest starts an exchange. When endStream is true the request
	// carries no body and the returned SendStream is nil.
	SendRequest(req *http.Request, endStream bool) (ResponseFuture, SendStream, error)
}

// ResponseFuture yields the response headers of one exchange.
type ResponseFuture interface {
	Await() (*http.Response, error)
}

// SendStream is the request body half of one exchange.
type SendStream interface {
	// SendData writes p, blocking while the peer's flow-control window is
	// exhausted. endStream closes the request body.
	SendData(p []byte, endStream bool) error

	// SendTrailers writes the trailer fields and closes the request body.
	SendTrailers(trailer http.Header) error

	// Reset aborts the stream.
	Reset(err error)

	// Err is non-nil once the stream can no longer take data, for
	// example after the peer reset it.
	Err() error
}

// Connection is the background machinery of a session: reading frames,
// flow-control bookkeeping and eventually closing the transport.
type Connection interface {
	// Done is closed once the transport has been closed.
	Done() <-chan struct{}

	// Err reports why the connection ended, nil for an orderly close.
	Err() error

	// Shutdown stops new streams and waits for open ones to finish.
	Shutdown(ctx context.Context) error

	// Close tears the connection down immediately.
	Close() error
}
