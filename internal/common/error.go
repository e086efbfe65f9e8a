package common

import (
	"errors"
	"fmt"
)

var (
	// ErrRequestCanceled is a copy of net/http's common.ErrRequestCanceled because it's not
	// exported. At least they'll be DeepEqual for h1-vs-h2 comparisons tests.
	ErrRequestCanceled = errors.New("net/http: request canceled")

	// ErrConnClosed is reported to requests that were still queued when the
	// connection stopped accepting work.
	ErrConnClosed = errors.New("h2conn: connection closed")
)

// Kind classifies where an Error came from.
type Kind int

const (
	// KindHandshake is a failed connection preface or settings exchange.
	// It is the only kind that terminates a connection driver with an error.
	KindHandshake Kind = iota + 1
	// KindSession is an error reported by the HTTP/2 session, either
	// refusing a new stream or failing one that was already open.
	KindSession
	// KindCanceled means the request was never sent.
	KindCanceled
	// KindClosed means the connection is no longer usable.
	KindClosed
	// KindBodyWrite is a failure writing a request body to its stream.
	KindBodyWrite
	// KindBody is a failure reading a request body supplied by the caller.
	KindBody
)

func (k Kind) String() string {
	switch k {
	case KindHandshake:
		return "handshake"
	case KindSession:
		return "session"
	case KindCanceled:
		return "canceled"
	case KindClosed:
		return "closed"
	case KindBodyWrite:
		return "body write"
	case KindBody:
		return "body"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is the error type delivered by the connection driver.
type Error struct {
	Kind Kind
	Err  error
}

func NewError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "h2conn: " + e.Kind.String() + " error"
	}
	return "h2conn: " + e.Kind.String() + " error: " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is, or wraps, an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}
