package h2conn

import (
	"errors"

	"github.com/imroc/h2conn/internal/common"
)

// Error is returned for every request that did not get a response, and by
// Conn.Run when the handshake fails.
type Error = common.Error

// ErrorKind tells where an Error came from.
type ErrorKind = common.Kind

const (
	KindHandshake = common.KindHandshake
	KindSession   = common.KindSession
	KindCanceled  = common.KindCanceled
	KindClosed    = common.KindClosed
	KindBodyWrite = common.KindBodyWrite
	KindBody      = common.KindBody
)

var (
	// ErrConnClosed means the connection will not take any more requests.
	ErrConnClosed = common.ErrConnClosed

	// ErrRequestCanceled is reported for a request canceled before it was
	// sent.
	ErrRequestCanceled = common.ErrRequestCanceled
)

// IsKind reports whether err is, or wraps, an Error of kind k.
func IsKind(err error, k ErrorKind) bool {
	return common.IsKind(err, k)
}

// IsCanceled reports whether the request behind err was never sent, so it
// is safe to retry on another connection.
func IsCanceled(err error) bool {
	return IsKind(err, KindCanceled)
}

// IsClosed reports whether err means the connection is no longer usable.
func IsClosed(err error) bool {
	return IsKind(err, KindClosed) || errors.Is(err, common.ErrConnClosed)
}
