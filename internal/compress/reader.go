// Package compress decodes response bodies by Content-Encoding.
package compress

import (
	"errors"
	"io"
	"io/fs"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// AcceptEncoding lists every coding NewReader understands, in preference
// order.
const AcceptEncoding = "gzip, deflate, br, zstd"

// Reader wraps a body and decodes it on the fly. The decoder is created on
// the first Read so that an unread body costs nothing.
type Reader struct {
	Body     io.ReadCloser // underlying response body
	encoding string
	dec      io.Reader
	closeDec func()
	err      error // sticky
}

// Supported reports whether NewReader can decode the given coding.
func Supported(contentEncoding string) bool {
	switch normalize(contentEncoding) {
	case "gzip", "x-gzip", "deflate", "br", "zstd":
		return true
	}
	return false
}

// NewReader returns a decoding reader over body, or nil when the coding is
// unknown.
func NewReader(body io.ReadCloser, contentEncoding string) *Reader {
	enc := normalize(contentEncoding)
	if !Supported(enc) {
		return nil
	}
	return &Reader{Body: body, encoding: enc}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Encoding is the coding being removed.
func (r *Reader) Encoding() string {
	return r.encoding
}

func (r *Reader) init() error {
	switch r.encoding {
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(r.Body)
		if err != nil {
			return err
		}
		r.dec = zr
		r.closeDec = func() { zr.Close() }
	case "deflate":
		fr := flate.NewReader(r.Body)
		r.dec = fr
		r.closeDec = func() { fr.Close() }
	case "br":
		r.dec = brotli.NewReader(r.Body)
	case "zstd":
		zr, err := zstd.NewReader(r.Body, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return err
		}
		r.dec = zr
		r.closeDec = zr.Close
	default:
		return errors.New("compress: unsupported content encoding " + r.encoding)
	}
	return nil
}

func (r *Reader) Read(p []byte) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	if r.dec == nil {
		if err := r.init(); err != nil {
			r.err = err
			return 0, err
		}
	}
	n, err := r.dec.Read(p)
	if err != nil && err != io.EOF {
		r.err = err
	}
	return n, err
}

// Close releases the decoder and closes the underlying body.
func (r *Reader) Close() error {
	if r.closeDec != nil {
		r.closeDec()
		r.closeDec = nil
	}
	r.err = fs.ErrClosed
	return r.Body.Close()
}
