package h2

import (
	"net/http"
	"net/textproto"
	"strconv"
	"strings"

	"golang.org/x/net/http/httpguts"

	"github.com/imroc/h2conn/internal/header"
)

// stripConnectionHeaders removes the fields that are illegal in HTTP/2,
// including every field nominated by Connection, and TE unless it is exactly
// "trailers". It returns the canonical names it removed.
func stripConnectionHeaders(h http.Header) (stripped []string) {
	del := func(k string) {
		k = textproto.CanonicalMIMEHeaderKey(k)
		if _, ok := h[k]; ok {
			delete(h, k)
			stripped = append(stripped, k)
		}
	}
	for _, v := range h[header.Connection] {
		for _, tok := range strings.Split(v, ",") {
			tok = textproto.TrimString(tok)
			if tok == "" || !httpguts.ValidHeaderFieldName(tok) {
				continue
			}
			del(tok)
		}
	}
	for _, k := range header.ConnectionSpecific {
		del(k)
	}
	if te := h[header.TE]; len(te) > 0 {
		if len(te) != 1 || !strings.EqualFold(textproto.TrimString(te[0]), "trailers") {
			del(header.TE)
		}
	}
	return
}

// setContentLengthIfMissing sets Content-Length to n unless one is present.
func setContentLengthIfMissing(h http.Header, n int64) {
	if h.Get(header.ContentLength) != "" {
		return
	}
	h.Set(header.ContentLength, strconv.FormatInt(n, 10))
}

// bodyLength reports the request body length when it is known up front.
func bodyLength(req *http.Request) (int64, bool) {
	if req.Body == nil || req.Body == http.NoBody {
		return 0, true
	}
	if req.ContentLength > 0 {
		return req.ContentLength, true
	}
	return -1, false
}

// isEndStream reports whether the request has no body left to send, so the
// HEADERS frame can close the stream.
func isEndStream(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody
}

// shouldSendContentLength reports whether a known length belongs on the
// wire. A zero length is only announced for methods that normally carry
// a body.
func shouldSendContentLength(method string, n int64) bool {
	if n > 0 {
		return true
	}
	if n < 0 {
		return false
	}
	switch method {
	case "POST", "PUT", "PATCH":
		return true
	default:
		return false
	}
}

// prepareRequest returns a copy of req ready for the wire. The caller's
// request is left untouched; the body is shared.
func prepareRequest(req *http.Request) (*http.Request, []string) {
	r := req.Clone(req.Context())
	if r.Header == nil {
		r.Header = make(http.Header)
	}
	stripped := stripConnectionHeaders(r.Header)
	if n, ok := bodyLength(r); ok && shouldSendContentLength(r.Method, n) {
		setContentLengthIfMissing(r.Header, n)
	}
	return r, stripped
}
