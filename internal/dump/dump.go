package dump

import (
	"bytes"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Options controls the dump behavior.
type Options struct {
	Output         io.Writer
	RequestHeader  bool
	RequestBody    bool
	ResponseHeader bool
	ResponseBody   bool
}

// Dumper is the dump tool. It is safe for concurrent use; writes from
// different streams are not interleaved within a single call.
type Dumper struct {
	Options
	mu sync.Mutex
}

// NewDumper create a new Dumper, nil if opt has no output.
func NewDumper(opt Options) *Dumper {
	if opt.Output == nil {
		return nil
	}
	return &Dumper{Options: opt}
}

func (d *Dumper) DumpTo(p []byte, output io.Writer) {
	if len(p) == 0 || output == nil {
		return
	}
	d.mu.Lock()
	output.Write(p)
	d.mu.Unlock()
}

func (d *Dumper) DumpDefault(p []byte) {
	d.DumpTo(p, d.Output)
}

// DumpRequestHeader writes the request head as it goes on the wire:
// pseudo-header fields first, then lower-cased regular fields.
func (d *Dumper) DumpRequestHeader(req *http.Request) {
	if d == nil || !d.RequestHeader {
		return
	}
	var buf bytes.Buffer
	host := req.Host
	if host == "" && req.URL != nil {
		host = req.URL.Host
	}
	path := "/"
	scheme := "https"
	if req.URL != nil {
		if p := req.URL.RequestURI(); p != "" {
			path = p
		}
		if req.URL.Scheme != "" {
			scheme = req.URL.Scheme
		}
	}
	writeField(&buf, ":authority", host)
	writeField(&buf, ":method", req.Method)
	writeField(&buf, ":path", path)
	writeField(&buf, ":scheme", scheme)
	writeHeader(&buf, req.Header)
	buf.WriteString("\r\n")
	d.DumpDefault(buf.Bytes())
}

// DumpResponseHeader writes the status and header fields of res.
func (d *Dumper) DumpResponseHeader(res *http.Response) {
	if d == nil || !d.ResponseHeader {
		return
	}
	var buf bytes.Buffer
	writeField(&buf, ":status", strconv.Itoa(res.StatusCode))
	writeHeader(&buf, res.Header)
	buf.WriteString("\r\n")
	d.DumpDefault(buf.Bytes())
}

func (d *Dumper) DumpRequestBody(p []byte) {
	if d == nil || !d.RequestBody {
		return
	}
	d.DumpDefault(p)
}

func (d *Dumper) DumpResponseBody(p []byte) {
	if d == nil || !d.ResponseBody {
		return
	}
	d.DumpDefault(p)
}

func writeField(buf *bytes.Buffer, k, v string) {
	buf.WriteString(k)
	buf.WriteString(": ")
	buf.WriteString(v)
	buf.WriteString("\r\n")
}

func writeHeader(buf *bytes.Buffer, h http.Header) {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range h[k] {
			writeField(buf, strings.ToLower(k), v)
		}
	}
}

// WrapResponseBodyReadCloser dumps the response body as the caller reads it.
func (d *Dumper) WrapResponseBodyReadCloser(rc io.ReadCloser) io.ReadCloser {
	if d == nil || !d.ResponseBody {
		return rc
	}
	return &dumpReponseBodyReadCloser{rc, d}
}

type dumpReponseBodyReadCloser struct {
	io.ReadCloser
	dump *Dumper
}

func (r *dumpReponseBodyReadCloser) Read(p []byte) (n int, err error) {
	n, err = r.ReadCloser.Read(p)
	r.dump.DumpResponseBody(p[:n])
	if err == io.EOF {
		r.dump.DumpDefault([]byte("\r\n"))
	}
	return
}
