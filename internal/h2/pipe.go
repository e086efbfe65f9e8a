package h2

import (
	"io"
	"net/http"

	"github.com/valyala/bytebufferpool"

	"github.com/imroc/h2conn/internal/common"
	"github.com/imroc/h2conn/internal/dump"
)

const defaultBodyBufferSize = 16 << 10

// pipeToSendStream copies a request body into its stream.
type pipeToSendStream struct {
	body    io.ReadCloser
	trailer http.Header // caller's trailer map, only read after EOF
	stream  SendStream
	bufSize int
	dumper  *dump.Dumper
}

func newPipeToSendStream(body io.ReadCloser, trailer http.Header, stream SendStream) *pipeToSendStream {
	return &pipeToSendStream{
		body:    body,
		trailer: trailer,
		stream:  stream,
		bufSize: defaultBodyBufferSize,
	}
}

// run forwards the body until EOF or a failure on either side. The body is
// always closed.
func (p *pipeToSendStream) run() error {
	defer p.body.Close()

	bb := bytebufferpool.Get()
	defer bytebufferpool.Put(bb)
	if cap(bb.B) < p.bufSize {
		bb.B = make([]byte, p.bufSize)
	}
	buf := bb.B[:p.bufSize]

	for {
		if err := p.stream.Err(); err != nil {
			return common.NewError(common.KindBodyWrite, err)
		}
		n, rerr := p.body.Read(buf)
		if n > 0 {
			p.dumper.DumpRequestBody(buf[:n])
			if err := p.stream.SendData(buf[:n], false); err != nil {
				return common.NewError(common.KindBodyWrite, err)
			}
		}
		if rerr == io.EOF {
			return p.finish()
		}
		if rerr != nil {
			p.stream.Reset(rerr)
			return common.NewError(common.KindBody, rerr)
		}
	}
}

func (p *pipeToSendStream) finish() error {
	var err error
	if tr := trailersToSend(p.trailer); len(tr) > 0 {
		err = p.stream.SendTrailers(tr)
	} else {
		err = p.stream.SendData(nil, true)
	}
	if err != nil {
		return common.NewError(common.KindBodyWrite, err)
	}
	return nil
}

// trailersToSend keeps the declared trailers that were given a value.
func trailersToSend(trailer http.Header) http.Header {
	var tr http.Header
	for k, vv := range trailer {
		if len(vv) == 0 {
			continue
		}
		if tr == nil {
			tr = make(http.Header, len(trailer))
		}
		tr[k] = vv
	}
	return tr
}
