package h2conn

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/net/http2"
	"golang.org/x/text/encoding/charmap"

	"github.com/imroc/h2conn/internal/tests"
)

type testConn struct {
	sender *Sender
	conn   *Conn
	served chan struct{} // closed once the server is done with the connection
	errc   chan error
}

// startConn connects c to an h2c server running h and starts the driver.
func startConn(t *testing.T, c *Client, srv *http2.Server, h http.Handler) *testConn {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	tests.AssertNoError(t, err)

	if srv == nil {
		srv = &http2.Server{}
	}
	tc := &testConn{served: make(chan struct{}), errc: make(chan error, 1)}
	go func() {
		defer close(tc.served)
		conn, err := ln.Accept()
		ln.Close()
		if err != nil {
			return
		}
		srv.ServeConn(conn, &http2.ServeConnOpts{Handler: h})
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	tests.AssertNoError(t, err)
	tc.sender, tc.conn = c.NewConn(conn)
	go func() {
		tc.errc <- tc.conn.Run(context.Background())
	}()
	return tc
}

// stop closes the sender and waits for the driver and then the server.
func (tc *testConn) stop(t *testing.T) {
	t.Helper()
	tc.sender.Close()
	select {
	case err := <-tc.errc:
		tests.AssertNoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for Run")
	}
	tests.AssertClosed(t, "server to see the connection close", tc.served)
}

func testClient() *Client {
	return C().SetLogger(nil)
}

func newRequest(t *testing.T, method, path string, body io.Reader) *http.Request {
	t.Helper()
	req, err := http.NewRequest(method, "http://h2conn.test"+path, body)
	tests.AssertNoError(t, err)
	return req
}

func readString(t *testing.T, res *http.Response) string {
	t.Helper()
	s, err := BodyOf(res).String()
	tests.AssertNoError(t, err)
	return s
}

func TestRoundTrip(t *testing.T) {
	tc := startConn(t, testClient(), nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Proto", r.Proto)
		fmt.Fprintf(w, "hello %s", r.URL.Path)
	}))

	res, err := tc.sender.RoundTrip(newRequest(t, "GET", "/world", nil))
	tests.AssertNoError(t, err)
	tests.AssertEqual(t, 200, res.StatusCode)
	tests.AssertEqual(t, "HTTP/2.0", res.Header.Get("X-Proto"))
	tests.AssertEqual(t, "hello /world", readString(t, res))

	tc.stop(t)
	_, err = tc.sender.Send(newRequest(t, "GET", "/late", nil))
	tests.AssertEqual(t, true, IsClosed(err))
}

func TestConcurrentRequests(t *testing.T) {
	srv := &http2.Server{MaxConcurrentStreams: 2}
	tc := startConn(t, testClient(), srv, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, r.URL.Path)
	}))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			path := fmt.Sprintf("/%d", i)
			res, err := tc.sender.RoundTrip(newRequest(t, "GET", path, nil))
			if err != nil {
				t.Errorf("%s: %v", path, err)
				return
			}
			b, _ := BodyOf(res).Bytes()
			if string(b) != path {
				t.Errorf("got %q, want %q", b, path)
			}
		}(i)
	}
	wg.Wait()
	tc.stop(t)
}

func TestStreamLimitHoldsQueue(t *testing.T) {
	srv := &http2.Server{MaxConcurrentStreams: 1}
	entered := make(chan struct{})
	release := make(chan struct{})
	tc := startConn(t, testClient(), srv, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/hold" {
			close(entered)
			<-release
		}
		io.WriteString(w, r.URL.Path)
	}))

	paths := []string{"/hold", "/a", "/b", "/c"}
	hold, err := tc.sender.Send(newRequest(t, "GET", paths[0], nil))
	tests.AssertNoError(t, err)
	tests.AssertClosed(t, "handler to hold the only stream", entered)

	promises := []*Promise{hold}
	for _, path := range paths[1:] {
		p, err := tc.sender.Send(newRequest(t, "GET", path, nil))
		tests.AssertNoError(t, err)
		promises = append(promises, p)
	}

	tests.AssertEventually(t, "requests to queue", func() bool { return tc.conn.Pending() == 3 })
	for i := 0; i < 5; i++ {
		time.Sleep(10 * time.Millisecond)
		tests.AssertEqual(t, 3, tc.conn.Pending())
	}

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i, p := range promises {
		res, err := p.Wait(ctx)
		tests.AssertNoError(t, err)
		tests.AssertEqual(t, paths[i], readString(t, res))
	}
	tests.AssertEqual(t, 0, tc.conn.Pending())
	tc.stop(t)
}

type trailerBody struct {
	r       io.Reader
	trailer http.Header
}

func (b *trailerBody) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	if err == io.EOF {
		b.trailer.Set("X-Sum", "42")
	}
	return n, err
}

func TestPostWithTrailers(t *testing.T) {
	tc := startConn(t, testClient(), nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("X-Trailer", r.Trailer.Get("X-Sum"))
		w.Header().Set("X-Length", fmt.Sprint(r.ContentLength))
		w.Write(body)
	}))

	trailer := http.Header{"X-Sum": nil}
	req := newRequest(t, "POST", "/echo", nil)
	req.Body = io.NopCloser(&trailerBody{r: strings.NewReader("some streamed data"), trailer: trailer})
	req.Trailer = trailer

	res, err := tc.sender.RoundTrip(req)
	tests.AssertNoError(t, err)
	tests.AssertEqual(t, "some streamed data", readString(t, res))
	tests.AssertEqual(t, "42", res.Header.Get("X-Trailer"))
	tests.AssertEqual(t, "-1", res.Header.Get("X-Length"))
	tc.stop(t)
}

func TestAutoDecompress(t *testing.T) {
	const payload = "compressed hello, compressed hello"
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Accept-Encoding", r.Header.Get("Accept-Encoding"))
		w.Header().Set("Content-Encoding", "gzip")
		zw := gzip.NewWriter(w)
		io.WriteString(zw, payload)
		zw.Close()
	})

	t.Run("enabled", func(t *testing.T) {
		tc := startConn(t, testClient(), nil, handler)
		res, err := tc.sender.RoundTrip(newRequest(t, "GET", "/gz", nil))
		tests.AssertNoError(t, err)
		tests.AssertEqual(t, "gzip, deflate, br, zstd", res.Header.Get("X-Accept-Encoding"))
		tests.AssertEqual(t, "", res.Header.Get("Content-Encoding"))
		tests.AssertEqual(t, true, res.Uncompressed)
		tests.AssertEqual(t, "gzip", BodyOf(res).Encoding())
		tests.AssertEqual(t, payload, readString(t, res))
		tc.stop(t)
	})

	t.Run("disabled", func(t *testing.T) {
		tc := startConn(t, testClient().DisableAutoDecompress(), nil, handler)
		res, err := tc.sender.RoundTrip(newRequest(t, "GET", "/gz", nil))
		tests.AssertNoError(t, err)
		tests.AssertEqual(t, "", res.Header.Get("X-Accept-Encoding"))
		tests.AssertEqual(t, "gzip", res.Header.Get("Content-Encoding"))
		zr, err := gzip.NewReader(res.Body)
		tests.AssertNoError(t, err)
		b, err := io.ReadAll(zr)
		tests.AssertNoError(t, err)
		tests.AssertEqual(t, payload, string(b))
		res.Body.Close()
		tc.stop(t)
	})
}

func TestCharset(t *testing.T) {
	latin, err := charmap.ISO8859_15.NewEncoder().String("grüße €")
	tests.AssertNoError(t, err)
	tc := startConn(t, testClient(), nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=iso-8859-15")
		io.WriteString(w, latin)
	}))

	res, err := tc.sender.RoundTrip(newRequest(t, "GET", "/latin", nil))
	tests.AssertNoError(t, err)
	tests.AssertEqual(t, "grüße €", readString(t, res))
	tc.stop(t)
}

// A body still streaming when the sender goes away keeps the connection
// open until it is done.
func TestShutdownWaitsForBody(t *testing.T) {
	tc := startConn(t, testClient(), nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(w, r.Body)
	}))

	pr, pw := io.Pipe()
	p, err := tc.sender.Send(newRequest(t, "PUT", "/upload", pr))
	tests.AssertNoError(t, err)

	tc.sender.Close()
	select {
	case err := <-tc.errc:
		tests.AssertNoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for Run")
	}
	select {
	case <-tc.served:
		t.Fatal("connection closed while a request body was still streaming")
	case <-time.After(50 * time.Millisecond):
	}

	go func() {
		io.WriteString(pw, "late data")
		pw.Close()
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := p.Wait(ctx)
	tests.AssertNoError(t, err)
	tests.AssertEqual(t, "late data", readString(t, res))
	tests.AssertClosed(t, "server to see the connection close", tc.served)
}

func TestRoundTripContextCanceled(t *testing.T) {
	release := make(chan struct{})
	tc := startConn(t, testClient(), nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)
	_, err := tc.sender.RoundTrip(newRequest(t, "GET", "/slow", nil).WithContext(ctx))
	tests.AssertErrorIs(t, err, context.Canceled)
	close(release)

	res, err := tc.sender.RoundTrip(newRequest(t, "GET", "/fast", nil))
	tests.AssertNoError(t, err)
	res.Body.Close()
	tc.stop(t)
}

func TestHandshakeFailure(t *testing.T) {
	c1, c2 := net.Pipe()
	c2.Close()
	sender, conn := testClient().NewConn(c1)
	p, err := sender.Send(newRequest(t, "GET", "/", nil))
	tests.AssertNoError(t, err)

	err = conn.Run(context.Background())
	tests.AssertEqual(t, true, IsKind(err, KindHandshake))

	_, err = p.Wait(context.Background())
	tests.AssertEqual(t, true, IsCanceled(err))
	tests.AssertEqual(t, true, IsClosed(err))
	tests.AssertEqual(t, true, sender.IsClosed())
}

func TestDump(t *testing.T) {
	var buf bytes.Buffer
	tc := startConn(t, testClient().EnableDumpTo(&buf), nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "dumped body")
	}))

	res, err := tc.sender.RoundTrip(newRequest(t, "GET", "/dump", nil))
	tests.AssertNoError(t, err)
	readString(t, res)
	tc.stop(t)

	out := buf.String()
	tests.AssertContains(t, out, ":method: get", true)
	tests.AssertContains(t, out, ":path: /dump", true)
	tests.AssertContains(t, out, ":status: 200", true)
	tests.AssertContains(t, out, "dumped body", true)
}

func TestGroupExecutor(t *testing.T) {
	exec := NewGroupExecutor()
	tc := startConn(t, testClient().SetExecutor(exec), nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(w, r.Body)
	}))

	res, err := tc.sender.RoundTrip(newRequest(t, "POST", "/", strings.NewReader("x")))
	tests.AssertNoError(t, err)
	tests.AssertEqual(t, "x", readString(t, res))
	tc.stop(t)

	done := make(chan struct{})
	go func() {
		exec.Wait()
		close(done)
	}()
	tests.AssertClosed(t, "background tasks", done)
}
