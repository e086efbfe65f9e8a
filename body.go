package h2conn

import (
	"io"
	"net/http"
	"os"

	"github.com/imroc/h2conn/internal/charsets"
	"github.com/imroc/h2conn/internal/compress"
	"github.com/imroc/h2conn/internal/header"
)

// Body is the body of every response delivered by a connection.
type Body struct {
	r           io.ReadCloser
	contentType string
	encoding    string
}

func wrapResponseBody(res *http.Response) {
	b := &Body{r: res.Body, contentType: res.Header.Get(header.ContentType)}
	ce := res.Header.Get(header.ContentEncoding)
	if ce != "" && compress.Supported(ce) && !isHead(res) {
		b.r = compress.NewReader(res.Body, ce)
		b.encoding = ce
		res.Header.Del(header.ContentEncoding)
		res.Header.Del(header.ContentLength)
		res.ContentLength = -1
		res.Uncompressed = true
	}
	res.Body = b
}

func wrapRawResponseBody(res *http.Response) {
	res.Body = &Body{r: res.Body, contentType: res.Header.Get(header.ContentType)}
}

func isHead(res *http.Response) bool {
	return res.Request != nil && res.Request.Method == http.MethodHead
}

// BodyOf returns the Body of res, wrapping a foreign body if needed.
func BodyOf(res *http.Response) *Body {
	if b, ok := res.Body.(*Body); ok {
		return b
	}
	wrapRawResponseBody(res)
	return res.Body.(*Body)
}

func (b *Body) Read(p []byte) (int, error) {
	return b.r.Read(p)
}

func (b *Body) Close() error {
	return b.r.Close()
}

// Encoding is the content coding that was removed, empty if none.
func (b *Body) Encoding() string {
	return b.encoding
}

// Bytes reads the rest of the body and closes it.
func (b *Body) Bytes() ([]byte, error) {
	defer b.Close()
	return io.ReadAll(b.r)
}

// String reads the rest of the body, converts it to UTF-8 according to its
// BOM, Content-Type charset or HTML meta tag, and closes it.
func (b *Body) String() (string, error) {
	content, err := b.Bytes()
	if err != nil {
		return string(content), err
	}
	decoded, err := charsets.ToUTF8(content, b.contentType)
	if err != nil {
		return string(content), err
	}
	return string(decoded), nil
}

// Save copies the rest of the body to dst and closes it.
func (b *Body) Save(dst io.Writer) (int64, error) {
	defer b.Close()
	return io.Copy(dst, b.r)
}

// SaveFile writes the rest of the body to filename and closes it.
func (b *Body) SaveFile(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		b.Close()
		return err
	}
	_, err = b.Save(file)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	return err
}
