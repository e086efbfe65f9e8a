// Package charsets converts text bodies to UTF-8.
package charsets

import (
	"strings"

	htmlcharset "golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

// sniffLen is how much of a body is looked at for a BOM or meta tag.
const sniffLen = 1024

// FindEncoding picks the encoding of content from its BOM, the charset
// parameter of contentType or an HTML meta tag, in that order. A nil
// encoding means the content is already UTF-8.
func FindEncoding(content []byte, contentType string) (enc encoding.Encoding, name string) {
	if len(content) > sniffLen {
		content = content[:sniffLen]
	}
	enc, name, _ = htmlcharset.DetermineEncoding(content, contentType)
	if strings.EqualFold(name, "utf-8") || enc == encoding.Nop {
		return nil, "utf-8"
	}
	return enc, name
}

// ToUTF8 decodes content with the encoding FindEncoding picks for it. A UTF-8
// BOM is dropped.
func ToUTF8(content []byte, contentType string) ([]byte, error) {
	enc, _ := FindEncoding(content, contentType)
	if enc == nil {
		enc = unicode.UTF8BOM
	}
	return enc.NewDecoder().Bytes(content)
}
