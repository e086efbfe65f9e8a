package h2conn

import (
	"io"
	"os"

	"github.com/imroc/h2conn/internal/dump"
)

func (c *Client) getDumpOptions() *dump.Options {
	if c.dumpOptions == nil {
		c.dumpOptions = &dump.Options{
			RequestHeader:  true,
			RequestBody:    true,
			ResponseHeader: true,
			ResponseBody:   true,
		}
	}
	return c.dumpOptions
}

// EnableDumpAll enable dump for all exchanges of connections created
// afterwards, including all content for the request and response by
// default, written to stdout.
func (c *Client) EnableDumpAll() *Client {
	o := c.getDumpOptions()
	if o.Output == nil {
		o.Output = os.Stdout
	}
	return c
}

// EnableDumpTo enable dump for all exchanges and write it to output.
func (c *Client) EnableDumpTo(output io.Writer) *Client {
	c.getDumpOptions().Output = output
	return c
}

// EnableDumpWithoutBody enable dump for all exchanges without
// request and response body.
func (c *Client) EnableDumpWithoutBody() *Client {
	o := c.getDumpOptions()
	o.RequestBody = false
	o.ResponseBody = false
	return c.EnableDumpAll()
}

// DisableDumpAll disable dump for connections created afterwards.
func (c *Client) DisableDumpAll() *Client {
	c.dumpOptions = nil
	return c
}
