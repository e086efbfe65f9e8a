package h2conn

import (
	"net"
	"net/http"
	"time"

	"github.com/imroc/h2conn/internal/dispatch"
	"github.com/imroc/h2conn/internal/dump"
	"github.com/imroc/h2conn/internal/h2"
	"github.com/imroc/h2conn/internal/logging"
)

// Handshaker establishes the HTTP/2 session over a connected transport.
// The default runs sessions on golang.org/x/net/http2.
type Handshaker = h2.Handshaker

// SendRequester opens exchanges on an established session.
type SendRequester = h2.SendRequester

// ResponseFuture yields the response of one exchange.
type ResponseFuture = h2.ResponseFuture

// SendStream is the request body half of one exchange.
type SendStream = h2.SendStream

// Connection is the background machinery of a session.
type Connection = h2.Connection

// Client holds the configuration shared by the connections it creates.
// Setters are not safe to call concurrently with NewConn.
type Client struct {
	settings    Settings
	log         Logger
	exec        Executor
	handshaker  Handshaker
	dumpOptions *dump.Options
}

// C create a new client.
func C() *Client {
	return NewClient()
}

// NewClient is the alias of C
func NewClient() *Client {
	return &Client{
		settings: DefaultSettings(),
		log:      logging.Default(),
		exec:     GoExecutor{},
	}
}

// Clone copy and returns the Client
func (c *Client) Clone() *Client {
	cc := *c
	if c.dumpOptions != nil {
		opt := *c.dumpOptions
		cc.dumpOptions = &opt
	}
	return &cc
}

// Settings returns the current settings.
func (c *Client) Settings() Settings {
	return c.settings
}

// SetSettings replaces all settings at once, e.g. with the result of
// LoadSettings.
func (c *Client) SetSettings(s Settings) *Client {
	c.settings = s
	return c
}

// SetLogger set the customized logger for client, will disable log if set to nil.
func (c *Client) SetLogger(log Logger) *Client {
	if log == nil {
		c.log = logging.Disabled()
		return c
	}
	c.log = log
	return c
}

// EnableDebugLog enable debug level log (disabled by default).
func (c *Client) EnableDebugLog() *Client {
	c.settings.DebugLog = true
	return c
}

// DisableDebugLog disable debug level log (disabled by default).
func (c *Client) DisableDebugLog() *Client {
	c.settings.DebugLog = false
	return c
}

// SetExecutor set the executor running background tasks of connections
// (GoExecutor by default).
func (c *Client) SetExecutor(exec Executor) *Client {
	if exec == nil {
		exec = GoExecutor{}
	}
	c.exec = exec
	return c
}

// SetHandshaker set a custom session engine. When set, the HTTP/2
// transport settings below are not used.
func (c *Client) SetHandshaker(hs Handshaker) *Client {
	c.handshaker = hs
	return c
}

// SetMaxHeaderListSize set the SETTINGS_MAX_HEADER_LIST_SIZE advertised to
// the server.
func (c *Client) SetMaxHeaderListSize(max uint32) *Client {
	c.settings.MaxHeaderListSize = max
	return c
}

// SetMaxReadFrameSize set the largest frame the server may send.
func (c *Client) SetMaxReadFrameSize(max uint32) *Client {
	c.settings.MaxReadFrameSize = max
	return c
}

// SetReadIdleTimeout set the timeout after which a health check using ping
// frame will be carried out if no frame is received on the connection.
func (c *Client) SetReadIdleTimeout(timeout time.Duration) *Client {
	c.settings.ReadIdleTimeout = timeout
	return c
}

// SetPingTimeout set the timeout after which the connection will be closed
// if a response to Ping is not received.
func (c *Client) SetPingTimeout(timeout time.Duration) *Client {
	c.settings.PingTimeout = timeout
	return c
}

// SetWriteByteTimeout set the timeout after which the connection will be
// closed no data can be written to it.
func (c *Client) SetWriteByteTimeout(timeout time.Duration) *Client {
	c.settings.WriteByteTimeout = timeout
	return c
}

// SetShutdownTimeout set how long a connection waits for open streams once
// its Sender is gone, before it is closed hard.
func (c *Client) SetShutdownTimeout(timeout time.Duration) *Client {
	c.settings.ShutdownTimeout = timeout
	return c
}

// SetBodyBufferSize set the largest chunk read from a request body at once.
func (c *Client) SetBodyBufferSize(size int) *Client {
	c.settings.BodyBufferSize = size
	return c
}

// DisableAutoDecompress disable auto-detect and decompress the response
// body (enabled by default).
func (c *Client) DisableAutoDecompress() *Client {
	c.settings.DisableAutoDecompress = true
	return c
}

// EnableAutoDecompress enable auto-detect and decompress the response body
// (enabled by default).
func (c *Client) EnableAutoDecompress() *Client {
	c.settings.DisableAutoDecompress = false
	return c
}

// NewConn prepares a driver for conn, which must already be connected and,
// for TLS, have negotiated "h2". Requests sent on the returned Sender are
// served once Conn.Run is called.
func (c *Client) NewConn(conn net.Conn) (*Sender, *Conn) {
	tx, rx := dispatch.Channel[*http.Request, *http.Response]()

	hs := c.handshaker
	if hs == nil {
		hs = h2.NewXNetHandshaker(c.settings.transport())
	}
	cfg := h2.Config{
		Handshaker:      hs,
		Exec:            c.exec,
		Logger:          logging.Debug(c.log, c.settings.DebugLog),
		BodyBufferSize:  c.settings.BodyBufferSize,
		ShutdownTimeout: c.settings.ShutdownTimeout,
	}
	if c.dumpOptions != nil {
		cfg.Dumper = dump.NewDumper(*c.dumpOptions)
	}
	autoDecompress := !c.settings.DisableAutoDecompress
	if autoDecompress {
		cfg.WrapResponse = wrapResponseBody
	} else {
		cfg.WrapResponse = wrapRawResponseBody
	}

	sender := &Sender{tx: tx, autoDecompress: autoDecompress}
	return sender, &Conn{driver: h2.NewClient(conn, rx, cfg)}
}
