package header

// Canonical header keys used by the connection driver.
const (
	Connection       = "Connection"
	KeepAlive        = "Keep-Alive"
	ProxyConnection  = "Proxy-Connection"
	TransferEncoding = "Transfer-Encoding"
	Upgrade          = "Upgrade"
	TE               = "Te"
	Trailer          = "Trailer"
	ContentLength    = "Content-Length"
	ContentEncoding  = "Content-Encoding"
	ContentType      = "Content-Type"
	AcceptEncoding   = "Accept-Encoding"
	UserAgent        = "User-Agent"
)

// ConnectionSpecific lists the fields HTTP/2 forbids (RFC 9113 section 8.2.2).
// TE is handled separately since "TE: trailers" is allowed.
var ConnectionSpecific = []string{
	Connection,
	KeepAlive,
	ProxyConnection,
	TransferEncoding,
	Upgrade,
}
