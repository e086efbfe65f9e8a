package h2conn

import (
	"net"
	"time"
)

var defaultClient = C()

// DefaultClient returns the global default Client.
func DefaultClient() *Client {
	return defaultClient
}

// SetDefaultClient override the global default Client.
func SetDefaultClient(c *Client) {
	if c != nil {
		defaultClient = c
	}
}

// NewConn is a global wrapper methods which delegated
// to the default client's NewConn.
func NewConn(conn net.Conn) (*Sender, *Conn) {
	return defaultClient.NewConn(conn)
}

// SetLogger is a global wrapper methods which delegated
// to the default client's SetLogger.
func SetLogger(log Logger) *Client {
	return defaultClient.SetLogger(log)
}

// EnableDebugLog is a global wrapper methods which delegated
// to the default client's EnableDebugLog.
func EnableDebugLog() *Client {
	return defaultClient.EnableDebugLog()
}

// DisableDebugLog is a global wrapper methods which delegated
// to the default client's DisableDebugLog.
func DisableDebugLog() *Client {
	return defaultClient.DisableDebugLog()
}

// SetSettings is a global wrapper methods which delegated
// to the default client's SetSettings.
func SetSettings(s Settings) *Client {
	return defaultClient.SetSettings(s)
}

// SetShutdownTimeout is a global wrapper methods which delegated
// to the default client's SetShutdownTimeout.
func SetShutdownTimeout(timeout time.Duration) *Client {
	return defaultClient.SetShutdownTimeout(timeout)
}

// EnableDumpAll is a global wrapper methods which delegated
// to the default client's EnableDumpAll.
func EnableDumpAll() *Client {
	return defaultClient.EnableDumpAll()
}

// DisableDumpAll is a global wrapper methods which delegated
// to the default client's DisableDumpAll.
func DisableDumpAll() *Client {
	return defaultClient.DisableDumpAll()
}
