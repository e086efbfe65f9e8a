// Package netutil resolves what to dial for a URL.
package netutil

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// DialAddr returns the host:port to dial for u, adding the scheme's default
// port when u has none. International host names are converted to their
// ASCII form.
func DialAddr(u *url.URL) (string, error) {
	host, port := HostPort(u.Scheme, u.Host)
	if host == "" {
		return "", fmt.Errorf("netutil: no host in %q", u.String())
	}
	if port == "" {
		return "", fmt.Errorf("netutil: no default port for scheme %q", u.Scheme)
	}
	return net.JoinHostPort(host, port), nil
}

// HostPort splits an authority, filling in the default port of scheme.
// An IPv6 literal is returned without brackets.
func HostPort(scheme, authority string) (host, port string) {
	host, port, err := net.SplitHostPort(authority)
	if err != nil { // authority didn't have a port
		host = strings.TrimSuffix(strings.TrimPrefix(authority, "["), "]")
		port = defaultPort(scheme)
	}
	if a, err := idna.Lookup.ToASCII(host); err == nil {
		host = a
	}
	return
}

func defaultPort(scheme string) string {
	switch scheme {
	case "http":
		return "80"
	case "https":
		return "443"
	}
	return ""
}
