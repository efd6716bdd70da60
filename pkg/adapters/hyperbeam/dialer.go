package hyperbeam

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy"
)

// proxyTransport builds an HTTP transport that reaches the node through addr.
// http(s) proxies use the standard CONNECT path; socks proxies go through
// golang.org/x/net/proxy.
func proxyTransport(addr string) (*http.Transport, error) {
	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy address: %w", err)
	}
	if u.Scheme == "socks" {
		u.Scheme = "socks5"
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	switch u.Scheme {
	case "http", "https":
		transport.Proxy = http.ProxyURL(u)
		return transport, nil
	}

	direct := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}
	d, err := proxy.FromURL(u, direct)
	if err != nil {
		return nil, fmt.Errorf("unsupported proxy %q: %w", addr, err)
	}
	transport.Proxy = nil
	if cd, ok := d.(proxy.ContextDialer); ok {
		transport.DialContext = cd.DialContext
	} else {
		transport.DialContext = func(ctx context.Context, network, address string) (net.Conn, error) {
			return d.Dial(network, address)
		}
	}
	return transport, nil
}
