// Package transport resolves proxy URLs into dialers for probes that need
// to route through SOCKS4, SOCKS5, or HTTP CONNECT proxies, and classifies
// the resulting failures so a proxy-only failure can be distinguished from
// a site-level failure, letting the alert state machine suppress false
// positives caused by flaky transport paths rather than the site itself.
package transport

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"

	"golang.org/x/net/proxy"
)

// DialContextFunc matches probe.DialContextFunc's shape without importing
// the probe package, keeping transport a leaf dependency.
type DialContextFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// DialerFor builds a DialContextFunc for the given proxy URL. Supported
// schemes: socks5://, socks4://, http:// (CONNECT), https:// (CONNECT over
// TLS to the proxy itself). An empty proxyURL returns a direct dialer.
func DialerFor(proxyURL string, timeout time.Duration) (DialContextFunc, error) {
	if proxyURL == "" {
		d := &net.Dialer{Timeout: timeout}
		return d.DialContext, nil
	}

	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, NewProxyError(proxyURL, fmt.Sprintf("invalid proxy url: %v", err))
	}

	switch u.Scheme {
	case "socks5":
		dialer, err := proxy.SOCKS5("tcp", u.Host, auth(u), &net.Dialer{Timeout: timeout})
		if err != nil {
			return nil, NewProxyError(proxyURL, fmt.Sprintf("socks5 dialer: %v", err))
		}
		ctxDialer, ok := dialer.(proxy.ContextDialer)
		if !ok {
			return nil, NewProxyError(proxyURL, "socks5 dialer does not support DialContext")
		}
		return ctxDialer.DialContext, nil

	case "socks4":
		return socks4DialerFunc(u.Host, timeout), nil

	case "http", "https":
		return httpConnectDialerFunc(u, timeout), nil

	default:
		return nil, NewProxyError(proxyURL, fmt.Sprintf("unsupported proxy scheme: %s", u.Scheme))
	}
}

func auth(u *url.URL) *proxy.Auth {
	if u.User == nil {
		return nil
	}
	pass, _ := u.User.Password()
	return &proxy.Auth{User: u.User.Username(), Password: pass}
}

// RotateOrder returns the proxy list reordered so that preferred (the
// "current" proxy from the last successful probe, for locality) is tried
// first, followed by the rest in their configured order.
func RotateOrder(proxies []string, preferred string) []string {
	if preferred == "" {
		return proxies
	}
	out := make([]string, 0, len(proxies))
	out = append(out, preferred)
	for _, p := range proxies {
		if p != preferred {
			out = append(out, p)
		}
	}
	return out
}
