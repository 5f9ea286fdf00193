package transport

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"
)

// httpConnectDialerFunc returns a DialContextFunc that tunnels through an
// HTTP proxy via the CONNECT method. proxyURL.Scheme "https" additionally
// wraps the connection to the proxy itself in TLS before issuing CONNECT.
func httpConnectDialerFunc(proxyURL *url.URL, timeout time.Duration) DialContextFunc {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		d := &net.Dialer{Timeout: timeout}
		conn, err := d.DialContext(ctx, "tcp", proxyURL.Host)
		if err != nil {
			return nil, NewProxyError(proxyURL.String(), fmt.Sprintf("dialing http proxy: %v", err))
		}

		if proxyURL.Scheme == "https" {
			tlsConn := tls.Client(conn, &tls.Config{ServerName: hostOnly(proxyURL.Host)})
			if err := tlsConn.HandshakeContext(ctx); err != nil {
				conn.Close()
				return nil, NewProxyError(proxyURL.String(), fmt.Sprintf("tls to proxy: %v", err))
			}
			conn = tlsConn
		}

		if dl, ok := ctx.Deadline(); ok {
			conn.SetDeadline(dl) //nolint:errcheck
		} else if timeout > 0 {
			conn.SetDeadline(time.Now().Add(timeout)) //nolint:errcheck
		}

		req := &http.Request{
			Method: http.MethodConnect,
			URL:    &url.URL{Opaque: addr},
			Host:   addr,
			Header: make(http.Header),
		}
		if proxyURL.User != nil {
			pass, _ := proxyURL.User.Password()
			req.SetBasicAuth(proxyURL.User.Username(), pass)
		}
		if err := req.Write(conn); err != nil {
			conn.Close()
			return nil, NewProxyError(proxyURL.String(), fmt.Sprintf("writing CONNECT: %v", err))
		}

		br := bufio.NewReader(conn)
		resp, err := http.ReadResponse(br, req)
		if err != nil {
			conn.Close()
			return nil, NewProxyError(proxyURL.String(), fmt.Sprintf("reading CONNECT response: %v", err))
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			conn.Close()
			return nil, NewProxyError(proxyURL.String(), fmt.Sprintf("CONNECT rejected: %s", resp.Status))
		}

		conn.SetDeadline(time.Time{}) //nolint:errcheck
		return conn, nil
	}
}

func hostOnly(hostport string) string {
	h, _, err := net.SplitHostPort(hostport)
	if err != nil {
		return hostport
	}
	return h
}
