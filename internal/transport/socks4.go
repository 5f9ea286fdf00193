package transport

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"time"
)

// socks4DialerFunc returns a DialContextFunc that connects through a SOCKS4
// proxy at proxyAddr. The standard library and x/net/proxy only speak
// SOCKS5; SOCKS4 support is implemented directly against the protocol
// framing (version byte, CONNECT command, big-endian port, dotted IPv4,
// null-terminated user-id, single reply byte at offset 1).
func socks4DialerFunc(proxyAddr string, timeout time.Duration) DialContextFunc {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		d := &net.Dialer{Timeout: timeout}
		conn, err := d.DialContext(ctx, "tcp", proxyAddr)
		if err != nil {
			return nil, NewProxyError(proxyAddr, fmt.Sprintf("dialing socks4 proxy: %v", err))
		}
		if dl, ok := ctx.Deadline(); ok {
			conn.SetDeadline(dl) //nolint:errcheck
		} else if timeout > 0 {
			conn.SetDeadline(time.Now().Add(timeout)) //nolint:errcheck
		}

		host, portStr, err := net.SplitHostPort(addr)
		if err != nil {
			conn.Close()
			return nil, NewProxyError(proxyAddr, fmt.Sprintf("invalid target address %q: %v", addr, err))
		}
		port, err := parsePort(portStr)
		if err != nil {
			conn.Close()
			return nil, NewProxyError(proxyAddr, err.Error())
		}

		ip, err := resolveIPv4(ctx, host)
		if err != nil {
			conn.Close()
			return nil, NewProxyError(proxyAddr, fmt.Sprintf("resolving %s for socks4: %v", host, err))
		}

		req := make([]byte, 0, 9)
		req = append(req, 0x04, 0x01) // version 4, CONNECT
		req = binary.BigEndian.AppendUint16(req, port)
		req = append(req, ip...)
		req = append(req, 0x00) // empty user-id, null-terminated

		if _, err := conn.Write(req); err != nil {
			conn.Close()
			return nil, NewProxyError(proxyAddr, fmt.Sprintf("writing socks4 request: %v", err))
		}

		reply := make([]byte, 8)
		if _, err := fullRead(bufio.NewReader(conn), reply); err != nil {
			conn.Close()
			return nil, NewProxyError(proxyAddr, fmt.Sprintf("reading socks4 reply: %v", err))
		}
		if reply[0] != 0x00 {
			conn.Close()
			return nil, NewProxyError(proxyAddr, fmt.Sprintf("malformed socks4 reply, version byte %#x", reply[0]))
		}
		if reply[1] != 0x5a {
			conn.Close()
			return nil, NewProxyError(proxyAddr, fmt.Sprintf("socks4 connect rejected, code %#x", reply[1]))
		}

		conn.SetDeadline(time.Time{}) //nolint:errcheck
		return conn, nil
	}
}

func parsePort(s string) (uint16, error) {
	var port uint16
	if _, err := fmt.Sscanf(s, "%d", &port); err != nil {
		return 0, fmt.Errorf("invalid port %q: %w", s, err)
	}
	return port, nil
}

// resolveIPv4 resolves host to its first IPv4 address; SOCKS4 has no
// hostname-carrying variant in this implementation (no SOCKS4a).
func resolveIPv4(ctx context.Context, host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			return v4, nil
		}
		return nil, fmt.Errorf("socks4 requires an IPv4 address, got %s", host)
	}
	resolver := net.DefaultResolver
	addrs, err := resolver.LookupIP(ctx, "ip4", host)
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("no IPv4 address found for %s", host)
	}
	return addrs[0].To4(), nil
}

func fullRead(r *bufio.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}
