package transport

import (
	"context"
	"net"
	"testing"
	"time"
)

func TestDialerForDirect(t *testing.T) {
	dial, err := DialerFor("", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if dial == nil {
		t.Fatal("expected non-nil direct dialer")
	}
}

func TestDialerForUnsupportedScheme(t *testing.T) {
	if _, err := DialerFor("ftp://proxy.example:21", time.Second); err == nil {
		t.Error("expected error for unsupported scheme")
	}
}

func TestDialerForInvalidURL(t *testing.T) {
	if _, err := DialerFor("://bad", time.Second); err == nil {
		t.Error("expected error for invalid proxy url")
	}
}

func TestRotateOrderPrefersCurrent(t *testing.T) {
	proxies := []string{"a", "b", "c"}
	got := RotateOrder(proxies, "b")
	want := []string{"b", "a", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("RotateOrder(%v, b) = %v, want %v", proxies, got, want)
		}
	}
}

func TestRotateOrderEmptyPreferred(t *testing.T) {
	proxies := []string{"a", "b"}
	got := RotateOrder(proxies, "")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("expected unchanged order, got %v", got)
	}
}

func TestSOCKS4RejectsNonConnectReply(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 9)
		conn.Read(buf) //nolint:errcheck
		// version 0, reply code 0x5b (request rejected/failed)
		conn.Write([]byte{0x00, 0x5b, 0, 0, 0, 0, 0, 0}) //nolint:errcheck
	}()

	dial := socks4DialerFunc(ln.Addr().String(), time.Second)
	_, err = dial(context.Background(), "tcp", "93.184.216.34:80")
	if err == nil {
		t.Fatal("expected error for rejected socks4 connect")
	}
}

func TestAggregateClassification(t *testing.T) {
	a := NewAggregate("https://example.com")
	a.RecordProxyError("socks5://p1", "connection refused")
	a.RecordProxyError("socks5://p2", "timeout")
	agg := a.Build()
	if agg == nil || !agg.IsProxyIssue() {
		t.Fatal("expected proxy-only failures to classify as proxy issue")
	}

	b := NewAggregate("https://example.com")
	b.RecordProxyError("socks5://p1", "connection refused")
	b.RecordSiteError(errString("404 not found"))
	agg2 := b.Build()
	if agg2 == nil || agg2.IsProxyIssue() {
		t.Fatal("expected site error to override proxy-issue classification")
	}
}

type errString string

func (e errString) Error() string { return string(e) }
