package probe

import (
	"context"
	"testing"
)

func TestProbeTLSSkippedWhenCheckErrorFalse(t *testing.T) {
	res, fail, agg := ProbeTLS(context.Background(), "example.com:443", "example.com", TLSOptions{CheckError: false})
	if fail != nil || agg != nil {
		t.Fatalf("expected no failure, got fail=%v agg=%v", fail, agg)
	}
	if !res.Skipped {
		t.Error("expected Skipped=true when CheckError is false")
	}
}

func TestProbeTLSUnreachableDirect(t *testing.T) {
	_, fail, agg := ProbeTLS(context.Background(), "127.0.0.1:19999", "localhost", TLSOptions{CheckError: true})
	if fail == nil {
		t.Fatal("expected a failure for unreachable host")
	}
	if agg != nil {
		t.Error("expected no aggregate failure for direct (no-proxy) probing")
	}
}

func TestProbeTLSAllProxiesUnreachable(t *testing.T) {
	_, fail, agg := ProbeTLS(context.Background(), "example.com:443", "example.com", TLSOptions{
		CheckError: true,
		Proxies:    []string{"socks5://127.0.0.1:1", "socks5://127.0.0.1:2"},
	})
	if agg == nil {
		t.Fatal("expected aggregate failure when every proxy is unreachable")
	}
	_ = fail
}
