package vt

import (
	"context"
	"testing"
)

func TestScanURLNoAPIKey(t *testing.T) {
	s := NewScanner("")
	_, fail := s.ScanURL(context.Background(), "https://example.com")
	if fail == nil || fail.Kind() != "APIKey" {
		t.Fatalf("expected APIKey failure, got %v", fail)
	}
}

func TestGroupVendorsByResultClassifiesMalicious(t *testing.T) {
	verdicts := map[string]VendorVerdict{
		"VendorA": {Result: "clean"},
		"VendorB": {Result: "malware"},
		"VendorC": {Result: ""},
	}
	res := GroupVendorsByResult(verdicts)
	if !res.Malicious {
		t.Error("expected malicious=true when any verdict is non-benign")
	}
	if len(res.Vendors["malware"]) != 1 || res.Vendors["malware"][0] != "VendorB" {
		t.Errorf("expected VendorB grouped under malware, got %+v", res.Vendors)
	}
}

func TestGroupVendorsByResultAllBenign(t *testing.T) {
	verdicts := map[string]VendorVerdict{
		"VendorA": {Result: "clean"},
		"VendorB": {Result: "unrated"},
		"VendorC": {Result: ""},
	}
	res := GroupVendorsByResult(verdicts)
	if res.Malicious {
		t.Error("expected malicious=false when all verdicts are benign")
	}
}

func TestClassifyStatus(t *testing.T) {
	cases := map[int]string{
		401: "Authentication",
		403: "Permission",
		429: "RateLimit",
		404: "ResourceNotFound",
		503: "ServiceUnavailable",
	}
	for code, wantKind := range cases {
		fail := classifyStatus(code)
		if fail == nil || fail.Kind() != wantKind {
			t.Errorf("classifyStatus(%d) = %v, want kind %s", code, fail, wantKind)
		}
	}
	if fail := classifyStatus(200); fail != nil {
		t.Errorf("expected no failure for 200, got %v", fail)
	}
}
