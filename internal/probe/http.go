package probe

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/webwatch/monitor/internal/transport"
)

// HTTPOptions configures an HTTP probe run.
type HTTPOptions struct {
	Proxies    []string // ordered; empty means direct request
	UserAgent  string
	Timeout    time.Duration
	VerifySSL  bool
	Preferred  string // current proxy to try first, for locality (§4.3)
}

// HTTPResult is the successful outcome of an HTTP probe.
type HTTPResult struct {
	ProxyUsed  string
	StatusCode int
	SSLVerified bool
}

// ProbeHTTP performs a GET against raw, iterating the configured proxies in
// order (current proxy first) until one succeeds or all are exhausted. A
// site-level failure through a working proxy is returned at once.
func ProbeHTTP(ctx context.Context, raw string, opts HTTPOptions) (HTTPResult, Failure, *transport.AllProxiesFailed) {
	proxies := transport.RotateOrder(opts.Proxies, opts.Preferred)
	if len(proxies) == 0 {
		res, fail := attemptHTTP(ctx, raw, "", opts)
		if fail != nil {
			agg := transport.NewAggregate(raw)
			agg.RecordSiteError(fail)
			return HTTPResult{}, fail, agg.Build()
		}
		return res, nil, nil
	}

	agg := transport.NewAggregate(raw)
	for _, p := range proxies {
		res, fail := attemptHTTP(ctx, raw, p, opts)
		if fail == nil {
			return res, nil, nil
		}
		var pe *proxyDialFailure
		if errors.As(fail, &pe) {
			agg.RecordProxyError(p, pe.reason)
			continue
		}
		agg.RecordSiteError(fail)
		return HTTPResult{}, fail, agg.Build()
	}
	return HTTPResult{}, nil, agg.Build()
}

// proxyDialFailure marks failures that occurred establishing the proxy
// connection itself, as opposed to the target site responding badly.
type proxyDialFailure struct {
	reason string
}

func (e *proxyDialFailure) Error() string           { return e.reason }
func (e *proxyDialFailure) Kind() string            { return "ProxyDialFailure" }
func (e *proxyDialFailure) Details() map[string]any { return map[string]any{"reason": e.reason} }

func attemptHTTP(ctx context.Context, raw, proxyURL string, opts HTTPOptions) (HTTPResult, Failure) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	dial, err := transport.DialerFor(proxyURL, timeout)
	if err != nil {
		return HTTPResult{}, wrapDialErr(err)
	}

	verify := opts.VerifySSL
	result, failure := doRequest(ctx, raw, proxyURL, opts.UserAgent, timeout, dial, verify)
	if failure == nil {
		return result, nil
	}

	// Retry once with verification disabled if this was an SSL failure and
	// the caller configured verify_ssl=false (§4.2).
	if _, ok := failure.(httpSSLFailure); ok && !opts.VerifySSL {
		result, failure = doRequest(ctx, raw, proxyURL, opts.UserAgent, timeout, dial, false)
	}
	return result, failure
}

type httpSSLFailure struct{ Failure }

func doRequest(ctx context.Context, raw, proxyURL, userAgent string, timeout time.Duration, dial transport.DialContextFunc, verify bool) (HTTPResult, Failure) {
	transportRT := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dial(ctx, network, addr)
		},
		TLSClientConfig: &tls.Config{InsecureSkipVerify: !verify}, //nolint:gosec // operator-configured verify_ssl flag
	}
	client := &http.Client{Transport: transportRT, Timeout: timeout, CheckRedirect: func(*http.Request, []*http.Request) error { return nil }}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, raw, nil)
	if err != nil {
		return HTTPResult{}, &proxyDialFailure{reason: fmt.Sprintf("building request: %v", err)}
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return HTTPResult{}, classifyHTTPErr(err, proxyURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return HTTPResult{}, NewHTTPStatus(resp.StatusCode)
	}

	return HTTPResult{StatusCode: resp.StatusCode, ProxyUsed: proxyURL, SSLVerified: verify}, nil
}

func classifyHTTPErr(err error, proxyURL string) Failure {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewHTTPTimeout(err)
	}

	var tlsErr *tls.CertificateVerificationError
	if errors.As(err, &tlsErr) {
		return httpSSLFailure{NewHTTPSSLError(err)}
	}
	if isTLSHandshakeErr(err) {
		return httpSSLFailure{NewHTTPSSLError(err)}
	}

	if proxyURL != "" && isProxyProtocolErr(err) {
		return &proxyDialFailure{reason: err.Error()}
	}

	return NewHTTPUnavailable(err)
}

func isTLSHandshakeErr(err error) bool {
	var recordErr tls.RecordHeaderError
	return errors.As(err, &recordErr)
}

func isProxyProtocolErr(err error) bool {
	var de *net.OpError
	if errors.As(err, &de) {
		return de.Op == "socks connect" || de.Op == "dial"
	}
	return false
}

func wrapDialErr(err error) Failure {
	return &proxyDialFailure{reason: err.Error()}
}
