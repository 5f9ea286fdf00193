package transport

import "fmt"

// Failure is the transport-layer sum type: a single proxy attempt
// failure, or the aggregate across every configured proxy.
type Failure interface {
	error
	Kind() string
	Details() map[string]any
}

// ProxyError records a single proxy attempt's failure.
type ProxyError struct {
	Proxy  string
	Reason string
}

func NewProxyError(proxyAddr, reason string) *ProxyError {
	return &ProxyError{Proxy: proxyAddr, Reason: reason}
}

func (e *ProxyError) Kind() string { return "ProxyError" }
func (e *ProxyError) Error() string {
	return fmt.Sprintf("proxy %s: %s", e.Proxy, e.Reason)
}
func (e *ProxyError) Details() map[string]any {
	return map[string]any{"proxy": e.Proxy, "reason": e.Reason}
}

// AllProxiesFailed is the aggregate failure across every proxy attempt for
// one target URL. IsProxyIssue is true only when every attempt failed with
// a ProxyError and no site-level error was ever observed — the signal the
// alert state machine uses to suppress false positives.
type AllProxiesFailed struct {
	URL         string
	ProxyErrors []*ProxyError
	SiteError   error // first site-level error encountered, if any
}

func (e *AllProxiesFailed) Kind() string { return "AllProxiesFailed" }

func (e *AllProxiesFailed) IsProxyIssue() bool {
	return e.SiteError == nil && len(e.ProxyErrors) > 0
}

func (e *AllProxiesFailed) Error() string {
	if e.IsProxyIssue() {
		return fmt.Sprintf("all %d proxies failed for %s", len(e.ProxyErrors), e.URL)
	}
	return fmt.Sprintf("site error for %s: %v", e.URL, e.SiteError)
}

func (e *AllProxiesFailed) Details() map[string]any {
	errs := make([]string, len(e.ProxyErrors))
	for i, pe := range e.ProxyErrors {
		errs[i] = pe.Error()
	}
	d := map[string]any{
		"url":            e.URL,
		"proxy_errors":   errs,
		"is_proxy_issue": e.IsProxyIssue(),
	}
	if e.SiteError != nil {
		d["site_error"] = e.SiteError.Error()
	}
	return d
}

// Aggregate collects attempt outcomes across a proxy rotation: if any
// attempt produced a site-level error, that error wins and IsProxyIssue
// is false; otherwise, if only proxy errors were seen, IsProxyIssue is
// true.
type Aggregate struct {
	url         string
	proxyErrors []*ProxyError
	siteError   error
}

func NewAggregate(url string) *Aggregate {
	return &Aggregate{url: url}
}

// RecordProxyError notes that a proxy-protocol-level failure occurred.
func (a *Aggregate) RecordProxyError(proxyAddr, reason string) {
	a.proxyErrors = append(a.proxyErrors, NewProxyError(proxyAddr, reason))
}

// RecordSiteError notes a site-level error (timeout, unavailable, status,
// ssl). Only the first is retained; later site errors within the same
// rotation are suppressed in favor of it.
func (a *Aggregate) RecordSiteError(err error) {
	if a.siteError == nil {
		a.siteError = err
	}
}

// Failed reports whether any attempt was recorded.
func (a *Aggregate) Failed() bool {
	return a.siteError != nil || len(a.proxyErrors) > 0
}

// Build returns the classified failure, or nil if nothing failed.
func (a *Aggregate) Build() *AllProxiesFailed {
	if !a.Failed() {
		return nil
	}
	return &AllProxiesFailed{URL: a.url, ProxyErrors: a.proxyErrors, SiteError: a.siteError}
}
