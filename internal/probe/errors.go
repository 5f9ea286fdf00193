package probe

import "fmt"

// Failure is the sum type for probe-layer errors: DNS/WHOIS/domain expiry,
// TLS certificate problems, and HTTP/capture classification. Every variant
// carries structured detail suitable for alert templates via Details().
type Failure interface {
	error
	// Kind names the concrete failure variant, stable for template lookups.
	Kind() string
	// Details returns the structured fields a template may interpolate.
	Details() map[string]any
}

type baseFailure struct {
	kind    string
	message string
	details map[string]any
}

func (f baseFailure) Kind() string             { return f.kind }
func (f baseFailure) Error() string             { return f.message }
func (f baseFailure) Details() map[string]any   { return f.details }

func newFailure(kind, message string, details map[string]any) Failure {
	if details == nil {
		details = map[string]any{}
	}
	return baseFailure{kind: kind, message: message, details: details}
}

// Domain probe failures.

func NewDNSResolution(err error) Failure {
	return newFailure("DNSResolution", fmt.Sprintf("dns resolution failed: %v", err), map[string]any{"error": err.Error()})
}

func NewAllDNSFailed(errs map[string]error) Failure {
	strs := make(map[string]string, len(errs))
	for server, err := range errs {
		strs[server] = err.Error()
	}
	return newFailure("AllDNSFailed", "all configured DNS servers failed", map[string]any{"errors": strs})
}

func NewWhoisFailure(err error) Failure {
	return newFailure("WhoisFailure", fmt.Sprintf("whois lookup failed: %v", err), map[string]any{"error": err.Error()})
}

func NewDomainExpiring(days int) Failure {
	return newFailure("DomainExpiring", fmt.Sprintf("domain expires in %d days", days), map[string]any{"days": days})
}

// TLS probe failures.

func NewSSLCertificateError(err error) Failure {
	return newFailure("SSLCertificateError", fmt.Sprintf("certificate error: %v", err), map[string]any{"error": err.Error()})
}

func NewSSLHandshakeError(err error) Failure {
	return newFailure("SSLHandshakeError", fmt.Sprintf("tls handshake failed: %v", err), map[string]any{"error": err.Error()})
}

// ExpiryLevel classifies a certificate/domain expiry warning.
type ExpiryLevel string

const (
	ExpiryNotice   ExpiryLevel = "notice"
	ExpiryWarning  ExpiryLevel = "warning"
	ExpiryCritical ExpiryLevel = "critical"
)

// LevelForDays maps a day threshold to its warning level.
func LevelForDays(days int) ExpiryLevel {
	switch days {
	case 7:
		return ExpiryCritical
	case 14:
		return ExpiryWarning
	default:
		return ExpiryNotice
	}
}

func NewCertificateExpiring(level ExpiryLevel, days int) Failure {
	return newFailure("CertificateExpiring", fmt.Sprintf("certificate expires in %d days (%s)", days, level),
		map[string]any{"level": string(level), "days": days})
}

func NewNotYetValid() Failure {
	return newFailure("NotYetValid", "certificate is not yet valid", nil)
}

func NewExpired() Failure {
	return newFailure("Expired", "certificate has expired", nil)
}

// HTTP/capture failures.

func NewHTTPTimeout(err error) Failure {
	return newFailure("HTTPTimeout", fmt.Sprintf("request timed out: %v", err), map[string]any{"error": err.Error()})
}

func NewHTTPUnavailable(err error) Failure {
	return newFailure("HTTPUnavailable", fmt.Sprintf("site unavailable: %v", err), map[string]any{"error": err.Error()})
}

func NewHTTPStatus(code int) Failure {
	return newFailure("HTTPStatus", fmt.Sprintf("unexpected status code %d", code), map[string]any{"code": code})
}

func NewHTTPSSLError(err error) Failure {
	return newFailure("HTTPSSLError", fmt.Sprintf("tls error during http probe: %v", err), map[string]any{"error": err.Error()})
}

func NewCaptureTimeout(err error) Failure {
	return newFailure("CaptureTimeout", fmt.Sprintf("capture timed out: %v", err), map[string]any{"error": err.Error()})
}

func NewCaptureConfiguration(err error) Failure {
	return newFailure("CaptureConfiguration", fmt.Sprintf("capture misconfigured: %v", err), map[string]any{"error": err.Error()})
}

func NewCaptureGeneric(err error) Failure {
	return newFailure("CaptureGeneric", fmt.Sprintf("capture failed: %v", err), map[string]any{"error": err.Error()})
}
