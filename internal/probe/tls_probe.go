package probe

import (
	"context"
	"time"

	"github.com/webwatch/monitor/internal/chain"
	"github.com/webwatch/monitor/internal/transport"
)

// TLSOptions configures a TLS probe run.
type TLSOptions struct {
	Proxies     []string
	Preferred   string
	Timeout     time.Duration
	CheckError  bool
	CheckExpiry bool
}

// TLSResult is the successful outcome of a TLS probe.
type TLSResult struct {
	Skipped     bool
	ProxyUsed   string
	TLSVersion  uint16
	CipherSuite uint16
	ChainErrors []string
}

// ProbeTLS connects to host:port over TLS (direct or via a rotated proxy
// list), validates the certificate chain, and classifies expiry against
// the {7,14,30}-day thresholds. Does not itself call Report — the
// orchestrator interprets the Failure/TLSResult pair.
func ProbeTLS(ctx context.Context, hostport, sni string, opts TLSOptions) (TLSResult, Failure, *transport.AllProxiesFailed) {
	if !opts.CheckError {
		return TLSResult{Skipped: true}, nil, nil
	}

	target := FormatTarget(hostport, sni)
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	proxies := transport.RotateOrder(opts.Proxies, opts.Preferred)
	if len(proxies) == 0 {
		return finishTLSProbe(Probe(target), sni, opts)
	}

	agg := transport.NewAggregate(target)
	for _, p := range proxies {
		dial, err := transport.DialerFor(p, timeout)
		if err != nil {
			agg.RecordProxyError(p, err.Error())
			continue
		}
		result := ProbeWithDialer(target, dial)
		if result.ProbeOK {
			res, fail, _ := finishTLSProbe(result, sni, opts)
			if fail == nil {
				res.ProxyUsed = p
			}
			return res, fail, nil
		}
		// A completed handshake attempt that failed at the TLS layer is a
		// site-level signal, not a proxy problem — surface it directly.
		if result.RetryCount == 0 {
			agg.RecordSiteError(NewSSLHandshakeError(errString(result.ProbeErr)))
			return TLSResult{}, NewSSLHandshakeError(errString(result.ProbeErr)), agg.Build()
		}
		agg.RecordProxyError(p, result.ProbeErr)
	}
	return TLSResult{}, nil, agg.Build()
}

type errString string

func (e errString) Error() string { return string(e) }

func finishTLSProbe(result Result, sni string, opts TLSOptions) (TLSResult, Failure, *transport.AllProxiesFailed) {
	if !result.ProbeOK {
		return TLSResult{}, NewSSLHandshakeError(errString(result.ProbeErr)), nil
	}

	now := time.Now()
	validation := chain.ValidateChain(result.Chain, sni, now)

	if opts.CheckExpiry {
		leaf := result.Cert
		if leaf != nil {
			if now.Before(leaf.NotBefore) {
				return TLSResult{}, NewNotYetValid(), nil
			}
			if now.After(leaf.NotAfter) {
				return TLSResult{}, NewExpired(), nil
			}
			days := int(leaf.NotAfter.Sub(now).Hours() / 24)
			if ExpiryThresholds[days] {
				return TLSResult{}, NewCertificateExpiring(LevelForDays(days), days), nil
			}
		}
	}

	if len(validation.Errors) > 0 {
		return TLSResult{}, NewSSLCertificateError(errString(validation.Errors[0])), nil
	}

	return TLSResult{
		TLSVersion:  result.TLSVersion,
		CipherSuite: result.CipherSuite,
		ChainErrors: validation.Errors,
	}, nil, nil
}
