package orchestrator

import (
	"context"
	"net/url"
	"time"

	"github.com/webwatch/monitor/internal/capture"
	"github.com/webwatch/monitor/internal/defacement"
	"github.com/webwatch/monitor/internal/model"
	"github.com/webwatch/monitor/internal/probe"
	"github.com/webwatch/monitor/internal/transport"
)

// runPlatform executes one platform's probe pipeline in the fixed order
// domain -> http -> tls -> defacement, honoring the short-circuit rules:
// a domain failure stops everything, an HTTP failure stops TLS and
// defacement, and a TLS failure never short-circuits defacement.
func (o *Orchestrator) runPlatform(ctx context.Context, pc model.PlatformContext, cfg model.Configuration, scanCfg model.ScanConfig) PlatformResult {
	ctx, span := o.tracer.Start(ctx, "orchestrator.runPlatform")
	defer span.End()

	result := PlatformResult{Platform: pc.Platform, Domain: pc.Domain, Entity: pc.Entity}
	platformID := pc.Platform.ID

	host, err := hostOf(pc.Platform.URL)
	if err != nil {
		result.ProbeError = err
		o.discardScreenshot(platformID)
		return result
	}

	if scanCfg.DomainEnabled && !o.runDomainProbe(ctx, &result, pc, cfg, scanCfg, host) {
		o.discardScreenshot(platformID)
		return result
	}

	runDefacement := true
	if scanCfg.HTTPEnabled {
		runDefacement = o.runHTTPProbe(ctx, &result, pc, cfg, scanCfg)
	}
	if !runDefacement {
		o.discardScreenshot(platformID)
		return result
	}

	if scanCfg.SSLEnabled {
		o.runTLSProbe(ctx, &result, pc, cfg, scanCfg, hostPortOf(pc.Platform.URL, host), host)
	}

	if scanCfg.DefacementEnabled {
		o.runDefacementProbe(ctx, &result, pc, cfg, scanCfg)
	} else {
		o.discardScreenshot(platformID)
	}

	return result
}

// runDomainProbe returns false when the pipeline must stop (domain
// unavailable), true otherwise.
func (o *Orchestrator) runDomainProbe(ctx context.Context, result *PlatformResult, pc model.PlatformContext, cfg model.Configuration, scanCfg model.ScanConfig, host string) bool {
	start := o.now()
	res, fail := probe.ProbeDomain(ctx, host, probe.DomainOptions{
		CheckWhois:  scanCfg.DomainCheckWhois,
		CheckDNS:    scanCfg.DomainCheckDNS,
		CheckExpiry: scanCfg.DomainCheckExpiry,
		DNSServers:  cfg.DNSServers,
		Timeout:     10 * time.Second,
	})
	o.observeProbe("domain", pc.Platform.ID, fail == nil, o.now().Sub(start))

	domain := pc.Domain
	domain.LastScanAt = o.now()

	if fail == nil {
		if res.ResolvedIP != "" {
			domain.ResolvedIP = res.ResolvedIP
		}
		domain.DomainIssue = false
		o.persistDomainState(ctx, domain)
		o.resolveAlert(ctx, model.AlertKindDomainUnavailable, pc.Platform.ID)
		return true
	}

	if fail.Kind() == "DomainExpiring" {
		result.Issues = append(result.Issues, Issue{Kind: model.AlertKindDomainExpiring, Details: fail.Error()})
		o.reportDaily(ctx, model.AlertKindDomainExpiring, pc.Platform.ID, pc.Entity.ID, fail)
		o.persistDomainState(ctx, domain)
		return true
	}

	result.Issues = append(result.Issues, Issue{Kind: model.AlertKindDomainUnavailable, Details: fail.Error()})
	o.report(ctx, model.AlertKindDomainUnavailable, pc.Platform.ID, pc.Entity.ID, fail)
	domain.DomainIssue = true
	o.persistDomainState(ctx, domain)
	return false
}

// runHTTPProbe returns false when defacement must be short-circuited.
func (o *Orchestrator) runHTTPProbe(ctx context.Context, result *PlatformResult, pc model.PlatformContext, cfg model.Configuration, scanCfg model.ScanConfig) bool {
	opts := probe.HTTPOptions{
		Proxies:   selectProxies(cfg),
		UserAgent: cfg.UserAgent,
		Timeout:   time.Duration(scanCfg.HTTPMaxResponseMS) * time.Millisecond,
		VerifySSL: true,
	}
	_, fail, aggregate := probe.ProbeHTTP(ctx, pc.Platform.URL, opts)

	if fail == nil && aggregate == nil {
		o.resolveAlert(ctx, model.AlertKindAvailability, pc.Platform.ID)
		return true
	}

	if aggregate != nil && aggregate.IsProxyIssue() {
		if !cfg.FallbackDirectOnProxyFail {
			// Proxy-only failure and no fallback configured: leave alert
			// state untouched, but still let the rest of the pipeline run.
			return true
		}
		_, directFail, directAgg := probe.ProbeHTTP(ctx, pc.Platform.URL, probe.HTTPOptions{
			UserAgent: cfg.UserAgent, Timeout: opts.Timeout, VerifySSL: true,
		})
		if directFail == nil && directAgg == nil {
			o.resolveAlert(ctx, model.AlertKindAvailability, pc.Platform.ID)
			return true
		}
		fail, aggregate = directFail, directAgg
	}

	if fail != nil && fail.Kind() == "HTTPSSLError" {
		// SSL-typed failures are the TLS probe's concern, not availability's.
		return true
	}

	details, asErr := failureDetails(fail, aggregate)
	result.Issues = append(result.Issues, Issue{Kind: model.AlertKindAvailability, Details: details})
	o.report(ctx, model.AlertKindAvailability, pc.Platform.ID, pc.Entity.ID, asErr)
	return false
}

func (o *Orchestrator) runTLSProbe(ctx context.Context, result *PlatformResult, pc model.PlatformContext, cfg model.Configuration, scanCfg model.ScanConfig, hostport, sni string) {
	opts := probe.TLSOptions{
		Proxies:     selectProxies(cfg),
		Timeout:     10 * time.Second,
		CheckError:  scanCfg.SSLCheckError,
		CheckExpiry: scanCfg.SSLCheckExpiry,
	}
	tlsResult, fail, aggregate := probe.ProbeTLS(ctx, hostport, sni, opts)

	if aggregate != nil && aggregate.IsProxyIssue() {
		if !cfg.FallbackDirectOnProxyFail {
			return
		}
		tlsResult, fail, aggregate = probe.ProbeTLS(ctx, hostport, sni, probe.TLSOptions{
			Timeout: opts.Timeout, CheckError: opts.CheckError, CheckExpiry: opts.CheckExpiry,
		})
		if aggregate != nil && aggregate.IsProxyIssue() {
			return
		}
	}
	if tlsResult.Skipped {
		return
	}
	if fail == nil {
		o.resolveAlert(ctx, model.AlertKindSSL, pc.Platform.ID)
		o.resolveAlert(ctx, model.AlertKindSSLExpiringSoon, pc.Platform.ID)
		return
	}

	if fail.Kind() == "CertificateExpiring" {
		result.Issues = append(result.Issues, Issue{Kind: model.AlertKindSSLExpiringSoon, Details: fail.Error()})
		o.reportDaily(ctx, model.AlertKindSSLExpiringSoon, pc.Platform.ID, pc.Entity.ID, fail)
		return
	}

	result.Issues = append(result.Issues, Issue{Kind: model.AlertKindSSL, Details: fail.Error()})
	o.report(ctx, model.AlertKindSSL, pc.Platform.ID, pc.Entity.ID, fail)
}

func (o *Orchestrator) runDefacementProbe(ctx context.Context, result *PlatformResult, pc model.PlatformContext, cfg model.Configuration, scanCfg model.ScanConfig) {
	if o.browser == nil {
		return
	}
	platformID := pc.Platform.ID

	fresh, err := o.browser.Capture(ctx, pc.Platform.URL, capture.Options{
		UserAgent: cfg.UserAgent,
		MaxTime:   30,
		VerifySSL: true,
	})
	if err != nil {
		o.discardScreenshot(platformID)
		result.ProbeError = err
		return
	}

	handle, shotErr := o.acquireScreenshot(platformID, fresh.Screenshot)
	if shotErr != nil {
		o.log.Warn("orchestrator: saving screenshot failed", "platform_id", platformID, "err", shotErr)
		handle = &screenshotHandle{}
	}
	defer handle.Close() //nolint:errcheck // best-effort cleanup on early return

	encoded, encErr := encodeCapture(fresh)
	if encErr != nil {
		result.ProbeError = encErr
		return
	}

	existing, ok, err := o.repo.DefacementRecordFor(ctx, platformID)
	if err != nil {
		result.ProbeError = err
		return
	}
	now := o.now()
	if !ok {
		if err := o.repo.SaveDefacementRecord(ctx, model.DefacementRecord{
			PlatformID: platformID, BaselineCapture: encoded, LastCapture: encoded, UpdatedAt: now,
		}); err != nil {
			o.log.Warn("orchestrator: saving baseline defacement record failed", "platform_id", platformID, "err", err)
			return
		}
		o.commitScreenshot(ctx, platformID, handle)
		return
	}

	baseline, decErr := decodeCapture(existing.BaselineCapture)
	if decErr != nil {
		result.ProbeError = decErr
		return
	}
	changes := defacement.Diff(baseline, fresh, defacement.Options{
		SizeTolerance: scanCfg.DefacementSizeTolerance,
		Whitelist:     scanCfg.DefacementWhitelist,
	})

	existing.LastCapture = encoded
	existing.UpdatedAt = now
	if len(changes) > 0 {
		existing.IsDefaced = true
		existing.Details = formatChanges(changes)
		existing.LastTreeText = existing.Details
		result.Issues = append(result.Issues, Issue{Kind: model.AlertKindDefacement, Details: existing.Details})
		o.report(ctx, model.AlertKindDefacement, platformID, pc.Entity.ID, errString(existing.Details))
	} else {
		existing.IsDefaced = false
		o.resolveAlert(ctx, model.AlertKindDefacement, platformID)
	}
	if err := o.repo.SaveDefacementRecord(ctx, existing); err != nil {
		o.log.Warn("orchestrator: updating defacement record failed", "platform_id", platformID, "err", err)
		return
	}
	o.commitScreenshot(ctx, platformID, handle)
}

func (o *Orchestrator) report(ctx context.Context, kind model.AlertKind, platformID, entityID int64, err error) {
	if rerr := o.machine.Report(ctx, platformID, entityID, kind, err.Error(), ""); rerr != nil {
		o.log.Warn("orchestrator: report failed", "kind", kind, "platform_id", platformID, "err", rerr)
		return
	}
	if o.metrics != nil {
		o.metrics.RecordAlertRaised(kind)
	}
}

func (o *Orchestrator) reportDaily(ctx context.Context, kind model.AlertKind, platformID, entityID int64, err error) {
	if rerr := o.machine.ReportDaily(ctx, platformID, entityID, kind, err.Error(), ""); rerr != nil {
		o.log.Warn("orchestrator: daily report failed", "kind", kind, "platform_id", platformID, "err", rerr)
		return
	}
	if o.metrics != nil {
		o.metrics.RecordAlertRaised(kind)
	}
}

func (o *Orchestrator) resolveAlert(ctx context.Context, kind model.AlertKind, platformID int64) {
	if err := o.machine.Resolve(ctx, kind, platformID); err != nil {
		o.log.Warn("orchestrator: resolve failed", "kind", kind, "platform_id", platformID, "err", err)
		return
	}
	if o.metrics != nil {
		o.metrics.RecordAlertResolved(kind)
	}
}

func (o *Orchestrator) persistDomainState(ctx context.Context, d model.Domain) {
	if err := o.repo.UpdateDomainScanState(ctx, d); err != nil {
		o.log.Warn("orchestrator: persisting domain state failed", "domain_id", d.ID, "err", err)
	}
}

func (o *Orchestrator) observeProbe(name string, platformID int64, ok bool, d time.Duration) {
	if o.metrics == nil {
		return
	}
	o.metrics.ObserveProbeDuration(name, d)
	o.metrics.RecordProbeResult(platformID, name, ok)
}

func selectProxies(cfg model.Configuration) []string {
	if !cfg.UseProxy {
		return nil
	}
	return cfg.Proxies
}

func hostOf(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Host != "" {
		return u.Hostname(), nil
	}
	return raw, nil
}

// hostPortOf returns the "host:port" form the TLS probe expects, defaulting
// to 443 when the platform URL carries no explicit port.
func hostPortOf(raw, host string) string {
	u, err := url.Parse(raw)
	if err == nil && u.Port() != "" {
		return host + ":" + u.Port()
	}
	return host + ":443"
}

// failureDetails reduces a (Failure, AllProxiesFailed) pair — at least one
// of which is non-nil whenever this is called — to a details string and an
// error suitable for the state machine.
func failureDetails(fail probe.Failure, agg *transport.AllProxiesFailed) (string, error) {
	if fail != nil {
		return fail.Error(), fail
	}
	return agg.Error(), agg
}

type errString string

func (e errString) Error() string { return string(e) }
