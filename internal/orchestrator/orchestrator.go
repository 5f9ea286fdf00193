// Package orchestrator runs one full monitoring pass: load the active
// platform registry, probe each platform's domain, HTTP endpoint, TLS
// certificate, and defacement state, report verdicts through the alert
// state machine, and emit an end-of-run digest. Platforms run concurrently
// under a worker-count ceiling; each platform's own probes run in a fixed
// sequential order: a fan-out-then-collect shape generalized so the
// per-item work is itself a small pipeline instead of a single call.
package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/webwatch/monitor/internal/alertstate"
	"github.com/webwatch/monitor/internal/capture"
	"github.com/webwatch/monitor/internal/config"
	"github.com/webwatch/monitor/internal/metrics"
	"github.com/webwatch/monitor/internal/model"
	"github.com/webwatch/monitor/internal/notify"
)

// Orchestrator drives one monitoring run across every active platform.
type Orchestrator struct {
	repo       model.Repository
	machine    *alertstate.Machine
	dispatcher *notify.Dispatcher
	scanCache  *config.Cache
	metrics    *metrics.Collector
	tracer     trace.Tracer
	browser    capture.BrowserDriver
	screenshots ScreenshotStore
	log        *slog.Logger
	now        func() time.Time
}

// Option configures an Orchestrator at construction time.
type Option func(*Orchestrator)

// WithTracer attaches an OpenTelemetry tracer to every probe and run span.
// Without it, a noop tracer is used.
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

// WithMetrics attaches a Prometheus collector for per-probe and per-run
// instrumentation.
func WithMetrics(m *metrics.Collector) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithBrowserDriver supplies the HAR capture driver used by the defacement
// probe. Without it, defacement checks are skipped.
func WithBrowserDriver(d capture.BrowserDriver) Option {
	return func(o *Orchestrator) { o.browser = d }
}

// WithScreenshotStore supplies where platform screenshots are written.
// Without it, screenshots are discarded after capture.
func WithScreenshotStore(s ScreenshotStore) Option {
	return func(o *Orchestrator) { o.screenshots = s }
}

// WithClock overrides the time source, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New builds an Orchestrator. scanCacheTTL is typically
// model.ScanConfigCacheTTL; tests may pass 0 to always refresh.
func New(repo model.Repository, dispatcher *notify.Dispatcher, log *slog.Logger, scanCacheTTL time.Duration, opts ...Option) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	o := &Orchestrator{
		repo:       repo,
		dispatcher: dispatcher,
		machine:    alertstate.New(repo, dispatcher, log),
		log:        log,
		tracer:     noop.NewTracerProvider().Tracer("orchestrator"),
		now:        time.Now,
	}
	o.scanCache = config.NewCache(repo.LoadScanConfig, scanCacheTTL)
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Summary is the aggregate outcome of one run, used for CLI exit codes and
// the end-of-run digest.
type Summary struct {
	StartedAt       time.Time
	Duration        time.Duration
	PlatformResults []PlatformResult
	Errors          []error
}

// PlatformResult is one platform's outcome within a run.
type PlatformResult struct {
	Platform   model.Platform
	Domain     model.Domain
	Entity     model.Entity
	Issues     []Issue
	ProbeError error
}

// Issue is one alert-worthy verdict surfaced by a platform's probe pipeline.
type Issue struct {
	Kind    model.AlertKind
	Details string
}

// HasIssues reports whether this platform has at least one active issue.
func (p PlatformResult) HasIssues() bool {
	return len(p.Issues) > 0
}

// Run loads the active platform registry and configuration, then probes
// every platform concurrently (bounded by Configuration.MaxWorkers), each
// platform's own probes running domain -> http -> tls -> defacement in
// sequence. A digest notification is enqueued at the end covering every
// platform with at least one active issue.
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.Run")
	defer span.End()

	started := o.now()
	cfg, err := o.repo.LoadConfiguration(ctx)
	if err != nil {
		return Summary{}, err
	}
	cfg.Clamp()

	platforms, err := o.repo.ActivePlatforms(ctx)
	if err != nil {
		return Summary{}, err
	}

	scanCfg, err := o.scanCache.Get(ctx)
	if err != nil {
		return Summary{}, err
	}

	sem := make(chan struct{}, cfg.MaxWorkers)
	results := make([]PlatformResult, len(platforms))
	var wg sync.WaitGroup

	for i, pc := range platforms {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, pc model.PlatformContext) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = o.runPlatform(ctx, pc, cfg, scanCfg)
		}(i, pc)
	}
	wg.Wait()

	var runErrs []error
	for _, r := range results {
		if r.ProbeError != nil {
			runErrs = append(runErrs, r.ProbeError)
		}
	}

	summary := Summary{StartedAt: started, Duration: o.now().Sub(started), PlatformResults: results, Errors: runErrs}

	if o.metrics != nil {
		o.metrics.RecordRun(started, len(platforms), summary.Duration)
	}

	if cfg.NotifyEnabled && o.dispatcher != nil {
		o.dispatcher.EnqueueDigest(ctx, BuildDigest(ctx, o.repo, results))
	}

	return summary, nil
}
