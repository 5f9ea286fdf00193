// Package alertstate implements the per-(platform, kind) alert lifecycle:
// at most one active alert per key, daily-scoped dedup for threshold
// alerts, and proxy-issue suppression so a flaky transport path never
// produces a false positive.
package alertstate

import (
	"context"
	"log/slog"
	"time"

	"github.com/webwatch/monitor/internal/model"
	"github.com/webwatch/monitor/internal/notify"
)

// Machine wraps a model.Repository with the Report/Resolve operations
// probes call. It never invokes the Repository directly for proxy-issue
// aggregates — the caller simply never calls Machine in that case, which
// is how proxy-only failures are kept from producing alerts.
type Machine struct {
	repo       model.Repository
	dispatcher *notify.Dispatcher
	log        *slog.Logger
	now        func() time.Time
}

// New builds a Machine. now defaults to time.Now; tests inject a fixed clock.
func New(repo model.Repository, dispatcher *notify.Dispatcher, log *slog.Logger) *Machine {
	if log == nil {
		log = slog.Default()
	}
	return &Machine{repo: repo, dispatcher: dispatcher, log: log, now: time.Now}
}

// WithClock overrides the time source, for deterministic tests of
// ReportDaily's UTC-day dedup window.
func (m *Machine) WithClock(now func() time.Time) *Machine {
	m.now = now
	return m
}

// Report creates a new alert unless one is already active for the key.
func (m *Machine) Report(ctx context.Context, platformID, entityID int64, kind model.AlertKind, details, template string) error {
	active, ok, err := m.repo.ActiveAlert(ctx, platformID, kind)
	if err != nil {
		return err
	}
	if ok {
		m.log.Debug("alert already active, skipping report", "platform_id", platformID, "kind", kind, "alert_id", active.ID)
		return nil
	}
	return m.create(ctx, platformID, entityID, kind, details, template)
}

// ReportDaily is like Report but only guards against alerts created on the
// current UTC calendar day, used for the {7,14,30}-day expiry thresholds.
func (m *Machine) ReportDaily(ctx context.Context, platformID, entityID int64, kind model.AlertKind, details, template string) error {
	now := m.now()
	active, ok, err := m.repo.ActiveAlertCreatedToday(ctx, platformID, kind, now)
	if err != nil {
		return err
	}
	if ok {
		m.log.Debug("alert already active today, skipping daily report", "platform_id", platformID, "kind", kind, "alert_id", active.ID)
		return nil
	}
	return m.create(ctx, platformID, entityID, kind, details, template)
}

func (m *Machine) create(ctx context.Context, platformID, entityID int64, kind model.AlertKind, details, template string) error {
	now := m.now()
	alert, err := m.repo.CreateAlert(ctx, model.Alert{
		PlatformID: platformID,
		EntityID:   entityID,
		Kind:       kind,
		Status:     model.AlertStatusNew,
		Details:    details,
		Template:   template,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		return err
	}
	if m.dispatcher != nil {
		m.dispatcher.EnqueueAlert(ctx, alert)
	}
	return nil
}

// Resolve transitions the most recent active alert for the key to resolved
// and enqueues a resolution notification. No-op if nothing is active.
func (m *Machine) Resolve(ctx context.Context, kind model.AlertKind, platformID int64) error {
	alert, ok, err := m.repo.ResolveAlert(ctx, platformID, kind, m.now())
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if m.dispatcher != nil {
		m.dispatcher.EnqueueResolution(ctx, alert)
	}
	return nil
}

// CheckActive reports whether an active alert exists for the key.
func (m *Machine) CheckActive(ctx context.Context, platformID int64, kind model.AlertKind) (bool, error) {
	_, ok, err := m.repo.ActiveAlert(ctx, platformID, kind)
	return ok, err
}

// CheckActiveToday reports whether an active alert created today exists
// for the key.
func (m *Machine) CheckActiveToday(ctx context.Context, platformID int64, kind model.AlertKind) (bool, error) {
	_, ok, err := m.repo.ActiveAlertCreatedToday(ctx, platformID, kind, m.now())
	return ok, err
}
