// Package notify renders alert/digest templates and enqueues delivery jobs
// without blocking the caller. Rendering and delivery are decoupled from
// the probe pipeline by a buffered channel and a single consumer goroutine
// so a slow mailer or ticket system never stalls a probe.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/webwatch/monitor/internal/model"
)

const jobQueueSize = 256

type jobKind int

const (
	jobAlert jobKind = iota
	jobResolution
	jobDigest
)

type job struct {
	kind   jobKind
	alert  model.Alert
	digest Digest
}

// Dispatcher renders and delivers alert, resolution, and digest
// notifications. The zero value is not usable; construct with New.
type Dispatcher struct {
	repo         model.Repository
	mailer       Mailer
	ticketer     Ticketer
	createTicket bool
	log          *slog.Logger
	jobs         chan job
}

// New builds a Dispatcher and starts its delivery goroutine. createTicket
// enables ticket creation alongside email for every new alert.
func New(repo model.Repository, mailer Mailer, ticketer Ticketer, createTicket bool, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	if mailer == nil {
		mailer = NoopMailer{}
	}
	if ticketer == nil {
		ticketer = NoopTicketer{}
	}
	d := &Dispatcher{
		repo: repo, mailer: mailer, ticketer: ticketer,
		createTicket: createTicket, log: log,
		jobs: make(chan job, jobQueueSize),
	}
	go d.run()
	return d
}

// EnqueueAlert schedules the creation email (and optionally a ticket) for a
// newly-raised alert. Never blocks: a full queue drops the job and logs it,
// rather than stalling the probe that raised the alert.
func (d *Dispatcher) EnqueueAlert(ctx context.Context, a model.Alert) {
	d.submit(job{kind: jobAlert, alert: a})
}

// EnqueueResolution schedules the resolution email for an alert that just
// transitioned to resolved.
func (d *Dispatcher) EnqueueResolution(ctx context.Context, a model.Alert) {
	d.submit(job{kind: jobResolution, alert: a})
}

// EnqueueDigest schedules the end-of-run digest email.
func (d *Dispatcher) EnqueueDigest(ctx context.Context, digest Digest) {
	if len(digest.Entities) == 0 {
		return
	}
	d.submit(job{kind: jobDigest, digest: digest})
}

func (d *Dispatcher) submit(j job) {
	select {
	case d.jobs <- j:
	default:
		d.log.Warn("notify: queue full, dropping job", "kind", j.kind)
	}
}

func (d *Dispatcher) run() {
	for j := range d.jobs {
		ctx := context.Background()
		switch j.kind {
		case jobAlert:
			d.deliverAlert(ctx, j.alert)
		case jobResolution:
			d.deliverResolution(ctx, j.alert)
		case jobDigest:
			d.deliverDigest(ctx, j.digest)
		}
	}
}

func (d *Dispatcher) deliverAlert(ctx context.Context, a model.Alert) {
	recipients, err := d.recipientsFor(ctx, a.EntityID)
	if err != nil {
		d.log.Warn("notify: resolving recipients failed", "entity_id", a.EntityID, "err", err)
		return
	}
	body, err := renderAlert(a)
	if err != nil {
		d.log.Warn("notify: rendering alert failed", "kind", a.Kind, "err", err)
		return
	}
	msg := Message{Subject: fmt.Sprintf("[%s] alert", a.Kind), HTMLBody: body, To: recipients, IsHTML: true}
	if err := d.mailer.SendMail(ctx, msg); err != nil {
		d.log.Warn("notify: send mail failed", "kind", a.Kind, "platform_id", a.PlatformID, "err", err)
	}

	if !d.createTicket {
		return
	}
	ticket := Ticket{
		Subject:      fmt.Sprintf("[%s] alert on platform %d", a.Kind, a.PlatformID),
		Content:      a.Details,
		Requestors:   recipients,
		Priority:     ticketPriority(a.Kind),
		ReporterType: "monitoring",
		Status:       "new",
		DedupKey:     fmt.Sprintf("%d:%s", a.PlatformID, a.Kind),
	}
	if err := d.ticketer.CreateTicket(ctx, ticket); err != nil {
		d.log.Warn("notify: create ticket failed", "kind", a.Kind, "platform_id", a.PlatformID, "err", err)
	}
}

func (d *Dispatcher) deliverResolution(ctx context.Context, a model.Alert) {
	recipients, err := d.recipientsFor(ctx, a.EntityID)
	if err != nil {
		d.log.Warn("notify: resolving recipients failed", "entity_id", a.EntityID, "err", err)
		return
	}
	body, err := renderResolution(a)
	if err != nil {
		d.log.Warn("notify: rendering resolution failed", "kind", a.Kind, "err", err)
		return
	}
	msg := Message{Subject: fmt.Sprintf("[%s] alert resolved", a.Kind), HTMLBody: body, To: recipients, IsHTML: true}
	if err := d.mailer.SendMail(ctx, msg); err != nil {
		d.log.Warn("notify: send resolution mail failed", "kind", a.Kind, "platform_id", a.PlatformID, "err", err)
	}
}

func (d *Dispatcher) deliverDigest(ctx context.Context, digest Digest) {
	body, err := renderDigest(digest)
	if err != nil {
		d.log.Warn("notify: rendering digest failed", "err", err)
		return
	}
	msg := Message{Subject: digest.Subject(), HTMLBody: body, To: digestRecipients(digest), IsHTML: true}
	if err := d.mailer.SendMail(ctx, msg); err != nil {
		d.log.Warn("notify: send digest mail failed", "err", err)
	}
}

func (d *Dispatcher) recipientsFor(ctx context.Context, entityID int64) ([]string, error) {
	points, err := d.repo.FocalPointsForEntity(ctx, entityID)
	if err != nil {
		return nil, err
	}
	emails := make([]string, 0, len(points))
	for _, p := range points {
		if !p.IsActive || p.Email == "" {
			continue
		}
		emails = append(emails, p.Email)
	}
	return emails, nil
}

func ticketPriority(kind model.AlertKind) Priority {
	switch kind {
	case model.AlertKindDefacement, model.AlertKindDomainUnavailable:
		return PriorityCritical
	case model.AlertKindSSL, model.AlertKindVT:
		return PriorityHigh
	default:
		return PriorityNormal
	}
}
