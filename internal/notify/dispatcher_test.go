package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/webwatch/monitor/internal/model"
)

type fakeRepo struct {
	model.Repository
	points map[int64][]model.FocalPoint
}

func (f *fakeRepo) FocalPointsForEntity(ctx context.Context, entityID int64) ([]model.FocalPoint, error) {
	return f.points[entityID], nil
}

type recordingMailer struct {
	mu   sync.Mutex
	msgs []Message
	sent chan Message
}

func newRecordingMailer() *recordingMailer {
	return &recordingMailer{sent: make(chan Message, 8)}
}

func (m *recordingMailer) SendMail(ctx context.Context, msg Message) error {
	m.mu.Lock()
	m.msgs = append(m.msgs, msg)
	m.mu.Unlock()
	m.sent <- msg
	return nil
}

type recordingTicketer struct {
	mu      sync.Mutex
	tickets []Ticket
	created chan Ticket
}

func newRecordingTicketer() *recordingTicketer {
	return &recordingTicketer{created: make(chan Ticket, 8)}
}

func (t *recordingTicketer) CreateTicket(ctx context.Context, tk Ticket) error {
	t.mu.Lock()
	t.tickets = append(t.tickets, tk)
	t.mu.Unlock()
	t.created <- tk
	return nil
}

func waitMessage(t *testing.T, ch chan Message) Message {
	t.Helper()
	select {
	case m := <-ch:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
		return Message{}
	}
}

func TestEnqueueAlertSendsMailToActiveFocalPoints(t *testing.T) {
	repo := &fakeRepo{points: map[int64][]model.FocalPoint{
		1: {
			{Email: "active@example.com", IsActive: true},
			{Email: "inactive@example.com", IsActive: false},
		},
	}}
	mailer := newRecordingMailer()
	d := New(repo, mailer, nil, false, nil)

	d.EnqueueAlert(context.Background(), model.Alert{
		EntityID: 1, PlatformID: 10, Kind: model.AlertKindSSL, Details: "cert error", Status: model.AlertStatusNew,
	})

	msg := waitMessage(t, mailer.sent)
	if len(msg.To) != 1 || msg.To[0] != "active@example.com" {
		t.Fatalf("expected only active focal point, got %+v", msg.To)
	}
}

func TestEnqueueAlertCreatesTicketWhenEnabled(t *testing.T) {
	repo := &fakeRepo{points: map[int64][]model.FocalPoint{1: {{Email: "a@example.com", IsActive: true}}}}
	mailer := newRecordingMailer()
	ticketer := newRecordingTicketer()
	d := New(repo, mailer, ticketer, true, nil)

	d.EnqueueAlert(context.Background(), model.Alert{
		EntityID: 1, PlatformID: 10, Kind: model.AlertKindDefacement, Details: "added script", Status: model.AlertStatusNew,
	})

	waitMessage(t, mailer.sent)
	select {
	case tk := <-ticketer.created:
		if tk.Priority != PriorityCritical {
			t.Errorf("expected critical priority for defacement, got %s", tk.Priority)
		}
		if tk.DedupKey != "10:defacement" {
			t.Errorf("expected dedup key 10:defacement, got %s", tk.DedupKey)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for ticket")
	}
}

func TestDigestSubjectPrefixThresholds(t *testing.T) {
	cases := []struct {
		affected, total int
		wantPrefix      string
	}{
		{5, 10, "[URGENT]"},
		{3, 10, "[IMPORTANT]"},
		{1, 10, ""},
	}
	for _, c := range cases {
		d := Digest{AffectedPlatforms: c.affected, TotalPlatforms: c.total}
		subj := d.Subject()
		if c.wantPrefix == "" {
			if len(subj) >= 1 && (subj[0] == '[') {
				t.Errorf("expected unprefixed subject for %d/%d, got %q", c.affected, c.total, subj)
			}
			continue
		}
		if len(subj) < len(c.wantPrefix) || subj[:len(c.wantPrefix)] != c.wantPrefix {
			t.Errorf("expected prefix %s for %d/%d, got %q", c.wantPrefix, c.affected, c.total, subj)
		}
	}
}

func TestDigestSubjectMatchesSeedScenario(t *testing.T) {
	d := Digest{AffectedPlatforms: 3, TotalPlatforms: 10}
	subj := d.Subject()
	want := "[IMPORTANT] Oju Monitoring - 3 sites with issues (30.0%)"
	if subj != want {
		t.Fatalf("subject = %q, want %q", subj, want)
	}
}

func TestEnqueueDigestSkipsEmptyDigest(t *testing.T) {
	repo := &fakeRepo{}
	mailer := newRecordingMailer()
	d := New(repo, mailer, nil, false, nil)

	d.EnqueueDigest(context.Background(), Digest{})

	select {
	case msg := <-mailer.sent:
		t.Fatalf("expected no mail for empty digest, got %+v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestQueueFullDropsJobWithoutBlocking(t *testing.T) {
	repo := &fakeRepo{points: map[int64][]model.FocalPoint{1: {{Email: "a@example.com", IsActive: true}}}}
	mailer := newRecordingMailer()
	d := New(repo, mailer, nil, false, nil)
	d.jobs = make(chan job) // unbuffered and never drained: submit must not block

	done := make(chan struct{})
	go func() {
		d.EnqueueAlert(context.Background(), model.Alert{EntityID: 1, Kind: model.AlertKindOther})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("EnqueueAlert blocked on a full queue")
	}
}
