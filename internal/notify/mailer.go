package notify

import "context"

// Priority is a ticket's urgency level.
type Priority string

const (
	PriorityLow      Priority = "Low"
	PriorityNormal   Priority = "Normal"
	PriorityHigh     Priority = "High"
	PriorityCritical Priority = "Critical"
)

// Attachment is a file to include with an email.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is an email to send. Delivery retry is owned by the Mailer
// implementation, not the dispatcher.
type Message struct {
	Subject     string
	HTMLBody    string
	To          []string
	CC          []string
	BCC         []string
	Attachments []Attachment
	IsHTML      bool
}

// Mailer delivers rendered email messages. Implementations retry with their
// own backoff policy; the dispatcher never blocks waiting on one.
type Mailer interface {
	SendMail(ctx context.Context, msg Message) error
}

// Ticket is a helpdesk/ticketing system entry created for an alert.
type Ticket struct {
	Subject      string
	Content      string
	Requestors   []string
	AdminCC      []string
	CC           []string
	Priority     Priority
	Domain       string
	ReporterType string
	Status       string
	DedupKey     string
}

// Ticketer creates tickets in an external system. DedupKey lets an
// implementation collapse repeated creates for the same underlying issue
// instead of opening a duplicate ticket per alert.
type Ticketer interface {
	CreateTicket(ctx context.Context, t Ticket) error
}

// NoopMailer discards every message, useful for local runs without SMTP
// configured.
type NoopMailer struct{}

func (NoopMailer) SendMail(context.Context, Message) error { return nil }

// NoopTicketer discards every ticket.
type NoopTicketer struct{}

func (NoopTicketer) CreateTicket(context.Context, Ticket) error { return nil }
