package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/webwatch/monitor/internal/model"
)

// alertTemplates maps an alert kind to its creation-email body template.
// Every template receives an alertView and renders a small self-contained
// HTML fragment, which the dispatcher sends as the email body unchanged.
var alertTemplates = map[model.AlertKind]*template.Template{}

// resolutionTemplate renders the body for a resolved alert, distinct from
// the creation templates per the resolved/created distinction.
var resolutionTemplate *template.Template

// digestTemplate renders the end-of-run digest body.
var digestTemplate *template.Template

type alertView struct {
	Kind      model.AlertKind
	Details   string
	CreatedAt time.Time
}

type resolutionView struct {
	Kind       model.AlertKind
	ResolvedAt time.Time
}

type digestView struct {
	Entities   []DigestEntity
	Affected   int
	Total      int
	Percentage float64
}

const kindHeadingTmpl = `<h2>{{.Kind}} alert</h2><p>{{.Details}}</p><p><small>raised {{.CreatedAt.Format "2006-01-02 15:04 MST"}}</small></p>`

const resolutionBodyTmpl = `<h2>{{.Kind}} alert resolved</h2><p><small>resolved {{.ResolvedAt.Format "2006-01-02 15:04 MST"}}</small></p>`

const digestBodyTmpl = `<h2>Monitoring digest</h2>
<p>{{.Affected}} of {{.Total}} sites have active issues ({{printf "%.1f" .Percentage}}%).</p>
{{range .Entities}}
<h3>{{.EntityName}}</h3>
<ul>{{range .PlatformURLs}}<li>{{.}}</li>{{end}}</ul>
{{end}}`

func init() {
	must := func(t *template.Template, err error) *template.Template {
		if err != nil {
			panic(err)
		}
		return t
	}
	base := must(template.New("kind").Parse(kindHeadingTmpl))
	for _, kind := range []model.AlertKind{
		model.AlertKindSSL, model.AlertKindSSLExpiringSoon, model.AlertKindDomainUnavailable,
		model.AlertKindDomainExpiring, model.AlertKindDefacement, model.AlertKindAvailability,
		model.AlertKindVT, model.AlertKindOther,
	} {
		alertTemplates[kind] = base
	}
	resolutionTemplate = must(template.New("resolution").Parse(resolutionBodyTmpl))
	digestTemplate = must(template.New("digest").Parse(digestBodyTmpl))
}

func renderAlert(a model.Alert) (string, error) {
	tmpl, ok := alertTemplates[a.Kind]
	if !ok {
		tmpl = alertTemplates[model.AlertKindOther]
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, alertView{Kind: a.Kind, Details: a.Details, CreatedAt: a.CreatedAt}); err != nil {
		return "", fmt.Errorf("rendering alert template: %w", err)
	}
	return buf.String(), nil
}

func renderResolution(a model.Alert) (string, error) {
	var buf bytes.Buffer
	if err := resolutionTemplate.Execute(&buf, resolutionView{Kind: a.Kind, ResolvedAt: a.UpdatedAt}); err != nil {
		return "", fmt.Errorf("rendering resolution template: %w", err)
	}
	return buf.String(), nil
}

// DigestEntity is one entity's block within a run's end-of-run digest.
type DigestEntity struct {
	EntityName       string
	PlatformURLs     []string
	FocalPointEmails []string
}

// Digest is the end-of-run summary of every entity with an active or
// newly-raised issue.
type Digest struct {
	Entities          []DigestEntity
	AffectedPlatforms int
	TotalPlatforms    int
}

// Subject computes the prefixed digest subject line. The percentage and
// count are reproduced verbatim from the monitoring product's existing
// digest wording.
func (d Digest) Subject() string {
	pct := 0.0
	if d.TotalPlatforms > 0 {
		pct = float64(d.AffectedPlatforms) / float64(d.TotalPlatforms) * 100
	}
	base := fmt.Sprintf("Oju Monitoring - %d sites with issues (%.1f%%)", d.AffectedPlatforms, pct)
	ratio := pct / 100
	switch {
	case ratio >= 0.5:
		return "[URGENT] " + base
	case ratio >= 0.25:
		return "[IMPORTANT] " + base
	default:
		return base
	}
}

func renderDigest(d Digest) (string, error) {
	pct := 0.0
	if d.TotalPlatforms > 0 {
		pct = float64(d.AffectedPlatforms) / float64(d.TotalPlatforms) * 100
	}
	var buf bytes.Buffer
	view := digestView{Entities: d.Entities, Affected: d.AffectedPlatforms, Total: d.TotalPlatforms, Percentage: pct}
	if err := digestTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("rendering digest template: %w", err)
	}
	return buf.String(), nil
}

// digestRecipients is the union of every entity's focal point emails.
func digestRecipients(d Digest) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, e := range d.Entities {
		for _, email := range e.FocalPointEmails {
			if _, ok := seen[email]; ok {
				continue
			}
			seen[email] = struct{}{}
			out = append(out, email)
		}
	}
	return out
}
