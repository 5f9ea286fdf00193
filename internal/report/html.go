// Package report renders a stored alert set as a self-contained HTML
// document and exports the alert history as CSV.
package report

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"
	"time"

	"github.com/webwatch/monitor/internal/history"
	"github.com/webwatch/monitor/internal/model"
)

// reportTmpl renders the full HTML report body. Kept as an inline string
// template rather than an embedded file, matching the dispatcher's own
// small-fragment templates.
var reportTmpl = template.Must(template.New("report").Parse(reportHTML))

const reportHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Monitoring report — {{.GeneratedAt}}</title>
<style>
body { font-family: sans-serif; margin: 2em; color: #222; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin-top: 1em; }
th, td { border: 1px solid #ccc; padding: 0.4em 0.6em; text-align: left; font-size: 0.9em; }
th { background: #f3f3f3; }
.sev-CRITICAL { color: #b00020; font-weight: bold; }
.sev-WARN { color: #a06a00; font-weight: bold; }
.summary { margin-bottom: 1em; }
</style>
</head>
<body>
<h1>Monitoring report — {{.GeneratedAt}}</h1>
<p class="summary">{{.TotalCount}} active alerts — {{.CriticalCount}} critical, {{.WarnCount}} warning.</p>
<table>
<tr><th>Severity</th><th>Kind</th><th>Entity</th><th>Platform</th><th>Age</th><th>Details</th></tr>
{{range .Rows}}<tr><td class="sev-{{.SeverityLabel}}">{{.SeverityLabel}}</td><td>{{.Kind}}</td><td>{{.Entity}}</td><td>{{.Platform}}</td><td>{{.Age}}</td><td>{{.Details}}</td></tr>
{{end}}</table>
</body>
</html>
`

type reportData struct {
	GeneratedAt   string
	Rows          []reportRow
	CriticalCount int
	WarnCount     int
	TotalCount    int
}

type reportRow struct {
	SeverityLabel string
	Kind          string
	Entity        string
	Platform      string
	Age           string
	Details       string
}

// Severity classification mirrors internal/liveview's: expiry-threshold
// kinds are warnings, everything else active is critical.
func isWarnKind(kind model.AlertKind) bool {
	return kind == model.AlertKindSSLExpiringSoon || kind == model.AlertKindDomainExpiring
}

// GenerateHTML renders the current active-alert set as a self-contained
// HTML document, the Go-native analog of the original's emailed digest
// body rendered for a browser instead of a mail client.
func GenerateHTML(alerts []history.AlertView, generatedAt time.Time) ([]byte, error) {
	sorted := make([]history.AlertView, len(alerts))
	copy(sorted, alerts)
	sort.SliceStable(sorted, func(i, j int) bool {
		wi, wj := isWarnKind(sorted[i].Kind), isWarnKind(sorted[j].Kind)
		if wi != wj {
			return wj // critical (wi=false) sorts first
		}
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	data := reportData{GeneratedAt: generatedAt.UTC().Format("2006-01-02 15:04 UTC")}
	for _, a := range sorted {
		label := "CRITICAL"
		if isWarnKind(a.Kind) {
			label = "WARN"
			data.WarnCount++
		} else {
			data.CriticalCount++
		}
		data.Rows = append(data.Rows, reportRow{
			SeverityLabel: label,
			Kind:          string(a.Kind),
			Entity:        a.EntityName,
			Platform:      a.PlatformURL,
			Age:           formatAge(a.CreatedAt, generatedAt),
			Details:       a.Details,
		})
	}
	data.TotalCount = len(data.Rows)

	var buf bytes.Buffer
	if err := reportTmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("rendering report template: %w", err)
	}
	return buf.Bytes(), nil
}

func formatAge(createdAt, now time.Time) string {
	d := now.Sub(createdAt)
	if d < 0 {
		d = 0
	}
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh", hours)
	default:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
}
