// Package liveview renders the current alert set for the `monitor now` and
// `monitor check` CLI commands: a Bubble Tea table for interactive use, a
// `--output json` encoder, and the exit-code policy for CI gating. Named
// apart from the monitoring orchestrator package to avoid the "monitor"
// collision between the two.
package liveview

import "github.com/webwatch/monitor/internal/history"

// Severity buckets an alert kind for the exit-code gate and TUI coloring.
// Expiry-threshold alerts (ssl/domain "expiring soon") are warnings; every
// other active alert kind is treated as critical.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarn
	SeverityCritical
)

func severityOf(v history.AlertView) Severity {
	switch v.Kind {
	case "ssl_expiredSoon", "domain_expiredSoon":
		return SeverityWarn
	default:
		return SeverityCritical
	}
}

// ExitCode returns a process exit code for `monitor check`:
//
//	0 = no active alerts
//	1 = only warnings (expiry-threshold alerts) active
//	2 = at least one critical alert active
//	3 = the run itself failed before a verdict could be reached
func ExitCode(alerts []history.AlertView, runErr error) int {
	if runErr != nil {
		return 3
	}
	code := 0
	for _, a := range alerts {
		if severityOf(a) == SeverityCritical {
			return 2
		}
		code = 1
	}
	return code
}
