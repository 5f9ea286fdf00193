package report

import (
	"encoding/csv"
	"io"
	"time"

	"github.com/webwatch/monitor/internal/history"
)

var csvHeader = []string{
	"entity", "platform", "kind", "status", "severity", "details", "createdAt", "updatedAt",
}

// WriteCSV writes an alert history window as CSV rows to w, the exportable
// form of the same data `monitor now --output json` serves live.
func WriteCSV(w io.Writer, alerts []history.AlertView) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	for i := range alerts {
		a := &alerts[i]
		severity := "CRITICAL"
		if isWarnKind(a.Kind) {
			severity = "WARN"
		}
		updatedAt := ""
		if !a.UpdatedAt.IsZero() {
			updatedAt = a.UpdatedAt.UTC().Format(time.RFC3339)
		}
		row := []string{
			a.EntityName,
			a.PlatformURL,
			string(a.Kind),
			string(a.Status),
			severity,
			a.Details,
			a.CreatedAt.UTC().Format(time.RFC3339),
			updatedAt,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
