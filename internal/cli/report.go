package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/webwatch/monitor/internal/history"
	"github.com/webwatch/monitor/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate a self-contained alert report (HTML or CSV)",
	Long: `Load the alert history from the state database and render it as a
standalone HTML report or a CSV export, suitable for distribution or
archival. All CSS is inlined in the HTML form — no external dependencies.`,
	Example: `  # Generate an HTML report covering the active alert set
  monitor report > report.html

  # Export the last 7 days of alert history as CSV
  monitor report --format csv --since 168h --output-file history.csv`,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().String("format", "html", "Output format: html, csv")
	reportCmd.Flags().Duration("since", 0, "Include alert history since this duration ago (default: active alerts only)")
	reportCmd.Flags().StringP("output-file", "o", "", "Write report to file (default: stdout)")
}

func runReport(cmd *cobra.Command, _ []string) error {
	dbPath, err := cmd.Flags().GetString("db")
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("format")           //nolint:errcheck // flag registered above
	since, _ := cmd.Flags().GetDuration("since")           //nolint:errcheck // flag registered above
	outputFile, _ := cmd.Flags().GetString("output-file")  //nolint:errcheck // flag registered above

	if format != "html" && format != "csv" {
		return fmt.Errorf("invalid --format value %q: must be html or csv", format)
	}

	store, err := history.Open(dbPath)
	if err != nil {
		return fmt.Errorf("opening state database: %w", err)
	}
	defer store.Close() //nolint:errcheck // best-effort close on exit

	now := time.Now()
	ctx := context.Background()

	var alerts []history.AlertView
	if since > 0 {
		alerts, err = store.AlertHistory(ctx, now.Add(-since), now)
	} else {
		alerts, err = store.ActiveAlertsView(ctx)
	}
	if err != nil {
		return fmt.Errorf("loading alerts: %w", err)
	}

	var out []byte
	switch format {
	case "csv":
		var buf bytes.Buffer
		if err := report.WriteCSV(&buf, alerts); err != nil {
			return fmt.Errorf("generating CSV report: %w", err)
		}
		out = buf.Bytes()
	default:
		out, err = report.GenerateHTML(alerts, now)
		if err != nil {
			return fmt.Errorf("generating HTML report: %w", err)
		}
	}

	if outputFile != "" {
		if writeErr := os.WriteFile(outputFile, out, 0o644); writeErr != nil { //nolint:gosec // report is not sensitive
			return fmt.Errorf("writing report: %w", writeErr)
		}
	} else {
		_, _ = os.Stdout.Write(out) //nolint:errcheck // best-effort stdout write
	}

	return nil
}
