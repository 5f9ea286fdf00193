package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/webwatch/monitor/internal/history"
	"github.com/webwatch/monitor/internal/liveview"
	"github.com/webwatch/monitor/internal/model"
	"github.com/webwatch/monitor/internal/notify"
	"github.com/webwatch/monitor/internal/orchestrator"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "CI/CD gate — run one monitoring pass and exit non-zero on active alerts",
	Long: `Run one full monitoring pass against the configured platform registry,
then exit with a code based on the active alerts found. Designed for CI/CD
pipelines — no TUI, just scan → evaluate → exit code.

Exit codes:
  0  No active alerts
  1  Only warn-tier alerts (e.g. a cert or domain expiring soon)
  2  A critical alert is active (TLS failure, domain down, defacement, ...)
  3  The monitoring run itself failed`,
	Example: `  # Basic check — fail on any active alert
  monitor check

  # JSON output for pipeline parsing
  monitor check --output json

  # Quiet mode — exit code only
  monitor check --quiet`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().StringP("output", "o", "", "Output format: json, table (default: table)")
	checkCmd.Flags().BoolP("quiet", "q", false, "Suppress output, exit code only")
}

func runCheck(cmd *cobra.Command, _ []string) error {
	dbPath, err := cmd.Flags().GetString("db")
	if err != nil {
		return err
	}
	outputFlag, _ := cmd.Flags().GetString("output") //nolint:errcheck // flag registered above
	quiet, _ := cmd.Flags().GetBool("quiet")          //nolint:errcheck // flag registered above

	if outputFlag != "" && outputFlag != "json" && outputFlag != "table" {
		return fmt.Errorf("invalid --output value %q: must be json or table", outputFlag)
	}

	store, err := history.Open(dbPath)
	if err != nil {
		return fmt.Errorf("opening state database: %w", err)
	}
	defer store.Close() //nolint:errcheck // best-effort close on exit

	dispatcher := notify.New(store, notify.NoopMailer{}, notify.NoopTicketer{}, false, slog.Default())
	orch := orchestrator.New(store, dispatcher, slog.Default(), model.ScanConfigCacheTTL)

	ctx := context.Background()
	_, runErr := orch.Run(ctx)
	if runErr != nil {
		slog.Error("monitoring run failed", "err", runErr)
	}

	now := time.Now()
	alerts, alertsErr := store.ActiveAlertsView(ctx)
	if alertsErr != nil && runErr == nil {
		runErr = fmt.Errorf("loading active alerts: %w", alertsErr)
	}

	exitCode := liveview.ExitCode(alerts, runErr)

	if !quiet {
		switch outputFlag {
		case "json":
			if err := liveview.WriteJSON(os.Stdout, alerts, exitCode, now); err != nil {
				return fmt.Errorf("writing JSON output: %w", err)
			}
		default:
			fmt.Print(liveview.PlainText(alerts, now))
		}
	}

	if exitCode != 0 {
		os.Exit(exitCode)
	}
	return nil
}
