package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/webwatch/monitor/internal/history"
	"github.com/webwatch/monitor/internal/liveview"
)

var nowCmd = &cobra.Command{
	Use:   "now",
	Short: "Show active alerts right now",
	Long: `Load the current active-alert set from the state database and display it
in a TUI (plain text when stdout isn't a terminal, JSON with --output json).

Exit codes:
  0  No active alerts
  1  Only warn-tier alerts
  2  A critical alert is active
  3  Loading the alert set failed`,
	RunE: runNow,
}

func init() {
	rootCmd.AddCommand(nowCmd)
	nowCmd.Flags().StringP("output", "o", "", "Force output format: json, table (default: TUI when interactive)")
}

func runNow(cmd *cobra.Command, _ []string) error {
	dbPath, err := cmd.Flags().GetString("db")
	if err != nil {
		return err
	}
	outputFlag, _ := cmd.Flags().GetString("output") //nolint:errcheck // flag registered above

	store, err := history.Open(dbPath)
	if err != nil {
		return fmt.Errorf("opening state database: %w", err)
	}
	defer store.Close() //nolint:errcheck // best-effort close on exit

	now := time.Now()
	alerts, err := store.ActiveAlertsView(context.Background())
	exitCode := liveview.ExitCode(alerts, err)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading active alerts: %v\n", err)
		os.Exit(exitCode)
	}

	switch {
	case outputFlag == "json":
		if err := liveview.WriteJSON(os.Stdout, alerts, exitCode, now); err != nil {
			return fmt.Errorf("writing JSON output: %w", err)
		}
	case outputFlag == "table" || !isInteractive():
		fmt.Print(liveview.PlainText(alerts, now))
	default:
		m := liveview.NewModel(alerts, now)
		p := tea.NewProgram(m, tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("TUI error: %w", err)
		}
	}

	if exitCode != 0 {
		os.Exit(exitCode)
	}
	return nil
}

// isInteractive returns true if stdout is a terminal.
func isInteractive() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
