package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/webwatch/monitor/internal/history"
	"github.com/webwatch/monitor/internal/model"
	"github.com/webwatch/monitor/internal/notify"
	"github.com/webwatch/monitor/internal/orchestrator"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one monitoring pass against every active platform and exit",
	Long: `Load the active platform registry from the state database, probe every
platform once (domain, TLS, availability, defacement), report and dispatch
any alerts, then exit. Unlike "serve", this does not loop or expose HTTP —
it's meant for a cron job or a one-off manual run.`,
	RunE: runRunOnce,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("config", "", "YAML config file to seed Configuration/ScanConfig before running (optional, for standalone deployments)")
}

func runRunOnce(cmd *cobra.Command, _ []string) error {
	dbPath, err := cmd.Flags().GetString("db")
	if err != nil {
		return err
	}
	configPath, _ := cmd.Flags().GetString("config") //nolint:errcheck // flag registered above

	log := slog.Default()

	store, err := history.Open(dbPath)
	if err != nil {
		return fmt.Errorf("opening state database: %w", err)
	}
	defer store.Close() //nolint:errcheck // best-effort close on exit

	if configPath != "" {
		if err := bootstrapFromFile(context.Background(), store, configPath); err != nil {
			return fmt.Errorf("seeding configuration from %s: %w", configPath, err)
		}
	}

	dispatcher := notify.New(store, notify.NoopMailer{}, notify.NoopTicketer{}, false, log)
	orch := orchestrator.New(store, dispatcher, log, model.ScanConfigCacheTTL)

	summary, runErr := orch.Run(context.Background())
	if runErr != nil {
		return fmt.Errorf("monitoring run failed: %w", runErr)
	}

	log.Info("run complete",
		"platforms", len(summary.PlatformResults),
		"duration", summary.Duration)
	return nil
}
