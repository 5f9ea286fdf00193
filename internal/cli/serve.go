package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/webwatch/monitor/internal/alertstate"
	"github.com/webwatch/monitor/internal/capture"
	"github.com/webwatch/monitor/internal/config"
	"github.com/webwatch/monitor/internal/history"
	"github.com/webwatch/monitor/internal/metrics"
	"github.com/webwatch/monitor/internal/model"
	"github.com/webwatch/monitor/internal/notify"
	"github.com/webwatch/monitor/internal/orchestrator"
	"github.com/webwatch/monitor/internal/scheduler"
	"github.com/webwatch/monitor/internal/telemetry"
	"github.com/webwatch/monitor/internal/vt"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run as a long-lived service with scheduled scans and /metrics",
	Long: `Start the monitoring engine as a long-running service: the scheduler
drives periodic monitor/vt_scan/housekeeping runs against the state database,
and an HTTP server exposes health and metrics endpoints.

Exposes:
  /metrics          Prometheus scrape endpoint
  /healthz          Liveness probe
  /api/v1/alerts    JSON snapshot of active alerts`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", ":8080", "HTTP listen address")
	serveCmd.Flags().Bool("headless-capture", true, "Use a headless Chromium driver for defacement screenshots")
	serveCmd.Flags().String("config", "", "YAML config file to seed Configuration/ScanConfig at startup (optional, for standalone deployments)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	dbPath, err := cmd.Flags().GetString("db")
	if err != nil {
		return err
	}
	listenAddr, _ := cmd.Flags().GetString("listen")          //nolint:errcheck // flag registered above
	useCapture, _ := cmd.Flags().GetBool("headless-capture")  //nolint:errcheck // flag registered above
	configPath, _ := cmd.Flags().GetString("config")          //nolint:errcheck // flag registered above

	log := slog.Default()

	store, err := history.Open(dbPath)
	if err != nil {
		return fmt.Errorf("opening state database: %w", err)
	}
	defer store.Close() //nolint:errcheck // best-effort close on shutdown

	if configPath != "" {
		if err := bootstrapFromFile(context.Background(), store, configPath); err != nil {
			return fmt.Errorf("seeding configuration from %s: %w", configPath, err)
		}
	}

	tracer, tracerShutdown, tracerErr := telemetry.InitTracer(context.Background(), "webwatch-monitor", version)
	if tracerErr != nil {
		log.Warn("initializing tracer", "err", tracerErr)
	} else {
		defer tracerShutdown(context.Background()) //nolint:errcheck // best-effort flush
	}

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	dispatcher := notify.New(store, notify.NoopMailer{}, notify.NoopTicketer{}, false, log)

	var orchOpts []orchestrator.Option
	orchOpts = append(orchOpts, orchestrator.WithMetrics(collector))
	if tracer != nil {
		orchOpts = append(orchOpts, orchestrator.WithTracer(tracer))
	}
	if useCapture {
		orchOpts = append(orchOpts, orchestrator.WithBrowserDriver(&capture.RodDriver{Headless: true}))
	}
	orch := orchestrator.New(store, dispatcher, log, model.ScanConfigCacheTTL, orchOpts...)

	scanCfg, err := store.LoadScanConfig(context.Background())
	if err != nil {
		return fmt.Errorf("loading scan config: %w", err)
	}
	vtScanner := vt.NewScanner(scanCfg.VTAPIKey)

	machine := alertstate.New(store, dispatcher, log)
	sched := scheduler.New(store, orch, machine, vtScanner, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer sched.Stop()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok")) //nolint:errcheck // best-effort health response
	})
	mux.HandleFunc("/api/v1/alerts", func(w http.ResponseWriter, r *http.Request) {
		alerts, alertsErr := store.ActiveAlertsView(r.Context())
		if alertsErr != nil {
			http.Error(w, alertsErr.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(alerts) //nolint:errcheck // best-effort write to a client that may have gone away
	})
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info("serving", "addr", listenAddr, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "err", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	log.Info("shutdown complete")
	return nil
}
