// Package metrics provides Prometheus instrumentation for the monitoring
// core: GaugeVec/HistogramVec series for probe verdicts and alert counts.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/webwatch/monitor/internal/model"
)

// Collector exposes per-run monitoring metrics.
type Collector struct {
	probeSuccess    *prometheus.GaugeVec
	probeDuration   *prometheus.HistogramVec
	activeAlerts    *prometheus.GaugeVec
	alertsRaised    *prometheus.CounterVec
	alertsResolved  *prometheus.CounterVec
	runDuration     prometheus.Gauge
	lastRunTimestamp prometheus.Gauge
	platformsScanned prometheus.Gauge
	mu              sync.Mutex
}

// NewCollector creates and registers metrics on the given registerer.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		probeSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "webwatch",
			Name:      "probe_success",
			Help:      "Whether the most recent probe succeeded (1=ok, 0=failed).",
		}, []string{"platform_id", "probe"}),

		probeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "webwatch",
			Name:      "probe_duration_seconds",
			Help:      "Duration of a single probe run in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"probe"}),

		activeAlerts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "webwatch",
			Name:      "active_alerts",
			Help:      "Number of currently active alerts by kind.",
		}, []string{"kind"}),

		alertsRaised: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "webwatch",
			Name:      "alerts_raised_total",
			Help:      "Total number of alerts raised by kind.",
		}, []string{"kind"}),

		alertsResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "webwatch",
			Name:      "alerts_resolved_total",
			Help:      "Total number of alerts resolved by kind.",
		}, []string{"kind"}),

		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "webwatch",
			Name:      "run_duration_seconds",
			Help:      "Duration of the last full monitoring run in seconds.",
		}),

		lastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "webwatch",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix timestamp of the last completed monitoring run.",
		}),

		platformsScanned: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "webwatch",
			Name:      "platforms_scanned",
			Help:      "Number of platforms scanned during the last run.",
		}),
	}

	reg.MustRegister(c.probeSuccess, c.probeDuration, c.activeAlerts, c.alertsRaised,
		c.alertsResolved, c.runDuration, c.lastRunTimestamp, c.platformsScanned)

	return c
}

// ObserveProbeDuration records the wall-clock time of a single probe call.
func (c *Collector) ObserveProbeDuration(probe string, d time.Duration) {
	c.probeDuration.WithLabelValues(probe).Observe(d.Seconds())
}

// RecordProbeResult sets the success gauge for one platform/probe pair.
func (c *Collector) RecordProbeResult(platformID int64, probe string, ok bool) {
	v := 0.0
	if ok {
		v = 1
	}
	c.probeSuccess.WithLabelValues(formatID(platformID), probe).Set(v)
}

// RecordAlertRaised increments the raised counter and active gauge for kind.
func (c *Collector) RecordAlertRaised(kind model.AlertKind) {
	c.alertsRaised.WithLabelValues(string(kind)).Inc()
	c.activeAlerts.WithLabelValues(string(kind)).Inc()
}

// RecordAlertResolved increments the resolved counter and decrements the
// active gauge for kind.
func (c *Collector) RecordAlertResolved(kind model.AlertKind) {
	c.alertsResolved.WithLabelValues(string(kind)).Inc()
	c.activeAlerts.WithLabelValues(string(kind)).Dec()
}

// SetActiveAlerts resets the active-alert gauge to an authoritative count
// per kind, used after loading state from the repository at run start.
func (c *Collector) SetActiveAlerts(counts map[model.AlertKind]int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activeAlerts.Reset()
	for kind, n := range counts {
		c.activeAlerts.WithLabelValues(string(kind)).Set(float64(n))
	}
}

// RecordRun sets the whole-run duration and timestamp gauges.
func (c *Collector) RecordRun(at time.Time, platformCount int, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runDuration.Set(d.Seconds())
	c.lastRunTimestamp.Set(float64(at.Unix()))
	c.platformsScanned.Set(float64(platformCount))
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
