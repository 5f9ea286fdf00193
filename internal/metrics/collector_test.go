package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/webwatch/monitor/internal/model"
)

func TestRecordProbeResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordProbeResult(42, "http", true)
	if got := testutil.ToFloat64(c.probeSuccess.WithLabelValues("42", "http")); got != 1 {
		t.Errorf("probe_success{42,http} = %v, want 1", got)
	}

	c.RecordProbeResult(42, "http", false)
	if got := testutil.ToFloat64(c.probeSuccess.WithLabelValues("42", "http")); got != 0 {
		t.Errorf("probe_success{42,http} = %v, want 0", got)
	}
}

func TestRecordAlertRaisedAndResolved(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAlertRaised(model.AlertKindSSL)
	c.RecordAlertRaised(model.AlertKindSSL)
	if got := testutil.ToFloat64(c.activeAlerts.WithLabelValues("ssl")); got != 2 {
		t.Errorf("active_alerts{ssl} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.alertsRaised.WithLabelValues("ssl")); got != 2 {
		t.Errorf("alerts_raised_total{ssl} = %v, want 2", got)
	}

	c.RecordAlertResolved(model.AlertKindSSL)
	if got := testutil.ToFloat64(c.activeAlerts.WithLabelValues("ssl")); got != 1 {
		t.Errorf("active_alerts{ssl} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.alertsResolved.WithLabelValues("ssl")); got != 1 {
		t.Errorf("alerts_resolved_total{ssl} = %v, want 1", got)
	}
}

func TestSetActiveAlertsResetsToAuthoritativeCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAlertRaised(model.AlertKindSSL)
	c.RecordAlertRaised(model.AlertKindDefacement)

	c.SetActiveAlerts(map[model.AlertKind]int{model.AlertKindSSL: 1})

	if got := testutil.ToFloat64(c.activeAlerts.WithLabelValues("ssl")); got != 1 {
		t.Errorf("active_alerts{ssl} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.activeAlerts.WithLabelValues("defacement")); got != 0 {
		t.Errorf("active_alerts{defacement} = %v, want 0 after reset", got)
	}
}

func TestRecordRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	now := time.Now()
	c.RecordRun(now, 10, 2500*time.Millisecond)

	if got := testutil.ToFloat64(c.runDuration); got != 2.5 {
		t.Errorf("run_duration_seconds = %v, want 2.5", got)
	}
	if got := testutil.ToFloat64(c.platformsScanned); got != 10 {
		t.Errorf("platforms_scanned = %v, want 10", got)
	}
}
