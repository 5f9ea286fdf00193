package report

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/webwatch/monitor/internal/history"
	"github.com/webwatch/monitor/internal/model"
)

func TestWriteCSV_Header(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, nil); err != nil {
		t.Fatalf("WriteCSV error: %v", err)
	}

	r := csv.NewReader(&buf)
	records, err := r.ReadAll()
	if err != nil {
		t.Fatalf("parsing CSV: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 row (header only), got %d", len(records))
	}

	want := []string{"entity", "platform", "kind", "status", "severity", "details", "createdAt", "updatedAt"}
	for i, col := range want {
		if records[0][i] != col {
			t.Errorf("header[%d] = %q, want %q", i, records[0][i], col)
		}
	}
}

func TestWriteCSV_RowCount(t *testing.T) {
	alerts := []history.AlertView{
		{Alert: model.Alert{Kind: model.AlertKindAvailability, Status: model.AlertStatusNew}, EntityName: "a"},
		{Alert: model.Alert{Kind: model.AlertKindSSLExpiringSoon, Status: model.AlertStatusNew}, EntityName: "b"},
		{Alert: model.Alert{Kind: model.AlertKindDefacement, Status: model.AlertStatusResolved}, EntityName: "c"},
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, alerts); err != nil {
		t.Fatalf("WriteCSV error: %v", err)
	}

	r := csv.NewReader(&buf)
	records, err := r.ReadAll()
	if err != nil {
		t.Fatalf("parsing CSV: %v", err)
	}
	// 1 header + 3 data rows
	if len(records) != 4 {
		t.Errorf("expected 4 rows, got %d", len(records))
	}
}

func TestWriteCSV_RFC3339Timestamp(t *testing.T) {
	createdAt := time.Date(2025, 8, 15, 10, 30, 0, 0, time.UTC)
	alerts := []history.AlertView{
		{Alert: model.Alert{Kind: model.AlertKindAvailability, CreatedAt: createdAt}},
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, alerts); err != nil {
		t.Fatalf("WriteCSV error: %v", err)
	}

	r := csv.NewReader(&buf)
	records, err := r.ReadAll()
	if err != nil {
		t.Fatalf("parsing CSV: %v", err)
	}

	// createdAt is column index 6
	got := records[1][6]
	want := "2025-08-15T10:30:00Z"
	if got != want {
		t.Errorf("createdAt = %q, want %q", got, want)
	}
}

func TestWriteCSV_QuotingComma(t *testing.T) {
	alerts := []history.AlertView{
		{
			Alert:       model.Alert{Kind: model.AlertKindAvailability, Details: "HTTP 500, retrying"},
			EntityName:  "Acme, Inc",
			PlatformURL: "https://acme.example",
		},
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, alerts); err != nil {
		t.Fatalf("WriteCSV error: %v", err)
	}

	r := csv.NewReader(&buf)
	records, err := r.ReadAll()
	if err != nil {
		t.Fatalf("parsing CSV: %v", err)
	}

	if records[1][0] != "Acme, Inc" {
		t.Errorf("entity = %q, want %q", records[1][0], "Acme, Inc")
	}
	if records[1][5] != "HTTP 500, retrying" {
		t.Errorf("details = %q, want %q", records[1][5], "HTTP 500, retrying")
	}
}

func TestWriteCSV_SeverityColumn(t *testing.T) {
	alerts := []history.AlertView{
		{Alert: model.Alert{Kind: model.AlertKindAvailability}},
		{Alert: model.Alert{Kind: model.AlertKindSSLExpiringSoon}},
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, alerts); err != nil {
		t.Fatalf("WriteCSV error: %v", err)
	}

	r := csv.NewReader(&buf)
	records, err := r.ReadAll()
	if err != nil {
		t.Fatalf("parsing CSV: %v", err)
	}

	if records[1][4] != "CRITICAL" {
		t.Errorf("severity for availability = %q, want CRITICAL", records[1][4])
	}
	if records[2][4] != "WARN" {
		t.Errorf("severity for ssl_expiring_soon = %q, want WARN", records[2][4])
	}
}
