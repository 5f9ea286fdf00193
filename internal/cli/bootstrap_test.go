package cli

import (
	"context"
	"os"
	"testing"

	"github.com/webwatch/monitor/internal/history"
)

func TestBootstrapFromFile(t *testing.T) {
	store, err := history.Open(":memory:")
	if err != nil {
		t.Fatalf("opening in-memory db: %v", err)
	}
	defer store.Close()

	content := `
notificationEmail: "ops@example.com"
maxWorkers: 8
scanFrequencySeconds: 1800
vtApiKey: "test-key"
defacementWhitelist:
  - "footer.timestamp"
`
	f, err := os.CreateTemp("", "monitor-bootstrap-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(f.Name())
	if _, err := f.WriteString(content); err != nil {
		t.Fatal(err)
	}
	f.Close()

	ctx := context.Background()
	if err := bootstrapFromFile(ctx, store, f.Name()); err != nil {
		t.Fatalf("bootstrapFromFile failed: %v", err)
	}

	cfg, err := store.LoadConfiguration(ctx)
	if err != nil {
		t.Fatalf("loading configuration: %v", err)
	}
	if cfg.NotificationEmail != "ops@example.com" {
		t.Errorf("expected notification email to persist, got %q", cfg.NotificationEmail)
	}
	if cfg.MaxWorkers != 8 {
		t.Errorf("expected maxWorkers=8, got %d", cfg.MaxWorkers)
	}

	scan, err := store.LoadScanConfig(ctx)
	if err != nil {
		t.Fatalf("loading scan config: %v", err)
	}
	if scan.VTAPIKey != "test-key" {
		t.Errorf("expected VT API key to persist, got %q", scan.VTAPIKey)
	}
	if _, ok := scan.DefacementWhitelist["footer.timestamp"]; !ok {
		t.Error("expected defacement whitelist entry to persist")
	}
}

func TestBootstrapFromFile_MissingFile(t *testing.T) {
	store, err := history.Open(":memory:")
	if err != nil {
		t.Fatalf("opening in-memory db: %v", err)
	}
	defer store.Close()

	if err := bootstrapFromFile(context.Background(), store, "/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing config file")
	}
}
