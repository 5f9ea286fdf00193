package cli

import (
	"context"
	"fmt"

	"github.com/webwatch/monitor/internal/config"
	"github.com/webwatch/monitor/internal/history"
)

// bootstrapFromFile loads a YAML config.FileConfig and writes its
// Configuration/ScanConfig into the state database, overriding whatever
// defaults history.Store would otherwise seed on first use. This is the
// on-ramp for a standalone deployment that ships a config file alongside
// an empty database instead of managing Configuration/ScanConfig through
// the platform's own CRUD surface.
func bootstrapFromFile(ctx context.Context, store *history.Store, path string) error {
	fc, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading config file: %w", err)
	}
	if err := store.SaveConfiguration(ctx, fc.Configuration()); err != nil {
		return fmt.Errorf("saving configuration: %w", err)
	}
	if err := store.SaveScanConfig(ctx, fc.ScanConfig()); err != nil {
		return fmt.Errorf("saving scan config: %w", err)
	}
	return nil
}
