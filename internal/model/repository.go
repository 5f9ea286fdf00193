package model

import (
	"context"
	"time"
)

// Repository is the seam between the monitoring core and the CRUD/storage
// layer. The core only ever calls the methods below; schema details beyond
// these fields are the storage layer's own concern.
type Repository interface {
	// LoadConfiguration and LoadScanConfig are read on every run.
	LoadConfiguration(ctx context.Context) (Configuration, error)
	LoadScanConfig(ctx context.Context) (ScanConfig, error)

	// ActivePlatforms returns every active platform with its Domain and
	// Entity preloaded.
	ActivePlatforms(ctx context.Context) ([]PlatformContext, error)

	// FocalPointsForEntity returns the active focal points for an entity,
	// for alert recipient lists.
	FocalPointsForEntity(ctx context.Context, entityID int64) ([]FocalPoint, error)

	// UpdateDomainScanState persists Domain scan timestamps/issue flags.
	UpdateDomainScanState(ctx context.Context, d Domain) error

	// UpdatePlatformScreenshot persists Platform.ScreenshotPath.
	UpdatePlatformScreenshot(ctx context.Context, platformID int64, path string) error

	// DefacementRecordFor returns the 1:1 record for a platform, or
	// (zero, false, nil) if none exists yet.
	DefacementRecordFor(ctx context.Context, platformID int64) (DefacementRecord, bool, error)

	// SaveDefacementRecord creates or updates the record.
	SaveDefacementRecord(ctx context.Context, rec DefacementRecord) error

	// ActiveAlert returns the non-terminal alert for (platformID, kind), if any.
	ActiveAlert(ctx context.Context, platformID int64, kind AlertKind) (Alert, bool, error)

	// ActiveAlertCreatedToday is like ActiveAlert but restricts to alerts
	// created on the current UTC calendar day, for ReportDaily semantics.
	ActiveAlertCreatedToday(ctx context.Context, platformID int64, kind AlertKind, now time.Time) (Alert, bool, error)

	// CreateAlert inserts a new alert in status "new".
	CreateAlert(ctx context.Context, a Alert) (Alert, error)

	// ResolveAlert transitions the most recent active alert for the key to
	// "resolved" and returns it. Returns (zero, false, nil) if none active.
	ResolveAlert(ctx context.Context, platformID int64, kind AlertKind, now time.Time) (Alert, bool, error)
}
