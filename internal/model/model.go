// Package model defines the data entities the monitoring core reads and
// writes: entities, platforms, domains, focal points, alerts, and
// defacement records. The core owns Domain scan state, DefacementRecord,
// Alert, and Platform.screenshot_path; everything else is read-only from
// the core's perspective and owned by the platform's own CRUD surface.
package model

import "time"

// AlertKind is a wire-stable string code identifying the category of a probe
// verdict change.
type AlertKind string

// Alert kinds. These string values are wire-stable and must not change,
// including the misspelled ones ("domain_unvailable", "ssl_expiredSoon")
// which existing consumers already depend on.
const (
	AlertKindSSL               AlertKind = "ssl"
	AlertKindSSLExpiringSoon   AlertKind = "ssl_expiredSoon"
	AlertKindDomainUnavailable AlertKind = "domain_unvailable"
	AlertKindDomainExpiring    AlertKind = "domain_expiredSoon"
	AlertKindDefacement        AlertKind = "defacement"
	AlertKindAvailability      AlertKind = "availability"
	AlertKindVT                AlertKind = "vt"
	AlertKindOther             AlertKind = "other"
)

// AlertStatus is the lifecycle state of an Alert.
type AlertStatus string

// Alert statuses.
const (
	AlertStatusNew          AlertStatus = "new"
	AlertStatusInProgress   AlertStatus = "in_progress"
	AlertStatusResolved     AlertStatus = "resolved"
	AlertStatusFalsePositive AlertStatus = "false_positive"
)

// IsActive reports whether the status is a non-terminal lifecycle state.
func (s AlertStatus) IsActive() bool {
	return s == AlertStatusNew || s == AlertStatusInProgress
}

// Entity is a named organization owning one or more platforms. Owned by the
// CRUD surface; the core reads it only.
type Entity struct {
	ID          int64
	Name        string
	Description string
	FocalPoints []int64 // FocalPoint IDs
}

// Domain is a DNS name shared by zero or more platforms. The core mutates
// scan timestamps and issue flags; everything else is read-only.
type Domain struct {
	LastScanAt    time.Time
	LastSSLScanAt time.Time
	Name          string
	ResolvedIP    string
	ID            int64
	SSLIssue      bool
	DomainIssue   bool
}

// Platform is a single monitored URL belonging to a Domain and owned by an
// Entity. The core may update ScreenshotPath only.
type Platform struct {
	ID             int64
	URL            string
	EntityID       int64
	DomainID       int64
	IsActive       bool
	ScreenshotPath string
}

// FocalPoint is a named human contact who receives alerts for an Entity.
// Core reads only.
type FocalPoint struct {
	ID       int64
	FullName string
	Email    string
	Phones   []string
	Function string
	IsActive bool
}

// Alert records a probe verdict change for a (Platform, Kind) pair. For a
// given (PlatformID, Kind), at most one Alert may be in a non-terminal
// status at any time — enforced by the alert state machine, see
// internal/alertstate.
type Alert struct {
	CreatedAt time.Time
	UpdatedAt time.Time
	Details   string
	Template  string
	Kind      AlertKind
	Status    AlertStatus
	ID        int64
	EntityID  int64
	PlatformID int64
}

// DefacementRecord is the 1:1 defacement baseline/state for a Platform.
// Created on first successful capture; BaselineCapture only advances on
// explicit operator reset or first creation.
type DefacementRecord struct {
	UpdatedAt       time.Time
	BaselineCapture []byte // serialized capture (JSON)
	LastCapture     []byte
	BaselineTreeText string
	LastTreeText    string
	Details         string
	ID              int64
	PlatformID      int64
	IsDefaced       bool
}

// PlatformContext bundles a Platform with its preloaded Domain and Entity,
// as the orchestrator loads them at the start of each run.
type PlatformContext struct {
	Platform Platform
	Domain   Domain
	Entity   Entity
}
