package model

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryRepository is an in-memory Repository used by the orchestrator and
// scheduler tests. The CLI commands use the SQLite-backed history.Store.
type MemoryRepository struct {
	mu sync.Mutex

	cfg    Configuration
	scan   ScanConfig
	platforms map[int64]PlatformContext
	focal     map[int64][]FocalPoint
	defacement map[int64]DefacementRecord
	alerts     map[alertKey][]Alert // history, newest last
	nextAlertID int64
}

type alertKey struct {
	platformID int64
	kind       AlertKind
}

// NewMemoryRepository creates an empty in-memory repository seeded with
// default configuration.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		cfg:        DefaultConfiguration(),
		scan:       DefaultScanConfig(),
		platforms:  make(map[int64]PlatformContext),
		focal:      make(map[int64][]FocalPoint),
		defacement: make(map[int64]DefacementRecord),
		alerts:     make(map[alertKey][]Alert),
	}
}

// SetConfiguration replaces the stored Configuration.
func (m *MemoryRepository) SetConfiguration(c Configuration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = c
}

// SetScanConfig replaces the stored ScanConfig.
func (m *MemoryRepository) SetScanConfig(c ScanConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scan = c
}

// AddPlatform registers a platform (with its domain/entity) for scanning.
func (m *MemoryRepository) AddPlatform(pc PlatformContext) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.platforms[pc.Platform.ID] = pc
}

// SetFocalPoints sets the focal-point roster for an entity.
func (m *MemoryRepository) SetFocalPoints(entityID int64, fps []FocalPoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.focal[entityID] = fps
}

func (m *MemoryRepository) LoadConfiguration(_ context.Context) (Configuration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg, nil
}

func (m *MemoryRepository) LoadScanConfig(_ context.Context) (ScanConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scan, nil
}

func (m *MemoryRepository) ActivePlatforms(_ context.Context) ([]PlatformContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PlatformContext, 0, len(m.platforms))
	for _, pc := range m.platforms {
		if pc.Platform.IsActive {
			out = append(out, pc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Platform.ID < out[j].Platform.ID })
	return out, nil
}

func (m *MemoryRepository) FocalPointsForEntity(_ context.Context, entityID int64) ([]FocalPoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var active []FocalPoint
	for _, fp := range m.focal[entityID] {
		if fp.IsActive {
			active = append(active, fp)
		}
	}
	return active, nil
}

func (m *MemoryRepository) UpdateDomainScanState(_ context.Context, d Domain) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, pc := range m.platforms {
		if pc.Domain.ID == d.ID {
			pc.Domain = d
			m.platforms[id] = pc
		}
	}
	return nil
}

func (m *MemoryRepository) UpdatePlatformScreenshot(_ context.Context, platformID int64, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pc, ok := m.platforms[platformID]
	if !ok {
		return fmt.Errorf("model: unknown platform %d", platformID)
	}
	pc.Platform.ScreenshotPath = path
	m.platforms[platformID] = pc
	return nil
}

func (m *MemoryRepository) DefacementRecordFor(_ context.Context, platformID int64) (DefacementRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.defacement[platformID]
	return rec, ok, nil
}

func (m *MemoryRepository) SaveDefacementRecord(_ context.Context, rec DefacementRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.ID == 0 {
		rec.ID = int64(len(m.defacement) + 1)
	}
	m.defacement[rec.PlatformID] = rec
	return nil
}

func (m *MemoryRepository) ActiveAlert(_ context.Context, platformID int64, kind AlertKind) (Alert, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return latestActive(m.alerts[alertKey{platformID, kind}], nil)
}

func (m *MemoryRepository) ActiveAlertCreatedToday(_ context.Context, platformID int64, kind AlertKind, now time.Time) (Alert, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return latestActive(m.alerts[alertKey{platformID, kind}], &now)
}

func latestActive(history []Alert, today *time.Time) (Alert, bool, error) {
	for i := len(history) - 1; i >= 0; i-- {
		a := history[i]
		if !a.Status.IsActive() {
			continue
		}
		if today != nil && !sameUTCDay(a.CreatedAt, *today) {
			continue
		}
		return a, true, nil
	}
	return Alert{}, false, nil
}

func sameUTCDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

func (m *MemoryRepository) CreateAlert(_ context.Context, a Alert) (Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextAlertID++
	a.ID = m.nextAlertID
	a.Status = AlertStatusNew
	key := alertKey{a.PlatformID, a.Kind}
	m.alerts[key] = append(m.alerts[key], a)
	return a, nil
}

func (m *MemoryRepository) ResolveAlert(_ context.Context, platformID int64, kind AlertKind, now time.Time) (Alert, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := alertKey{platformID, kind}
	history := m.alerts[key]
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Status.IsActive() {
			history[i].Status = AlertStatusResolved
			history[i].UpdatedAt = now
			m.alerts[key] = history
			return history[i], true, nil
		}
	}
	return Alert{}, false, nil
}

// AllAlerts returns every alert across every key, for reporting/CLI use.
func (m *MemoryRepository) AllAlerts() []Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Alert
	for _, history := range m.alerts {
		out = append(out, history...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
