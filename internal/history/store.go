// Package history provides a SQLite-backed model.Repository, the Go
// analog of the CRUD surface the monitoring core treats as an external
// concern: entities, platforms, domains, focal points, alerts, and
// defacement records, plus the Configuration/ScanConfig rows a
// standalone deployment needs somewhere to live.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // CGO-free SQLite driver

	"github.com/webwatch/monitor/internal/model"
)

// Store persists monitoring state to SQLite and implements model.Repository.
type Store struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at path and runs migrations.
// Use ":memory:" for an in-memory database, useful for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func marshalStrings(ss []string) string {
	if ss == nil {
		ss = []string{}
	}
	b, _ := json.Marshal(ss)
	return string(b)
}

func unmarshalStrings(raw string) []string {
	var ss []string
	if raw == "" {
		return nil
	}
	_ = json.Unmarshal([]byte(raw), &ss)
	return ss
}

// LoadConfiguration reads the singleton configuration row, seeding it with
// defaults on first use.
func (s *Store) LoadConfiguration(ctx context.Context) (model.Configuration, error) {
	row := s.db.QueryRowContext(ctx, `SELECT notification_email, user_agent, proxies, dns_servers,
		notify_enabled, use_proxy, fallback_direct_on_proxy_fail, scan_frequency_seconds, max_workers
		FROM configuration WHERE id = 1`)

	var c model.Configuration
	var proxies, dnsServers string
	err := row.Scan(&c.NotificationEmail, &c.UserAgent, &proxies, &dnsServers,
		&c.NotifyEnabled, &c.UseProxy, &c.FallbackDirectOnProxyFail, &c.ScanFrequencySeconds, &c.MaxWorkers)
	if err == sql.ErrNoRows {
		c = model.DefaultConfiguration()
		if err := s.SaveConfiguration(ctx, c); err != nil {
			return model.Configuration{}, err
		}
		return c, nil
	}
	if err != nil {
		return model.Configuration{}, fmt.Errorf("loading configuration: %w", err)
	}
	c.Proxies = unmarshalStrings(proxies)
	c.DNSServers = unmarshalStrings(dnsServers)
	return c, nil
}

// SaveConfiguration upserts the singleton configuration row.
func (s *Store) SaveConfiguration(ctx context.Context, c model.Configuration) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO configuration
		(id, notification_email, user_agent, proxies, dns_servers, notify_enabled, use_proxy,
		 fallback_direct_on_proxy_fail, scan_frequency_seconds, max_workers)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			notification_email=excluded.notification_email, user_agent=excluded.user_agent,
			proxies=excluded.proxies, dns_servers=excluded.dns_servers,
			notify_enabled=excluded.notify_enabled, use_proxy=excluded.use_proxy,
			fallback_direct_on_proxy_fail=excluded.fallback_direct_on_proxy_fail,
			scan_frequency_seconds=excluded.scan_frequency_seconds, max_workers=excluded.max_workers`,
		c.NotificationEmail, c.UserAgent, marshalStrings(c.Proxies), marshalStrings(c.DNSServers),
		c.NotifyEnabled, c.UseProxy, c.FallbackDirectOnProxyFail, c.ScanFrequencySeconds, c.MaxWorkers)
	if err != nil {
		return fmt.Errorf("saving configuration: %w", err)
	}
	return nil
}

// LoadScanConfig reads the singleton scan-config row, seeding defaults on
// first use.
func (s *Store) LoadScanConfig(ctx context.Context) (model.ScanConfig, error) {
	row := s.db.QueryRowContext(ctx, `SELECT vt_api_key, defacement_whitelist, ssl_enabled, domain_enabled,
		defacement_enabled, http_enabled, ssl_check_error, ssl_check_expiry, domain_check_whois,
		domain_check_dns, domain_check_expiry, defacement_size_tolerance, http_max_response_ms,
		vt_enabled, vt_frequency_seconds FROM scan_config WHERE id = 1`)

	var sc model.ScanConfig
	var whitelist string
	err := row.Scan(&sc.VTAPIKey, &whitelist, &sc.SSLEnabled, &sc.DomainEnabled, &sc.DefacementEnabled,
		&sc.HTTPEnabled, &sc.SSLCheckError, &sc.SSLCheckExpiry, &sc.DomainCheckWhois, &sc.DomainCheckDNS,
		&sc.DomainCheckExpiry, &sc.DefacementSizeTolerance, &sc.HTTPMaxResponseMS, &sc.VTEnabled, &sc.VTFrequencySeconds)
	if err == sql.ErrNoRows {
		sc = model.DefaultScanConfig()
		if err := s.SaveScanConfig(ctx, sc); err != nil {
			return model.ScanConfig{}, err
		}
		return sc, nil
	}
	if err != nil {
		return model.ScanConfig{}, fmt.Errorf("loading scan config: %w", err)
	}
	sc.DefacementWhitelist = toSet(unmarshalStrings(whitelist))
	return sc, nil
}

func toSet(ss []string) map[string]struct{} {
	if len(ss) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(ss))
	for _, s := range ss {
		out[s] = struct{}{}
	}
	return out
}

func fromSet(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// SaveScanConfig upserts the singleton scan-config row.
func (s *Store) SaveScanConfig(ctx context.Context, sc model.ScanConfig) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO scan_config
		(id, vt_api_key, defacement_whitelist, ssl_enabled, domain_enabled, defacement_enabled, http_enabled,
		 ssl_check_error, ssl_check_expiry, domain_check_whois, domain_check_dns, domain_check_expiry,
		 defacement_size_tolerance, http_max_response_ms, vt_enabled, vt_frequency_seconds)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			vt_api_key=excluded.vt_api_key, defacement_whitelist=excluded.defacement_whitelist,
			ssl_enabled=excluded.ssl_enabled, domain_enabled=excluded.domain_enabled,
			defacement_enabled=excluded.defacement_enabled, http_enabled=excluded.http_enabled,
			ssl_check_error=excluded.ssl_check_error, ssl_check_expiry=excluded.ssl_check_expiry,
			domain_check_whois=excluded.domain_check_whois, domain_check_dns=excluded.domain_check_dns,
			domain_check_expiry=excluded.domain_check_expiry,
			defacement_size_tolerance=excluded.defacement_size_tolerance,
			http_max_response_ms=excluded.http_max_response_ms, vt_enabled=excluded.vt_enabled,
			vt_frequency_seconds=excluded.vt_frequency_seconds`,
		sc.VTAPIKey, marshalStrings(fromSet(sc.DefacementWhitelist)), sc.SSLEnabled, sc.DomainEnabled,
		sc.DefacementEnabled, sc.HTTPEnabled, sc.SSLCheckError, sc.SSLCheckExpiry, sc.DomainCheckWhois,
		sc.DomainCheckDNS, sc.DomainCheckExpiry, sc.DefacementSizeTolerance, sc.HTTPMaxResponseMS,
		sc.VTEnabled, sc.VTFrequencySeconds)
	if err != nil {
		return fmt.Errorf("saving scan config: %w", err)
	}
	return nil
}

// ActivePlatforms returns every active platform with its Domain and Entity
// preloaded via a three-way join.
func (s *Store) ActivePlatforms(ctx context.Context) ([]model.PlatformContext, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT
		p.id, p.url, p.entity_id, p.domain_id, p.is_active, p.screenshot_path,
		d.id, d.name, d.resolved_ip, d.ssl_issue, d.domain_issue, d.last_scan_at, d.last_ssl_scan_at,
		e.id, e.name, e.description
		FROM platforms p
		JOIN domains d ON d.id = p.domain_id
		JOIN entities e ON e.id = p.entity_id
		WHERE p.is_active = 1`)
	if err != nil {
		return nil, fmt.Errorf("querying active platforms: %w", err)
	}
	defer rows.Close()

	var out []model.PlatformContext
	for rows.Next() {
		var pc model.PlatformContext
		var lastScan, lastSSLScan sql.NullTime
		if err := rows.Scan(
			&pc.Platform.ID, &pc.Platform.URL, &pc.Platform.EntityID, &pc.Platform.DomainID,
			&pc.Platform.IsActive, &pc.Platform.ScreenshotPath,
			&pc.Domain.ID, &pc.Domain.Name, &pc.Domain.ResolvedIP, &pc.Domain.SSLIssue, &pc.Domain.DomainIssue,
			&lastScan, &lastSSLScan,
			&pc.Entity.ID, &pc.Entity.Name, &pc.Entity.Description,
		); err != nil {
			return nil, fmt.Errorf("scanning platform context: %w", err)
		}
		if lastScan.Valid {
			pc.Domain.LastScanAt = lastScan.Time
		}
		if lastSSLScan.Valid {
			pc.Domain.LastSSLScanAt = lastSSLScan.Time
		}
		out = append(out, pc)
	}
	return out, rows.Err()
}

// FocalPointsForEntity returns the active focal points for an entity.
func (s *Store) FocalPointsForEntity(ctx context.Context, entityID int64) ([]model.FocalPoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, full_name, email, phones, function, is_active FROM focal_points WHERE entity_id = ? AND is_active = 1`, entityID)
	if err != nil {
		return nil, fmt.Errorf("querying focal points: %w", err)
	}
	defer rows.Close()

	var out []model.FocalPoint
	for rows.Next() {
		var fp model.FocalPoint
		var phones string
		if err := rows.Scan(&fp.ID, &fp.FullName, &fp.Email, &phones, &fp.Function, &fp.IsActive); err != nil {
			return nil, fmt.Errorf("scanning focal point: %w", err)
		}
		fp.Phones = unmarshalStrings(phones)
		out = append(out, fp)
	}
	return out, rows.Err()
}

// UpdateDomainScanState persists Domain scan timestamps and issue flags.
func (s *Store) UpdateDomainScanState(ctx context.Context, d model.Domain) error {
	_, err := s.db.ExecContext(ctx, `UPDATE domains SET resolved_ip = ?, ssl_issue = ?, domain_issue = ?,
		last_scan_at = ?, last_ssl_scan_at = ? WHERE id = ?`,
		d.ResolvedIP, d.SSLIssue, d.DomainIssue, d.LastScanAt, d.LastSSLScanAt, d.ID)
	if err != nil {
		return fmt.Errorf("updating domain scan state: %w", err)
	}
	return nil
}

// UpdatePlatformScreenshot persists Platform.ScreenshotPath.
func (s *Store) UpdatePlatformScreenshot(ctx context.Context, platformID int64, path string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE platforms SET screenshot_path = ? WHERE id = ?`, path, platformID)
	if err != nil {
		return fmt.Errorf("updating platform screenshot: %w", err)
	}
	return nil
}

// DefacementRecordFor returns the 1:1 defacement record for a platform.
func (s *Store) DefacementRecordFor(ctx context.Context, platformID int64) (model.DefacementRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, platform_id, baseline_capture, last_capture,
		baseline_tree_text, last_tree_text, is_defaced, details, updated_at
		FROM defacement_records WHERE platform_id = ?`, platformID)

	var rec model.DefacementRecord
	err := row.Scan(&rec.ID, &rec.PlatformID, &rec.BaselineCapture, &rec.LastCapture,
		&rec.BaselineTreeText, &rec.LastTreeText, &rec.IsDefaced, &rec.Details, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return model.DefacementRecord{}, false, nil
	}
	if err != nil {
		return model.DefacementRecord{}, false, fmt.Errorf("loading defacement record: %w", err)
	}
	return rec, true, nil
}

// SaveDefacementRecord creates or updates the 1:1 record for its platform.
func (s *Store) SaveDefacementRecord(ctx context.Context, rec model.DefacementRecord) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO defacement_records
		(platform_id, baseline_capture, last_capture, baseline_tree_text, last_tree_text, is_defaced, details, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(platform_id) DO UPDATE SET
			baseline_capture=excluded.baseline_capture, last_capture=excluded.last_capture,
			baseline_tree_text=excluded.baseline_tree_text, last_tree_text=excluded.last_tree_text,
			is_defaced=excluded.is_defaced, details=excluded.details, updated_at=excluded.updated_at`,
		rec.PlatformID, rec.BaselineCapture, rec.LastCapture, rec.BaselineTreeText, rec.LastTreeText,
		rec.IsDefaced, rec.Details, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving defacement record: %w", err)
	}
	return nil
}

// ActiveAlert returns the non-terminal alert for (platformID, kind), if any.
func (s *Store) ActiveAlert(ctx context.Context, platformID int64, kind model.AlertKind) (model.Alert, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, platform_id, entity_id, kind, status, details, template,
		created_at, updated_at FROM alerts WHERE platform_id = ? AND kind = ? AND status IN (?, ?)
		ORDER BY created_at DESC LIMIT 1`,
		platformID, string(kind), string(model.AlertStatusNew), string(model.AlertStatusInProgress))
	return scanAlert(row)
}

// ActiveAlertCreatedToday is like ActiveAlert but restricted to the current
// UTC calendar day, for ReportDaily's threshold-alert dedup.
func (s *Store) ActiveAlertCreatedToday(ctx context.Context, platformID int64, kind model.AlertKind, now time.Time) (model.Alert, bool, error) {
	dayStart := now.UTC().Truncate(24 * time.Hour)
	dayEnd := dayStart.Add(24 * time.Hour)
	row := s.db.QueryRowContext(ctx, `SELECT id, platform_id, entity_id, kind, status, details, template,
		created_at, updated_at FROM alerts WHERE platform_id = ? AND kind = ? AND status IN (?, ?)
		AND created_at >= ? AND created_at < ? ORDER BY created_at DESC LIMIT 1`,
		platformID, string(kind), string(model.AlertStatusNew), string(model.AlertStatusInProgress), dayStart, dayEnd)
	return scanAlert(row)
}

func scanAlert(row *sql.Row) (model.Alert, bool, error) {
	var a model.Alert
	var kind, status string
	err := row.Scan(&a.ID, &a.PlatformID, &a.EntityID, &kind, &status, &a.Details, &a.Template, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return model.Alert{}, false, nil
	}
	if err != nil {
		return model.Alert{}, false, fmt.Errorf("loading alert: %w", err)
	}
	a.Kind = model.AlertKind(kind)
	a.Status = model.AlertStatus(status)
	return a, true, nil
}

// AlertView is an active alert joined with the platform/entity names the
// CLI and reporting surfaces need to display, beyond what model.Alert
// itself carries.
type AlertView struct {
	model.Alert
	PlatformURL string
	EntityName  string
}

// ActiveAlertsView returns every non-terminal alert joined with its
// platform URL and entity name, most recently created first. Used by the
// CLI's live view and exit-code gate, and by CSV/HTML reporting — none of
// which are on the probe-facing model.Repository seam.
func (s *Store) ActiveAlertsView(ctx context.Context) ([]AlertView, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT
		a.id, a.platform_id, a.entity_id, a.kind, a.status, a.details, a.template, a.created_at, a.updated_at,
		p.url, e.name
		FROM alerts a
		JOIN platforms p ON p.id = a.platform_id
		JOIN entities e ON e.id = a.entity_id
		WHERE a.status IN (?, ?)
		ORDER BY a.created_at DESC`,
		string(model.AlertStatusNew), string(model.AlertStatusInProgress))
	if err != nil {
		return nil, fmt.Errorf("querying active alerts: %w", err)
	}
	defer rows.Close()

	var out []AlertView
	for rows.Next() {
		var v AlertView
		var kind, status string
		if err := rows.Scan(&v.ID, &v.PlatformID, &v.EntityID, &kind, &status, &v.Details, &v.Template,
			&v.CreatedAt, &v.UpdatedAt, &v.PlatformURL, &v.EntityName); err != nil {
			return nil, fmt.Errorf("scanning active alert: %w", err)
		}
		v.Kind = model.AlertKind(kind)
		v.Status = model.AlertStatus(status)
		out = append(out, v)
	}
	return out, rows.Err()
}

// AlertHistory returns every alert (any status) created within [from, to),
// for CSV export.
func (s *Store) AlertHistory(ctx context.Context, from, to time.Time) ([]AlertView, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT
		a.id, a.platform_id, a.entity_id, a.kind, a.status, a.details, a.template, a.created_at, a.updated_at,
		p.url, e.name
		FROM alerts a
		JOIN platforms p ON p.id = a.platform_id
		JOIN entities e ON e.id = a.entity_id
		WHERE a.created_at >= ? AND a.created_at < ?
		ORDER BY a.created_at DESC`, from, to)
	if err != nil {
		return nil, fmt.Errorf("querying alert history: %w", err)
	}
	defer rows.Close()

	var out []AlertView
	for rows.Next() {
		var v AlertView
		var kind, status string
		if err := rows.Scan(&v.ID, &v.PlatformID, &v.EntityID, &kind, &status, &v.Details, &v.Template,
			&v.CreatedAt, &v.UpdatedAt, &v.PlatformURL, &v.EntityName); err != nil {
			return nil, fmt.Errorf("scanning alert history row: %w", err)
		}
		v.Kind = model.AlertKind(kind)
		v.Status = model.AlertStatus(status)
		out = append(out, v)
	}
	return out, rows.Err()
}

// CreateAlert inserts a new alert in status "new".
func (s *Store) CreateAlert(ctx context.Context, a model.Alert) (model.Alert, error) {
	result, err := s.db.ExecContext(ctx, `INSERT INTO alerts
		(platform_id, entity_id, kind, status, details, template, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.PlatformID, a.EntityID, string(a.Kind), string(a.Status), a.Details, a.Template, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return model.Alert{}, fmt.Errorf("creating alert: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return model.Alert{}, fmt.Errorf("reading new alert id: %w", err)
	}
	a.ID = id
	return a, nil
}

// ResolveAlert transitions the most recent active alert for the key to
// resolved and returns it.
func (s *Store) ResolveAlert(ctx context.Context, platformID int64, kind model.AlertKind, now time.Time) (model.Alert, bool, error) {
	active, ok, err := s.ActiveAlert(ctx, platformID, kind)
	if err != nil || !ok {
		return model.Alert{}, ok, err
	}
	_, err = s.db.ExecContext(ctx, `UPDATE alerts SET status = ?, updated_at = ? WHERE id = ?`,
		string(model.AlertStatusResolved), now, active.ID)
	if err != nil {
		return model.Alert{}, false, fmt.Errorf("resolving alert: %w", err)
	}
	active.Status = model.AlertStatusResolved
	active.UpdatedAt = now
	return active, true, nil
}
