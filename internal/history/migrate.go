package history

import "database/sql"

const schema = `
CREATE TABLE IF NOT EXISTS configuration (
    id                           INTEGER PRIMARY KEY CHECK (id = 1),
    notification_email           TEXT NOT NULL DEFAULT '',
    user_agent                   TEXT NOT NULL DEFAULT '',
    proxies                      TEXT NOT NULL DEFAULT '[]',
    dns_servers                  TEXT NOT NULL DEFAULT '[]',
    notify_enabled               BOOLEAN NOT NULL DEFAULT 1,
    use_proxy                    BOOLEAN NOT NULL DEFAULT 0,
    fallback_direct_on_proxy_fail BOOLEAN NOT NULL DEFAULT 1,
    scan_frequency_seconds       INTEGER NOT NULL DEFAULT 3600,
    max_workers                  INTEGER NOT NULL DEFAULT 5
);

CREATE TABLE IF NOT EXISTS scan_config (
    id                        INTEGER PRIMARY KEY CHECK (id = 1),
    vt_api_key                TEXT NOT NULL DEFAULT '',
    defacement_whitelist      TEXT NOT NULL DEFAULT '[]',
    ssl_enabled               BOOLEAN NOT NULL DEFAULT 1,
    domain_enabled            BOOLEAN NOT NULL DEFAULT 1,
    defacement_enabled        BOOLEAN NOT NULL DEFAULT 1,
    http_enabled              BOOLEAN NOT NULL DEFAULT 1,
    ssl_check_error           BOOLEAN NOT NULL DEFAULT 1,
    ssl_check_expiry          BOOLEAN NOT NULL DEFAULT 1,
    domain_check_whois        BOOLEAN NOT NULL DEFAULT 1,
    domain_check_dns          BOOLEAN NOT NULL DEFAULT 1,
    domain_check_expiry       BOOLEAN NOT NULL DEFAULT 1,
    defacement_size_tolerance INTEGER NOT NULL DEFAULT 100,
    http_max_response_ms      INTEGER NOT NULL DEFAULT 5000,
    vt_enabled                BOOLEAN NOT NULL DEFAULT 0,
    vt_frequency_seconds      INTEGER NOT NULL DEFAULT 86400
);

CREATE TABLE IF NOT EXISTS entities (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    name        TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS focal_points (
    id        INTEGER PRIMARY KEY AUTOINCREMENT,
    entity_id INTEGER NOT NULL REFERENCES entities(id),
    full_name TEXT NOT NULL DEFAULT '',
    email     TEXT NOT NULL DEFAULT '',
    phones    TEXT NOT NULL DEFAULT '[]',
    function  TEXT NOT NULL DEFAULT '',
    is_active BOOLEAN NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS domains (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    name             TEXT NOT NULL UNIQUE,
    resolved_ip      TEXT NOT NULL DEFAULT '',
    ssl_issue        BOOLEAN NOT NULL DEFAULT 0,
    domain_issue     BOOLEAN NOT NULL DEFAULT 0,
    last_scan_at     DATETIME,
    last_ssl_scan_at DATETIME
);

CREATE TABLE IF NOT EXISTS platforms (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    url             TEXT NOT NULL,
    entity_id       INTEGER NOT NULL REFERENCES entities(id),
    domain_id       INTEGER NOT NULL REFERENCES domains(id),
    is_active       BOOLEAN NOT NULL DEFAULT 1,
    screenshot_path TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_platforms_active ON platforms(is_active);

CREATE TABLE IF NOT EXISTS defacement_records (
    id                 INTEGER PRIMARY KEY AUTOINCREMENT,
    platform_id        INTEGER NOT NULL UNIQUE REFERENCES platforms(id),
    baseline_capture   BLOB,
    last_capture       BLOB,
    baseline_tree_text TEXT NOT NULL DEFAULT '',
    last_tree_text     TEXT NOT NULL DEFAULT '',
    is_defaced         BOOLEAN NOT NULL DEFAULT 0,
    details            TEXT NOT NULL DEFAULT '',
    updated_at         DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS alerts (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    platform_id INTEGER NOT NULL REFERENCES platforms(id),
    entity_id   INTEGER NOT NULL REFERENCES entities(id),
    kind        TEXT NOT NULL,
    status      TEXT NOT NULL,
    details     TEXT NOT NULL DEFAULT '',
    template    TEXT NOT NULL DEFAULT '',
    created_at  DATETIME NOT NULL,
    updated_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_alerts_active_key ON alerts(platform_id, kind, status);
CREATE INDEX IF NOT EXISTS idx_alerts_created ON alerts(created_at);
`

func migrate(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
