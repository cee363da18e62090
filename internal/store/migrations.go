package store

import "database/sql"

var migrations = []func(tx *sql.Tx) error{
	migrateV1,
	migrateV2,
	migrateV3,
	migrateV4,
	migrateV5,
}

// Timestamps are stored as unix milliseconds so that ordering and range
// comparisons never depend on driver time formatting.
func migrateV1(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS entities (
			id              TEXT PRIMARY KEY,
			name            TEXT NOT NULL,
			address         TEXT NOT NULL,
			monitor_type    TEXT NOT NULL CHECK (monitor_type IN ('server', 'website')),
			config          TEXT NOT NULL DEFAULT '{}',
			created_at      INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entities_address ON entities(address)`,
		`CREATE TABLE IF NOT EXISTS samples (
			id                 INTEGER PRIMARY KEY AUTOINCREMENT,
			entity_id          TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
			recorded_at        INTEGER NOT NULL,
			cpu_usage_pct      REAL NOT NULL DEFAULT 0,
			memory_usage_pct   REAL NOT NULL DEFAULT 0,
			disk_usage_pct     REAL NOT NULL DEFAULT 0,
			network_in_bps     REAL NOT NULL DEFAULT 0,
			network_out_bps    REAL NOT NULL DEFAULT 0,
			memory_total_bytes INTEGER NOT NULL DEFAULT 0,
			memory_used_bytes  INTEGER NOT NULL DEFAULT 0,
			disk_total_bytes   INTEGER NOT NULL DEFAULT 0,
			disk_used_bytes    INTEGER NOT NULL DEFAULT 0,
			response_time_ms   INTEGER,
			reachable          BOOLEAN
		)`,
		`CREATE INDEX IF NOT EXISTS idx_samples_entity_time ON samples(entity_id, recorded_at, id)`,
		`CREATE TABLE IF NOT EXISTS status_records (
			entity_id       TEXT PRIMARY KEY REFERENCES entities(id) ON DELETE CASCADE,
			status          TEXT NOT NULL CHECK (status IN ('online', 'offline')),
			last_checked    INTEGER NOT NULL,
			last_transition INTEGER,
			uptime_seconds  INTEGER NOT NULL DEFAULT 0,
			last_downtime   INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS alerts (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			entity_id       TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
			type            TEXT NOT NULL,
			severity        TEXT NOT NULL CHECK (severity IN ('low', 'medium', 'high', 'critical')),
			message         TEXT NOT NULL,
			status          TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'resolved')),
			created_at      INTEGER NOT NULL,
			resolved_at     INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_active ON alerts(entity_id, type, created_at) WHERE status = 'active'`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func migrateV2(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS probe_results (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			entity_id        TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
			checked_at       INTEGER NOT NULL,
			reachable        BOOLEAN NOT NULL,
			response_time_ms INTEGER NOT NULL DEFAULT 0,
			status_code      INTEGER NOT NULL DEFAULT 0,
			error_message    TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_probe_results_entity_time ON probe_results(entity_id, checked_at)`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func migrateV3(tx *sql.Tx) error {
	stmts := []string{
		`ALTER TABLE alerts ADD COLUMN notified BOOLEAN NOT NULL DEFAULT 0`,
		`ALTER TABLE alerts ADD COLUMN notified_at INTEGER`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_unnotified ON alerts(notified) WHERE notified = 0`,
		`CREATE TABLE IF NOT EXISTS alert_providers (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			type            TEXT NOT NULL,
			name            TEXT NOT NULL UNIQUE,
			enabled         BOOLEAN NOT NULL DEFAULT 1,
			config          TEXT NOT NULL DEFAULT '{}',
			created_at      INTEGER NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// migrateV4 tracks delivery per provider so a failing provider never
// causes a healthy one to be sent the same alert twice.
func migrateV4(tx *sql.Tx) error {
	stmts := []string{
		`ALTER TABLE alerts ADD COLUMN notify_attempts INTEGER NOT NULL DEFAULT 0`,
		`ALTER TABLE alerts ADD COLUMN next_attempt_at INTEGER NOT NULL DEFAULT 0`,
		`CREATE TABLE IF NOT EXISTS alert_deliveries (
			alert_id        INTEGER NOT NULL REFERENCES alerts(id) ON DELETE CASCADE,
			provider_id     INTEGER NOT NULL REFERENCES alert_providers(id) ON DELETE CASCADE,
			delivered_at    INTEGER NOT NULL,
			PRIMARY KEY (alert_id, provider_id)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func migrateV5(tx *sql.Tx) error {
	_, err := tx.Exec(`CREATE TABLE IF NOT EXISTS process_lists (
		entity_id       TEXT PRIMARY KEY REFERENCES entities(id) ON DELETE CASCADE,
		captured_at     INTEGER NOT NULL,
		processes       TEXT NOT NULL DEFAULT '[]'
	)`)
	return err
}
