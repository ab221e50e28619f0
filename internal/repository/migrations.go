package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"sphincs.io/sphincs/internal/pkg/logger"
)

// migration is one schema step. Each dialect carries its own statements;
// they are executed one by one inside a transaction.
type migration struct {
	version  int
	name     string
	sqlite   []string
	postgres []string
}

// migrations is the ordered list of schema migrations.
// Versions must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		name:    "alerts and notification preferences",
		sqlite: []string{
			`CREATE TABLE IF NOT EXISTS alerts (
				id               INTEGER PRIMARY KEY AUTOINCREMENT,
				module           TEXT NOT NULL,
				title            TEXT NOT NULL,
				message          TEXT NOT NULL DEFAULT '',
				severity         TEXT NOT NULL DEFAULT 'info',
				source_type      TEXT,
				source_id        INTEGER,
				payload          TEXT,
				triggered_at     DATETIME NOT NULL,
				is_read          INTEGER NOT NULL DEFAULT 0,
				read_at          DATETIME,
				notified_user_id INTEGER
			)`,
			`CREATE INDEX IF NOT EXISTS idx_alerts_source ON alerts(source_type, source_id, is_read)`,
			`CREATE INDEX IF NOT EXISTS idx_alerts_unread ON alerts(is_read)`,
			`CREATE INDEX IF NOT EXISTS idx_alerts_triggered ON alerts(triggered_at)`,
			`CREATE TABLE IF NOT EXISTS notification_preferences (
				user_id            INTEGER NOT NULL,
				module             TEXT NOT NULL,
				is_enabled         INTEGER NOT NULL DEFAULT 1,
				severity_threshold TEXT NOT NULL DEFAULT 'info',
				desktop_enabled    INTEGER NOT NULL DEFAULT 1,
				mobile_enabled     INTEGER NOT NULL DEFAULT 1,
				snoozed_until      DATETIME,
				updated_at         DATETIME NOT NULL,
				PRIMARY KEY (user_id, module)
			)`,
		},
		postgres: []string{
			`CREATE TABLE IF NOT EXISTS alerts (
				id               BIGSERIAL PRIMARY KEY,
				module           TEXT NOT NULL,
				title            TEXT NOT NULL,
				message          TEXT NOT NULL DEFAULT '',
				severity         TEXT NOT NULL DEFAULT 'info',
				source_type      TEXT,
				source_id        BIGINT,
				payload          TEXT,
				triggered_at     TIMESTAMPTZ NOT NULL,
				is_read          BOOLEAN NOT NULL DEFAULT FALSE,
				read_at          TIMESTAMPTZ,
				notified_user_id BIGINT
			)`,
			`CREATE INDEX IF NOT EXISTS idx_alerts_source ON alerts(source_type, source_id, is_read)`,
			`CREATE INDEX IF NOT EXISTS idx_alerts_unread ON alerts(is_read)`,
			`CREATE INDEX IF NOT EXISTS idx_alerts_triggered ON alerts(triggered_at)`,
			`CREATE TABLE IF NOT EXISTS notification_preferences (
				user_id            BIGINT NOT NULL,
				module             TEXT NOT NULL,
				is_enabled         BOOLEAN NOT NULL DEFAULT TRUE,
				severity_threshold TEXT NOT NULL DEFAULT 'info',
				desktop_enabled    BOOLEAN NOT NULL DEFAULT TRUE,
				mobile_enabled     BOOLEAN NOT NULL DEFAULT TRUE,
				snoozed_until      TIMESTAMPTZ,
				updated_at         TIMESTAMPTZ NOT NULL,
				PRIMARY KEY (user_id, module)
			)`,
		},
	},
	{
		version: 2,
		name:    "scanned business records",
		sqlite: []string{
			`CREATE TABLE IF NOT EXISTS inventory_items (
				id            INTEGER PRIMARY KEY AUTOINCREMENT,
				name          TEXT NOT NULL,
				quantity      REAL NOT NULL DEFAULT 0,
				reorder_level REAL NOT NULL DEFAULT 0,
				unit          TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE TABLE IF NOT EXISTS ingredient_batches (
				id                INTEGER PRIMARY KEY AUTOINCREMENT,
				item_name         TEXT NOT NULL,
				quantity          REAL NOT NULL DEFAULT 0,
				expiry_date       DATETIME NOT NULL,
				alert_days_before INTEGER NOT NULL DEFAULT 3,
				is_expired        INTEGER NOT NULL DEFAULT 0
			)`,
			`CREATE TABLE IF NOT EXISTS maintenance_tasks (
				id            INTEGER PRIMARY KEY AUTOINCREMENT,
				title         TEXT NOT NULL,
				equipment     TEXT NOT NULL DEFAULT '',
				status        TEXT NOT NULL DEFAULT 'open',
				scheduled_for DATETIME NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS quality_audits (
				id             INTEGER PRIMARY KEY AUTOINCREMENT,
				title          TEXT NOT NULL,
				status         TEXT NOT NULL DEFAULT 'open',
				follow_up_date DATETIME NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS safety_incidents (
				id          INTEGER PRIMARY KEY AUTOINCREMENT,
				title       TEXT NOT NULL,
				severity    TEXT NOT NULL DEFAULT 'minor',
				status      TEXT NOT NULL DEFAULT 'open',
				reported_at DATETIME NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS pos_orders (
				id           INTEGER PRIMARY KEY AUTOINCREMENT,
				order_number TEXT NOT NULL,
				total        REAL NOT NULL DEFAULT 0,
				status       TEXT NOT NULL DEFAULT 'pending',
				created_at   DATETIME NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_pos_orders_status ON pos_orders(status)`,
		},
		postgres: []string{
			`CREATE TABLE IF NOT EXISTS inventory_items (
				id            BIGSERIAL PRIMARY KEY,
				name          TEXT NOT NULL,
				quantity      DOUBLE PRECISION NOT NULL DEFAULT 0,
				reorder_level DOUBLE PRECISION NOT NULL DEFAULT 0,
				unit          TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE TABLE IF NOT EXISTS ingredient_batches (
				id                BIGSERIAL PRIMARY KEY,
				item_name         TEXT NOT NULL,
				quantity          DOUBLE PRECISION NOT NULL DEFAULT 0,
				expiry_date       TIMESTAMPTZ NOT NULL,
				alert_days_before INTEGER NOT NULL DEFAULT 3,
				is_expired        BOOLEAN NOT NULL DEFAULT FALSE
			)`,
			`CREATE TABLE IF NOT EXISTS maintenance_tasks (
				id            BIGSERIAL PRIMARY KEY,
				title         TEXT NOT NULL,
				equipment     TEXT NOT NULL DEFAULT '',
				status        TEXT NOT NULL DEFAULT 'open',
				scheduled_for TIMESTAMPTZ NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS quality_audits (
				id             BIGSERIAL PRIMARY KEY,
				title          TEXT NOT NULL,
				status         TEXT NOT NULL DEFAULT 'open',
				follow_up_date TIMESTAMPTZ NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS safety_incidents (
				id          BIGSERIAL PRIMARY KEY,
				title       TEXT NOT NULL,
				severity    TEXT NOT NULL DEFAULT 'minor',
				status      TEXT NOT NULL DEFAULT 'open',
				reported_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS pos_orders (
				id           BIGSERIAL PRIMARY KEY,
				order_number TEXT NOT NULL,
				total        DOUBLE PRECISION NOT NULL DEFAULT 0,
				status       TEXT NOT NULL DEFAULT 'pending',
				created_at   TIMESTAMPTZ NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_pos_orders_status ON pos_orders(status)`,
		},
	},
	{
		version: 3,
		name:    "audit log",
		sqlite: []string{
			`CREATE TABLE IF NOT EXISTS audit_logs (
				id            TEXT PRIMARY KEY,
				action        TEXT NOT NULL,
				resource_type TEXT NOT NULL,
				resource_id   TEXT NOT NULL DEFAULT '',
				actor         TEXT NOT NULL,
				details       TEXT,
				created_at    DATETIME NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_audit_logs_created ON audit_logs(created_at)`,
		},
		postgres: []string{
			`CREATE TABLE IF NOT EXISTS audit_logs (
				id            TEXT PRIMARY KEY,
				action        TEXT NOT NULL,
				resource_type TEXT NOT NULL,
				resource_id   TEXT NOT NULL DEFAULT '',
				actor         TEXT NOT NULL,
				details       TEXT,
				created_at    TIMESTAMPTZ NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_audit_logs_created ON audit_logs(created_at)`,
		},
	},
}

// Migrate brings the schema up to the latest version. It is safe to call on
// every start; applied versions are recorded in schema_version.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	var current int
	if err := db.GetContext(ctx, &current,
		`SELECT COALESCE(MAX(version), 0) FROM schema_version`); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	dialect := DialectOf(db)
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := applyMigration(ctx, db, dialect, m); err != nil {
			return err
		}
		logger.Info("Schema migration applied",
			zap.Int("version", m.version),
			zap.String("name", m.name),
			zap.String("dialect", string(dialect)),
		)
	}
	return nil
}

func applyMigration(ctx context.Context, db *sqlx.DB, dialect Dialect, m migration) error {
	stmts := m.sqlite
	if dialect == DialectPostgres {
		stmts = m.postgres
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning migration %d: %w", m.version, err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying migration %d (%s): %w", m.version, m.name, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		tx.Rebind(`INSERT INTO schema_version (version) VALUES (?)`), m.version); err != nil {
		return fmt.Errorf("recording migration %d: %w", m.version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing migration %d: %w", m.version, err)
	}
	return nil
}

// SchemaVersion returns the highest applied migration version.
func SchemaVersion(ctx context.Context, db *sqlx.DB) (int, error) {
	var v int
	if err := db.GetContext(ctx, &v, `SELECT COALESCE(MAX(version), 0) FROM schema_version`); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}
