// Package audit records operator actions on the alert pipeline.
//
// Audit rows are append-only: nothing in Sphincs updates or deletes them.
//
// Import Path: sphincs.io/sphincs/internal/governance/audit
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"sphincs.io/sphincs/internal/pkg/logger"
)

// Audited actions.
const (
	ActionAlertEmit        = "alert.emit"
	ActionAlertsReadAll    = "alert.read_all"
	ActionPreferenceUpdate = "preference.update"
	ActionSnooze           = "preference.snooze"
	ActionSnoozeClear      = "preference.snooze_clear"
	ActionScanRun          = "scanner.run"
)

// Resource types.
const (
	ResourceAlert      = "alert"
	ResourcePreference = "notification_preference"
	ResourceScanner    = "scanner"
)

// Entry is one audit record.
type Entry struct {
	ID           string         `json:"id"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id,omitempty"`
	Actor        string         `json:"actor"`
	Details      map[string]any `json:"details,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Logger writes audit records to the database.
type Logger struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewLogger creates a new audit Logger.
func NewLogger(db *sqlx.DB) *Logger {
	return &Logger{db: db, now: time.Now}
}

// LogAction records an auditable action.
func (l *Logger) LogAction(ctx context.Context, action, resourceType, resourceID, actor string, details map[string]any) error {
	var encoded sql.NullString
	if len(details) > 0 {
		b, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("encode audit details: %w", err)
		}
		encoded = sql.NullString{String: string(b), Valid: true}
	}

	_, err := l.db.ExecContext(ctx, l.db.Rebind(`INSERT INTO audit_logs
		(id, action, resource_type, resource_id, actor, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		generateAuditID(), action, resourceType, resourceID, actor, encoded, l.now().UTC())
	if err != nil {
		logger.Error("Failed to write audit log",
			zap.String("action", action),
			zap.String("resource_type", resourceType),
			zap.String("resource_id", resourceID),
			zap.Error(err),
		)
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

type entryRow struct {
	ID           string         `db:"id"`
	Action       string         `db:"action"`
	ResourceType string         `db:"resource_type"`
	ResourceID   string         `db:"resource_id"`
	Actor        string         `db:"actor"`
	Details      sql.NullString `db:"details"`
	CreatedAt    time.Time      `db:"created_at"`
}

// Recent returns the newest entries first.
func (l *Logger) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []entryRow
	err := l.db.SelectContext(ctx, &rows, l.db.Rebind(`SELECT id, action, resource_type, resource_id, actor, details, created_at
		FROM audit_logs ORDER BY created_at DESC, id DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}

	out := make([]Entry, 0, len(rows))
	for _, r := range rows {
		e := Entry{
			ID:           r.ID,
			Action:       r.Action,
			ResourceType: r.ResourceType,
			ResourceID:   r.ResourceID,
			Actor:        r.Actor,
			CreatedAt:    r.CreatedAt.UTC(),
		}
		if r.Details.Valid && r.Details.String != "" {
			if err := json.Unmarshal([]byte(r.Details.String), &e.Details); err != nil {
				return nil, fmt.Errorf("decode details of audit entry %s: %w", r.ID, err)
			}
		}
		out = append(out, e)
	}
	return out, nil
}

// generateAuditID returns a time-ordered id.
func generateAuditID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return "audit-" + uuid.New().String()
	}
	return "audit-" + id.String()
}
