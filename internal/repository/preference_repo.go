package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"sphincs.io/sphincs/internal/domain"
)

type preferenceRow struct {
	UserID            int64        `db:"user_id"`
	Module            string       `db:"module"`
	IsEnabled         bool         `db:"is_enabled"`
	SeverityThreshold string       `db:"severity_threshold"`
	DesktopEnabled    bool         `db:"desktop_enabled"`
	MobileEnabled     bool         `db:"mobile_enabled"`
	SnoozedUntil      sql.NullTime `db:"snoozed_until"`
	UpdatedAt         time.Time    `db:"updated_at"`
}

func (r preferenceRow) toDomain() domain.Preference {
	return domain.Preference{
		UserID:            r.UserID,
		Module:            domain.Module(r.Module),
		IsEnabled:         r.IsEnabled,
		SeverityThreshold: domain.Severity(r.SeverityThreshold),
		DesktopEnabled:    r.DesktopEnabled,
		MobileEnabled:     r.MobileEnabled,
		SnoozedUntil:      timePtr(r.SnoozedUntil),
		UpdatedAt:         r.UpdatedAt.UTC(),
	}
}

// PreferenceRepository persists per-user, per-channel notification settings.
type PreferenceRepository struct {
	db *sqlx.DB
}

// NewPreferenceRepository creates a preference repository.
func NewPreferenceRepository(db *sqlx.DB) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

// EnsureDefaults inserts a default row for every module the user has no row
// for yet. Existing rows are never touched.
func (r *PreferenceRepository) EnsureDefaults(ctx context.Context, userID int64, modules []domain.Module, now time.Time) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning default preferences: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	q := tx.Rebind(`
		INSERT INTO notification_preferences (
			user_id, module, is_enabled, severity_threshold,
			desktop_enabled, mobile_enabled, snoozed_until, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, module) DO NOTHING`)
	for _, m := range modules {
		p := domain.DefaultPreference(userID, m)
		if _, err := tx.ExecContext(ctx, q,
			p.UserID, string(p.Module), p.IsEnabled, string(p.SeverityThreshold),
			p.DesktopEnabled, p.MobileEnabled, sql.NullTime{}, now.UTC(),
		); err != nil {
			return fmt.Errorf("creating default preference %s for user %d: %w", m, userID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing default preferences: %w", err)
	}
	return nil
}

// ListForUser returns all of a user's rows ordered by module name.
func (r *PreferenceRepository) ListForUser(ctx context.Context, userID int64) ([]domain.Preference, error) {
	var rows []preferenceRow
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`
		SELECT user_id, module, is_enabled, severity_threshold,
			desktop_enabled, mobile_enabled, snoozed_until, updated_at
		FROM notification_preferences WHERE user_id = ? ORDER BY module`), userID)
	if err != nil {
		return nil, fmt.Errorf("listing preferences for user %d: %w", userID, err)
	}
	out := make([]domain.Preference, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// Save writes a full preference row, creating it if needed.
func (r *PreferenceRepository) Save(ctx context.Context, p domain.Preference) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO notification_preferences (
			user_id, module, is_enabled, severity_threshold,
			desktop_enabled, mobile_enabled, snoozed_until, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, module) DO UPDATE SET
			is_enabled = excluded.is_enabled,
			severity_threshold = excluded.severity_threshold,
			desktop_enabled = excluded.desktop_enabled,
			mobile_enabled = excluded.mobile_enabled,
			snoozed_until = excluded.snoozed_until,
			updated_at = excluded.updated_at`),
		p.UserID, string(p.Module), p.IsEnabled, string(p.SeverityThreshold),
		p.DesktopEnabled, p.MobileEnabled, nullTime(p.SnoozedUntil), p.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving preference %s for user %d: %w", p.Module, p.UserID, err)
	}
	return nil
}

// SetSnooze sets (or with a nil until, clears) snoozed_until on the named
// modules of a user and returns the number of rows touched.
func (r *PreferenceRepository) SetSnooze(ctx context.Context, userID int64, modules []domain.Module, until *time.Time, now time.Time) (int, error) {
	if len(modules) == 0 {
		return 0, nil
	}
	names := make([]string, 0, len(modules))
	for _, m := range modules {
		names = append(names, string(m))
	}
	q, args, err := sqlx.In(`UPDATE notification_preferences SET snoozed_until = ?, updated_at = ?
		WHERE user_id = ? AND module IN (?)`, nullTime(until), now.UTC(), userID, names)
	if err != nil {
		return 0, fmt.Errorf("building snooze update: %w", err)
	}
	res, err := r.db.ExecContext(ctx, r.db.Rebind(q), args...)
	if err != nil {
		return 0, fmt.Errorf("updating snooze for user %d: %w", userID, err)
	}
	return rowsAffected(res)
}
